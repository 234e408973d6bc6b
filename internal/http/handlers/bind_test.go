package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/geocoder89/mealplanner/internal/domain/user"
	"github.com/geocoder89/mealplanner/internal/http/handlers"
	"github.com/geocoder89/mealplanner/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type bindDetails struct {
	JSON   string                `json:"json"`
	Field  string                `json:"field"`
	Fields []handlers.FieldError `json:"fields"`
}

func bindUser(t *testing.T, body string) (int, string, bindDetails) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(middlewares.MaxBodyBytes(256))
	r.POST("/users", func(c *gin.Context) {
		var req user.CreateUserRequest
		if handlers.BindJSON(c, &req) {
			c.Status(http.StatusCreated)
		}
	})

	req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code == http.StatusCreated {
		return w.Code, "", bindDetails{}
	}

	var resp struct {
		Error struct {
			Code    string      `json:"code"`
			Details bindDetails `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, w.Body.String())
	}
	return w.Code, resp.Error.Code, resp.Error.Details
}

func TestBindJSON_ReportsRulesByJSONName(t *testing.T) {
	status, code, d := bindUser(t, `{"username":"al","password":"pw"}`)
	if status != http.StatusBadRequest || code != "invalid_request" {
		t.Fatalf("status=%d code=%s", status, code)
	}

	got := map[string]handlers.FieldError{}
	for _, f := range d.Fields {
		got[f.Field] = f
	}
	for field, rule := range map[string]string{"username": "min", "fullName": "required", "password": "min"} {
		f, ok := got[field]
		if !ok {
			t.Fatalf("no error for %q in %+v", field, d.Fields)
		}
		if f.Rule != rule || f.Message == "" {
			t.Fatalf("%s: rule=%q message=%q, want rule %q", field, f.Rule, f.Message, rule)
		}
	}
}

func TestBindJSON_DecodeFailures(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		json   string
		field  string
	}{
		{"accepted", `{"username":"alice","fullName":"Alice","password":"secret"}`, http.StatusCreated, "", ""},
		{"type mismatch", `{"username":"alice","fullName":42,"password":"secret"}`, http.StatusBadRequest, "invalid_json_type", "fullName"},
		{"syntax", `{"username":}`, http.StatusBadRequest, "invalid_json_syntax", ""},
		{"empty", ``, http.StatusBadRequest, "empty_body", ""},
		{"too large", `{"fullName":"` + strings.Repeat("x", 400) + `"}`, http.StatusRequestEntityTooLarge, "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, _, d := bindUser(t, tc.body)
			if status != tc.status {
				t.Fatalf("status %d, want %d", status, tc.status)
			}
			if d.JSON != tc.json || d.Field != tc.field {
				t.Fatalf("details %+v, want json=%q field=%q", d, tc.json, tc.field)
			}
		})
	}
}
