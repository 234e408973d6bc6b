package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/mealplanner/internal/auth"
	"github.com/geocoder89/mealplanner/internal/domain/menu"
	"github.com/geocoder89/mealplanner/internal/domain/plan"
	"github.com/geocoder89/mealplanner/internal/http/handlers"
	"github.com/geocoder89/mealplanner/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type fakeVerifier struct{}

// tokens are "<userID>:<role>"
func (fakeVerifier) VerifyAccessToken(token string) (*auth.Claims, error) {
	switch token {
	case "u1:standard":
		return &auth.Claims{UserID: "u1", Username: "alice", Role: "standard"}, nil
	case "u2:admin":
		return &auth.Claims{UserID: "u2", Username: "admin", Role: "admin"}, nil
	}
	return nil, errors.New("bad token")
}

type fakeReservations struct {
	calls []string
	from  time.Time
	to    time.Time
	err   error
}

func (f *fakeReservations) Reserve(_ context.Context, userID string, date time.Time, req plan.ReserveRequest) (plan.Reservation, error) {
	f.calls = append(f.calls, "reserve:"+userID+":"+date.Format(time.DateOnly))
	if f.err != nil {
		return plan.Reservation{}, f.err
	}
	return plan.NewReservation(userID, date, req), nil
}

func (f *fakeReservations) Get(_ context.Context, userID string, date time.Time) (plan.Reservation, error) {
	return plan.Reservation{}, plan.ErrReservationNotFound
}

func (f *fakeReservations) List(_ context.Context, userID string, from, to time.Time) ([]plan.Reservation, error) {
	f.from, f.to = from, to
	return []plan.Reservation{}, nil
}

func reservationRouter(svc handlers.ReservationService) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	mw := middlewares.NewAuthMiddleware(fakeVerifier{})
	h := handlers.NewReservationHandler(svc)

	g := r.Group("/", mw.RequireAuth())
	g.PUT("/reservations/:date", h.Put)
	g.GET("/reservations/:date", h.Get)
	g.GET("/reservations", h.List)
	return r
}

func do(r http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const mealID = "4b9f5c2e-6a51-4d8e-9a0f-1f2e3d4c5b6a"

func TestReservations_PutUsesCallerIdentity(t *testing.T) {
	svc := &fakeReservations{}
	r := reservationRouter(svc)

	w := do(r, http.MethodPut, "/reservations/2026-01-05", "u1:standard", `{"mealId":"`+mealID+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
	if len(svc.calls) != 1 || svc.calls[0] != "reserve:u1:2026-01-05" {
		t.Fatalf("unexpected calls: %v", svc.calls)
	}

	var res plan.Reservation
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.UserID != "u1" || res.MealID != mealID {
		t.Fatalf("unexpected reservation: %+v", res)
	}
}

func TestReservations_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		path   string
		token  string
		body   string
		svcErr error
		want   int
	}{
		{"no token", "/reservations/2026-01-05", "", `{"mealId":"` + mealID + `"}`, nil, http.StatusUnauthorized},
		{"bad token", "/reservations/2026-01-05", "nope", `{"mealId":"` + mealID + `"}`, nil, http.StatusUnauthorized},
		{"bad date", "/reservations/05-01-2026", "u1:standard", `{"mealId":"` + mealID + `"}`, nil, http.StatusBadRequest},
		{"bad meal id", "/reservations/2026-01-05", "u1:standard", `{"mealId":"soup"}`, nil, http.StatusBadRequest},
		{"not served", "/reservations/2026-01-08", "u1:standard", `{"mealId":"` + mealID + `"}`, plan.ErrNotServingDay, http.StatusBadRequest},
		{"unknown option", "/reservations/2026-01-05", "u1:standard", `{"mealId":"` + mealID + `"}`, menu.ErrOptionUnavailable, http.StatusConflict},
		{"storage", "/reservations/2026-01-05", "u1:standard", `{"mealId":"` + mealID + `"}`, errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := reservationRouter(&fakeReservations{err: tc.svcErr})

			w := do(r, http.MethodPut, tc.path, tc.token, tc.body)
			if w.Code != tc.want {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tc.want, w.Body.String())
			}
			if bytes.Contains(w.Body.Bytes(), []byte("disk full")) {
				t.Fatalf("storage error text leaked: %s", w.Body.String())
			}
		})
	}
}

func TestReservations_ListDateRange(t *testing.T) {
	svc := &fakeReservations{}
	r := reservationRouter(svc)

	w := do(r, http.MethodGet, "/reservations?from=2026-01-03&to=2026-01-31", "u1:standard", "")
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
	if svc.from.Format(time.DateOnly) != "2026-01-03" || svc.to.Format(time.DateOnly) != "2026-01-31" {
		t.Fatalf("unexpected range %s..%s", svc.from, svc.to)
	}

	w = do(r, http.MethodGet, "/reservations/2026-01-05", "u1:standard", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", w.Code)
	}
}
