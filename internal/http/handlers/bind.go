package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/geocoder89/mealplanner/internal/validation"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

// BindJSON decodes and validates the body into out. On failure it has
// already answered and returns false.
func BindJSON(ctx *gin.Context, out interface{}) bool {
	err := ctx.ShouldBindJSON(out)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		RespondError(ctx, http.StatusRequestEntityTooLarge, "body_too_large", "Request body is too large", nil)
		return false
	}

	RespondBadRequest(ctx, "Invalid request body", bindErrorDetails(err, structOf(out)))
	return false
}

func bindErrorDetails(err error, root reflect.Type) gin.H {
	var (
		invalid  validator.ValidationErrors
		syntax   *json.SyntaxError
		mismatch *json.UnmarshalTypeError
	)

	switch {
	case errors.As(err, &invalid):
		fields := make([]FieldError, len(invalid))
		for i, fe := range invalid {
			fields[i] = FieldError{
				Field:   validatorFieldPath(root, fe),
				Rule:    fe.Tag(),
				Param:   fe.Param(),
				Message: validation.Message(fe.Tag(), fe.Param()),
			}
		}
		return gin.H{"fields": fields}

	case errors.As(err, &syntax):
		return gin.H{"json": "invalid_json_syntax"}

	case errors.As(err, &mismatch):
		field := strings.TrimSpace(mismatch.Field)
		if field != "" {
			field = jsonPath(root, strings.Split(field, "."))
		}
		return gin.H{
			"json":  "invalid_json_type",
			"field": field,
			"fields": []FieldError{{
				Field:   field,
				Rule:    "type",
				Message: fmt.Sprintf("must be of type %s", mismatch.Type),
			}},
		}

	case errors.Is(err, io.EOF):
		return gin.H{"json": "empty_body"}
	}

	return gin.H{"reason": err.Error()}
}

func structOf(v interface{}) reflect.Type {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Kind() == reflect.Struct {
		return t
	}
	return nil
}

// validatorFieldPath maps "CreateUserRequest.FullName" to "fullName".
func validatorFieldPath(root reflect.Type, fe validator.FieldError) string {
	_, ns, _ := strings.Cut(fe.StructNamespace(), ".")
	if ns == "" {
		return fe.Field()
	}
	return jsonPath(root, strings.Split(ns, "."))
}

// jsonPath walks struct fields by Go name, emitting their json names.
// Index suffixes like "[2]" are kept as they are.
func jsonPath(t reflect.Type, parts []string) string {
	out := make([]string, 0, len(parts))

	for _, part := range parts {
		if part == "" {
			continue
		}
		name, index, _ := strings.Cut(part, "[")
		if index != "" {
			index = "[" + index
		}

		jsonName := name
		var next reflect.Type
		if t != nil && t.Kind() == reflect.Struct {
			if sf, ok := t.FieldByName(name); ok {
				jsonName = jsonFieldName(sf)
				next = sf.Type
			}
		}
		out = append(out, jsonName+index)

		for next != nil && (next.Kind() == reflect.Pointer || next.Kind() == reflect.Slice || next.Kind() == reflect.Array) {
			next = next.Elem()
		}
		t = next
	}

	return strings.Join(out, ".")
}

func jsonFieldName(sf reflect.StructField) string {
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return sf.Name
	}
	return name
}
