// Package validation turns go-playground/validator failures into
// validation errors with a message fit for a chat reply.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/mealplanner/internal/apperr"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Struct checks the `validate` tags of v.
func Struct(v any) error {
	return convert(validate.Struct(v), "")
}

// Var checks a single value against tag; field names the value in messages.
func Var(field string, value any, tag string) error {
	return convert(validate.Var(value, tag), field)
}

func convert(err error, field string) error {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Validation("%s", err.Error())
	}

	fe := verrs[0]
	name := field
	if name == "" {
		name = Humanize(fe.Field())
	}
	return apperr.Validation("%s %s", name, Message(fe.Tag(), fe.Param()))
}

// Humanize turns "FullName" into "full name".
func Humanize(field string) string {
	var b strings.Builder
	for i, r := range field {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

func Message(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "alphanum":
		return "may only contain letters and digits"
	case "min":
		return "must be at least " + param + " characters"
	case "max":
		return "must be at most " + param + " characters"
	case "len":
		return "must be exactly " + param
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	case "uuid":
		return "must be a valid id"
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}
