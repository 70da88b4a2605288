// Package validate runs the `validate` struct tags on request inputs,
// reporting violations by the field's JSON name so handlers can echo them
// back to clients.
package validate

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var instance = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// First checks v's validate tags and reports the first violation. failed is
// false when v passes.
func First(v any) (field, message string, failed bool) {
	err := instance.Struct(v)
	if err == nil {
		return "", "", false
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return "", "invalid input", true
	}
	return errs[0].Field(), messageFor(errs[0]), true
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "min":
		return "required"
	case "email":
		return "invalid email address"
	case "url":
		return "invalid url"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gte":
		return "must be at least " + fe.Param()
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	default:
		return "invalid"
	}
}
