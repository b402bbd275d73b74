package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// checkStruct validates req and converts tag failures into the field-level
// entries the error envelope carries. A nil return means req is valid.
func checkStruct(req any) []fieldError {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []fieldError{{Field: "", Message: "invalid request"}}
	}

	fields := make([]fieldError, 0, len(validationErrors))
	for _, e := range validationErrors {
		fields = append(fields, fieldError{
			Field:   jsonFieldName(e.Field()),
			Message: tagMessage(e),
		})
	}
	return fields
}

// jsonFieldName lowercases the leading rune so envelope fields match the
// request JSON (Username → username, FullName → fullName).
func jsonFieldName(name string) string {
	if name == "" {
		return name
	}
	return strings.ToLower(name[:1]) + name[1:]
}

func tagMessage(e validator.FieldError) string {
	field := jsonFieldName(e.Field())
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
