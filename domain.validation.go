package main

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// FieldError describes one attribute rejected by validation.
type FieldError struct {
	Field   string
	Message string
}

// ValidationFailure is returned when a book candidate does not
// satisfy the schema of the book entity.
type ValidationFailure struct {
	Fields []FieldError
}

func (v *ValidationFailure) Error() string {
	parts := make([]string, 0, len(v.Fields))
	for _, f := range v.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return "book validation failed: " + strings.Join(parts, ", ")
}

// ValidateBookCandidate checks a creation candidate against the book schema.
func ValidateBookCandidate(c *BookCandidate) error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	failure := &ValidationFailure{}
	for _, fe := range verrs {
		msg := "is invalid"
		if fe.Tag() == "required" {
			msg = "is required"
		}
		failure.Fields = append(failure.Fields, FieldError{Field: strings.ToLower(fe.Field()), Message: msg})
	}
	return failure
}
