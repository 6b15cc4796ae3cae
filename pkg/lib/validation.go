package lib

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var goValidator = validator.New()

// ValidationErrors collects all field failures from a single struct validation.
type ValidationErrors struct {
	Errors []string `json:"errors"`
}

func (ve ValidationErrors) Error() string {
	if len(ve.Errors) == 0 {
		return "no validation errors"
	}
	return strings.Join(ve.Errors, "; ")
}

// ValidateStruct validates a struct using go-playground/validator.
// Returns nil when validation passes.
func ValidateStruct(s any) error {
	if err := goValidator.Struct(s); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok {
			out := ValidationErrors{}
			for _, e := range ve {
				out.Errors = append(out.Errors, fmt.Sprintf("%s %s", e.Field(), e.ActualTag()))
			}
			return out
		}
		return err
	}
	return nil
}
