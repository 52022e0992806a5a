package handler

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// formatValidationErrors converts validator errors to a readable format
func formatValidationErrors(err error) []map[string]string {
	var details []map[string]string

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			details = append(details, map[string]string{
				"field":   e.Field(),
				"rule":    e.Tag(),
				"message": fmt.Sprintf("failed on '%s' validation", e.Tag()),
			})
		}
	}

	return details
}
