// Package response builds the JSON error envelope returned by the API.
package response

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

const StatusError = "error"

type Response struct {
	Status  string            `json:"status"`
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field string `json:"field"`
	Value any    `json:"value"`
	Issue string `json:"issue"`
}

// Error returns an error envelope with a machine-readable kind and a
// human-readable message.
func Error(kind, msg string, errs ...ValidationError) Response {
	return Response{
		Status:  StatusError,
		Error:   kind,
		Message: msg,
		Errors:  errs,
	}
}

// ValidationErrors lists the field errors found in err. It returns nil when err
// does not come from the validator.
func ValidationErrors(err error) []ValidationError {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return nil
	}

	res := make([]ValidationError, 0, len(validationErrs))

	for _, e := range validationErrs {
		res = append(res, ValidationError{
			Field: e.Field(),
			Value: e.Value(),
			Issue: issueForTag(e.Tag(), e.Param()),
		})
	}

	return res
}

func issueForTag(tag, param string) string {
	switch tag {
	case "required":
		return "This field is required."
	case "url", "http_url":
		return "Invalid URL. Please provide a valid HTTP/HTTPS URL."
	case "short_code":
		return "Must be alphanumeric and 3-20 characters long."
	case "gt":
		return "Must be greater than " + param + "."
	case "lte":
		return "Must be at most " + param + "."
	default:
		return "Invalid value."
	}
}
