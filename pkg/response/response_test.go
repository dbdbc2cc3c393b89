package response

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vadimbarashkov/shorturls/pkg/validate"
)

func TestError(t *testing.T) {
	tests := []struct {
		name string
		kind string
		msg  string
		errs []ValidationError
		want Response
	}{
		{
			name: "without validation errors",
			kind: "NotFound",
			msg:  "Short URL not found.",
			want: Response{
				Status:  StatusError,
				Error:   "NotFound",
				Message: "Short URL not found.",
			},
		},
		{
			name: "with validation errors",
			kind: "InvalidInput",
			msg:  "Invalid request.",
			errs: []ValidationError{{Field: "url", Value: "", Issue: "This field is required."}},
			want: Response{
				Status:  StatusError,
				Error:   "InvalidInput",
				Message: "Invalid request.",
				Errors:  []ValidationError{{Field: "url", Value: "", Issue: "This field is required."}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Error(tt.kind, tt.msg, tt.errs...)

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidationErrors(t *testing.T) {
	type req struct {
		URL       string `json:"url" validate:"required,http_url"`
		Validity  *int   `json:"validity" validate:"omitempty,gt=0"`
		ShortCode string `json:"shortcode" validate:"omitempty,short_code"`
	}

	v := validate.New()
	zero := 0

	tests := []struct {
		name string
		req  req
		want []ValidationError
	}{
		{
			name: "no errors",
			req:  req{URL: "https://example.com"},
		},
		{
			name: "missing url",
			req:  req{},
			want: []ValidationError{
				{Field: "url", Value: "", Issue: "This field is required."},
			},
		},
		{
			name: "several errors",
			req:  req{URL: "not-a-url", Validity: &zero, ShortCode: "ab"},
			want: []ValidationError{
				{Field: "url", Value: "not-a-url", Issue: "Invalid URL. Please provide a valid HTTP/HTTPS URL."},
				{Field: "validity", Value: 0, Issue: "Must be greater than 0."},
				{Field: "shortcode", Value: "ab", Issue: "Must be alphanumeric and 3-20 characters long."},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.req)
			got := ValidationErrors(err)

			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("not a validation error", func(t *testing.T) {
		assert.Nil(t, ValidationErrors(errors.New("unknown error")))
		assert.Nil(t, ValidationErrors(fmt.Errorf("wrapped: %w", errors.New("unknown error"))))
	})
}
