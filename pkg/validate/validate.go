// Package validate checks original URLs and custom short codes, and provides a
// request validator that knows about both.
package validate

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shorturls/pkg/shortcode"
)

const (
	TagHTTPURL   = "http_url"
	TagShortCode = "short_code"
)

var httpURLRegexp = regexp.MustCompile(`^https?://.+`)

// URL reports whether s starts with http:// or https:// followed by at least
// one character.
func URL(s string) bool {
	return httpURLRegexp.MatchString(s)
}

// ShortCode reports whether s is an acceptable custom short code.
func ShortCode(s string) bool {
	return shortcode.IsValid(s)
}

// New returns a validator that reports fields by their JSON names and
// understands the http_url and short_code tags.
func New() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Registration only fails for empty tags or nil funcs.
	_ = validate.RegisterValidation(TagHTTPURL, func(fl validator.FieldLevel) bool {
		return URL(fl.Field().String())
	})
	_ = validate.RegisterValidation(TagShortCode, func(fl validator.FieldLevel) bool {
		return ShortCode(fl.Field().String())
	})

	return validate
}
