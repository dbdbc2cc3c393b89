package entity

import "errors"

// ErrorKind is a stable, machine-readable classification of a failure.
type ErrorKind string

const (
	KindInvalidInput            ErrorKind = "InvalidInput"
	KindInvalidURLFormat        ErrorKind = "InvalidUrlFormat"
	KindInvalidShortCodeFormat  ErrorKind = "InvalidShortCodeFormat"
	KindShortCodeConflict       ErrorKind = "ShortCodeConflict"
	KindCodeGenerationExhausted ErrorKind = "CodeGenerationExhausted"
	KindNotFound                ErrorKind = "NotFound"
	KindExpired                 ErrorKind = "Expired"
	KindStoreUnavailable        ErrorKind = "StoreUnavailable"
	KindInternalError           ErrorKind = "InternalError"
)

// Error is a failure that can be shown to the caller as is.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	// ErrURLRequired is returned when the original URL is missing.
	ErrURLRequired = &Error{Kind: KindInvalidInput, Message: "URL is required. Please provide a valid URL."}
	// ErrInvalidValidity is returned when the validity is not a positive number of minutes within the allowed maximum.
	ErrInvalidValidity = &Error{Kind: KindInvalidInput, Message: "Validity must be a positive number of minutes within the allowed maximum."}
	// ErrInvalidURLFormat is returned when the original URL is not an HTTP or HTTPS URL.
	ErrInvalidURLFormat = &Error{Kind: KindInvalidURLFormat, Message: "Invalid URL format. Please provide a valid HTTP/HTTPS URL."}
	// ErrInvalidShortCodeFormat is returned when a custom short code has the wrong shape.
	ErrInvalidShortCodeFormat = &Error{Kind: KindInvalidShortCodeFormat, Message: "Shortcode must be alphanumeric and 3-20 characters long."}
	// ErrShortCodeExists is returned when attempting to create a URL with a short code that already exists.
	ErrShortCodeExists = &Error{Kind: KindShortCodeConflict, Message: "Shortcode already exists. Please choose a different shortcode."}
	// ErrCodeGenerationExhausted is returned when no free short code was found within the attempt budget.
	ErrCodeGenerationExhausted = &Error{Kind: KindCodeGenerationExhausted, Message: "Unable to generate shortcode. Please try again."}
	// ErrURLNotFound is returned when a URL with the specified short code cannot be found.
	ErrURLNotFound = &Error{Kind: KindNotFound, Message: "Short URL not found."}
	// ErrURLExpired is returned when the short code exists but its validity window has passed.
	ErrURLExpired = &Error{Kind: KindExpired, Message: "This short URL has expired."}
	// ErrStoreUnavailable is returned when the store did not answer in time. Retrying is safe.
	ErrStoreUnavailable = &Error{Kind: KindStoreUnavailable, Message: "The store is temporarily unavailable. Please try again."}
	// ErrInternal is returned for any other failure.
	ErrInternal = &Error{Kind: KindInternalError, Message: "An internal server error occurred. Please try again later."}
)

// KindOf returns the kind of the first *Error in err's chain,
// or KindInternalError if there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternalError
}

// AsError returns the first *Error in err's chain, or ErrInternal.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal
}
