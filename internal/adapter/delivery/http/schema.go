package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shorturls/internal/entity"
	"github.com/vadimbarashkov/shorturls/internal/usecase"
	"github.com/vadimbarashkov/shorturls/pkg/response"
)

// isoMillis matches JavaScript's Date.toISOString.
const isoMillis = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(isoMillis)
}

// shortenRequest represents the body of a request to shorten a URL.
type shortenRequest struct {
	URL       string `json:"url" validate:"required,http_url"`
	Validity  *int   `json:"validity" validate:"omitempty,gt=0"`
	ShortCode string `json:"shortcode" validate:"omitempty,short_code"`
}

func (req shortenRequest) toParams() usecase.ShortenParams {
	return usecase.ShortenParams{
		OriginalURL:     req.URL,
		ValidityMinutes: req.Validity,
		ShortCode:       req.ShortCode,
	}
}

// shortenResponse represents a created short URL.
type shortenResponse struct {
	ShortLink string `json:"shortLink"`
	Expiry    string `json:"expiry"`
}

func toShortenResponse(url *entity.URL) shortenResponse {
	return shortenResponse{
		ShortLink: url.ShortURL,
		Expiry:    formatTime(url.ExpiresAt),
	}
}

type clickResponse struct {
	Timestamp string `json:"timestamp"`
	Referrer  string `json:"referrer"`
	Location  string `json:"location"`
}

// statsResponse represents a URL together with its click history.
type statsResponse struct {
	ShortCode   string          `json:"shortCode"`
	OriginalURL string          `json:"originalUrl"`
	ShortURL    string          `json:"shortUrl"`
	TotalClicks int             `json:"totalClicks"`
	CreatedAt   string          `json:"createdAt"`
	ExpiresAt   string          `json:"expiresAt"`
	IsExpired   bool            `json:"isExpired"`
	Clicks      []clickResponse `json:"clicks"`
}

func toStatsResponse(stats *entity.URLStats) statsResponse {
	clicks := make([]clickResponse, 0, len(stats.Clicks))

	for _, c := range stats.Clicks {
		clicks = append(clicks, clickResponse{
			Timestamp: formatTime(c.Timestamp),
			Referrer:  c.Referrer,
			Location:  c.Location,
		})
	}

	return statsResponse{
		ShortCode:   stats.ShortCode,
		OriginalURL: stats.OriginalURL,
		ShortURL:    stats.ShortURL,
		TotalClicks: stats.TotalClicks,
		CreatedAt:   formatTime(stats.CreatedAt),
		ExpiresAt:   formatTime(stats.ExpiresAt),
		IsExpired:   stats.IsExpired,
		Clicks:      clicks,
	}
}

// Predefined error responses for malformed requests.
var (
	emptyRequestBodyResponse = response.Error(
		string(entity.KindInvalidInput),
		"Request body is empty. Please provide a URL to shorten.",
	)

	invalidRequestBodyResponse = response.Error(
		string(entity.KindInvalidInput),
		"Request body is not valid JSON.",
	)
)

var statusByKind = map[entity.ErrorKind]int{
	entity.KindInvalidInput:            http.StatusBadRequest,
	entity.KindInvalidURLFormat:        http.StatusBadRequest,
	entity.KindInvalidShortCodeFormat:  http.StatusBadRequest,
	entity.KindShortCodeConflict:       http.StatusConflict,
	entity.KindCodeGenerationExhausted: http.StatusInternalServerError,
	entity.KindNotFound:                http.StatusNotFound,
	entity.KindExpired:                 http.StatusGone,
	entity.KindStoreUnavailable:        http.StatusInternalServerError,
	entity.KindInternalError:           http.StatusInternalServerError,
}

func statusForKind(kind entity.ErrorKind) int {
	if status, ok := statusByKind[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// requestError picks the error reported for the first invalid field. Fields
// are checked in declaration order, so a missing URL wins over a bad short code.
func requestError(err error) *entity.Error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return entity.ErrInternal
	}

	e := validationErrs[0]

	switch e.Field() {
	case "url":
		if e.Tag() == "required" {
			return entity.ErrURLRequired
		}
		return entity.ErrInvalidURLFormat
	case "validity":
		return entity.ErrInvalidValidity
	case "shortcode":
		return entity.ErrInvalidShortCodeFormat
	default:
		return &entity.Error{Kind: entity.KindInvalidInput, Message: "Invalid request."}
	}
}

// fieldTypeError reports a request field whose JSON type does not match the
// schema, such as a fractional or quoted validity. ok is false for any other
// decoding error.
func fieldTypeError(err error) (e *entity.Error, fieldErr response.ValidationError, ok bool) {
	var typeErr *json.UnmarshalTypeError
	if !errors.As(err, &typeErr) {
		return nil, response.ValidationError{}, false
	}

	switch typeErr.Field {
	case "url":
		e = entity.ErrInvalidURLFormat
	case "validity":
		e = entity.ErrInvalidValidity
	case "shortcode":
		e = entity.ErrInvalidShortCodeFormat
	default:
		return nil, response.ValidationError{}, false
	}

	return e, response.ValidationError{
		Field: typeErr.Field,
		Value: typeErr.Value,
		Issue: "Must be of type " + typeErr.Type.String() + ".",
	}, true
}
