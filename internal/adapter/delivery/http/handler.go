package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shorturls/internal/entity"
	"github.com/vadimbarashkov/shorturls/internal/usecase"
	"github.com/vadimbarashkov/shorturls/pkg/response"
)

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "pong")
}

type urlUseCase interface {
	ShortenURL(ctx context.Context, params usecase.ShortenParams) (*entity.URL, error)
	Redirect(ctx context.Context, shortCode string, visitor usecase.Visitor) (*entity.URL, error)
	GetURLStats(ctx context.Context, shortCode string) (*entity.URLStats, error)
}

type urlHandler struct {
	useCase  urlUseCase
	validate *validator.Validate
}

func newURLHandler(useCase urlUseCase, validate *validator.Validate) *urlHandler {
	return &urlHandler{
		useCase:  useCase,
		validate: validate,
	}
}

func (h *urlHandler) shortenURL(w http.ResponseWriter, r *http.Request) {
	var req shortenRequest

	if err := render.DecodeJSON(r.Body, &req); err != nil {
		if errors.Is(err, io.EOF) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, emptyRequestBodyResponse)
			return
		}

		if e, fieldErr, ok := fieldTypeError(err); ok {
			render.Status(r, statusForKind(e.Kind))
			render.JSON(w, r, response.Error(string(e.Kind), e.Message, fieldErr))
			return
		}

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidRequestBodyResponse)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		e := requestError(err)

		render.Status(r, statusForKind(e.Kind))
		render.JSON(w, r, response.Error(string(e.Kind), e.Message, response.ValidationErrors(err)...))
		return
	}

	url, err := h.useCase.ShortenURL(r.Context(), req.toParams())
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toShortenResponse(url))
}

func (h *urlHandler) redirect(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	url, err := h.useCase.Redirect(r.Context(), shortCode, usecase.Visitor{
		Referrer: r.Referer(),
		Location: clientLocation(r),
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	http.Redirect(w, r, url.OriginalURL, http.StatusFound)
}

func (h *urlHandler) getURLStats(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	stats, err := h.useCase.GetURLStats(r.Context(), shortCode)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toStatsResponse(stats))
}

// renderError writes the kind and message of err. Internal details only reach
// the request log.
func (h *urlHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	e := entity.AsError(err)
	status := statusForKind(e.Kind)

	if status >= http.StatusInternalServerError {
		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))
	}

	render.Status(r, status)
	render.JSON(w, r, response.Error(string(e.Kind), e.Message))
}

// clientLocation returns the client's IP address. RemoteAddr has already been
// replaced by middleware.RealIP when the request came through a proxy.
func clientLocation(r *http.Request) string {
	if r.RemoteAddr == "" {
		return entity.DefaultLocation
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
