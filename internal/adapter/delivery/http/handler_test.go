package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/go-chi/httplog/v2"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/vadimbarashkov/shorturls/internal/adapter/repository/memory"
	"github.com/vadimbarashkov/shorturls/internal/entity"
	"github.com/vadimbarashkov/shorturls/internal/usecase"
)

type mockURLUseCase struct {
	mock.Mock
}

func (m *mockURLUseCase) ShortenURL(ctx context.Context, params usecase.ShortenParams) (*entity.URL, error) {
	args := m.Called(ctx, params)
	url, _ := args.Get(0).(*entity.URL)
	return url, args.Error(1)
}

func (m *mockURLUseCase) Redirect(ctx context.Context, shortCode string, visitor usecase.Visitor) (*entity.URL, error) {
	args := m.Called(ctx, shortCode, visitor)
	url, _ := args.Get(0).(*entity.URL)
	return url, args.Error(1)
}

func (m *mockURLUseCase) GetURLStats(ctx context.Context, shortCode string) (*entity.URLStats, error) {
	args := m.Called(ctx, shortCode)
	stats, _ := args.Get(0).(*entity.URLStats)
	return stats, args.Error(1)
}

var createdAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type HandlersTestSuite struct {
	suite.Suite
	logger         *httplog.Logger
	urlUseCaseMock *mockURLUseCase
	server         *httptest.Server
	e              *httpexpect.Expect
}

func (suite *HandlersTestSuite) SetupSuite() {
	suite.logger = httplog.NewLogger("", httplog.Options{Writer: io.Discard})
}

func (suite *HandlersTestSuite) SetupSubTest() {
	suite.urlUseCaseMock = new(mockURLUseCase)

	router := NewRouter(suite.logger, suite.urlUseCaseMock)
	suite.server = httptest.NewServer(router)
	suite.T().Cleanup(func() {
		suite.server.Close()
	})

	suite.e = httpexpect.Default(suite.T(), suite.server.URL)
}

func (suite *HandlersTestSuite) TearDownSubTest() {
	suite.urlUseCaseMock.AssertExpectations(suite.T())
}

func (suite *HandlersTestSuite) TestPing() {
	const path = "/api/v1/ping"

	suite.Run("success", func() {
		suite.e.GET(path).
			Expect().
			Status(http.StatusOK).
			Text().IsEqual("pong")
	})
}

func (suite *HandlersTestSuite) TestDocs() {
	suite.Run("swagger document", func() {
		suite.e.GET("/docs/swagger.yml").
			Expect().
			Status(http.StatusOK).
			Body().Contains("/shorturls")
	})
}

func (suite *HandlersTestSuite) TestShortenURL() {
	const path = "/shorturls"

	suite.Run("empty request body", func() {
		resp := suite.e.POST(path).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object()

		resp.HasValue("status", "error")
		resp.HasValue("error", "InvalidInput")
		resp.ContainsKey("message")
	})

	suite.Run("invalid request body", func() {
		resp := suite.e.POST(path).
			WithJSON("invalid body").
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object()

		resp.HasValue("status", "error")
		resp.HasValue("error", "InvalidInput")
	})

	suite.Run("missing url", func() {
		resp := suite.e.POST(path).
			WithJSON(map[string]any{"validity": 10}).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object()

		resp.HasValue("error", "InvalidInput")
		resp.Value("errors").Array().Value(0).Object().
			HasValue("field", "url").
			ContainsKey("issue")
	})

	suite.Run("invalid url format", func() {
		resp := suite.e.POST(path).
			WithJSON(map[string]any{"url": "not-a-url"}).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object()

		resp.HasValue("status", "error")
		resp.HasValue("error", "InvalidUrlFormat")
		resp.HasValue("message", entity.ErrInvalidURLFormat.Message)
	})

	suite.Run("invalid short code format", func() {
		resp := suite.e.POST(path).
			WithJSON(map[string]any{"url": "https://example.com", "shortcode": "ab"}).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object()

		resp.HasValue("error", "InvalidShortCodeFormat")
		resp.Value("errors").Array().Value(0).Object().
			HasValue("field", "shortcode").
			HasValue("value", "ab")
	})

	suite.Run("non-positive validity", func() {
		resp := suite.e.POST(path).
			WithJSON(map[string]any{"url": "https://example.com", "validity": 0}).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object()

		resp.HasValue("error", "InvalidInput")
		resp.Value("errors").Array().Value(0).Object().
			HasValue("field", "validity")
	})

	suite.Run("validity of the wrong type", func() {
		for _, validity := range []any{1.5, "10", 1e30, true} {
			resp := suite.e.POST(path).
				WithJSON(map[string]any{"url": "https://example.com", "validity": validity}).
				Expect().
				Status(http.StatusBadRequest).
				JSON().Object()

			resp.HasValue("error", "InvalidInput")
			resp.HasValue("message", entity.ErrInvalidValidity.Message)
			resp.Value("errors").Array().Value(0).Object().
				HasValue("field", "validity").
				ContainsKey("issue")
		}
	})

	suite.Run("short code of the wrong type", func() {
		resp := suite.e.POST(path).
			WithJSON(map[string]any{"url": "https://example.com", "shortcode": 12345}).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object()

		resp.HasValue("error", "InvalidShortCodeFormat")
		resp.Value("errors").Array().Value(0).Object().
			HasValue("field", "shortcode")
	})

	suite.Run("short code conflict", func() {
		suite.urlUseCaseMock.
			On("ShortenURL", mock.Anything, usecase.ShortenParams{OriginalURL: "https://example.com", ShortCode: "promo1"}).
			Once().
			Return(nil, fmt.Errorf("usecase: %w", entity.ErrShortCodeExists))

		resp := suite.e.POST(path).
			WithJSON(map[string]any{"url": "https://example.com", "shortcode": "promo1"}).
			Expect().
			Status(http.StatusConflict).
			JSON().Object()

		resp.HasValue("error", "ShortCodeConflict")
		resp.HasValue("message", entity.ErrShortCodeExists.Message)
	})

	suite.Run("generation exhausted", func() {
		suite.urlUseCaseMock.
			On("ShortenURL", mock.Anything, usecase.ShortenParams{OriginalURL: "https://example.com"}).
			Once().
			Return(nil, entity.ErrCodeGenerationExhausted)

		resp := suite.e.POST(path).
			WithJSON(map[string]any{"url": "https://example.com"}).
			Expect().
			Status(http.StatusInternalServerError).
			JSON().Object()

		resp.HasValue("error", "CodeGenerationExhausted")
	})

	suite.Run("server error", func() {
		suite.urlUseCaseMock.
			On("ShortenURL", mock.Anything, usecase.ShortenParams{OriginalURL: "https://example.com"}).
			Once().
			Return(nil, errors.New("pq: connection reset by peer"))

		resp := suite.e.POST(path).
			WithJSON(map[string]any{"url": "https://example.com"}).
			Expect().
			Status(http.StatusInternalServerError).
			JSON().Object()

		resp.HasValue("status", "error")
		resp.HasValue("error", "InternalError")
		resp.HasValue("message", entity.ErrInternal.Message)
	})

	suite.Run("success", func() {
		validity := 1

		suite.urlUseCaseMock.
			On("ShortenURL", mock.Anything, usecase.ShortenParams{
				OriginalURL:     "https://example.com",
				ValidityMinutes: &validity,
			}).
			Once().
			Return(&entity.URL{
				ShortCode:   "abc123",
				OriginalURL: "https://example.com",
				ShortURL:    "http://localhost:5000/abc123",
				CreatedAt:   createdAt,
				ExpiresAt:   createdAt.Add(time.Minute),
			}, nil)

		resp := suite.e.POST(path).
			WithJSON(map[string]any{"url": "https://example.com", "validity": 1}).
			Expect().
			Status(http.StatusCreated).
			JSON().Object()

		resp.IsEqual(map[string]any{
			"shortLink": "http://localhost:5000/abc123",
			"expiry":    "2024-05-01T12:01:00.000Z",
		})
	})
}

func (suite *HandlersTestSuite) TestRedirect() {
	const path = "/{shortCode}"

	suite.Run("url not found", func() {
		suite.urlUseCaseMock.
			On("Redirect", mock.Anything, "abc123", mock.Anything).
			Once().
			Return(nil, entity.ErrURLNotFound)

		resp := suite.e.GET(path, "abc123").
			Expect().
			Status(http.StatusNotFound).
			JSON().Object()

		resp.HasValue("status", "error")
		resp.HasValue("error", "NotFound")
	})

	suite.Run("url expired", func() {
		suite.urlUseCaseMock.
			On("Redirect", mock.Anything, "abc123", mock.Anything).
			Once().
			Return(nil, entity.ErrURLExpired)

		resp := suite.e.GET(path, "abc123").
			Expect().
			Status(http.StatusGone).
			JSON().Object()

		resp.HasValue("error", "Expired")
	})

	suite.Run("store unavailable", func() {
		suite.urlUseCaseMock.
			On("Redirect", mock.Anything, "abc123", mock.Anything).
			Once().
			Return(nil, fmt.Errorf("%w: %w", entity.ErrStoreUnavailable, context.DeadlineExceeded))

		resp := suite.e.GET(path, "abc123").
			Expect().
			Status(http.StatusInternalServerError).
			JSON().Object()

		resp.HasValue("error", "StoreUnavailable")
	})

	suite.Run("success", func() {
		suite.urlUseCaseMock.
			On("Redirect", mock.Anything, "abc123", usecase.Visitor{
				Referrer: "https://google.com",
				Location: "203.0.113.7",
			}).
			Once().
			Return(&entity.URL{
				ShortCode:   "abc123",
				OriginalURL: "https://example.com",
			}, nil)

		suite.e.GET(path, "abc123").
			WithRedirectPolicy(httpexpect.DontFollowRedirects).
			WithHeader("Referer", "https://google.com").
			WithHeader("X-Forwarded-For", "203.0.113.7").
			Expect().
			Status(http.StatusFound).
			Header("Location").IsEqual("https://example.com")
	})

	suite.Run("success without referrer", func() {
		suite.urlUseCaseMock.
			On("Redirect", mock.Anything, "abc123", usecase.Visitor{Location: "127.0.0.1"}).
			Once().
			Return(&entity.URL{
				ShortCode:   "abc123",
				OriginalURL: "https://example.com",
			}, nil)

		suite.e.GET(path, "abc123").
			WithRedirectPolicy(httpexpect.DontFollowRedirects).
			Expect().
			Status(http.StatusFound).
			Header("Location").IsEqual("https://example.com")
	})
}

func (suite *HandlersTestSuite) TestGetURLStats() {
	const path = "/shorturls/{shortCode}"

	suite.Run("url not found", func() {
		suite.urlUseCaseMock.
			On("GetURLStats", mock.Anything, "abc123").
			Once().
			Return(nil, entity.ErrURLNotFound)

		resp := suite.e.GET(path, "abc123").
			Expect().
			Status(http.StatusNotFound).
			JSON().Object()

		resp.HasValue("status", "error")
		resp.HasValue("error", "NotFound")
	})

	suite.Run("server error", func() {
		suite.urlUseCaseMock.
			On("GetURLStats", mock.Anything, "abc123").
			Once().
			Return(nil, errors.New("unknown error"))

		resp := suite.e.GET(path, "abc123").
			Expect().
			Status(http.StatusInternalServerError).
			JSON().Object()

		resp.HasValue("error", "InternalError")
	})

	suite.Run("success", func() {
		suite.urlUseCaseMock.
			On("GetURLStats", mock.Anything, "abc123").
			Once().
			Return(&entity.URLStats{
				URL: &entity.URL{
					ShortCode:   "abc123",
					OriginalURL: "https://example.com",
					ShortURL:    "http://localhost:5000/abc123",
					CreatedAt:   createdAt,
					ExpiresAt:   createdAt.Add(time.Minute),
					Clicks: []entity.Click{
						{Timestamp: createdAt.Add(10 * time.Second), Location: "127.0.0.1"},
						{Timestamp: createdAt.Add(20 * time.Second), Referrer: "https://google.com", Location: entity.DefaultLocation},
					},
				},
				TotalClicks: 2,
				IsExpired:   true,
			}, nil)

		resp := suite.e.GET(path, "abc123").
			Expect().
			Status(http.StatusOK).
			JSON().Object()

		resp.HasValue("shortCode", "abc123")
		resp.HasValue("originalUrl", "https://example.com")
		resp.HasValue("shortUrl", "http://localhost:5000/abc123")
		resp.HasValue("totalClicks", 2)
		resp.HasValue("createdAt", "2024-05-01T12:00:00.000Z")
		resp.HasValue("expiresAt", "2024-05-01T12:01:00.000Z")
		resp.HasValue("isExpired", true)

		clicks := resp.Value("clicks").Array()
		clicks.Length().IsEqual(2)
		clicks.Value(0).Object().IsEqual(map[string]any{
			"timestamp": "2024-05-01T12:00:10.000Z",
			"referrer":  "",
			"location":  "127.0.0.1",
		})
		clicks.Value(1).Object().HasValue("referrer", "https://google.com")
	})

	suite.Run("no clicks", func() {
		suite.urlUseCaseMock.
			On("GetURLStats", mock.Anything, "abc123").
			Once().
			Return(&entity.URLStats{
				URL: &entity.URL{
					ShortCode: "abc123",
					CreatedAt: createdAt,
					ExpiresAt: createdAt.Add(time.Minute),
				},
			}, nil)

		resp := suite.e.GET(path, "abc123").
			Expect().
			Status(http.StatusOK).
			JSON().Object()

		resp.HasValue("totalClicks", 0)
		resp.Value("clicks").Array().IsEmpty()
	})
}

func TestURLHandler(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}

func TestShortenURLValidityBounds(t *testing.T) {
	const maxMinutes = 365 * 24 * 60

	logger := httplog.NewLogger("", httplog.Options{Writer: io.Discard})
	urlUseCase := usecase.New(
		memory.NewURLRepository(),
		"http://localhost:5000",
		usecase.WithClock(func() time.Time { return createdAt }),
		usecase.WithMaxValidity(maxMinutes*time.Minute),
	)

	server := httptest.NewServer(NewRouter(logger, urlUseCase))
	t.Cleanup(server.Close)

	e := httpexpect.Default(t, server.URL)

	e.POST("/shorturls").
		WithJSON(map[string]any{"url": "https://example.com", "validity": maxMinutes}).
		Expect().
		Status(http.StatusCreated).
		JSON().Object().
		HasValue("expiry", formatTime(createdAt.Add(maxMinutes*time.Minute)))

	for _, validity := range []int{maxMinutes + 1, 153722868, 307445735, math.MaxInt} {
		e.POST("/shorturls").
			WithJSON(map[string]any{"url": "https://example.com", "validity": validity}).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object().
			HasValue("error", "InvalidInput").
			HasValue("message", entity.ErrInvalidValidity.Message)
	}
}
