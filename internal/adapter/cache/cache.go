// Package cache puts a read-through cache in front of a URL repository.
// Only URL records are cached. Clicks always go to the underlying store.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/vadimbarashkov/shorturls/internal/entity"
	"golang.org/x/sync/singleflight"
)

// ErrMiss is returned by an Engine when the key is not cached.
var ErrMiss = errors.New("cache miss")

const defaultLookupTimeout = 5 * time.Second

// Engine stores URL records by short code.
type Engine interface {
	Get(ctx context.Context, shortCode string) (*entity.URL, error)
	Set(ctx context.Context, url *entity.URL, ttl time.Duration) error
}

// Repository is the store the cache sits in front of.
type Repository interface {
	Save(ctx context.Context, url *entity.URL) (*entity.URL, error)
	Exists(ctx context.Context, shortCode string) (bool, error)
	RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error)
	RetrieveWithClicks(ctx context.Context, shortCode string) (*entity.URL, error)
	AppendClick(ctx context.Context, shortCode string, click entity.Click) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int64, error)
}

type Option func(*URLRepository)

func WithLogger(logger *slog.Logger) Option {
	return func(r *URLRepository) {
		r.logger = logger
	}
}

// WithLookupTimeout bounds the store lookup shared by concurrent misses.
func WithLookupTimeout(timeout time.Duration) Option {
	return func(r *URLRepository) {
		if timeout > 0 {
			r.lookupTimeout = timeout
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *URLRepository) {
		r.now = now
	}
}

// URLRepository serves RetrieveByShortCode from the engine and passes every
// other call through. Concurrent misses for one code share a single store
// lookup. The shared lookup is detached from the cancellation of the caller
// that started it; each caller stops waiting when its own context is done.
// Not-found results are never cached, so a code resolves as soon as it is
// created.
type URLRepository struct {
	Repository
	engine        Engine
	ttl           time.Duration
	lookupTimeout time.Duration
	group         singleflight.Group
	logger        *slog.Logger
	now           func() time.Time
}

func New(repo Repository, engine Engine, ttl time.Duration, opts ...Option) *URLRepository {
	r := &URLRepository{
		Repository:    repo,
		engine:        engine,
		ttl:           ttl,
		lookupTimeout: defaultLookupTimeout,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *URLRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "adapter.cache.URLRepository.RetrieveByShortCode"

	url, err := r.engine.Get(ctx, shortCode)
	if err == nil {
		return url, nil
	}
	if !errors.Is(err, ErrMiss) {
		r.logger.Warn("failed to read from cache",
			slog.String("op", op),
			slog.String("short_code", shortCode),
			slog.String("err", err.Error()),
		)
	}

	ch := r.group.DoChan(shortCode, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.lookupTimeout)
		defer cancel()

		url, err := r.Repository.RetrieveByShortCode(lookupCtx, shortCode)
		if err != nil {
			return nil, err
		}

		r.store(lookupCtx, url)

		return url, nil
	})

	var res entity.URL

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	case result := <-ch:
		if result.Err != nil {
			return nil, fmt.Errorf("%s: %w", op, result.Err)
		}
		res = *result.Val.(*entity.URL)
	}

	return &res, nil
}

// store caches url for at most its remaining validity.
func (r *URLRepository) store(ctx context.Context, url *entity.URL) {
	const op = "adapter.cache.URLRepository.store"

	ttl := r.ttl
	if remaining := url.ExpiresAt.Sub(r.now()); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return
	}

	if err := r.engine.Set(ctx, url, ttl); err != nil {
		r.logger.Warn("failed to write to cache",
			slog.String("op", op),
			slog.String("short_code", url.ShortCode),
			slog.String("err", err.Error()),
		)
	}
}
