// Package memory is a process-local cache engine.
package memory

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/vadimbarashkov/shorturls/internal/adapter/cache"
	"github.com/vadimbarashkov/shorturls/internal/entity"
)

type Engine struct {
	cache *gocache.Cache
}

// New returns an engine whose expired entries are purged every cleanupInterval.
func New(cleanupInterval time.Duration) *Engine {
	return &Engine{
		cache: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

func (e *Engine) Get(_ context.Context, shortCode string) (*entity.URL, error) {
	data, found := e.cache.Get(shortCode)
	if !found {
		return nil, cache.ErrMiss
	}

	url, ok := data.(entity.URL)
	if !ok {
		return nil, cache.ErrMiss
	}

	return &url, nil
}

func (e *Engine) Set(_ context.Context, url *entity.URL, ttl time.Duration) error {
	entry := *url
	entry.Clicks = nil

	e.cache.Set(url.ShortCode, entry, ttl)

	return nil
}
