// Package redis is a cache engine shared between instances through Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vadimbarashkov/shorturls/internal/adapter/cache"
	"github.com/vadimbarashkov/shorturls/internal/entity"
)

const keyPrefix = "short:"

type urlCache struct {
	ID          int64     `json:"id"`
	ShortCode   string    `json:"short_code"`
	OriginalURL string    `json:"original_url"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type Engine struct {
	client goredis.UniversalClient
}

func New(client goredis.UniversalClient) *Engine {
	return &Engine{client: client}
}

func (e *Engine) Get(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "adapter.cache.redis.Engine.Get"

	data, err := e.client.Get(ctx, keyPrefix+shortCode).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, cache.ErrMiss
		}

		return nil, fmt.Errorf("%s: failed to get key: %w", op, err)
	}

	var url urlCache

	if err := json.Unmarshal(data, &url); err != nil {
		return nil, fmt.Errorf("%s: failed to decode cached url: %w", op, err)
	}

	return &entity.URL{
		ID:          url.ID,
		ShortCode:   url.ShortCode,
		OriginalURL: url.OriginalURL,
		CreatedAt:   url.CreatedAt,
		ExpiresAt:   url.ExpiresAt,
	}, nil
}

func (e *Engine) Set(ctx context.Context, url *entity.URL, ttl time.Duration) error {
	const op = "adapter.cache.redis.Engine.Set"

	data, err := json.Marshal(urlCache{
		ID:          url.ID,
		ShortCode:   url.ShortCode,
		OriginalURL: url.OriginalURL,
		CreatedAt:   url.CreatedAt,
		ExpiresAt:   url.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("%s: failed to encode url: %w", op, err)
	}

	if err := e.client.Set(ctx, keyPrefix+url.ShortCode, data, ttl).Err(); err != nil {
		return fmt.Errorf("%s: failed to set key: %w", op, err)
	}

	return nil
}
