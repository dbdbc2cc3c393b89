// Package memory provides a process-local URL repository. Data is lost on restart.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/vadimbarashkov/shorturls/internal/entity"
)

// URLRepository keeps URLs in a map guarded by a single mutex, which makes
// insert-if-absent and click appends atomic.
type URLRepository struct {
	mu     sync.RWMutex
	nextID int64
	urls   map[string]*entity.URL
}

func NewURLRepository() *URLRepository {
	return &URLRepository{
		urls: make(map[string]*entity.URL),
	}
}

func (r *URLRepository) Save(ctx context.Context, url *entity.URL) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.Save"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.urls[url.ShortCode]; ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
	}

	r.nextID++

	saved := &entity.URL{
		ID:          r.nextID,
		ShortCode:   url.ShortCode,
		OriginalURL: url.OriginalURL,
		CreatedAt:   url.CreatedAt,
		ExpiresAt:   url.ExpiresAt,
	}
	r.urls[saved.ShortCode] = saved

	return copyURL(saved, false), nil
}

func (r *URLRepository) Exists(ctx context.Context, shortCode string) (bool, error) {
	const op = "adapter.repository.memory.URLRepository.Exists"

	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.urls[shortCode]

	return ok, nil
}

func (r *URLRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	return r.retrieve(ctx, "adapter.repository.memory.URLRepository.RetrieveByShortCode", shortCode, false)
}

func (r *URLRepository) RetrieveWithClicks(ctx context.Context, shortCode string) (*entity.URL, error) {
	return r.retrieve(ctx, "adapter.repository.memory.URLRepository.RetrieveWithClicks", shortCode, true)
}

func (r *URLRepository) retrieve(ctx context.Context, op, shortCode string, withClicks bool) (*entity.URL, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	url, ok := r.urls[shortCode]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return copyURL(url, withClicks), nil
}

func (r *URLRepository) AppendClick(ctx context.Context, shortCode string, click entity.Click) error {
	const op = "adapter.repository.memory.URLRepository.AppendClick"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	url, ok := r.urls[shortCode]
	if !ok {
		return fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	url.Clicks = append(url.Clicks, click)

	return nil
}

func (r *URLRepository) DeleteExpired(ctx context.Context, before time.Time, limit int) (int64, error) {
	const op = "adapter.repository.memory.URLRepository.DeleteExpired"

	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []*entity.URL
	for _, url := range r.urls {
		if url.ExpiresAt.Before(before) {
			expired = append(expired, url)
		}
	}

	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ExpiresAt.Before(expired[j].ExpiresAt)
	})

	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}

	for _, url := range expired {
		delete(r.urls, url.ShortCode)
	}

	return int64(len(expired)), nil
}

func copyURL(url *entity.URL, withClicks bool) *entity.URL {
	res := *url
	res.Clicks = nil

	if withClicks {
		res.Clicks = slices.Clone(url.Clicks)
		if res.Clicks == nil {
			res.Clicks = []entity.Click{}
		}
	}

	return &res
}
