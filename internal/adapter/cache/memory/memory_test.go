package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadimbarashkov/shorturls/internal/adapter/cache"
	"github.com/vadimbarashkov/shorturls/internal/entity"
)

func TestEngine(t *testing.T) {
	engine := New(time.Minute)

	_, err := engine.Get(context.Background(), "abc123")
	assert.ErrorIs(t, err, cache.ErrMiss)

	url := &entity.URL{
		ID:          1,
		ShortCode:   "abc123",
		OriginalURL: "https://example.com",
		Clicks:      []entity.Click{{Location: entity.DefaultLocation}},
	}

	require.NoError(t, engine.Set(context.Background(), url, time.Hour))

	got, err := engine.Get(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", got.OriginalURL)
	assert.Nil(t, got.Clicks)

	require.NoError(t, engine.Set(context.Background(), &entity.URL{ShortCode: "short"}, time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, err = engine.Get(context.Background(), "short")
	assert.ErrorIs(t, err, cache.ErrMiss)
}
