package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

const (
	defaultSweepInterval  = 10 * time.Minute
	defaultSweepBatchSize = 500
)

type expiredURLRepository interface {
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int64, error)
}

type SweeperOption func(*Sweeper)

func WithSweepInterval(interval time.Duration) SweeperOption {
	return func(s *Sweeper) {
		s.interval = interval
	}
}

// WithSweepGrace keeps expired URLs around for the given duration, so their
// stats stay readable for a while after expiry.
func WithSweepGrace(grace time.Duration) SweeperOption {
	return func(s *Sweeper) {
		s.grace = grace
	}
}

func WithSweepBatchSize(size int) SweeperOption {
	return func(s *Sweeper) {
		s.batchSize = size
	}
}

func WithSweepLogger(logger *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

func WithSweepClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		s.now = now
	}
}

// Sweeper removes URLs whose validity ended more than grace ago.
// Redirects never depend on it: expiry is always checked on read.
type Sweeper struct {
	urlRepo   expiredURLRepository
	interval  time.Duration
	grace     time.Duration
	batchSize int
	logger    *slog.Logger
	now       func() time.Time
}

func NewSweeper(urlRepo expiredURLRepository, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		urlRepo:   urlRepo,
		interval:  defaultSweepInterval,
		batchSize: defaultSweepBatchSize,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.batchSize <= 0 {
		s.batchSize = defaultSweepBatchSize
	}
	if s.interval <= 0 {
		s.interval = defaultSweepInterval
	}

	return s
}

// Run sweeps once per interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	const op = "usecase.Sweeper.Run"

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("failed to sweep expired urls",
					slog.String("op", op),
					slog.String("err", err.Error()),
				)
			}
		}
	}
}

// Sweep deletes expired URLs batch by batch and returns how many were removed.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	const op = "usecase.Sweeper.Sweep"

	before := s.now().UTC().Add(-s.grace)

	var total int64

	for {
		n, err := s.urlRepo.DeleteExpired(ctx, before, s.batchSize)
		if err != nil {
			return total, fmt.Errorf("%s: failed to delete expired urls: %w", op, err)
		}

		total += n

		if n < int64(s.batchSize) {
			break
		}
	}

	if total > 0 {
		s.logger.Info("expired urls removed",
			slog.String("op", op),
			slog.Int64("count", total),
			slog.Time("before", before),
		)
	}

	return total, nil
}
