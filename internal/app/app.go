package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/httplog/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/vadimbarashkov/shorturls/internal/adapter/cache"
	"github.com/vadimbarashkov/shorturls/internal/config"
	"github.com/vadimbarashkov/shorturls/internal/usecase"
	"github.com/vadimbarashkov/shorturls/migrations"
	"github.com/vadimbarashkov/shorturls/pkg/postgres"
	"golang.org/x/sync/errgroup"

	delivery "github.com/vadimbarashkov/shorturls/internal/adapter/delivery/http"
	cachememory "github.com/vadimbarashkov/shorturls/internal/adapter/cache/memory"
	cacheredis "github.com/vadimbarashkov/shorturls/internal/adapter/cache/redis"
	repomemory "github.com/vadimbarashkov/shorturls/internal/adapter/repository/memory"
	repopostgres "github.com/vadimbarashkov/shorturls/internal/adapter/repository/postgres"
)

func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	logger := NewLogger(cfg)

	urlRepo, closeRepo, err := newURLRepository(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer closeRepo()

	cachedRepo, closeCache, err := withCache(ctx, cfg, urlRepo, logger.Logger)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer closeCache()

	urlUseCase := usecase.New(
		cachedRepo,
		cfg.BaseURL,
		usecase.WithShortCodeLength(cfg.ShortCode.Length),
		usecase.WithDefaultValidity(cfg.Validity.Default),
		usecase.WithMaxValidity(cfg.Validity.Max),
		usecase.WithStoreTimeout(cfg.StoreTimeout),
		usecase.WithLogger(logger.Logger),
	)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        delivery.NewRouter(logger, urlUseCase),
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server",
			slog.String("addr", server.Addr),
			slog.String("storage", cfg.Storage),
			slog.String("cache", cfg.Cache.Driver),
		)

		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		logger.Info("shutting down server")

		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	if cfg.Sweeper.Enabled {
		sweeper := usecase.NewSweeper(
			urlRepo,
			usecase.WithSweepInterval(cfg.Sweeper.Interval),
			usecase.WithSweepGrace(cfg.Sweeper.Grace),
			usecase.WithSweepBatchSize(cfg.Sweeper.BatchSize),
			usecase.WithSweepLogger(logger.Logger),
		)

		g.Go(func() error {
			return sweeper.Run(ctx)
		})
	}

	return g.Wait()
}

// NewLogger builds the process logger. Its embedded *slog.Logger is handed to
// the use cases.
func NewLogger(cfg *config.Config) *httplog.Logger {
	return httplog.NewLogger("shorturls", httplog.Options{
		JSON:     cfg.Log.JSON,
		LogLevel: cfg.Log.SlogLevel(),
		Concise:  cfg.Log.Concise,
		Tags: map[string]string{
			"env": cfg.Env,
		},
	})
}

func newURLRepository(ctx context.Context, cfg *config.Config) (cache.Repository, func(), error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return repomemory.NewURLRepository(), func() {}, nil
	default:
		db, err := postgres.New(
			ctx,
			cfg.Postgres.DSN(),
			postgres.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
			postgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
			postgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
			postgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		if err := postgres.RunMigrations(migrations.FS, cfg.Postgres.DSN()); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		return repopostgres.NewURLRepository(db), func() { db.Close() }, nil
	}
}

func withCache(ctx context.Context, cfg *config.Config, repo cache.Repository, logger *slog.Logger) (cache.Repository, func(), error) {
	var (
		engine cache.Engine
		closer = func() {}
	)

	switch cfg.Cache.Driver {
	case config.CacheMemory:
		engine = cachememory.New(cfg.Cache.CleanupInterval)
	case config.CacheRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})

		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		engine = cacheredis.New(client)
		closer = func() { client.Close() }
	default:
		return repo, closer, nil
	}

	return cache.New(
		repo,
		engine,
		cfg.Cache.TTL,
		cache.WithLookupTimeout(cfg.StoreTimeout),
		cache.WithLogger(logger),
	), closer, nil
}
