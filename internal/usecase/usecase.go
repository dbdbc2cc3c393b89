package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/vadimbarashkov/shorturls/internal/entity"
	"github.com/vadimbarashkov/shorturls/pkg/shortcode"
	"github.com/vadimbarashkov/shorturls/pkg/validate"
)

const (
	maxGenerateAttempts = 10

	defaultValidity     = 30 * time.Minute
	defaultMaxValidity  = 365 * 24 * time.Hour
	defaultStoreTimeout = 5 * time.Second
)

type urlRepository interface {
	Save(ctx context.Context, url *entity.URL) (*entity.URL, error)
	Exists(ctx context.Context, shortCode string) (bool, error)
	RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error)
	RetrieveWithClicks(ctx context.Context, shortCode string) (*entity.URL, error)
	AppendClick(ctx context.Context, shortCode string, click entity.Click) error
}

// ShortenParams describes a request to shorten a URL. A nil ValidityMinutes
// selects the default validity, an empty ShortCode selects a generated one.
type ShortenParams struct {
	OriginalURL     string
	ValidityMinutes *int
	ShortCode       string
}

// Visitor describes the caller of a redirect.
type Visitor struct {
	Referrer string
	Location string
}

type Option func(*URLUseCase)

func WithShortCodeLength(length int) Option {
	return func(uc *URLUseCase) {
		uc.shortCodeLength = length
	}
}

func WithDefaultValidity(validity time.Duration) Option {
	return func(uc *URLUseCase) {
		uc.defaultValidity = validity
	}
}

func WithMaxValidity(validity time.Duration) Option {
	return func(uc *URLUseCase) {
		uc.maxValidity = validity
	}
}

// WithStoreTimeout bounds every store call. Zero disables the bound.
func WithStoreTimeout(timeout time.Duration) Option {
	return func(uc *URLUseCase) {
		uc.storeTimeout = timeout
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(uc *URLUseCase) {
		uc.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(uc *URLUseCase) {
		uc.now = now
	}
}

func WithCodeGenerator(generate func(length int) (string, error)) Option {
	return func(uc *URLUseCase) {
		uc.generate = generate
	}
}

type URLUseCase struct {
	urlRepo         urlRepository
	baseURL         string
	shortCodeLength int
	defaultValidity time.Duration
	maxValidity     time.Duration
	storeTimeout    time.Duration
	logger          *slog.Logger
	now             func() time.Time
	generate        func(length int) (string, error)
}

func New(urlRepo urlRepository, baseURL string, opts ...Option) *URLUseCase {
	uc := &URLUseCase{
		urlRepo:         urlRepo,
		baseURL:         strings.TrimSuffix(baseURL, "/"),
		shortCodeLength: shortcode.DefaultLength,
		defaultValidity: defaultValidity,
		maxValidity:     defaultMaxValidity,
		storeTimeout:    defaultStoreTimeout,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:             time.Now,
		generate:        shortcode.Generate,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// ShortURL joins the base URL and the short code.
func (uc *URLUseCase) ShortURL(shortCode string) string {
	return uc.baseURL + "/" + shortCode
}

// ShortenURL validates the request, resolves the short code and persists a new
// URL with no clicks. Nothing is written unless every check passes.
func (uc *URLUseCase) ShortenURL(ctx context.Context, params ShortenParams) (*entity.URL, error) {
	const op = "usecase.URLUseCase.ShortenURL"

	log := uc.logger.With(
		slog.String("op", op),
		slog.String("original_url", params.OriginalURL),
		slog.String("short_code", params.ShortCode),
	)

	validity, err := uc.checkShortenParams(params)
	if err != nil {
		log.Warn("invalid shorten request", slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	createdAt := uc.now().UTC()
	url := &entity.URL{
		OriginalURL: params.OriginalURL,
		CreatedAt:   createdAt,
		ExpiresAt:   createdAt.Add(validity),
	}

	var saved *entity.URL

	if params.ShortCode != "" {
		saved, err = uc.saveCustom(ctx, url, params.ShortCode)
	} else {
		saved, err = uc.saveGenerated(ctx, url)
	}
	if err != nil {
		log.Error("failed to shorten url", slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	saved.ShortURL = uc.ShortURL(saved.ShortCode)

	log.Info("short url created",
		slog.String("short_code", saved.ShortCode),
		slog.Time("expires_at", saved.ExpiresAt),
	)

	return saved, nil
}

func (uc *URLUseCase) checkShortenParams(params ShortenParams) (time.Duration, error) {
	if params.OriginalURL == "" {
		return 0, entity.ErrURLRequired
	}

	if !validate.URL(params.OriginalURL) {
		return 0, entity.ErrInvalidURLFormat
	}

	validity := uc.defaultValidity

	if params.ValidityMinutes != nil {
		// Compared in minutes so huge values cannot overflow the duration.
		minutes := int64(*params.ValidityMinutes)
		if minutes <= 0 || minutes > int64(uc.maxValidity/time.Minute) {
			return 0, entity.ErrInvalidValidity
		}

		validity = time.Duration(minutes) * time.Minute
	}

	if params.ShortCode != "" && !validate.ShortCode(params.ShortCode) {
		return 0, entity.ErrInvalidShortCodeFormat
	}

	return validity, nil
}

// saveCustom relies on the store's uniqueness guarantee. The existence check
// only spares a write for codes that are obviously taken.
func (uc *URLUseCase) saveCustom(ctx context.Context, url *entity.URL, shortCode string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.saveCustom"

	exists, err := uc.exists(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if exists {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
	}

	url.ShortCode = shortCode

	saved, err := uc.save(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return saved, nil
}

// saveGenerated tries up to maxGenerateAttempts random codes. Both a positive
// existence check and an insert conflict use up an attempt.
func (uc *URLUseCase) saveGenerated(ctx context.Context, url *entity.URL) (*entity.URL, error) {
	const op = "usecase.URLUseCase.saveGenerated"

	for attempt := 1; attempt <= maxGenerateAttempts; attempt++ {
		shortCode, err := uc.generate(uc.shortCodeLength)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %w", op, entity.ErrInternal, err)
		}

		exists, err := uc.exists(ctx, shortCode)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if exists {
			uc.logger.Debug("generated short code is taken",
				slog.String("op", op),
				slog.String("short_code", shortCode),
				slog.Int("attempt", attempt),
			)
			continue
		}

		url.ShortCode = shortCode

		saved, err := uc.save(ctx, url)
		if err != nil {
			if errors.Is(err, entity.ErrShortCodeExists) {
				continue
			}

			return nil, fmt.Errorf("%s: %w", op, err)
		}

		return saved, nil
	}

	return nil, fmt.Errorf("%s: %w", op, entity.ErrCodeGenerationExhausted)
}

// Redirect resolves a short code and records the visit. Expired codes are
// rejected before anything is recorded.
func (uc *URLUseCase) Redirect(ctx context.Context, shortCode string, visitor Visitor) (*entity.URL, error) {
	const op = "usecase.URLUseCase.Redirect"

	log := uc.logger.With(slog.String("op", op), slog.String("short_code", shortCode))

	url, err := uc.retrieve(ctx, shortCode, false)
	if err != nil {
		logFailure(log, "failed to resolve short code", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := uc.now().UTC()

	if url.IsExpired(now) {
		log.Info("short code expired", slog.Time("expires_at", url.ExpiresAt))
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLExpired)
	}

	location := visitor.Location
	if location == "" {
		location = entity.DefaultLocation
	}

	click := entity.Click{
		Timestamp: now,
		Referrer:  visitor.Referrer,
		Location:  location,
	}

	if err := uc.appendClick(ctx, shortCode, click); err != nil {
		logFailure(log, "failed to record click", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	url.ShortURL = uc.ShortURL(url.ShortCode)

	log.Info("redirect recorded",
		slog.String("original_url", url.OriginalURL),
		slog.String("referrer", click.Referrer),
		slog.String("location", click.Location),
	)

	return url, nil
}

// GetURLStats returns the URL with its full click history. Expired URLs are
// reported too.
func (uc *URLUseCase) GetURLStats(ctx context.Context, shortCode string) (*entity.URLStats, error) {
	const op = "usecase.URLUseCase.GetURLStats"

	log := uc.logger.With(slog.String("op", op), slog.String("short_code", shortCode))

	url, err := uc.retrieve(ctx, shortCode, true)
	if err != nil {
		logFailure(log, "failed to get url stats", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	url.ShortURL = uc.ShortURL(url.ShortCode)

	stats := &entity.URLStats{
		URL:         url,
		TotalClicks: len(url.Clicks),
		IsExpired:   url.IsExpired(uc.now()),
	}

	log.Info("url stats retrieved", slog.Int("click_count", stats.TotalClicks))

	return stats, nil
}

func (uc *URLUseCase) exists(ctx context.Context, shortCode string) (bool, error) {
	ctx, cancel := uc.storeContext(ctx)
	defer cancel()

	exists, err := uc.urlRepo.Exists(ctx, shortCode)
	if err != nil {
		return false, storeError(err)
	}

	return exists, nil
}

func (uc *URLUseCase) save(ctx context.Context, url *entity.URL) (*entity.URL, error) {
	ctx, cancel := uc.storeContext(ctx)
	defer cancel()

	saved, err := uc.urlRepo.Save(ctx, url)
	if err != nil {
		return nil, storeError(err)
	}

	return saved, nil
}

func (uc *URLUseCase) retrieve(ctx context.Context, shortCode string, withClicks bool) (*entity.URL, error) {
	ctx, cancel := uc.storeContext(ctx)
	defer cancel()

	var (
		url *entity.URL
		err error
	)

	if withClicks {
		url, err = uc.urlRepo.RetrieveWithClicks(ctx, shortCode)
	} else {
		url, err = uc.urlRepo.RetrieveByShortCode(ctx, shortCode)
	}
	if err != nil {
		return nil, storeError(err)
	}

	return url, nil
}

func (uc *URLUseCase) appendClick(ctx context.Context, shortCode string, click entity.Click) error {
	ctx, cancel := uc.storeContext(ctx)
	defer cancel()

	if err := uc.urlRepo.AppendClick(ctx, shortCode, click); err != nil {
		return storeError(err)
	}

	return nil
}

func (uc *URLUseCase) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if uc.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, uc.storeTimeout)
}

// storeError keeps the kinds reported by the store and classifies everything
// else as StoreUnavailable (timeouts, cancellation) or InternalError.
func storeError(err error) error {
	var e *entity.Error
	if errors.As(err, &e) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", entity.ErrStoreUnavailable, err)
	}

	return fmt.Errorf("%w: %w", entity.ErrInternal, err)
}

func logFailure(log *slog.Logger, msg string, err error) {
	switch entity.KindOf(err) {
	case entity.KindNotFound:
		log.Info(msg, slog.String("err", err.Error()))
	default:
		log.Error(msg, slog.String("err", err.Error()))
	}
}
