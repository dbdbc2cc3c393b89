package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/shorturls/internal/entity"
	"github.com/vadimbarashkov/shorturls/pkg/postgres"
)

type urlDB struct {
	ID          int64     `db:"id"`
	ShortCode   string    `db:"short_code"`
	OriginalURL string    `db:"original_url"`
	CreatedAt   time.Time `db:"created_at"`
	ExpiresAt   time.Time `db:"expires_at"`
}

func (u *urlDB) toEntity() *entity.URL {
	return &entity.URL{
		ID:          u.ID,
		ShortCode:   u.ShortCode,
		OriginalURL: u.OriginalURL,
		CreatedAt:   u.CreatedAt,
		ExpiresAt:   u.ExpiresAt,
	}
}

type clickDB struct {
	ClickedAt time.Time `db:"clicked_at"`
	Referrer  string    `db:"referrer"`
	Location  string    `db:"location"`
}

// URLRepository stores URLs in the urls table and their clicks in the clicks table.
// Short code uniqueness is enforced by the urls_short_code_key constraint.
type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{db: db}
}

func (r *URLRepository) Save(ctx context.Context, url *entity.URL) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.Save"
	const query = `INSERT INTO urls(short_code, original_url, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, short_code, original_url, created_at, expires_at`

	var saved urlDB

	err := r.db.GetContext(ctx, &saved, query, url.ShortCode, url.OriginalURL, url.CreatedAt, url.ExpiresAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to insert into urls table: %w", op, err)
	}

	return saved.toEntity(), nil
}

func (r *URLRepository) Exists(ctx context.Context, shortCode string) (bool, error) {
	const op = "adapter.repository.postgres.URLRepository.Exists"
	const query = `SELECT EXISTS(SELECT 1 FROM urls WHERE short_code = $1)`

	var exists bool

	if err := r.db.GetContext(ctx, &exists, query, shortCode); err != nil {
		return false, fmt.Errorf("%s: failed to check short code existence: %w", op, err)
	}

	return exists, nil
}

func (r *URLRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.RetrieveByShortCode"
	const query = `SELECT id, short_code, original_url, created_at, expires_at
		FROM urls
		WHERE short_code = $1`

	var url urlDB

	if err := r.db.GetContext(ctx, &url, query, shortCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get row from urls table: %w", op, err)
	}

	return url.toEntity(), nil
}

// RetrieveWithClicks reads the URL and its clicks from one snapshot.
func (r *URLRepository) RetrieveWithClicks(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.RetrieveWithClicks"
	const urlQuery = `SELECT id, short_code, original_url, created_at, expires_at
		FROM urls
		WHERE short_code = $1`
	const clicksQuery = `SELECT clicked_at, referrer, location
		FROM clicks
		WHERE url_id = $1
		ORDER BY id`

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback()

	var url urlDB

	if err := tx.GetContext(ctx, &url, urlQuery, shortCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get row from urls table: %w", op, err)
	}

	var clicks []clickDB

	if err := tx.SelectContext(ctx, &clicks, clicksQuery, url.ID); err != nil {
		return nil, fmt.Errorf("%s: failed to select rows from clicks table: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	res := url.toEntity()
	res.Clicks = make([]entity.Click, 0, len(clicks))

	for _, c := range clicks {
		res.Clicks = append(res.Clicks, entity.Click{
			Timestamp: c.ClickedAt,
			Referrer:  c.Referrer,
			Location:  c.Location,
		})
	}

	return res, nil
}

// AppendClick inserts one click row for the URL in a single statement, so
// concurrent redirects never overwrite each other.
func (r *URLRepository) AppendClick(ctx context.Context, shortCode string, click entity.Click) error {
	const op = "adapter.repository.postgres.URLRepository.AppendClick"
	const query = `INSERT INTO clicks(url_id, clicked_at, referrer, location)
		SELECT id, $2, $3, $4 FROM urls WHERE short_code = $1`

	res, err := r.db.ExecContext(ctx, query, shortCode, click.Timestamp, click.Referrer, click.Location)
	if err != nil {
		return fmt.Errorf("%s: failed to insert into clicks table: %w", op, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get number of affected rows: %w", op, err)
	}

	if rowsAffected != 1 {
		return fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return nil
}

// DeleteExpired removes up to limit URLs that expired before the given time.
// Their clicks are removed by the foreign key cascade.
func (r *URLRepository) DeleteExpired(ctx context.Context, before time.Time, limit int) (int64, error) {
	const op = "adapter.repository.postgres.URLRepository.DeleteExpired"
	const query = `DELETE FROM urls
		WHERE id IN (
			SELECT id FROM urls
			WHERE expires_at < $1
			ORDER BY expires_at
			LIMIT $2
		)`

	res, err := r.db.ExecContext(ctx, query, before, limit)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to delete from urls table: %w", op, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to get number of affected rows: %w", op, err)
	}

	return rowsAffected, nil
}
