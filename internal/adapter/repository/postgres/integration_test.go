package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/suite"
	"github.com/vadimbarashkov/shorturls/internal/entity"
	"github.com/vadimbarashkov/shorturls/internal/testutil"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type URLRepositoryIntegrationTestSuite struct {
	suite.Suite
	db        *sqlx.DB
	repo      *URLRepository
	createdAt time.Time
}

func (suite *URLRepositoryIntegrationTestSuite) SetupSuite() {
	cfg := testutil.StartPostgres(suite.T())

	var err error
	suite.db, err = sqlx.Connect("pgx", cfg.DSN())
	if err != nil {
		suite.T().Fatalf("Failed to connect to database: %v", err)
	}
	suite.T().Cleanup(func() {
		suite.db.Close()
	})

	suite.repo = NewURLRepository(suite.db)
	suite.createdAt = time.Now().UTC().Truncate(time.Millisecond)
}

func (suite *URLRepositoryIntegrationTestSuite) TearDownSubTest() {
	_, err := suite.db.Exec(`TRUNCATE TABLE urls RESTART IDENTITY CASCADE`)
	if err != nil {
		suite.T().Fatalf("Failed to clean urls table: %v", err)
	}
}

func (suite *URLRepositoryIntegrationTestSuite) save(shortCode string, validity time.Duration) *entity.URL {
	url, err := suite.repo.Save(context.Background(), &entity.URL{
		ShortCode:   shortCode,
		OriginalURL: "https://example.com/" + shortCode,
		CreatedAt:   suite.createdAt,
		ExpiresAt:   suite.createdAt.Add(validity),
	})
	if err != nil {
		suite.T().Fatalf("Failed to save url record: %v", err)
	}

	return url
}

func (suite *URLRepositoryIntegrationTestSuite) TestSave() {
	suite.Run("success", func() {
		url := suite.save("abc123", time.Minute)

		suite.Equal(int64(1), url.ID)
		suite.True(url.CreatedAt.Equal(suite.createdAt))
		suite.True(url.ExpiresAt.Equal(suite.createdAt.Add(time.Minute)))
	})

	suite.Run("short code exists", func() {
		suite.save("promo1", time.Minute)

		url, err := suite.repo.Save(context.Background(), &entity.URL{
			ShortCode:   "promo1",
			OriginalURL: "https://example.org",
			CreatedAt:   suite.createdAt,
			ExpiresAt:   suite.createdAt.Add(time.Minute),
		})

		suite.ErrorIs(err, entity.ErrShortCodeExists)
		suite.Nil(url)
	})

	suite.Run("concurrent saves of the same code", func() {
		const n = 10
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
		)

		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()

				_, err := suite.repo.Save(context.Background(), &entity.URL{
					ShortCode:   "race42",
					OriginalURL: "https://example.com",
					CreatedAt:   suite.createdAt,
					ExpiresAt:   suite.createdAt.Add(time.Minute),
				})
				if err != nil {
					suite.ErrorIs(err, entity.ErrShortCodeExists)
					return
				}

				mu.Lock()
				succeeded++
				mu.Unlock()
			}()
		}

		wg.Wait()

		suite.Equal(1, succeeded)
	})
}

func (suite *URLRepositoryIntegrationTestSuite) TestClicks() {
	suite.Run("url not found", func() {
		err := suite.repo.AppendClick(context.Background(), "missing", entity.Click{Timestamp: suite.createdAt})

		suite.ErrorIs(err, entity.ErrURLNotFound)

		url, err := suite.repo.RetrieveWithClicks(context.Background(), "missing")

		suite.ErrorIs(err, entity.ErrURLNotFound)
		suite.Nil(url)
	})

	suite.Run("no clicks", func() {
		suite.save("abc123", time.Minute)

		url, err := suite.repo.RetrieveWithClicks(context.Background(), "abc123")

		suite.NoError(err)
		suite.NotNil(url.Clicks)
		suite.Empty(url.Clicks)
	})

	suite.Run("clicks keep their order", func() {
		suite.save("abc123", time.Minute)

		for i := 0; i < 3; i++ {
			err := suite.repo.AppendClick(context.Background(), "abc123", entity.Click{
				Timestamp: suite.createdAt.Add(time.Duration(i) * time.Second),
				Referrer:  fmt.Sprintf("https://ref%d.example.com", i),
				Location:  entity.DefaultLocation,
			})
			suite.Require().NoError(err)
		}

		url, err := suite.repo.RetrieveWithClicks(context.Background(), "abc123")

		suite.NoError(err)
		suite.Require().Len(url.Clicks, 3)
		for i, click := range url.Clicks {
			suite.True(click.Timestamp.Equal(suite.createdAt.Add(time.Duration(i) * time.Second)))
			suite.Equal(fmt.Sprintf("https://ref%d.example.com", i), click.Referrer)
		}
	})

	suite.Run("concurrent appends are not lost", func() {
		suite.save("abc123", time.Minute)

		const n = 50
		var wg sync.WaitGroup

		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()

				err := suite.repo.AppendClick(context.Background(), "abc123", entity.Click{
					Timestamp: suite.createdAt,
					Location:  entity.DefaultLocation,
				})
				suite.NoError(err)
			}()
		}

		wg.Wait()

		url, err := suite.repo.RetrieveWithClicks(context.Background(), "abc123")

		suite.NoError(err)
		suite.Len(url.Clicks, n)
	})
}

func (suite *URLRepositoryIntegrationTestSuite) TestDeleteExpired() {
	suite.Run("removes expired urls and their clicks", func() {
		suite.save("old1", time.Minute)
		suite.save("old2", 2*time.Minute)
		suite.save("fresh", time.Hour)

		err := suite.repo.AppendClick(context.Background(), "old1", entity.Click{Timestamp: suite.createdAt})
		suite.Require().NoError(err)

		n, err := suite.repo.DeleteExpired(context.Background(), suite.createdAt.Add(10*time.Minute), 1)
		suite.NoError(err)
		suite.Equal(int64(1), n)

		n, err = suite.repo.DeleteExpired(context.Background(), suite.createdAt.Add(10*time.Minute), 10)
		suite.NoError(err)
		suite.Equal(int64(1), n)

		for code, want := range map[string]bool{"old1": false, "old2": false, "fresh": true} {
			exists, err := suite.repo.Exists(context.Background(), code)
			suite.NoError(err)
			suite.Equal(want, exists, code)
		}

		var clicks int
		suite.Require().NoError(suite.db.Get(&clicks, `SELECT COUNT(*) FROM clicks`))
		suite.Zero(clicks)
	})
}

func TestURLRepositoryIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(URLRepositoryIntegrationTestSuite))
}
