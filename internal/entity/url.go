// Package entity defines the entities and errors used in the application.
// It includes the URL struct, which represents a shortened URL together with
// its expiry and the clicks recorded for it, and the error kinds reported to
// callers.
package entity

import "time"

// DefaultLocation is recorded for a click when the caller's origin is unknown.
const DefaultLocation = "Unknown"

// URL represents a shortened URL.
type URL struct {
	ID          int64     // ID is the unique identifier of the URL in the store.
	ShortCode   string    // ShortCode is the code used to shorten the original URL.
	OriginalURL string    // OriginalURL is the full URL that the short code resolves to.
	ShortURL    string    // ShortURL is the base URL joined with the short code. It is never persisted.
	CreatedAt   time.Time // CreatedAt is the timestamp when the URL was created.
	ExpiresAt   time.Time // ExpiresAt is the timestamp after which the short code stops resolving.
	Clicks      []Click   // Clicks holds the recorded redirects in the order they happened.
}

// IsExpired reports whether the URL expired strictly before now.
func (u *URL) IsExpired(now time.Time) bool {
	return u.ExpiresAt.Before(now)
}

// Click represents one redirect of a short code.
type Click struct {
	Timestamp time.Time
	Referrer  string
	Location  string
}

// URLStats is a read-only view of a URL and its click history.
type URLStats struct {
	*URL
	TotalClicks int
	IsExpired   bool
}
