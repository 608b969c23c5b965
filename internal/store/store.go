// ABOUTME: Storage interfaces and types for persisted browser sessions
// ABOUTME: Defines the Store contract implemented by the SQLite backend

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record doesn't exist
var ErrNotFound = errors.New("not found")

// Session is a signed-in browser session. The token is the opaque value
// carried in the session cookie; the provider tokens let us act on the
// user's behalf against the identity API.
type Session struct {
	Token        string
	AccessToken  string
	RefreshToken string
	UserID       string
	Email        string
	Name         string
	Role         string
	AvatarURL    string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the session is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Store provides persistence for browser sessions
type Store interface {
	// CreateSession persists a new session record
	CreateSession(ctx context.Context, session *Session) error

	// GetSession retrieves a session by its cookie token.
	// Returns ErrNotFound if no such session exists.
	GetSession(ctx context.Context, token string) (*Session, error)

	// DeleteSession removes a session. Deleting a missing session is not an error.
	DeleteSession(ctx context.Context, token string) error

	// UpdateSessionTokens replaces the provider tokens on an existing session,
	// typically after a refresh grant. Returns ErrNotFound if no such session exists.
	UpdateSessionTokens(ctx context.Context, token, accessToken, refreshToken string) error

	// DeleteExpiredSessions removes all sessions past their expiry and
	// returns how many were deleted.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// Close releases the underlying database handle
	Close() error
}
