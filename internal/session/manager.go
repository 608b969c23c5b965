// ABOUTME: Session manager binding identity grants to persisted browser sessions
// ABOUTME: Creates cookie-backed sessions on sign-in and notifies auth state subscribers

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/truvium/truvy-web/internal/identity"
	"github.com/truvium/truvy-web/internal/store"
)

// ErrNoSession is returned by Current when the token doesn't resolve
// to a live session.
var ErrNoSession = errors.New("no active session")

// User is the signed-in identity as rendered in the chat header.
type User struct {
	ID        string
	Email     string
	Name      string
	Role      string
	Status    string
	AvatarURL string
}

// identityClient is the subset of the identity provider client the
// manager needs. Narrowed for testability.
type identityClient interface {
	SignUp(ctx context.Context, email, password, name string) (*identity.Grant, error)
	SignInWithPassword(ctx context.Context, email, password string) (*identity.Grant, error)
	RefreshToken(ctx context.Context, refreshToken string) (*identity.Grant, error)
	SignOut(ctx context.Context, accessToken string) error
}

// Manager owns the session lifecycle: exchanging credentials for provider
// grants, persisting sessions keyed by cookie token, and broadcasting
// auth state changes to subscribers.
type Manager struct {
	idp      identityClient
	store    store.Store
	ttl      time.Duration
	verifier identity.TokenVerifier
	bcast    *Broadcaster
	logger   *slog.Logger
}

// NewManager creates a session manager. Sessions live for ttl after sign-in.
func NewManager(idp identityClient, st store.Store, ttl time.Duration) *Manager {
	return &Manager{
		idp:    idp,
		store:  st,
		ttl:    ttl,
		bcast:  NewBroadcaster(nil),
		logger: slog.Default().With("component", "session"),
	}
}

// SetTokenVerifier enables local verification of provider access tokens.
// When set, Current checks the stored access token on every lookup and
// refreshes expired tokens against the provider.
func (m *Manager) SetTokenVerifier(v identity.TokenVerifier) {
	m.verifier = v
}

// SignIn exchanges credentials for a provider grant and creates a session.
// Returns the new session; the caller sets the cookie from Session.Token.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*store.Session, error) {
	grant, err := m.idp.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return m.createSession(ctx, grant)
}

// SignUp registers a new account and creates a session for it.
func (m *Manager) SignUp(ctx context.Context, email, password, name string) (*store.Session, error) {
	grant, err := m.idp.SignUp(ctx, email, password, name)
	if err != nil {
		return nil, err
	}
	return m.createSession(ctx, grant)
}

// SignOut revokes the provider tokens and removes the local session.
// The local session is removed even when revocation at the provider fails.
func (m *Manager) SignOut(ctx context.Context, token string) error {
	sess, err := m.store.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	if err := m.idp.SignOut(ctx, sess.AccessToken); err != nil {
		m.logger.Warn("provider sign-out failed", "error", err)
	}

	if err := m.store.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	m.bcast.Publish(Change{Kind: SignedOut, UserID: sess.UserID})
	m.logger.Info("user signed out", "user_id", sess.UserID)
	return nil
}

// Current resolves a cookie token to the signed-in user.
// Expired sessions are removed lazily and reported as ErrNoSession.
func (m *Manager) Current(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrNoSession
	}

	sess, err := m.store.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, err
	}

	if sess.Expired(time.Now()) {
		if err := m.store.DeleteSession(ctx, token); err != nil {
			m.logger.Warn("removing expired session", "error", err)
		}
		return nil, ErrNoSession
	}

	if m.verifier != nil {
		if err := m.checkAccessToken(ctx, sess); err != nil {
			return nil, err
		}
	}

	return &User{
		ID:        sess.UserID,
		Email:     sess.Email,
		Name:      sess.Name,
		Role:      sess.Role,
		Status:    "online",
		AvatarURL: sess.AvatarURL,
	}, nil
}

// checkAccessToken verifies the session's provider access token locally.
// Expired access tokens are refreshed against the provider; anything else
// wrong with the token ends the session.
func (m *Manager) checkAccessToken(ctx context.Context, sess *store.Session) error {
	userID, err := m.verifier.Verify(sess.AccessToken)
	if err == nil {
		if userID != sess.UserID {
			m.logger.Warn("access token subject mismatch", "user_id", sess.UserID)
			return m.endSession(ctx, sess)
		}
		return nil
	}

	if !errors.Is(err, identity.ErrExpiredToken) {
		m.logger.Warn("access token rejected", "user_id", sess.UserID, "error", err)
		return m.endSession(ctx, sess)
	}

	grant, err := m.idp.RefreshToken(ctx, sess.RefreshToken)
	if err != nil {
		m.logger.Warn("token refresh failed", "user_id", sess.UserID, "error", err)
		return m.endSession(ctx, sess)
	}

	if err := m.store.UpdateSessionTokens(ctx, sess.Token, grant.AccessToken, grant.RefreshToken); err != nil {
		return fmt.Errorf("storing refreshed tokens: %w", err)
	}
	sess.AccessToken = grant.AccessToken
	sess.RefreshToken = grant.RefreshToken
	m.logger.Info("access token refreshed", "user_id", sess.UserID)
	return nil
}

// endSession removes a session whose provider tokens are no longer usable.
func (m *Manager) endSession(ctx context.Context, sess *store.Session) error {
	if err := m.store.DeleteSession(ctx, sess.Token); err != nil {
		m.logger.Warn("removing dead session", "error", err)
	}
	return ErrNoSession
}

// Subscribe registers for auth state changes. See Broadcaster.Subscribe.
func (m *Manager) Subscribe(ctx context.Context) (<-chan Change, string) {
	return m.bcast.Subscribe(ctx)
}

// CleanupLoop periodically removes expired sessions until ctx is cancelled.
func (m *Manager) CleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.store.DeleteExpiredSessions(ctx, time.Now()); err != nil {
				m.logger.Warn("session cleanup failed", "error", err)
			}
		}
	}
}

// Close shuts down the change broadcaster.
func (m *Manager) Close() {
	m.bcast.Close()
}

func (m *Manager) createSession(ctx context.Context, grant *identity.Grant) (*store.Session, error) {
	name := displayName(grant.User)
	now := time.Now()
	sess := &store.Session{
		Token:        uuid.New().String(),
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		UserID:       grant.User.ID,
		Email:        grant.User.Email,
		Name:         name,
		Role:         "Employee",
		AvatarURL:    avatarURL(name),
		CreatedAt:    now,
		ExpiresAt:    now.Add(m.ttl),
	}

	if err := m.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("persisting session: %w", err)
	}

	m.bcast.Publish(Change{Kind: SignedIn, UserID: sess.UserID})
	m.logger.Info("user signed in", "user_id", sess.UserID, "email", sess.Email)
	return sess, nil
}

// displayName picks the user's name from provider metadata, falling back
// to the local part of the email address.
func displayName(u identity.GrantUser) string {
	for _, key := range []string{"full_name", "name"} {
		if name, ok := u.Metadata[key].(string); ok && name != "" {
			return name
		}
	}
	if at := strings.Index(u.Email, "@"); at > 0 {
		return u.Email[:at]
	}
	return u.Email
}

// avatarURL builds a deterministic initials avatar for the user.
func avatarURL(name string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) + "&background=0D8ABC&color=fff"
}
