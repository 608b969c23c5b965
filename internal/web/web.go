// ABOUTME: HTTP handlers for the chat UI: auth pages, routes, and middleware
// ABOUTME: Binds session cookies to conversations and guards chat endpoints

package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/truvium/truvy-web/internal/assist"
	"github.com/truvium/truvy-web/internal/conversation"
	"github.com/truvium/truvy-web/internal/identity"
	"github.com/truvium/truvy-web/internal/session"
)

// SessionCookieName is the browser session cookie.
const SessionCookieName = "truvy_session"

type contextKey string

const userContextKey contextKey = "user"

// assistant is the drafting assistance surface the handlers need.
type assistant interface {
	Enabled() bool
	Refine(ctx context.Context, text string, tone assist.Tone) string
}

// Handler serves the chat UI.
type Handler struct {
	sessions      *session.Manager
	conversations *conversation.Registry
	assist        assistant
	typewriter    *Typewriter
	assistantName string
	sessionTTL    time.Duration
	logger        *slog.Logger
}

// NewHandler creates the web handler.
func NewHandler(sessions *session.Manager, conversations *conversation.Registry, assist assistant, assistantName string, sessionTTL time.Duration) *Handler {
	return &Handler{
		sessions:      sessions,
		conversations: conversations,
		assist:        assist,
		typewriter:    NewTypewriter(),
		assistantName: assistantName,
		sessionTTL:    sessionTTL,
		logger:        slog.Default().With("component", "web"),
	}
}

// RegisterRoutes registers all chat UI routes on the given mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Public routes (no auth required)
	mux.HandleFunc("GET /login", h.handleLoginPage)
	mux.HandleFunc("POST /login", h.handleLogin)
	mux.HandleFunc("POST /signup", h.handleSignup)
	mux.HandleFunc("GET /healthz", h.handleHealth)

	// Protected routes (auth required)
	mux.HandleFunc("GET /{$}", h.requireAuth(h.handleChatPage))
	mux.HandleFunc("POST /logout", h.requireAuth(h.handleLogout))
	mux.HandleFunc("POST /chat/send", h.requireAuth(h.handleChatSend))
	mux.HandleFunc("POST /chat/refine", h.requireAuth(h.handleChatRefine))
	mux.HandleFunc("POST /chat/reset", h.requireAuth(h.handleChatReset))
	mux.HandleFunc("GET /chat/stream", h.requireAuth(h.handleChatStream))

	h.logger.Info("web routes registered")
}

// requireAuth wraps a handler to require a live session
func (h *Handler) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := h.currentUser(r)
		if err != nil {
			if errors.Is(err, session.ErrNoSession) {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			h.logger.Error("session lookup failed", "error", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next(w, r.WithContext(ctx))
	}
}

func (h *Handler) currentUser(r *http.Request) (*session.User, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil, session.ErrNoSession
	}
	return h.sessions.Current(r.Context(), cookie.Value)
}

// userFromContext returns the authenticated user placed by requireAuth.
func userFromContext(r *http.Request) *session.User {
	user, _ := r.Context().Value(userContextKey).(*session.User)
	return user
}

// sessionToken returns the session cookie value, or empty.
func sessionToken(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// handleLoginPage renders the login page, or redirects home if already
// signed in.
func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, err := h.currentUser(r); err == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.renderLoginPage(w, loginData{Title: "Sign In", Mode: "login"})
}

// handleLogin signs the user in with email/password credentials
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	if email == "" || password == "" {
		h.renderLoginPage(w, loginData{Title: "Sign In", Mode: "login", Email: email, Error: "Email and password are required"})
		return
	}

	sess, err := h.sessions.SignIn(r.Context(), email, password)
	if err != nil {
		h.renderLoginPage(w, loginData{Title: "Sign In", Mode: "login", Email: email, Error: authErrorMessage(err)})
		return
	}

	h.setSessionCookie(w, sess.Token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleSignup registers a new account and signs it in
func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	name := strings.TrimSpace(r.FormValue("name"))
	if email == "" || password == "" {
		h.renderLoginPage(w, loginData{Title: "Create Account", Mode: "signup", Email: email, Name: name, Error: "Email and password are required"})
		return
	}

	sess, err := h.sessions.SignUp(r.Context(), email, password, name)
	if err != nil {
		h.renderLoginPage(w, loginData{Title: "Create Account", Mode: "signup", Email: email, Name: name, Error: authErrorMessage(err)})
		return
	}

	h.setSessionCookie(w, sess.Token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleLogout signs the user out and clears the conversation
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)

	if err := h.sessions.SignOut(r.Context(), token); err != nil {
		h.logger.Error("sign-out failed", "error", err)
	}
	h.conversations.Remove(token)

	// Clear session cookie
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// handleHealth reports liveness
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok"))
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.sessionTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// authErrorMessage picks a user-facing message for a sign-in failure.
// Provider messages are shown as-is; anything else gets a generic line.
func authErrorMessage(err error) string {
	var authErr *identity.AuthError
	if errors.As(err, &authErr) {
		return authErr.Message
	}
	return "Something went wrong. Please try again."
}
