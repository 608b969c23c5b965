// ABOUTME: Tests for the chat UI handlers: auth flow, send pipeline, and SSE stream
// ABOUTME: Wires real session/conversation components over stub identity and webhook services

package web

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truvium/truvy-web/internal/assist"
	"github.com/truvium/truvy-web/internal/conversation"
	"github.com/truvium/truvy-web/internal/identity"
	"github.com/truvium/truvy-web/internal/session"
	"github.com/truvium/truvy-web/internal/store"
	"github.com/truvium/truvy-web/internal/webhook"
)

const (
	testGreeting = "Hello. I am Truvy, your corporate assistant. How may I help you with your tasks today?"
	testFallback = "I'm having trouble connecting to the Truvy server. Please try again later."
)

type stubIdentity struct {
	err error
}

func (s *stubIdentity) grant() *identity.Grant {
	return &identity.Grant{
		AccessToken:  "access-123",
		RefreshToken: "refresh-456",
		User: identity.GrantUser{
			ID:       "user-abc",
			Email:    "alice@example.com",
			Metadata: map[string]any{"name": "Alice Example"},
		},
	}
}

func (s *stubIdentity) SignUp(ctx context.Context, email, password, name string) (*identity.Grant, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.grant(), nil
}

func (s *stubIdentity) SignInWithPassword(ctx context.Context, email, password string) (*identity.Grant, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.grant(), nil
}

func (s *stubIdentity) RefreshToken(ctx context.Context, refreshToken string) (*identity.Grant, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.grant(), nil
}

func (s *stubIdentity) SignOut(ctx context.Context, accessToken string) error {
	return nil
}

type stubForwarder struct {
	mu    sync.Mutex
	reply string
	err   error
}

func (f *stubForwarder) Send(ctx context.Context, req webhook.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reply, f.err
}

type stubAssistant struct {
	enabled bool
	refined string
}

func (a *stubAssistant) Enabled() bool { return a.enabled }

func (a *stubAssistant) Refine(ctx context.Context, text string, tone assist.Tone) string {
	if a.refined != "" {
		return a.refined
	}
	return text
}

type stubSuggester struct{}

func (stubSuggester) SuggestReplies(ctx context.Context, history []string) []string { return nil }

type testEnv struct {
	handler  *Handler
	sessions *session.Manager
	mux      *http.ServeMux
	fwd      *stubForwarder
}

func newTestEnv(t *testing.T, idp *stubIdentity) *testEnv {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	sessions := session.NewManager(idp, st, time.Hour)
	t.Cleanup(sessions.Close)

	fwd := &stubForwarder{reply: "Here you go."}
	registry := conversation.NewRegistry(fwd, stubSuggester{}, testGreeting, testFallback)
	t.Cleanup(registry.Close)

	handler := NewHandler(sessions, registry, &stubAssistant{enabled: true, refined: "Refined."}, "Truvy", time.Hour)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	return &testEnv{handler: handler, sessions: sessions, mux: mux, fwd: fwd}
}

// signIn performs a login and returns the session cookie.
func (e *testEnv) signIn(t *testing.T) *http.Cookie {
	t.Helper()

	form := url.Values{"email": {"alice@example.com"}, "password": {"hunter2"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookieName {
			return c
		}
	}
	t.Fatal("no session cookie set on login")
	return nil
}

func TestChatPage_RequiresAuth(t *testing.T) {
	env := newTestEnv(t, &stubIdentity{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t, &stubIdentity{})
	cookie := env.signIn(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, testGreeting)
	assert.Contains(t, body, "Alice Example")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t, &stubIdentity{
		err: &identity.AuthError{Status: 400, Message: "Invalid login credentials"},
	})

	form := url.Values{"email": {"alice@example.com"}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid login credentials")
}

func TestSignup_Success(t *testing.T) {
	env := newTestEnv(t, &stubIdentity{})

	form := url.Values{
		"email":    {"bob@example.com"},
		"password": {"hunter2"},
		"name":     {"Bob Example"},
	}
	req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestLogout_ClearsSessionAndConversation(t *testing.T) {
	env := newTestEnv(t, &stubIdentity{})
	cookie := env.signIn(t)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	// Session no longer valid
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestChatSend_AppendsExchange(t *testing.T) {
	env := newTestEnv(t, &stubIdentity{})
	cookie := env.signIn(t)

	form := url.Values{"message": {"Where is the Q3 report?"}}
	req := httptest.NewRequest(http.MethodPost, "/chat/send", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sent"`)

	// The reply lands asynchronously; poll the page until it shows up
	deadline := time.After(2 * time.Second)
	for {
		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(cookie)
		rec = httptest.NewRecorder()
		env.mux.ServeHTTP(rec, req)
		if strings.Contains(rec.Body.String(), "Here you go.") {
			break
		}
		select {
		case <-deadline:
			t.Fatal("agent reply never appeared in transcript")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestChatSend_EmptyMessage(t *testing.T) {
	env := newTestEnv(t, &stubIdentity{})
	cookie := env.signIn(t)

	form := url.Values{"message": {"   "}}
	req := httptest.NewRequest(http.MethodPost, "/chat/send", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatRefine(t *testing.T) {
	env := newTestEnv(t, &stubIdentity{})
	cookie := env.signIn(t)

	form := url.Values{"text": {"fix me"}, "tone": {"concise"}}
	req := httptest.NewRequest(http.MethodPost, "/chat/refine", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Refined.")
}

func TestChatPage_RefineScriptDiscardsStaleResults(t *testing.T) {
	env := newTestEnv(t, &stubIdentity{})
	cookie := env.signIn(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	// The page script must only apply a refine result when the draft is
	// unchanged and no newer refine request has been issued since
	body := rec.Body.String()
	assert.Contains(t, body, "refineSeq")
	assert.Contains(t, body, "seq !== refineSeq")
	assert.Contains(t, body, "input.value !== draft")
}

func TestChatRefine_UnknownTone(t *testing.T) {
	env := newTestEnv(t, &stubIdentity{})
	cookie := env.signIn(t)

	form := url.Values{"text": {"fix me"}, "tone": {"sarcastic"}}
	req := httptest.NewRequest(http.MethodPost, "/chat/refine", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatReset(t *testing.T) {
	env := newTestEnv(t, &stubIdentity{})
	cookie := env.signIn(t)

	// Send a message, then reset
	form := url.Values{"message": {"hello"}}
	req := httptest.NewRequest(http.MethodPost, "/chat/send", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	env.mux.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodPost, "/chat/reset", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	assert.NotContains(t, rec.Body.String(), "hello</")
	assert.Contains(t, rec.Body.String(), testGreeting)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, &stubIdentity{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestChatStream_SendsInitialState(t *testing.T) {
	env := newTestEnv(t, &stubIdentity{})
	cookie := env.signIn(t)

	srv := httptest.NewServer(env.mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/chat/stream", nil)
	require.NoError(t, err)
	req.AddCookie(cookie)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	// The first frame is the current state, which carries the greeting
	scanner := bufio.NewScanner(resp.Body)
	var sawState, sawGreeting bool
	for scanner.Scan() {
		line := scanner.Text()
		if line == "event: state" {
			sawState = true
		}
		if strings.HasPrefix(line, "data: ") && strings.Contains(line, "corporate assistant") {
			sawGreeting = true
			break
		}
	}
	assert.True(t, sawState, "no state event received")
	assert.True(t, sawGreeting, "greeting missing from initial state")
}
