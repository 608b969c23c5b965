// ABOUTME: HTTP client for the delegated identity provider
// ABOUTME: Handles sign-up, password sign-in, and sign-out against the auth API

package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// AuthError is a failure reported by the identity provider, such as
// invalid credentials or a duplicate sign-up. The message is safe to
// surface to the end user.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (status %d): %s", e.Status, e.Message)
}

// Grant holds the tokens and user identity returned by a successful
// sign-in or sign-up.
type Grant struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	User         GrantUser `json:"user"`
}

// GrantUser is the user record embedded in a token grant.
type GrantUser struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"user_metadata"`
}

// Client talks to a GoTrue-compatible identity provider over HTTP.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

// NewClient creates an identity client for the given provider base URL.
// The anon key is sent as the API key on every request.
func NewClient(baseURL, anonKey string) *Client {
	return &Client{
		baseURL: baseURL,
		anonKey: anonKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SignUp registers a new account with the provider. The display name is
// stored in the user metadata so sign-in can recover it later.
func (c *Client) SignUp(ctx context.Context, email, password, name string) (*Grant, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data": map[string]any{
			"full_name": name,
		},
	}
	return c.tokenRequest(ctx, "/auth/v1/signup", body)
}

// SignInWithPassword exchanges email/password credentials for a token grant.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Grant, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}
	return c.tokenRequest(ctx, "/auth/v1/token?grant_type=password", body)
}

// SignOut revokes the given access token at the provider. A failed
// revocation is returned to the caller but local session state should be
// cleared regardless.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/v1/logout", nil)
	if err != nil {
		return fmt.Errorf("building sign-out request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sign-out request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.authError(resp)
	}
	return nil
}

// RefreshToken exchanges a refresh token for a fresh grant.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*Grant, error) {
	body := map[string]any{
		"refresh_token": refreshToken,
	}
	return c.tokenRequest(ctx, "/auth/v1/token?grant_type=refresh_token", body)
}

func (c *Client) tokenRequest(ctx context.Context, path string, body map[string]any) (*Grant, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, c.authError(resp)
	}

	var grant Grant
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		return nil, fmt.Errorf("decoding grant: %w", err)
	}
	if grant.AccessToken == "" {
		return nil, &AuthError{Status: resp.StatusCode, Message: "provider returned no access token"}
	}
	return &grant, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.anonKey != "" {
		req.Header.Set("apikey", c.anonKey)
		if req.Header.Get("Authorization") == "" {
			req.Header.Set("Authorization", "Bearer "+c.anonKey)
		}
	}
}

// authError extracts the provider's error message from a failed response.
// GoTrue reports errors under several different keys depending on the
// endpoint, so we try each in turn.
func (c *Client) authError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var payload struct {
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		ErrorDescription string `json:"error_description"`
		Err              string `json:"error"`
	}
	message := ""
	if err := json.Unmarshal(data, &payload); err == nil {
		switch {
		case payload.Message != "":
			message = payload.Message
		case payload.Msg != "":
			message = payload.Msg
		case payload.ErrorDescription != "":
			message = payload.ErrorDescription
		case payload.Err != "":
			message = payload.Err
		}
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return &AuthError{Status: resp.StatusCode, Message: message}
}
