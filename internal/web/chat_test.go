// ABOUTME: Tests for the SSE reveal loop
// ABOUTME: Covers teardown on newer transcript updates and suggestion buffering

package web

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truvium/truvy-web/internal/conversation"
)

type revealResult struct {
	interrupt *conversation.Update
	open      bool
}

// runReveal calls revealReply in a goroutine and waits for it to return.
func runReveal(t *testing.T, h *Handler, rec *httptest.ResponseRecorder, updates chan conversation.Update, msgs []conversation.Message, id string) revealResult {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/chat/stream", nil)

	done := make(chan revealResult, 1)
	go func() {
		interrupt, open := h.revealReply(req, rec, rec, updates, msgs, id)
		done <- revealResult{interrupt: interrupt, open: open}
	}()

	select {
	case res := <-done:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("revealReply did not return")
		return revealResult{}
	}
}

func TestRevealReply_TornDownByNewerTranscript(t *testing.T) {
	h := &Handler{
		typewriter: &Typewriter{Interval: time.Hour, Words: 1},
		logger:     slog.Default(),
	}
	msgs := []conversation.Message{
		{ID: "msg-1", Text: "one two three", Sender: conversation.SenderAgent},
	}

	// A fresh transcript update is already waiting when the reveal starts
	updates := make(chan conversation.Update, 1)
	updates <- conversation.Update{Kind: conversation.UpdateTranscript}

	rec := httptest.NewRecorder()
	res := runReveal(t, h, rec, updates, msgs, "msg-1")

	assert.True(t, res.open)
	require.NotNil(t, res.interrupt)
	assert.Equal(t, conversation.UpdateTranscript, res.interrupt.Kind)

	// The reveal never finished, so the final frame was never written
	assert.NotContains(t, rec.Body.String(), `"done":true`)
}

func TestRevealReply_SuggestionsDoNotInterrupt(t *testing.T) {
	h := &Handler{
		typewriter: &Typewriter{Interval: time.Millisecond, Words: 2},
		logger:     slog.Default(),
	}
	msgs := []conversation.Message{
		{ID: "msg-1", Text: "one two three four", Sender: conversation.SenderAgent},
	}

	updates := make(chan conversation.Update, 1)
	updates <- conversation.Update{Kind: conversation.UpdateSuggestions}

	rec := httptest.NewRecorder()
	res := runReveal(t, h, rec, updates, msgs, "msg-1")

	assert.True(t, res.open)
	require.NotNil(t, res.interrupt)
	assert.Equal(t, conversation.UpdateSuggestions, res.interrupt.Kind)

	// The reveal ran to completion with the suggestion update held back
	body := rec.Body.String()
	assert.Contains(t, body, "one two three four")
	assert.Contains(t, body, `"done":true`)
}

func TestRevealReply_ClosedUpdatesEndsStream(t *testing.T) {
	h := &Handler{
		typewriter: &Typewriter{Interval: time.Hour, Words: 1},
		logger:     slog.Default(),
	}
	msgs := []conversation.Message{
		{ID: "msg-1", Text: "one two three", Sender: conversation.SenderAgent},
	}

	updates := make(chan conversation.Update)
	close(updates)

	rec := httptest.NewRecorder()
	res := runReveal(t, h, rec, updates, msgs, "msg-1")

	assert.False(t, res.open)
	assert.Nil(t, res.interrupt)
}

func TestRevealReply_EmptyTranscriptFrames(t *testing.T) {
	h := &Handler{
		typewriter: &Typewriter{Interval: time.Millisecond, Words: 2},
		logger:     slog.Default(),
	}

	rec := httptest.NewRecorder()
	res := runReveal(t, h, rec, make(chan conversation.Update), nil, "missing")

	assert.True(t, res.open)
	assert.Nil(t, res.interrupt)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "event: reveal"))
}
