// ABOUTME: Registry mapping browser sessions to their conversation controllers
// ABOUTME: Creates controllers on demand and reaps idle ones in the background

package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Registry keeps one Controller per signed-in browser session.
// Conversations are in-memory only; a reaped or restarted conversation
// starts over at the greeting.
type Registry struct {
	mu          sync.Mutex
	controllers map[string]*Controller

	fwd      forwarder
	sug      suggester
	greeting string
	fallback string
	logger   *slog.Logger
}

// NewRegistry creates a registry that builds controllers with the given
// forwarder, suggester, and canned messages.
func NewRegistry(fwd forwarder, sug suggester, greeting, fallback string) *Registry {
	return &Registry{
		controllers: make(map[string]*Controller),
		fwd:         fwd,
		sug:         sug,
		greeting:    greeting,
		fallback:    fallback,
		logger:      slog.Default().With("component", "conversation-registry"),
	}
}

// Get returns the conversation for the session token, creating one seeded
// with the greeting if none exists.
func (r *Registry) Get(token string, profile Profile) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.controllers[token]; ok {
		return c
	}

	c := NewController(profile, r.fwd, r.sug, r.greeting, r.fallback)
	r.controllers[token] = c
	r.logger.Debug("conversation created", "session_id", c.SessionID())
	return c
}

// Remove drops the conversation for the session token, if any.
func (r *Registry) Remove(token string) {
	r.mu.Lock()
	c, ok := r.controllers[token]
	if ok {
		delete(r.controllers, token)
	}
	r.mu.Unlock()

	if ok {
		c.Close()
	}
}

// Len reports how many conversations are live.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.controllers)
}

// ReapLoop periodically removes conversations idle longer than maxIdle
// until ctx is cancelled.
func (r *Registry) ReapLoop(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reapIdle(maxIdle)
		}
	}
}

func (r *Registry) reapIdle(maxIdle time.Duration) {
	cutoff := time.Now().Add(-maxIdle)

	r.mu.Lock()
	var reaped []*Controller
	for token, c := range r.controllers {
		if c.LastActive().Before(cutoff) && !c.Waiting() {
			delete(r.controllers, token)
			reaped = append(reaped, c)
		}
	}
	r.mu.Unlock()

	for _, c := range reaped {
		c.Close()
	}
	if len(reaped) > 0 {
		r.logger.Debug("idle conversations reaped", "count", len(reaped))
	}
}

// Close shuts down every live conversation.
func (r *Registry) Close() {
	r.mu.Lock()
	controllers := make([]*Controller, 0, len(r.controllers))
	for token, c := range r.controllers {
		controllers = append(controllers, c)
		delete(r.controllers, token)
	}
	r.mu.Unlock()

	for _, c := range controllers {
		c.Close()
	}
}
