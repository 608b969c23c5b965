// ABOUTME: In-memory fan-out broadcaster for auth state changes
// ABOUTME: Publishes sign-in/sign-out events to all registered subscribers

package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 16

// ChangeKind distinguishes auth state transitions.
type ChangeKind string

const (
	SignedIn  ChangeKind = "signed_in"
	SignedOut ChangeKind = "signed_out"
)

// Change is an auth state transition delivered to subscribers.
type Change struct {
	Kind   ChangeKind
	UserID string
}

// Broadcaster provides in-memory pub/sub for auth state changes.
// Handlers subscribe so open pages can react when the user signs out
// from another tab.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan Change
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]chan Change),
		logger:      logger.With("component", "session-broadcaster"),
	}
}

// Subscribe registers a subscriber for auth state changes. Returns a
// channel and a subscription ID. The subscription is automatically
// cleaned up when ctx is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan Change, string) {
	subID := uuid.New().String()
	ch := make(chan Change, subscriberBufferSize)

	b.mu.Lock()
	b.subscribers[subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", subID)

	// Auto-cleanup on context cancellation
	go func() {
		<-ctx.Done()
		b.Unsubscribe(subID)
	}()

	return ch, subID
}

// Publish sends a change to all subscribers.
// Non-blocking: changes are dropped for subscribers whose channels are full.
// Sends happen under the read lock so Unsubscribe/Close cannot close a
// channel mid-send.
func (b *Broadcaster) Publish(change Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- change:
		default:
			b.logger.Debug("dropped change for slow subscriber", "kind", change.Kind)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subscribers[subID]
	if !ok {
		return
	}

	delete(b.subscribers, subID)
	close(ch)

	b.logger.Debug("subscriber removed", "sub_id", subID)
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for subID, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, subID)
	}
}
