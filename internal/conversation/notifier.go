// ABOUTME: In-memory fan-out notifier for transcript and suggestion changes
// ABOUTME: Lets stream handlers react to conversation updates without polling

package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// UpdateKind distinguishes what changed in the conversation.
type UpdateKind string

const (
	UpdateTranscript  UpdateKind = "transcript"
	UpdateSuggestions UpdateKind = "suggestions"
)

// Update is one change notification delivered to subscribers.
type Update struct {
	Kind UpdateKind
}

// Notifier provides in-memory pub/sub for conversation updates.
type Notifier struct {
	mu          sync.RWMutex
	subscribers map[string]chan Update
	logger      *slog.Logger
}

// NewNotifier creates a notifier. Pass nil logger for default.
func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		subscribers: make(map[string]chan Update),
		logger:      logger.With("component", "notifier"),
	}
}

// Subscribe registers a subscriber for updates. Returns a channel and a
// subscription ID. The subscription is automatically cleaned up when ctx
// is cancelled.
func (n *Notifier) Subscribe(ctx context.Context) (<-chan Update, string) {
	subID := uuid.New().String()
	ch := make(chan Update, subscriberBufferSize)

	n.mu.Lock()
	n.subscribers[subID] = ch
	n.mu.Unlock()

	// Auto-cleanup on context cancellation
	go func() {
		<-ctx.Done()
		n.Unsubscribe(subID)
	}()

	return ch, subID
}

// Publish sends an update to all subscribers.
// Non-blocking: updates are dropped for subscribers whose channels are full.
// Sends happen under the read lock so Unsubscribe/Close cannot close a
// channel mid-send.
func (n *Notifier) Publish(update Update) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, ch := range n.subscribers {
		select {
		case ch <- update:
		default:
			n.logger.Debug("dropped update for slow subscriber", "kind", update.Kind)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (n *Notifier) Unsubscribe(subID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch, ok := n.subscribers[subID]
	if !ok {
		return
	}

	delete(n.subscribers, subID)
	close(ch)
}

// Close shuts down the notifier and closes all subscriber channels.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for subID, ch := range n.subscribers {
		close(ch)
		delete(n.subscribers, subID)
	}
}
