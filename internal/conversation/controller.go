// ABOUTME: Conversation controller owning transcript state and the send pipeline
// ABOUTME: Coordinates webhook delivery, fallback turns, and async reply suggestions

package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/truvium/truvy-web/internal/webhook"
)

// historyWindow is how many trailing messages feed the suggestion prompt.
const historyWindow = 5

// Controller errors
var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrBusy         = errors.New("a send is already in flight")
)

// Profile identifies the signed-in user for outgoing webhook envelopes.
type Profile struct {
	Email string
	Name  string
}

// forwarder delivers a user message to the workflow and returns the reply.
type forwarder interface {
	Send(ctx context.Context, req webhook.Request) (string, error)
}

// suggester proposes follow-up replies from recent history lines.
type suggester interface {
	SuggestReplies(ctx context.Context, history []string) []string
}

// Controller owns one conversation: the ordered transcript, the pending
// suggestion list, and the single-in-flight send pipeline. All exported
// methods are safe for concurrent use.
type Controller struct {
	mu          sync.Mutex
	messages    []Message
	suggestions []string
	waiting     bool
	generation  uint64
	lastActive  time.Time

	sessionID string
	profile   Profile
	greeting  string
	fallback  string

	fwd      forwarder
	sug      suggester
	notifier *Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewController creates a conversation seeded with the greeting message.
// The session ID is minted once and reused for every webhook envelope
// this conversation sends.
func NewController(profile Profile, fwd forwarder, sug suggester, greeting, fallback string) *Controller {
	c := &Controller{
		sessionID: uuid.New().String(),
		profile:   profile,
		greeting:  greeting,
		fallback:  fallback,
		fwd:       fwd,
		sug:       sug,
		notifier:  NewNotifier(nil),
		logger:    slog.Default().With("component", "conversation"),
		now:       time.Now,
	}
	c.messages = []Message{c.greetingMessage()}
	c.lastActive = c.now()
	return c
}

// SessionID returns the conversation's stable correlation ID.
func (c *Controller) SessionID() string {
	return c.sessionID
}

// Messages returns a copy of the transcript in order.
func (c *Controller) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Suggestions returns the current reply suggestions, if any.
func (c *Controller) Suggestions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.suggestions))
	copy(out, c.suggestions)
	return out
}

// Waiting reports whether a send is in flight.
func (c *Controller) Waiting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waiting
}

// LastActive reports when the conversation last saw a send.
func (c *Controller) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// Subscribe registers for transcript change notifications.
func (c *Controller) Subscribe(ctx context.Context) (<-chan Update, string) {
	return c.notifier.Subscribe(ctx)
}

// Send runs the full pipeline for one user message: append the user's
// turn, forward it to the workflow, then append either the agent's reply
// or the fallback turn. Suggestions are generated in the background after
// a successful reply. Blocks until the reply or fallback is recorded.
func (c *Controller) Send(ctx context.Context, text string) error {
	msg, err := c.AppendUserTurn(text)
	if err != nil {
		return err
	}
	c.forward(ctx, msg)
	return nil
}

// Dispatch records the user turn synchronously and completes the exchange
// in the background. Validation errors surface immediately; delivery
// outcomes arrive through change notifications.
func (c *Controller) Dispatch(ctx context.Context, text string) error {
	msg, err := c.AppendUserTurn(text)
	if err != nil {
		return err
	}
	// The request context ends when the handler returns; the exchange
	// keeps running past that point.
	go c.forward(context.WithoutCancel(ctx), msg)
	return nil
}

// forward delivers the user turn and records the outcome.
func (c *Controller) forward(ctx context.Context, msg Message) {
	reply, err := c.fwd.Send(ctx, webhook.Request{
		Message:   msg.Text,
		SessionID: c.sessionID,
		Email:     c.profile.Email,
		Name:      c.profile.Name,
	})
	if err != nil {
		c.logger.Warn("webhook send failed",
			"session_id", c.sessionID,
			"error", err)
		c.FailTurn()
		return
	}

	c.CompleteTurn(reply)
	c.generateSuggestions(context.WithoutCancel(ctx))
}

// AppendUserTurn records the user's message and enters the waiting state.
// Rejects blank messages and overlapping sends. Pending suggestions are
// cleared because they were drafted for the previous exchange.
func (c *Controller) AppendUserTurn(text string) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, ErrEmptyMessage
	}

	c.mu.Lock()
	if c.waiting {
		c.mu.Unlock()
		return Message{}, ErrBusy
	}

	msg := Message{
		ID:        uuid.New().String(),
		Text:      text,
		Sender:    SenderUser,
		Timestamp: c.now(),
	}
	c.append(msg)
	c.suggestions = nil
	c.waiting = true
	c.generation++
	c.lastActive = c.now()
	c.mu.Unlock()

	c.notifier.Publish(Update{Kind: UpdateTranscript})
	return msg, nil
}

// CompleteTurn records the agent's reply and leaves the waiting state.
func (c *Controller) CompleteTurn(reply string) {
	c.mu.Lock()
	c.append(Message{
		ID:        uuid.New().String(),
		Text:      reply,
		Sender:    SenderAgent,
		Timestamp: c.now(),
	})
	c.waiting = false
	c.mu.Unlock()

	c.notifier.Publish(Update{Kind: UpdateTranscript})
}

// FailTurn records the fallback system message and leaves the waiting state.
func (c *Controller) FailTurn() {
	c.mu.Lock()
	c.append(Message{
		ID:        uuid.New().String(),
		Text:      c.fallback,
		Sender:    SenderSystem,
		Timestamp: c.now(),
	})
	c.waiting = false
	c.mu.Unlock()

	c.notifier.Publish(Update{Kind: UpdateTranscript})
}

// Reset restores the conversation to just the greeting. The session ID
// is kept; the workflow still correlates follow-up messages.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.messages = []Message{c.greetingMessage()}
	c.suggestions = nil
	c.waiting = false
	c.generation++
	c.mu.Unlock()

	c.notifier.Publish(Update{Kind: UpdateTranscript})
}

// Close shuts down the change notifier.
func (c *Controller) Close() {
	c.notifier.Close()
}

// generateSuggestions asks the model for follow-up replies without
// blocking the send pipeline. Results are discarded if another user turn
// started while the request was in flight.
func (c *Controller) generateSuggestions(ctx context.Context) {
	c.mu.Lock()
	gen := c.generation
	history := c.historyLines()
	c.mu.Unlock()

	go func() {
		replies := c.sug.SuggestReplies(ctx, history)
		if len(replies) == 0 {
			return
		}

		c.mu.Lock()
		if c.generation != gen {
			c.mu.Unlock()
			return
		}
		c.suggestions = replies
		c.mu.Unlock()

		c.notifier.Publish(Update{Kind: UpdateSuggestions})
	}()
}

// append adds a message and recomputes the is-last flag. Callers hold the lock.
func (c *Controller) append(msg Message) {
	for i := range c.messages {
		c.messages[i].IsLast = false
	}
	msg.IsLast = true
	c.messages = append(c.messages, msg)
}

// historyLines renders the trailing window of the transcript for the
// suggestion prompt. Callers hold the lock.
func (c *Controller) historyLines() []string {
	start := 0
	if len(c.messages) > historyWindow {
		start = len(c.messages) - historyWindow
	}
	lines := make([]string, 0, len(c.messages)-start)
	for _, m := range c.messages[start:] {
		lines = append(lines, m.historyLine())
	}
	return lines
}

func (c *Controller) greetingMessage() Message {
	return Message{
		ID:        uuid.New().String(),
		Text:      c.greeting,
		Sender:    SenderAgent,
		Timestamp: c.now(),
		IsLast:    true,
	}
}
