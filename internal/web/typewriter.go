// ABOUTME: Typewriter reveal for agent replies streamed over SSE
// ABOUTME: Emits cumulative word prefixes on a ticker until done or cancelled

package web

import (
	"context"
	"strings"
	"time"
)

// Typewriter chunks a reply into progressive prefixes so the client can
// show the reveal effect without any client-side timing logic.
type Typewriter struct {
	Interval time.Duration
	Words    int
}

// NewTypewriter creates a typewriter revealing a few words per tick.
func NewTypewriter() *Typewriter {
	return &Typewriter{
		Interval: 30 * time.Millisecond,
		Words:    2,
	}
}

// Reveal returns a channel of cumulative prefixes of text, ending with the
// full text. The channel closes when the reveal finishes or ctx is
// cancelled mid-reveal.
func (t *Typewriter) Reveal(ctx context.Context, text string) <-chan string {
	out := make(chan string)

	go func() {
		defer close(out)

		words := strings.Fields(text)
		if len(words) == 0 {
			select {
			case out <- text:
			case <-ctx.Done():
			}
			return
		}

		ticker := time.NewTicker(t.Interval)
		defer ticker.Stop()

		for i := t.Words; ; i += t.Words {
			if i > len(words) {
				i = len(words)
			}
			prefix := strings.Join(words[:i], " ")
			if i == len(words) {
				// Preserve the original text verbatim in the final frame,
				// including whitespace Fields collapsed.
				prefix = text
			}

			select {
			case out <- prefix:
			case <-ctx.Done():
				return
			}

			if i == len(words) {
				return
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
