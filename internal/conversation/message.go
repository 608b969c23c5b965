// ABOUTME: Message and sender types for the chat transcript
// ABOUTME: Transcript ordering carries the is-last flag used for reveal effects

package conversation

import (
	"time"
)

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderAgent  Sender = "agent"
	SenderSystem Sender = "system"
)

// Message is one entry in the transcript. IsLast is true only for the
// final message; the presentation layer uses it to decide which message
// gets the animated reveal.
type Message struct {
	ID        string
	Text      string
	Sender    Sender
	Timestamp time.Time
	IsLast    bool
}

// historyLine renders the message the way the suggestion prompt expects.
func (m Message) historyLine() string {
	return string(m.Sender) + ": " + m.Text
}
