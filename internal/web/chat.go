// ABOUTME: Chat endpoints: page render, message send, refine, reset, and SSE stream
// ABOUTME: Bridges POST /chat/send and GET /chat/stream via conversation notifications

package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/truvium/truvy-web/internal/assist"
	"github.com/truvium/truvy-web/internal/conversation"
)

// heartbeatInterval keeps SSE connections alive through proxies.
const heartbeatInterval = 30 * time.Second

// controller resolves the conversation for the authenticated request.
func (h *Handler) controller(r *http.Request) *conversation.Controller {
	user := userFromContext(r)
	return h.conversations.Get(sessionToken(r), conversation.Profile{
		Email: user.Email,
		Name:  user.Name,
	})
}

// handleChatPage renders the chat page with the current transcript
func (h *Handler) handleChatPage(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)
	ctrl := h.controller(r)

	h.renderChatPage(w, chatPageData{
		Title:         "Truvium",
		AssistantName: h.assistantName,
		User:          user,
		Messages:      messageViews(ctrl.Messages()),
		Suggestions:   ctrl.Suggestions(),
		Waiting:       ctrl.Waiting(),
		AssistEnabled: h.assist.Enabled(),
	})
}

// handleChatSend accepts a user message and starts the exchange
func (h *Handler) handleChatSend(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	message := r.FormValue("message")

	ctrl := h.controller(r)
	if err := ctrl.Dispatch(r.Context(), message); err != nil {
		switch {
		case errors.Is(err, conversation.ErrEmptyMessage):
			http.Error(w, "Message is empty", http.StatusBadRequest)
		case errors.Is(err, conversation.ErrBusy):
			http.Error(w, "A message is already in flight", http.StatusConflict)
		default:
			h.logger.Error("dispatch failed", "error", err)
			http.Error(w, "Failed to send message", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "sent"})
}

// handleChatRefine rewrites the draft text in the requested tone
func (h *Handler) handleChatRefine(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	tone := assist.ToneProfessional
	if raw := r.FormValue("tone"); raw != "" {
		parsed, err := assist.ParseTone(raw)
		if err != nil {
			http.Error(w, "Unknown tone", http.StatusBadRequest)
			return
		}
		tone = parsed
	}

	text := r.FormValue("text")
	refined := h.assist.Refine(r.Context(), text, tone)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"text": refined})
}

// handleChatReset restores the conversation to the greeting
func (h *Handler) handleChatReset(w http.ResponseWriter, r *http.Request) {
	h.controller(r).Reset()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "reset"})
}

// streamState is the transcript snapshot pushed over SSE.
type streamState struct {
	Messages    []streamMessage `json:"messages"`
	Suggestions []string        `json:"suggestions"`
	Waiting     bool            `json:"waiting"`
}

type streamMessage struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	HTML      string `json:"html"`
	Timestamp string `json:"timestamp"`
	IsLast    bool   `json:"is_last"`
	Reveal    bool   `json:"reveal,omitempty"`
}

type revealFrame struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Done bool   `json:"done,omitempty"`
}

// handleChatStream streams transcript updates over SSE. New agent replies
// are revealed progressively before the final rendered state is sent.
func (h *Handler) handleChatStream(w http.ResponseWriter, r *http.Request) {
	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	ctrl := h.controller(r)
	updates, _ := ctrl.Subscribe(r.Context())

	// Send the current state so a reconnecting client catches up
	lastAgentID := latestAgentMessageID(ctrl.Messages())
	h.writeState(w, flusher, ctrl, "")

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-heartbeat.C:
			// SSE comment keeps the connection alive
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()

		case update, ok := <-updates:
			if !ok {
				return
			}

			// An interrupted reveal hands back the update that cut it
			// short; keep applying until nothing is carried over.
			for {
				next, open := h.applyUpdate(r, w, flusher, ctrl, updates, &lastAgentID, update)
				if !open {
					return
				}
				if next == nil {
					break
				}
				update = *next
			}
		}
	}
}

// applyUpdate handles one change notification. Returns the update that
// interrupted a reveal, if any, and whether the subscription is still open.
func (h *Handler) applyUpdate(r *http.Request, w http.ResponseWriter, flusher http.Flusher, ctrl *conversation.Controller, updates <-chan conversation.Update, lastAgentID *string, update conversation.Update) (*conversation.Update, bool) {
	if update.Kind != conversation.UpdateTranscript {
		h.writeState(w, flusher, ctrl, "")
		return nil, true
	}

	msgs := ctrl.Messages()
	newAgentID := latestAgentMessageID(msgs)
	if newAgentID == "" || newAgentID == *lastAgentID {
		h.writeState(w, flusher, ctrl, "")
		return nil, true
	}

	*lastAgentID = newAgentID
	interrupt, open := h.revealReply(r, w, flusher, updates, msgs, newAgentID)
	if !open {
		return nil, false
	}
	h.writeState(w, flusher, ctrl, newAgentID)
	return interrupt, true
}

// revealReply streams the new agent reply as progressive prefixes. The
// reveal runs under its own context and is torn down as soon as another
// transcript update supersedes the message; the interrupting update is
// returned for the caller to process.
func (h *Handler) revealReply(r *http.Request, w http.ResponseWriter, flusher http.Flusher, updates <-chan conversation.Update, msgs []conversation.Message, id string) (*conversation.Update, bool) {
	var text string
	for _, m := range msgs {
		if m.ID == id {
			text = m.Text
			break
		}
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	frames := h.typewriter.Reveal(ctx, text)

	var pending *conversation.Update
	for {
		select {
		case prefix, ok := <-frames:
			if !ok {
				return pending, true
			}
			h.writeEvent(w, flusher, "reveal", revealFrame{ID: id, Text: prefix, Done: prefix == text})

		case update, ok := <-updates:
			if !ok {
				return nil, false
			}
			if update.Kind == conversation.UpdateTranscript {
				// The transcript moved on; stop revealing a stale reply
				return &update, true
			}
			// Suggestion changes don't invalidate the reveal; deliver
			// them once it finishes
			pending = &update
		}
	}
}

// writeState renders and sends the full transcript state. revealedID marks
// the message the client just watched being revealed so it isn't animated
// a second time.
func (h *Handler) writeState(w http.ResponseWriter, flusher http.Flusher, ctrl *conversation.Controller, revealedID string) {
	views := messageViews(ctrl.Messages())
	state := streamState{
		Messages:    make([]streamMessage, 0, len(views)),
		Suggestions: ctrl.Suggestions(),
		Waiting:     ctrl.Waiting(),
	}
	for _, v := range views {
		state.Messages = append(state.Messages, streamMessage{
			ID:        v.ID,
			Sender:    v.Sender,
			HTML:      string(v.HTML),
			Timestamp: v.Timestamp.Format(time.RFC3339),
			IsLast:    v.IsLast,
			Reveal:    v.ID == revealedID,
		})
	}
	h.writeEvent(w, flusher, "state", state)
}

func (h *Handler) writeEvent(w http.ResponseWriter, flusher http.Flusher, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to marshal stream event", "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}

// latestAgentMessageID returns the ID of the trailing agent message, or
// empty when the transcript doesn't end with one.
func latestAgentMessageID(msgs []conversation.Message) string {
	if len(msgs) == 0 {
		return ""
	}
	last := msgs[len(msgs)-1]
	if last.Sender != conversation.SenderAgent {
		return ""
	}
	return last.ID
}
