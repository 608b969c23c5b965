// ABOUTME: Template rendering functions for the chat UI
// ABOUTME: Loads templates from embedded filesystem and renders them

package web

import (
	"html/template"
	"net/http"
	"time"

	"github.com/truvium/truvy-web/internal/conversation"
	"github.com/truvium/truvy-web/internal/session"
)

// Template data types
type loginData struct {
	Title string
	Error string
	Email string
	Name  string
	Mode  string // "login" or "signup"
}

type messageView struct {
	ID        string
	Sender    string
	Text      string
	HTML      template.HTML
	Timestamp time.Time
	IsLast    bool
}

type chatPageData struct {
	Title         string
	AssistantName string
	User          *session.User
	Messages      []messageView
	Suggestions   []string
	Waiting       bool
	AssistEnabled bool
}

// messageViews converts transcript messages for rendering. Agent replies
// get markdown rendering; user and system messages stay plain.
func messageViews(msgs []conversation.Message) []messageView {
	views := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		v := messageView{
			ID:        m.ID,
			Sender:    string(m.Sender),
			Text:      m.Text,
			Timestamp: m.Timestamp,
			IsLast:    m.IsLast,
		}
		if m.Sender == conversation.SenderAgent {
			v.HTML = renderMarkdown(m.Text)
		} else {
			v.HTML = template.HTML(template.HTMLEscapeString(m.Text))
		}
		views = append(views, v)
	}
	return views
}

// renderLoginPage renders the login/signup page
func (h *Handler) renderLoginPage(w http.ResponseWriter, data loginData) {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/login.html"))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		h.logger.Error("failed to render login page", "error", err)
	}
}

// renderChatPage renders the main chat page
func (h *Handler) renderChatPage(w http.ResponseWriter, data chatPageData) {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/chat.html"))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		h.logger.Error("failed to render chat page", "error", err)
	}
}
