// Package web serves the browser chat UI.
//
// # Routes
//
//	GET  /            chat page (auth required)
//	GET  /login       login/signup page
//	POST /login       sign in via the identity provider
//	POST /signup      create an account
//	POST /logout      sign out and drop the conversation
//	POST /chat/send   queue a message for the workflow webhook
//	POST /chat/refine rewrite the draft in a requested tone
//	POST /chat/reset  clear the conversation back to the greeting
//	GET  /chat/stream server-sent events: transcript state and reveal frames
//	GET  /healthz     liveness probe
//
// # Streaming
//
// /chat/stream pushes two event types: "state" carries the full rendered
// transcript plus suggestions and the waiting flag, and "reveal" carries
// typewriter frames that progressively disclose a new agent reply. Agent
// messages are rendered as sanitized markdown; user and system messages are
// HTML-escaped verbatim.
package web
