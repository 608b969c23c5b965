// Package conversation manages per-user chat transcripts and the send pipeline.
//
// # Overview
//
// The conversation package sits between the HTTP handlers and the workflow
// webhook, providing conversation-level abstractions like transcript
// ordering, single-in-flight sends, and update broadcasting.
//
// # Controller
//
// Each signed-in browser session gets one Controller, which owns:
//
//   - The ordered transcript (greeting first, then alternating turns)
//   - The pending reply-suggestion list
//   - The single-in-flight send pipeline
//
// Key operations:
//
//   - Send(ctx, text): Append a user turn and forward it, blocking
//   - Dispatch(ctx, text): Append a user turn, forward in the background
//   - Reset(): Drop the transcript back to the greeting
//   - Subscribe(ctx): Receive transcript/suggestion update events
//
// Exactly one message in the transcript has IsLast set: the newest one.
// Appending recomputes the flag so renderers can animate only the tail.
//
// # Send Pipeline
//
// When a user turn arrives:
//
//  1. Validate (non-blank, no send already in flight)
//  2. Append the turn, clear stale suggestions, mark waiting
//  3. Forward to the workflow webhook with the conversation's session id
//  4. On success append the agent reply; on failure append a fallback
//  5. Ask the suggester for follow-up replies from recent history
//
// A generation counter guards step 5: if another turn (or a reset) lands
// while suggestions are being generated, the stale results are discarded.
//
// # Registry
//
// The Registry maps session tokens to Controllers, creating them on demand
// and reaping idle ones:
//
//	reg := conversation.NewRegistry(forwarder, suggester, greeting, fallback)
//	ctrl := reg.Get(token, profile)
//
// ReapLoop periodically removes controllers idle past the TTL, skipping any
// with a send still in flight.
package conversation
