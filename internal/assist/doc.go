// Package assist provides Gemini-backed writing help: tone refinement of a
// draft and short reply suggestions from recent chat history.
//
// The Gateway degrades gracefully: without an API key Refine returns the
// draft unchanged and SuggestReplies returns nil, so callers never need to
// branch on whether assist is configured beyond hiding UI affordances.
package assist
