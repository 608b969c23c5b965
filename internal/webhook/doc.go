// Package webhook forwards chat messages to a workflow webhook endpoint.
//
// # Payload
//
// Each message is POSTed as JSON:
//
//	{
//	  "message":   "user text",
//	  "sessionId": "uuid",
//	  "email":     "user@example.com",
//	  "name":      "User Name",
//	  "timestamp": "2026-03-14T09:26:53.589Z",
//	  "source":    "web-chat-interface"
//	}
//
// # Response Normalization
//
// Workflow engines answer in several shapes. Normalize reduces them all to a
// single reply string:
//
//   - Non-JSON content types pass through as-is
//   - A JSON array is unwrapped to its first item (empty array means no reply)
//   - An object yields the first non-empty string among the fields
//     "output", "text", "message", "response"; otherwise the object is
//     re-serialized as the reply
//   - A bare scalar is rendered in its JSON text form
//
// A TransportError means the endpoint could not be reached or returned a
// non-2xx status. A ParseError means the body claimed to be JSON but was not.
//
// The client deliberately sets no request timeout: workflow runs can be slow,
// so cancellation is the caller's job via context.
package webhook
