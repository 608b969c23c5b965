// ABOUTME: Error types for webhook delivery and response normalization
// ABOUTME: Separates transport failures from malformed-response failures

package webhook

import (
	"fmt"
)

// TransportError reports a failure to deliver the message or a non-2xx
// response from the workflow endpoint.
type TransportError struct {
	StatusCode int
	Status     string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("webhook request failed: %v", e.Err)
	}
	return fmt.Sprintf("webhook error: %s", e.Status)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ParseError reports a response that claimed to be JSON but could not be
// decoded into a usable reply.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("webhook response parse failed: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
