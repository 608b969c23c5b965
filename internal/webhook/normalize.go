// ABOUTME: Normalizes heterogeneous workflow responses into a single reply string
// ABOUTME: Handles item arrays, common reply fields, and raw text bodies

package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// replyFields are the object keys checked for the reply text, in priority
// order. Workflow nodes disagree on which one they populate.
var replyFields = []string{"output", "text", "message", "response"}

// Normalize converts a workflow response body into the assistant's reply
// text. Non-JSON bodies pass through verbatim. JSON bodies go through the
// unwrapping rules: item arrays are reduced to their first element, known
// reply fields take priority, and anything else is re-serialized.
func Normalize(contentType string, body []byte) (string, error) {
	if !strings.Contains(contentType, "application/json") {
		return string(body), nil
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return "", &ParseError{Err: fmt.Errorf("decoding response body: %w", err)}
	}

	// Workflow engines often return an array of items: [{"output": "..."}]
	if items, ok := data.([]any); ok {
		if len(items) == 0 {
			return "", nil
		}
		data = items[0]
	}

	obj, ok := data.(map[string]any)
	if !ok {
		return reparseScalar(data)
	}

	for _, field := range replyFields {
		if s, ok := obj[field].(string); ok && s != "" {
			return s, nil
		}
	}

	// No known reply field: hand the whole object back as JSON so the
	// payload is at least visible in the transcript.
	raw, err := json.Marshal(obj)
	if err != nil {
		return "", &ParseError{Err: fmt.Errorf("re-encoding response object: %w", err)}
	}
	return string(raw), nil
}

// reparseScalar handles a JSON body that decodes to a bare scalar. The
// scalar's text rendering is decoded again as JSON, so a numeric or boolean
// reply survives while a plain prose string is rejected as malformed. This
// mirrors how the workflow's other consumers treat scalar replies.
func reparseScalar(v any) (string, error) {
	var text string
	switch s := v.(type) {
	case string:
		text = s
	case float64:
		text = strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		text = strconv.FormatBool(s)
	case nil:
		text = "null"
	default:
		return "", &ParseError{Err: fmt.Errorf("unsupported scalar type %T", v)}
	}

	var reparsed any
	if err := json.Unmarshal([]byte(text), &reparsed); err != nil {
		return "", &ParseError{Err: fmt.Errorf("re-parsing scalar reply: %w", err)}
	}

	switch r := reparsed.(type) {
	case string:
		return r, nil
	case float64:
		return strconv.FormatFloat(r, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(r), nil
	case nil:
		return "null", nil
	default:
		raw, err := json.Marshal(reparsed)
		if err != nil {
			return "", &ParseError{Err: err}
		}
		return string(raw), nil
	}
}
