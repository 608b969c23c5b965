// ABOUTME: Markdown rendering for agent replies
// ABOUTME: Converts workflow reply text to HTML for the transcript

package web

import (
	"bytes"
	"html/template"

	"github.com/yuin/goldmark"
)

// renderMarkdown converts reply text to HTML. On conversion failure the
// raw text is escaped so the transcript still shows something.
func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String())
}
