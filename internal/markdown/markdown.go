package markdown

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//nolint:gochecknoglobals // Stateless renderer shared by all requests.
var renderer = goldmark.New(
	goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
)

// ToHTML renders summary markdown as HTML. Raw HTML in the source is not
// passed through, so the result is safe to embed in a page.
func ToHTML(source string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := renderer.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}

	return template.HTML(buf.String()), nil //nolint:gosec // goldmark omits raw HTML by default
}
