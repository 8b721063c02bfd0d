// Package render turns assistant Markdown into sanitized HTML for clients
// that do not render Markdown themselves.
package render

import (
	"bytes"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

var (
	md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
	)
	policy = bluemonday.UGCPolicy()
)

// HTML converts Markdown to HTML and strips anything unsafe. If conversion
// fails the escaped source is returned inside a paragraph.
func HTML(markdown string) string {
	if strings.TrimSpace(markdown) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "<p>" + html.EscapeString(markdown) + "</p>"
	}
	return string(policy.SanitizeBytes(buf.Bytes()))
}

// Text returns plain HTML-escaped text with line breaks, for user messages.
func Text(s string) string {
	return strings.ReplaceAll(html.EscapeString(s), "\n", "<br>\n")
}
