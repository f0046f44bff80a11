// ABOUTME: Helpers for the chat client's markup: text windows, line breaks, Markdown help
// ABOUTME: Help documents are embedded Markdown rendered to HTML with goldmark

package builtins

import (
	"bytes"
	"embed"
	"html"
	"strings"

	"github.com/yuin/goldmark"
)

//go:embed docs/*.md
var docsFS embed.FS

// Window returns a clickable link that opens content in a text window.
func Window(label, content string) string {
	return `<a href="text://` + strings.ReplaceAll(content, `"`, "&quot;") + `">` +
		html.EscapeString(label) + `</a>`
}

// Break returns n line breaks.
func Break(n int) string {
	return strings.Repeat("<br>", n)
}

// RenderMarkdown converts Markdown to the HTML subset shown in text windows.
// On conversion failure the source is returned escaped.
func RenderMarkdown(src string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(src), &buf); err != nil {
		return html.EscapeString(src)
	}
	out := strings.TrimSpace(buf.String())
	return strings.ReplaceAll(out, ">\n<", "><")
}

// doc returns the embedded help document for a command, or "".
func doc(name string) string {
	data, err := docsFS.ReadFile("docs/" + name + ".md")
	if err != nil {
		return ""
	}
	return string(data)
}
