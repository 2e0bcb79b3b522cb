// Package markdown converts Markdown page bodies into sectioned HTML.
package markdown

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

var converter = goldmark.New(
	goldmark.WithExtensions(extension.GFM, extension.Footnote),
	goldmark.WithParserOptions(parser.WithAttribute()),
	// Pages are trusted book sources and routinely carry raw HTML.
	goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
)

// Convert renders a Markdown body (frontmatter already removed) to HTML.
func Convert(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := converter.Convert(body, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ToSections converts body and wraps the result into heading sections.
func ToSections(body []byte) ([]byte, error) {
	out, err := Convert(body)
	if err != nil {
		return nil, err
	}
	return Sectionize(out)
}
