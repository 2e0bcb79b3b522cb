// Package book holds the file record that flows through the build pipeline.
package book

import (
	"bytes"
	"errors"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	foundationerrors "git.home.luguber.info/inful/bookbuilder/internal/foundation/errors"
)

// ErrMalformedDocument indicates the contents could not be parsed into a document tree.
var ErrMalformedDocument = errors.New("malformed document")

// Part identifies the part a file belongs to. Parts are matched by label.
type Part struct {
	Label string
}

// File is one source document on its way through the stages.
//
// Contents is mutated in place by stages. The parsed document is created on
// demand by Document and is dropped whenever Contents is replaced through
// SetContents, so no stage can observe a stale tree.
type File struct {
	// RelativePath is the file's identity and the base of its links ("intro.html").
	RelativePath string
	// SourcePath is the absolute path the file was read from.
	SourcePath string
	Contents   []byte

	FrontMatter  map[string]any
	PageLocals   map[string]any
	LayoutLocals map[string]any

	Part       *Part
	ParentPart *Part

	doc *goquery.Document
}

// New creates a file record with empty local bags.
func New(relativePath string, contents []byte) *File {
	return &File{
		RelativePath: relativePath,
		Contents:     contents,
		FrontMatter:  map[string]any{},
		PageLocals:   map[string]any{},
		LayoutLocals: map[string]any{},
	}
}

// Ext returns the lower-cased extension of RelativePath.
func (f *File) Ext() string {
	return strings.ToLower(path.Ext(f.RelativePath))
}

// SetExt swaps the extension of RelativePath (ext includes the dot).
func (f *File) SetExt(ext string) {
	f.RelativePath = strings.TrimSuffix(f.RelativePath, path.Ext(f.RelativePath)) + ext
}

// SetContents replaces the contents and invalidates the parsed document.
func (f *File) SetContents(b []byte) {
	f.Contents = b
	f.doc = nil
}

// Document returns the parsed document, parsing Contents on first use.
func (f *File) Document() (*goquery.Document, error) {
	if f.doc != nil {
		return f.doc, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(f.Contents))
	if err != nil {
		return nil, foundationerrors.WrapError(ErrMalformedDocument, foundationerrors.CategoryDocument, "failed to parse document").
			WithContext("file", f.RelativePath).
			WithContext("cause", err.Error()).
			Build()
	}
	f.doc = doc
	return doc, nil
}

// HasDocument reports whether a parsed document is currently attached.
func (f *File) HasDocument() bool { return f.doc != nil }

// InvalidateDocument drops the attached parsed document.
func (f *File) InvalidateDocument() { f.doc = nil }

// CommitDocument serializes the attached document back into Contents after
// in-place DOM edits. The document stays attached because it matches the new
// contents. Fragments (contents without an <html> element) are written back
// as the inner HTML of body.
func (f *File) CommitDocument() error {
	if !f.HasDocument() {
		return nil
	}
	var (
		out string
		err error
	)
	if isFullDocument(f.Contents) {
		out, err = f.doc.Html()
	} else {
		out, err = f.doc.Find("body").First().Html()
	}
	if err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryDocument, "failed to serialize document").
			WithContext("file", f.RelativePath).Build()
	}
	f.Contents = []byte(out)
	return nil
}

// PartLabel returns the label of the enclosing part or "".
func (f *File) PartLabel() string {
	if f.Part == nil {
		return ""
	}
	return f.Part.Label
}

func isFullDocument(b []byte) bool {
	head := bytes.ToLower(b[:min(len(b), 512)])
	return bytes.Contains(head, []byte("<html")) || bytes.Contains(head, []byte("<!doctype"))
}

// PageIncludes returns the include directories the page's frontmatter lists
// under includes, accepting a single string or a list.
func (f *File) PageIncludes() []string {
	page, _ := f.PageLocals["page"].(map[string]any)
	switch v := page["includes"].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
