package toc

import (
	"github.com/PuerkitoBio/goquery"

	"git.home.luguber.info/inful/bookbuilder/internal/book"
	"git.home.luguber.info/inful/bookbuilder/internal/config"
)

const sectionSelector = "section[data-type], div[data-type='part']"

var headingTags = []string{"h1", "h2", "h3", "h4", "h5"}

// LinkBase returns the prefix of section links for f. Single-document
// formats link to anchors within the one output document.
func LinkBase(cfg *config.Build, f *book.File) string {
	if cfg.SingleDocument() {
		return ""
	}
	return f.RelativePath
}

// ExtractSections returns the section tree of one page. The walk starts at
// body when present and only follows section elements that are direct
// children of the previous level. Sections of an unknown type are skipped
// with everything inside them. The document is not modified.
func ExtractSections(doc *goquery.Document, linkBase string) []Node {
	root := doc.Selection
	if body := doc.Find("body").First(); body.Length() > 0 {
		root = body
	}
	return sectionsOf(root, linkBase)
}

func sectionsOf(parent *goquery.Selection, linkBase string) []Node {
	nodes := []Node{}
	parent.ChildrenFiltered(sectionSelector).Each(func(_ int, s *goquery.Selection) {
		typ, _ := s.Attr("data-type")
		level, ok := LevelOf(typ)
		if !ok {
			return
		}
		id, _ := s.Attr("id")
		section := &Section{
			ID:       id,
			Type:     typ,
			Label:    label(s),
			Href:     linkBase + "#" + id,
			Level:    level,
			Children: []Node{},
		}
		if level <= MaxLevel {
			section.Children = sectionsOf(s, linkBase)
		}
		nodes = append(nodes, section)
	})
	return nodes
}

// label finds the heading of a section: the highest ranked h1..h5 directly
// under the section's header element, or directly under the section when it
// has no header.
func label(s *goquery.Selection) *string {
	scope := s
	if header := s.ChildrenFiltered("header"); header.Length() > 0 {
		scope = header
	}
	for _, tag := range headingTags {
		if h := scope.ChildrenFiltered(tag); h.Length() > 0 {
			text := h.First().Text()
			return &text
		}
	}
	return nil
}
