// Package toc builds the book's table of contents.
//
// Sections are extracted per file while files stream through the pipeline,
// assembled into one book-wide tree once every file has been seen, and
// rendered into the pages in place of a placeholder token inserted before
// templating ran.
package toc

// PlaceholderToken is bound to "toc" in the template locals until the real
// table of contents can be rendered.
const PlaceholderToken = "MBINSERT:TOC"

// MaxLevel is the deepest level whose nested sections are kept.
const MaxLevel = 3

var levels = map[string]int{
	"chapter":         0,
	"appendix":        0,
	"afterword":       0,
	"bibliography":    0,
	"glossary":        0,
	"preface":         0,
	"foreword":        0,
	"introduction":    0,
	"acknowledgments": 0,
	"conclusion":      0,
	"part":            0,
	"index":           0,
	"sect1":           1,
	"sect2":           2,
	"sect3":           3,
	"sect4":           4,
	"sect5":           5,
}

// LevelOf returns the level of a section type and whether the type is known.
func LevelOf(sectionType string) (int, bool) {
	l, ok := levels[sectionType]
	return l, ok
}

// Node is an entry of the table of contents.
type Node interface {
	NodeType() string
	Title() string
	Link() string
	Nodes() []Node
}

// Section is a section of one page.
type Section struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	// Label is nil when the section has no heading.
	Label    *string `json:"label,omitempty"`
	Href     string  `json:"href"`
	Level    int     `json:"level"`
	Children []Node  `json:"children"`
}

func (s *Section) NodeType() string { return s.Type }
func (s *Section) Link() string     { return s.Href }
func (s *Section) Nodes() []Node    { return s.Children }

func (s *Section) Title() string {
	if s.Label == nil {
		return ""
	}
	return *s.Label
}

// PartGroup groups the sections of every file belonging to one part.
// Parts are identified by label.
type PartGroup struct {
	Label    string `json:"label"`
	Children []Node `json:"children"`
}

func (p *PartGroup) NodeType() string { return "part" }
func (p *PartGroup) Title() string    { return p.Label }
func (p *PartGroup) Link() string     { return "" }
func (p *PartGroup) Nodes() []Node    { return p.Children }

// Document is the assembled table of contents of a book.
type Document struct {
	Type     string `json:"type"`
	Children []Node `json:"children"`
}

// Count returns the number of sections in the tree, parts excluded.
func (d *Document) Count() int {
	return count(d.Children)
}

func count(nodes []Node) int {
	n := 0
	for _, node := range nodes {
		if _, ok := node.(*Section); ok {
			n++
		}
		n += count(node.Nodes())
	}
	return n
}
