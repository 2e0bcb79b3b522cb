package toc

import (
	"errors"
	"sync"

	"git.home.luguber.info/inful/bookbuilder/internal/book"
	foundationerrors "git.home.luguber.info/inful/bookbuilder/internal/foundation/errors"
)

// ErrUnknownParentPart is returned when a file introduces a part whose parent
// part no earlier file introduced.
var ErrUnknownParentPart = errors.New("parent part has not been introduced")

type observation struct {
	file     string
	part     *book.Part
	parent   *book.Part
	sections []Node
}

// Aggregator collects the section trees of one build's files and assembles
// them into the book's table of contents. It must not be shared between builds.
type Aggregator struct {
	mu      sync.Mutex
	entries []observation
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Observe records the sections of f. Files must be observed in book order.
func (a *Aggregator) Observe(f *book.File, sections []Node) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, observation{
		file:     f.RelativePath,
		part:     f.Part,
		parent:   f.ParentPart,
		sections: sections,
	})
}

// Len returns the number of observed files.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// Assemble builds the table of contents from every observation in order.
// Files without a part contribute to the root. Files in a part contribute to
// the first part with that label found depth first; a part seen for the
// first time is created under its parent part, which an earlier file must
// have introduced, or under the root.
func (a *Aggregator) Assemble() (*Document, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	doc := &Document{Type: "book", Children: []Node{}}
	for _, e := range a.entries {
		if e.part == nil {
			doc.Children = append(doc.Children, e.sections...)
			continue
		}
		group, err := findOrCreatePart(doc, e)
		if err != nil {
			return nil, err
		}
		group.Children = append(group.Children, e.sections...)
	}
	return doc, nil
}

func findOrCreatePart(doc *Document, e observation) (*PartGroup, error) {
	if found := findPart(doc.Children, e.part.Label); found != nil {
		return found, nil
	}
	group := &PartGroup{Label: e.part.Label, Children: []Node{}}
	if e.parent == nil {
		doc.Children = append(doc.Children, group)
		return group, nil
	}
	parent := findPart(doc.Children, e.parent.Label)
	if parent == nil {
		return nil, foundationerrors.WrapError(ErrUnknownParentPart, foundationerrors.CategoryBuild, "part references an unknown parent part").
			Fatal().
			WithContext("file", e.file).
			WithContext("part", e.part.Label).
			WithContext("parent", e.parent.Label).
			Build()
	}
	parent.Children = append(parent.Children, group)
	return group, nil
}

func findPart(nodes []Node, label string) *PartGroup {
	for _, n := range nodes {
		group, ok := n.(*PartGroup)
		if !ok {
			continue
		}
		if group.Label == label {
			return group
		}
		if found := findPart(group.Children, label); found != nil {
			return found
		}
	}
	return nil
}
