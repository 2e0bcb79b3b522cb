package markdown

import (
	"bytes"
	"strconv"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var headingLevels = map[atom.Atom]int{
	atom.H1: 1, atom.H2: 2, atom.H3: 3, atom.H4: 4, atom.H5: 5, atom.H6: 6,
}

// Sectionize wraps every top-level heading and the content following it in a
// section element typed by heading depth: h1 opens a chapter, h2 a sect1,
// down to h6 which opens a sect5. A heading closes every open section of the
// same or a deeper level. An id on the heading moves to its section.
func Sectionize(fragment []byte) ([]byte, error) {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(bytes.NewReader(fragment), context)
	if err != nil {
		return nil, err
	}

	type open struct {
		level int
		node  *html.Node
	}
	var (
		roots []*html.Node
		stack []open
	)
	place := func(n *html.Node) {
		if len(stack) == 0 {
			roots = append(roots, n)
			return
		}
		stack[len(stack)-1].node.AppendChild(n)
	}

	for _, n := range nodes {
		level, ok := headingLevels[n.DataAtom]
		if n.Type != html.ElementNode || !ok {
			place(n)
			continue
		}
		for len(stack) > 0 && stack[len(stack)-1].level >= level {
			stack = stack[:len(stack)-1]
		}
		section := &html.Node{
			Type:     html.ElementNode,
			Data:     "section",
			DataAtom: atom.Section,
			Attr:     []html.Attribute{{Key: "data-type", Val: sectionType(level)}},
		}
		if id, ok := takeAttr(n, "id"); ok {
			section.Attr = append(section.Attr, html.Attribute{Key: "id", Val: id})
		}
		place(section)
		section.AppendChild(n)
		stack = append(stack, open{level: level, node: section})
	}

	var buf bytes.Buffer
	for _, n := range roots {
		if err := html.Render(&buf, n); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func sectionType(level int) string {
	if level == 1 {
		return "chapter"
	}
	return "sect" + strconv.Itoa(level-1)
}

func takeAttr(n *html.Node, key string) (string, bool) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return a.Val, true
		}
	}
	return "", false
}
