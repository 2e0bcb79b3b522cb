package render

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	foundationerrors "git.home.luguber.info/inful/bookbuilder/internal/foundation/errors"
)

func writeInclude(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func TestRenderLocals(t *testing.T) {
	out, err := String("page", `{{ .page.title | upcase }} {{ default "none" .missing }}`, map[string]any{
		"page": map[string]any{"title": "Intro"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "INTRO none", out)
}

func TestIncludeSearchOrder(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	writeInclude(t, second, "note.html", "second {{ . }}")
	writeInclude(t, second, "only.html", "only")
	writeInclude(t, first, "note.html", "first {{ . }}")

	out, err := String("page", `{{ include "note.html" "x" }}/{{ include "only.html" }}`, nil, []string{first, second})
	require.NoError(t, err)
	assert.Equal(t, "first x/only", out)
}

func TestNestedIncludes(t *testing.T) {
	dir := t.TempDir()
	writeInclude(t, dir, "outer.html", `[{{ include "parts/inner.html" .name }}]`)
	writeInclude(t, dir, "parts/inner.html", `{{ . }}`)

	out, err := String("page", `{{ include "outer.html" . }}`, map[string]any{"name": "n"}, []string{dir})
	require.NoError(t, err)
	assert.Equal(t, "[n]", out)
}

func TestIncludeRecursionIsBounded(t *testing.T) {
	dir := t.TempDir()
	writeInclude(t, dir, "loop.html", `{{ include "loop.html" . }}`)

	_, err := String("page", `{{ include "loop.html" . }}`, nil, []string{dir})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTemplateRender))
}

func TestMissingInclude(t *testing.T) {
	_, err := String("page", `{{ include "nope.html" . }}`, nil, []string{t.TempDir()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTemplateRender))
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryTemplate))
}

func TestIncludeRejectsEscapingNames(t *testing.T) {
	_, err := String("page", `{{ include "../secret.html" . }}`, nil, []string{t.TempDir()})
	require.ErrorIs(t, err, ErrTemplateRender)
}

func TestCompileError(t *testing.T) {
	_, err := Compile("broken", "{{ if }")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTemplateRender))
}

func TestCompiledTemplateIsReusable(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	writeInclude(t, first, "x.html", "one")
	writeInclude(t, second, "x.html", "two")

	tpl, err := Compile("page", `{{ include "x.html" }}`)
	require.NoError(t, err)
	a, err := tpl.Render(nil, []string{first})
	require.NoError(t, err)
	b, err := tpl.Render(nil, []string{second})
	require.NoError(t, err)
	assert.Equal(t, "one", a)
	assert.Equal(t, "two", b)
}

type node struct {
	typ, title, link string
	children         []any
}

func (n node) NodeType() string { return n.typ }
func (n node) Title() string    { return n.title }
func (n node) Link() string     { return n.link }
func (n node) Nodes() []any     { return n.children }

func TestBuiltinTOCInclude(t *testing.T) {
	doc := struct{ Children []any }{Children: []any{
		node{typ: "part", title: "Part <One>", children: []any{
			node{typ: "chapter", title: "Intro", link: "intro.html#intro"},
		}},
	}}
	out, err := String("toc", `{{ include "toc.html" . }}`, map[string]any{"toc": doc}, []string{t.TempDir()})
	require.NoError(t, err)
	assert.Contains(t, out, `<nav data-type="toc">`)
	assert.Contains(t, out, `<li data-type="part">Part &lt;One&gt;<ol>`)
	assert.Contains(t, out, `<a href="intro.html#intro">Intro</a>`)
}

func TestIncludeDirectoryOverridesBuiltin(t *testing.T) {
	dir := t.TempDir()
	writeInclude(t, dir, "toc.html", "custom")
	out, err := String("toc", `{{ include "toc.html" . }}`, nil, []string{dir})
	require.NoError(t, err)
	assert.Equal(t, "custom", out)
}
