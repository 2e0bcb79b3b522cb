package toc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bookbuilder/internal/book"
	"git.home.luguber.info/inful/bookbuilder/internal/config"
	"git.home.luguber.info/inful/bookbuilder/internal/pipeline"
	"git.home.luguber.info/inful/bookbuilder/internal/render"
)

func passthrough(_ context.Context, _ *config.Build, in pipeline.Stream, _ *pipeline.Extras) (pipeline.Stream, error) {
	return in, nil
}

// registryWithPlugin mimics the built-in stages with a liquid stage that
// writes the bound toc local into the page.
func registryWithPlugin(t *testing.T) *pipeline.Registry {
	t.Helper()
	r := pipeline.NewRegistry()
	require.NoError(t, r.Register(pipeline.StageLiquid, func(_ context.Context, _ *config.Build, in pipeline.Stream, x *pipeline.Extras) (pipeline.Stream, error) {
		return pipeline.Map(x, in, func(_ context.Context, f *book.File) error {
			tok, _ := f.PageLocals["toc"].(string)
			f.SetContents([]byte(strings.ReplaceAll(string(f.Contents), "{{ toc }}", tok)))
			return nil
		}), nil
	}))
	require.NoError(t, r.Register(pipeline.StageIDs, passthrough))
	require.NoError(t, r.Register(pipeline.StageLayouts, passthrough))
	require.NoError(t, r.Use(Plugin{}))
	return r
}

func TestPluginStageOrder(t *testing.T) {
	r := registryWithPlugin(t)
	assert.Equal(t, []string{StagePlaceholders, pipeline.StageLiquid, pipeline.StageIDs, StageGenerate, pipeline.StageLayouts, StageInsert}, r.Names())
}

func TestPluginRequiresAnchors(t *testing.T) {
	err := pipeline.NewRegistry().Use(Plugin{})
	assert.True(t, errors.Is(err, pipeline.ErrUnknownStage))
}

func TestPluginBuildsAndInsertsTOC(t *testing.T) {
	first := book.New("first-chapter.html", []byte(`{{ toc }}<section data-type="chapter" id="ch1"><h1>First Heading</h1></section>`))
	second := book.New("second-chapter.html", []byte(`<section data-type="chapter" id="ch2"><h1>Second Heading</h1></section>`))

	res, err := pipeline.NewRunner(registryWithPlugin(t)).Run(context.Background(), &config.Build{Format: config.FormatHTML}, []*book.File{first, second})
	require.NoError(t, err)
	require.Len(t, res.Files, 2)
	assert.Equal(t, "first-chapter.html", res.Files[0].RelativePath)
	assert.Equal(t, "second-chapter.html", res.Files[1].RelativePath)

	out := string(res.Files[0].Contents)
	assert.NotContains(t, out, PlaceholderToken)
	assert.Contains(t, out, `<a href="first-chapter.html#ch1">First Heading</a>`)
	assert.Contains(t, out, `<a href="second-chapter.html#ch2">Second Heading</a>`)
	assert.NotContains(t, string(res.Files[1].Contents), "<nav")
	assert.Equal(t, PlaceholderToken, res.Files[1].LayoutLocals["toc"])
}

func TestPluginPDFLinksAreDocumentLocal(t *testing.T) {
	f := book.New("intro.html", []byte(`{{ toc }}<section data-type="chapter" id="intro"><h1>Intro</h1></section>`))
	res, err := pipeline.NewRunner(registryWithPlugin(t)).Run(context.Background(), &config.Build{Format: config.FormatPDF}, []*book.File{f})
	require.NoError(t, err)
	assert.Contains(t, string(res.Files[0].Contents), `<a href="#intro">Intro</a>`)
}

func TestPluginUnknownParentFailsBuild(t *testing.T) {
	f := book.New("b.html", []byte(`<section data-type="chapter" id="b"></section>`))
	f.Part = &book.Part{Label: "B"}
	f.ParentPart = &book.Part{Label: "A"}
	_, err := pipeline.NewRunner(registryWithPlugin(t)).Run(context.Background(), &config.Build{Format: config.FormatHTML}, []*book.File{f})
	require.ErrorIs(t, err, ErrUnknownParentPart)
}

func TestSubstituteEveryOccurrence(t *testing.T) {
	tpl, err := render.Compile("toc", tocTemplate)
	require.NoError(t, err)
	label := "One"
	doc := &Document{Type: "book", Children: []Node{&Section{ID: "one", Type: "chapter", Label: &label, Href: "a.html#one"}}}

	f := book.New("a.html", []byte("x "+PlaceholderToken+" y "+PlaceholderToken+" z "+PlaceholderToken))
	_, err = f.Document()
	require.NoError(t, err)
	require.NoError(t, Substitute(f, tpl, doc, nil))

	out := string(f.Contents)
	assert.Equal(t, 0, strings.Count(out, PlaceholderToken))
	assert.Equal(t, 3, strings.Count(out, `<nav data-type="toc">`))
	assert.False(t, f.HasDocument())
}

func TestSubstituteWithoutTokenLeavesFile(t *testing.T) {
	tpl, err := render.Compile("toc", tocTemplate)
	require.NoError(t, err)
	f := book.New("a.html", []byte("no token"))
	_, err = f.Document()
	require.NoError(t, err)
	require.NoError(t, Substitute(f, tpl, &Document{Type: "book"}, []string{"/does/not/exist"}))
	assert.Equal(t, "no token", string(f.Contents))
	assert.True(t, f.HasDocument())
}

func TestSubstituteUsesPageIncludes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "toc.html"), []byte(`custom:{{ len .toc.Children }}`), 0o600))

	cfg := &config.Build{Root: "/", Liquid: config.LiquidConfig{Includes: []string{t.TempDir()}}}
	f := book.New("a.html", []byte(PlaceholderToken))
	f.PageLocals["page"] = map[string]any{"includes": []any{dir}}

	tpl, err := render.Compile("toc", tocTemplate)
	require.NoError(t, err)
	require.NoError(t, Substitute(f, tpl, &Document{Type: "book", Children: []Node{}}, cfg.IncludesFor(f.PageIncludes())))
	assert.Equal(t, "custom:0", string(f.Contents))
}

func TestSubstituteMissingIncludeFails(t *testing.T) {
	tpl, err := render.Compile("toc", `{{ include "missing.html" . }}`)
	require.NoError(t, err)
	f := book.New("a.html", []byte(PlaceholderToken))
	err = Substitute(f, tpl, &Document{Type: "book"}, nil)
	require.ErrorIs(t, err, render.ErrTemplateRender)
}
