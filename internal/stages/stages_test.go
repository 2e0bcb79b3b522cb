package stages

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bookbuilder/internal/book"
	"git.home.luguber.info/inful/bookbuilder/internal/config"
	"git.home.luguber.info/inful/bookbuilder/internal/pipeline"
	"git.home.luguber.info/inful/bookbuilder/internal/toc"
)

func run(t *testing.T, cfg *config.Build, files ...*book.File) (*pipeline.Result, error) {
	t.Helper()
	r := pipeline.NewRegistry()
	require.NoError(t, r.Use(Defaults{}, toc.Plugin{}))
	return pipeline.NewRunner(r).Run(context.Background(), cfg, files)
}

func only(t *testing.T, name string, h pipeline.Handler, cfg *config.Build, files ...*book.File) []*book.File {
	t.Helper()
	r := pipeline.NewRegistry()
	require.NoError(t, r.Register(name, h))
	res, err := pipeline.NewRunner(r).Run(context.Background(), cfg, files)
	require.NoError(t, err)
	return res.Files
}

func TestDefaultStageOrder(t *testing.T) {
	r := pipeline.NewRegistry()
	require.NoError(t, r.Use(Defaults{}, toc.Plugin{}))
	assert.Equal(t, []string{
		"frontmatter", "toc:placeholders", "liquid", "markdown", "ids",
		"toc:generate", "layouts", "toc:insert", "manifest", "write",
	}, r.Names())
}

func TestFrontmatterStage(t *testing.T) {
	files := only(t, "frontmatter", Frontmatter, &config.Build{},
		book.New("a.md", []byte("---\ntitle: Intro\n---\n# Body\n")),
		book.New("b.md", []byte("# No frontmatter\n")),
	)
	assert.Equal(t, "# Body\n", string(files[0].Contents))
	assert.Equal(t, "Intro", files[0].FrontMatter["title"])
	assert.Equal(t, map[string]any{"title": "Intro"}, files[0].PageLocals["page"])
	assert.Equal(t, map[string]any{"title": "Intro"}, files[0].LayoutLocals["page"])
	assert.Equal(t, "# No frontmatter\n", string(files[1].Contents))
	assert.Empty(t, files[1].FrontMatter)
}

func TestFrontmatterStageRejectsUnclosedBlock(t *testing.T) {
	r := pipeline.NewRegistry()
	require.NoError(t, r.Register("frontmatter", Frontmatter))
	_, err := pipeline.NewRunner(r).Run(context.Background(), &config.Build{}, []*book.File{book.New("a.md", []byte("---\ntitle: x\n"))})
	require.Error(t, err)
}

func TestLiquidStage(t *testing.T) {
	f := book.New("a.md", []byte("{{ .page.title }} in {{ .book.title }} ({{ .format }})"))
	f.PageLocals["page"] = map[string]any{"title": "Intro"}
	files := only(t, "liquid", Liquid, &config.Build{Title: "My Book", Format: "html"}, f)
	assert.Equal(t, "Intro in My Book (html)", string(files[0].Contents))
}

func TestMarkdownStage(t *testing.T) {
	files := only(t, "markdown", Markdown, &config.Build{},
		book.New("chapters/one.md", []byte("# One\n\ntext\n")),
		book.New("raw.html", []byte("<p>raw</p>")),
	)
	assert.Equal(t, "chapters/one.html", files[0].RelativePath)
	assert.Contains(t, string(files[0].Contents), `<section data-type="chapter"><h1>One</h1>`)
	assert.Equal(t, "raw.html", files[1].RelativePath)
	assert.Equal(t, "<p>raw</p>", string(files[1].Contents))
}

func TestIDsStage(t *testing.T) {
	f := book.New("a.html", []byte(`<section data-type="chapter"><h1>Café Crème</h1>`+
		`<section data-type="sect1"><h2>Setup</h2></section><section data-type="sect1"><h2>Setup</h2></section>`+
		`<section data-type="sect1" id="keep"><h2>Kept</h2></section><section data-type="sect2"></section></section>`))
	files := only(t, "ids", IDs, &config.Build{}, f)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(files[0].Contents)))
	require.NoError(t, err)
	var ids []string
	doc.Find("section").Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("id")
		ids = append(ids, id)
	})
	assert.Equal(t, []string{"cafe-creme", "setup", "setup-1", "keep", "sect2"}, ids)
	assert.NotContains(t, string(files[0].Contents), "<html>")
}

func TestSlugify(t *testing.T) {
	for in, want := range map[string]string{
		"First Heading":        "first-heading",
		"  Ünïcödé -- Tïtle! ": "unicode-title",
		"1.2 Setup":            "1-2-setup",
		"???":                  "",
	} {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestLayoutsStage(t *testing.T) {
	dir := t.TempDir()
	layout := filepath.Join(dir, "layout.html")
	require.NoError(t, os.WriteFile(layout, []byte(`<html><title>{{ .page.title }}</title><body>{{ .content }}</body></html>`), 0o600))

	f := book.New("a.html", []byte("<p>hi</p>"))
	f.LayoutLocals["page"] = map[string]any{"title": "A"}
	files := only(t, "layouts", Layouts, &config.Build{Layout: layout}, f)
	assert.Equal(t, `<html><title>A</title><body><p>hi</p></body></html>`, string(files[0].Contents))

	files = only(t, "layouts", Layouts, &config.Build{}, book.New("b.html", []byte("<p>plain</p>")))
	assert.Equal(t, "<p>plain</p>", string(files[0].Contents))
}

func TestLayoutsStageMissingLayout(t *testing.T) {
	r := pipeline.NewRegistry()
	require.NoError(t, r.Register("layouts", Layouts))
	_, err := pipeline.NewRunner(r).Run(context.Background(), &config.Build{Layout: filepath.Join(t.TempDir(), "nope.html")}, nil)
	require.Error(t, err)
}

func writeBook(t *testing.T) (string, []*book.File) {
	t.Helper()
	root := t.TempDir()
	layout := filepath.Join(root, "layout.html")
	require.NoError(t, os.WriteFile(layout, []byte(`<html><body>{{ .toc }}{{ .content }}</body></html>`), 0o600))
	return layout, []*book.File{
		book.New("first-chapter.md", []byte("---\ntitle: First\n---\n# First Heading\n\nSome text.\n\n## Details\n")),
		book.New("second-chapter.md", []byte("# Second Heading\n\n- item one\n- item two\n")),
	}
}

func TestBuildHTML(t *testing.T) {
	layout, files := writeBook(t)
	dest := filepath.Join(t.TempDir(), "html")
	res, err := run(t, &config.Build{Title: "Book", Format: config.FormatHTML, Layout: layout, Destination: dest}, files...)
	require.NoError(t, err)
	require.Len(t, res.Files, 2)

	first, err := os.ReadFile(filepath.Join(dest, "first-chapter.html"))
	require.NoError(t, err)
	assert.NotContains(t, string(first), toc.PlaceholderToken)
	assert.Contains(t, string(first), `<a href="first-chapter.html#first-heading">First Heading</a>`)
	assert.Contains(t, string(first), `<a href="first-chapter.html#details">Details</a>`)
	assert.Contains(t, string(first), `<a href="second-chapter.html#second-heading">Second Heading</a>`)
	assert.Contains(t, string(first), `<section data-type="chapter" id="first-heading">`)

	data, err := os.ReadFile(filepath.Join(dest, ManifestFile))
	require.NoError(t, err)
	var m BuildManifest
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, res.BuildID, m.BuildID)
	assert.Equal(t, "html", m.Format)
	require.Len(t, m.Files, 2)
	assert.Equal(t, "first-chapter.html", m.Files[0].Path)
	assert.NotEmpty(t, m.Files[0].Fingerprint)
	assert.NotEqual(t, m.Files[0].Fingerprint, m.Files[1].Fingerprint)
}

func TestBuildPDF(t *testing.T) {
	_, files := writeBook(t)
	dest := filepath.Join(t.TempDir(), "pdf")
	_, err := run(t, &config.Build{Title: "Book", Format: config.FormatPDF, Destination: dest}, files...)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dest, PDFFile))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF-"))
	_, err = os.Stat(filepath.Join(dest, "first-chapter.html"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dest, ManifestFile))
	assert.NoError(t, err)
}

func TestWriteRejectsEscapingPaths(t *testing.T) {
	r := pipeline.NewRegistry()
	require.NoError(t, r.Register("write", Write))
	_, err := pipeline.NewRunner(r).Run(context.Background(), &config.Build{Destination: t.TempDir()},
		[]*book.File{book.New("../escape.html", []byte("x"))})
	require.Error(t, err)
}

func TestWriteSkipsOutputWhenAFileFails(t *testing.T) {
	boom := errors.New("boom")
	r := pipeline.NewRegistry()
	require.NoError(t, r.Register("fail", func(_ context.Context, _ *config.Build, in pipeline.Stream, x *pipeline.Extras) (pipeline.Stream, error) {
		return pipeline.Map(x, in, func(_ context.Context, f *book.File) error {
			if f.RelativePath == "b.html" {
				return boom
			}
			return nil
		}), nil
	}))
	require.NoError(t, r.Register("manifest", Manifest))
	require.NoError(t, r.Register("write", Write))
	runner := pipeline.NewRunner(r, pipeline.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	root := t.TempDir()
	for i := 0; i < 500; i++ {
		dest := filepath.Join(root, strconv.Itoa(i))
		files := []*book.File{
			book.New("a.html", []byte("<p>a</p>")),
			book.New("b.html", []byte("<p>b</p>")),
			book.New("c.html", []byte("<p>c</p>")),
		}
		_, err := runner.Run(context.Background(), &config.Build{Format: config.FormatHTML, Destination: dest}, files)
		require.ErrorIs(t, err, boom)
		_, err = os.Stat(dest)
		require.True(t, os.IsNotExist(err), "run %d wrote output", i)
	}
}
