package toc

import (
	"bytes"
	"context"
	"log/slog"

	"git.home.luguber.info/inful/bookbuilder/internal/book"
	"git.home.luguber.info/inful/bookbuilder/internal/config"
	foundationerrors "git.home.luguber.info/inful/bookbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/bookbuilder/internal/logfields"
	"git.home.luguber.info/inful/bookbuilder/internal/pipeline"
	"git.home.luguber.info/inful/bookbuilder/internal/render"
)

// Stage names registered by Plugin.
const (
	StagePlaceholders = "toc:placeholders"
	StageGenerate     = "toc:generate"
	StageInsert       = "toc:insert"
)

// tocTemplate renders the toc.html include, which the include directories
// may override.
const tocTemplate = `{{ include "toc.html" . }}`

type aggregatorKey struct{}

// Plugin adds the table of contents stages around the built-in liquid, ids
// and layouts stages.
type Plugin struct{}

// Register implements pipeline.Plugin.
func (Plugin) Register(r *pipeline.Registry) error {
	if err := r.Before(pipeline.StageLiquid, StagePlaceholders, insertPlaceholders); err != nil {
		return err
	}
	if err := r.After(pipeline.StageIDs, StageGenerate, generate); err != nil {
		return err
	}
	return r.After(pipeline.StageLayouts, StageInsert, insert)
}

// insertPlaceholders binds toc to the placeholder token so templates
// rendered before the table of contents exists emit the token instead.
func insertPlaceholders(_ context.Context, _ *config.Build, in pipeline.Stream, x *pipeline.Extras) (pipeline.Stream, error) {
	return pipeline.Map(x, in, func(_ context.Context, f *book.File) error {
		if f.PageLocals == nil {
			f.PageLocals = map[string]any{}
		}
		if f.LayoutLocals == nil {
			f.LayoutLocals = map[string]any{}
		}
		f.PageLocals["toc"] = PlaceholderToken
		f.LayoutLocals["toc"] = PlaceholderToken
		return nil
	}), nil
}

// generate extracts every page's sections into a fresh aggregator for this build.
func generate(_ context.Context, cfg *config.Build, in pipeline.Stream, x *pipeline.Extras) (pipeline.Stream, error) {
	agg := NewAggregator()
	x.Store(aggregatorKey{}, agg)
	return pipeline.Map(x, in, func(_ context.Context, f *book.File) error {
		doc, err := f.Document()
		if err != nil {
			return err
		}
		agg.Observe(f, ExtractSections(doc, LinkBase(cfg, f)))
		return nil
	}), nil
}

// insert waits for every page, assembles the table of contents and
// replaces the placeholder token in each page that contains it.
func insert(ctx context.Context, cfg *config.Build, in pipeline.Stream, x *pipeline.Extras) (pipeline.Stream, error) {
	v, ok := x.Load(aggregatorKey{})
	if !ok {
		return nil, foundationerrors.InternalError("table of contents was not generated").
			WithContext("stage", StageInsert).Build()
	}
	agg := v.(*Aggregator)

	files, err := pipeline.Collect(ctx, in)
	if err != nil {
		return nil, err
	}
	doc, err := agg.Assemble()
	if err != nil {
		return nil, err
	}
	x.Recorder.SetTOCEntries(cfg.Format, doc.Count())
	x.Logger.Debug("Assembled table of contents",
		logfields.Stage(StageInsert),
		logfields.Files(len(files)),
		slog.Int("observed", agg.Len()),
		slog.Int("entries", doc.Count()))

	tpl, err := render.Compile("toc", tocTemplate)
	if err != nil {
		return nil, err
	}
	return pipeline.Map(x, pipeline.FromSlice(x, files), func(_ context.Context, f *book.File) error {
		return Substitute(f, tpl, doc, cfg.IncludesFor(f.PageIncludes()))
	}), nil
}

// Substitute replaces every occurrence of the placeholder token in f with
// the rendered table of contents. Files without the token are left alone.
func Substitute(f *book.File, tpl *render.Template, doc *Document, includes []string) error {
	token := []byte(PlaceholderToken)
	if !bytes.Contains(f.Contents, token) {
		return nil
	}
	out, err := tpl.Render(map[string]any{"toc": doc}, includes)
	if err != nil {
		if ce, ok := foundationerrors.AsClassified(err); ok {
			return ce.WithContext("file", f.RelativePath)
		}
		return err
	}
	f.Contents = bytes.ReplaceAll(f.Contents, token, []byte(out))
	f.InvalidateDocument()
	return nil
}
