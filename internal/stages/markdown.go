package stages

import (
	"context"

	"git.home.luguber.info/inful/bookbuilder/internal/book"
	"git.home.luguber.info/inful/bookbuilder/internal/config"
	foundationerrors "git.home.luguber.info/inful/bookbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/bookbuilder/internal/markdown"
	"git.home.luguber.info/inful/bookbuilder/internal/pipeline"
)

// Markdown converts Markdown pages into sectioned HTML and renames them to
// .html. Other pages pass through.
func Markdown(_ context.Context, _ *config.Build, in pipeline.Stream, x *pipeline.Extras) (pipeline.Stream, error) {
	return pipeline.Map(x, in, func(_ context.Context, f *book.File) error {
		if !isMarkdown(f) {
			return nil
		}
		out, err := markdown.ToSections(f.Contents)
		if err != nil {
			return foundationerrors.WrapError(err, foundationerrors.CategoryDocument, "failed to convert markdown").
				WithContext("file", f.RelativePath).Build()
		}
		f.SetContents(out)
		f.SetExt(".html")
		return nil
	}), nil
}
