package stages

import (
	"context"

	"git.home.luguber.info/inful/bookbuilder/internal/book"
	"git.home.luguber.info/inful/bookbuilder/internal/config"
	foundationerrors "git.home.luguber.info/inful/bookbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/bookbuilder/internal/frontmatter"
	"git.home.luguber.info/inful/bookbuilder/internal/pipeline"
)

// Frontmatter strips YAML frontmatter from every page and exposes its
// fields to templates as page.
func Frontmatter(_ context.Context, _ *config.Build, in pipeline.Stream, x *pipeline.Extras) (pipeline.Stream, error) {
	return pipeline.Map(x, in, func(_ context.Context, f *book.File) error {
		page, err := frontmatter.Parse(f.Contents)
		if err != nil {
			return foundationerrors.WrapError(err, foundationerrors.CategoryDocument, "invalid frontmatter").
				WithContext("file", f.RelativePath).Build()
		}
		f.FrontMatter = page.Fields
		if f.PageLocals == nil {
			f.PageLocals = map[string]any{}
		}
		if f.LayoutLocals == nil {
			f.LayoutLocals = map[string]any{}
		}
		f.PageLocals["page"] = page.Fields
		f.LayoutLocals["page"] = page.Fields
		if page.Had {
			f.SetContents(page.Body)
		}
		return nil
	}), nil
}
