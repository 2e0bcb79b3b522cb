package stages

import (
	"context"

	"git.home.luguber.info/inful/bookbuilder/internal/book"
	"git.home.luguber.info/inful/bookbuilder/internal/config"
	foundationerrors "git.home.luguber.info/inful/bookbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/bookbuilder/internal/pipeline"
	"git.home.luguber.info/inful/bookbuilder/internal/render"
)

// Liquid renders every page body as a template with the page locals.
func Liquid(_ context.Context, cfg *config.Build, in pipeline.Stream, x *pipeline.Extras) (pipeline.Stream, error) {
	return pipeline.Map(x, in, func(_ context.Context, f *book.File) error {
		out, err := render.String(f.RelativePath, string(f.Contents), templateLocals(cfg, f, f.PageLocals), cfg.IncludesFor(f.PageIncludes()))
		if err != nil {
			return withFile(err, f)
		}
		f.SetContents([]byte(out))
		return nil
	}), nil
}

func withFile(err error, f *book.File) error {
	if ce, ok := foundationerrors.AsClassified(err); ok {
		return ce.WithContext("file", f.RelativePath)
	}
	return err
}
