package stages

import (
	"context"
	"os"

	"git.home.luguber.info/inful/bookbuilder/internal/book"
	"git.home.luguber.info/inful/bookbuilder/internal/config"
	foundationerrors "git.home.luguber.info/inful/bookbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/bookbuilder/internal/logfields"
	"git.home.luguber.info/inful/bookbuilder/internal/pipeline"
	"git.home.luguber.info/inful/bookbuilder/internal/render"
)

// Layouts wraps every page in the format's layout template. The page's
// rendered HTML is available as content. Without a layout pages are left
// unwrapped.
func Layouts(_ context.Context, cfg *config.Build, in pipeline.Stream, x *pipeline.Extras) (pipeline.Stream, error) {
	if cfg.Layout == "" {
		return in, nil
	}
	src, err := os.ReadFile(cfg.Layout)
	if err != nil {
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "failed to read layout").
			WithContext("path", cfg.Layout).Build()
	}
	tpl, err := render.Compile(cfg.Layout, string(src))
	if err != nil {
		return nil, err
	}
	x.Logger.Debug("Using layout", logfields.Path(cfg.Layout))

	return pipeline.Map(x, in, func(_ context.Context, f *book.File) error {
		locals := templateLocals(cfg, f, f.LayoutLocals)
		locals["content"] = string(f.Contents)
		out, err := tpl.Render(locals, cfg.IncludesFor(f.PageIncludes()))
		if err != nil {
			return withFile(err, f)
		}
		f.SetContents([]byte(out))
		return nil
	}), nil
}
