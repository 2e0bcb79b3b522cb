// Package stages holds the built-in build stages.
package stages

import (
	"maps"

	"git.home.luguber.info/inful/bookbuilder/internal/book"
	"git.home.luguber.info/inful/bookbuilder/internal/config"
	"git.home.luguber.info/inful/bookbuilder/internal/pipeline"
)

// Defaults registers the built-in stages in build order.
type Defaults struct{}

// Register implements pipeline.Plugin.
func (Defaults) Register(r *pipeline.Registry) error {
	for _, st := range []pipeline.Stage{
		{Name: pipeline.StageFrontmatter, Handler: Frontmatter},
		{Name: pipeline.StageLiquid, Handler: Liquid},
		{Name: pipeline.StageMarkdown, Handler: Markdown},
		{Name: pipeline.StageIDs, Handler: IDs},
		{Name: pipeline.StageLayouts, Handler: Layouts},
		{Name: pipeline.StageManifest, Handler: Manifest},
		{Name: pipeline.StageWrite, Handler: Write},
	} {
		if err := r.Register(st.Name, st.Handler); err != nil {
			return err
		}
	}
	return nil
}

func bookLocals(cfg *config.Build) map[string]any {
	return map[string]any{"title": cfg.Title}
}

// templateLocals merges the file's bag with the locals every template sees.
func templateLocals(cfg *config.Build, f *book.File, bag map[string]any) map[string]any {
	locals := make(map[string]any, len(bag)+3)
	maps.Copy(locals, bag)
	locals["book"] = bookLocals(cfg)
	locals["format"] = cfg.Format
	if _, ok := locals["page"]; !ok {
		locals["page"] = f.FrontMatter
	}
	return locals
}

func isMarkdown(f *book.File) bool {
	switch f.Ext() {
	case ".md", ".markdown":
		return true
	}
	return false
}
