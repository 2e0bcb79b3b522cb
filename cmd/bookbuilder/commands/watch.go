package commands

import (
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/bookbuilder/internal/build"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Format []string `short:"f" help:"Build only these formats (repeatable)"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	logger := slog.Default()
	svc, flush := newService(cfg, root, logger)

	ctx, cancel := signalContext()
	defer cancel()

	watcher := build.NewWatcher(svc, build.BuildRequest{Config: cfg, Formats: w.Format, Sync: true}, logger)
	out := g.out()
	watcher.OnBuild = func(res *build.BuildResult, err error) {
		flush()
		if err == nil {
			printResult(out, res)
		}
	}
	if err := watcher.Run(ctx); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	logger.Info("Watch stopped")
	return nil
}
