package commands

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/bookbuilder/internal/build"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Format []string `short:"f" help:"Build only these formats (repeatable)"`
	NoSync bool     `name:"no-sync" help:"Build the existing git checkout without pulling"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	svc, flush := newService(cfg, root, slog.Default())
	defer flush()

	ctx, cancel := signalContext()
	defer cancel()

	res, err := svc.Run(ctx, build.BuildRequest{Config: cfg, Formats: b.Format, Sync: !b.NoSync})
	if err != nil {
		return err
	}
	printResult(g.out(), res)
	return nil
}

func printResult(w io.Writer, res *build.BuildResult) {
	for _, f := range res.Formats {
		_, _ = fmt.Fprintf(w, "%-5s %3d files -> %s (%s)\n", f.Format, f.Files, f.Destination, f.Duration.Round(time.Millisecond))
	}
	if res.Head != "" {
		_, _ = fmt.Fprintf(w, "source commit %s\n", res.Head)
	}
}
