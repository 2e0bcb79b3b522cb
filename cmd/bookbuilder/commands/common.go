package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/bookbuilder/internal/build"
	"git.home.luguber.info/inful/bookbuilder/internal/config"
	"git.home.luguber.info/inful/bookbuilder/internal/logfields"
	"git.home.luguber.info/inful/bookbuilder/internal/metrics"
)

// Global carries what every command shares.
type Global struct {
	Logger *slog.Logger
	// Out receives user-facing output.
	Out io.Writer
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// CLI definition & global flags.
type CLI struct {
	Config          string           `short:"c" help:"Configuration file path" default:"book.yaml"`
	Verbose         bool             `short:"v" help:"Enable verbose logging"`
	MetricsTextfile string           `name:"metrics-textfile" help:"Write Prometheus metrics to this file after every build (overrides metrics.textfile)"`
	Version         kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build  BuildCmd  `cmd:"" help:"Build the book in every enabled format"`
	Watch  WatchCmd  `cmd:"" help:"Build, then rebuild whenever the sources change"`
	Init   InitCmd   `cmd:"" help:"Initialize a new configuration file"`
	Stages StagesCmd `cmd:"" help:"Print the effective stage order"`
}

// AfterApply runs after flag parsing; the config's logging section refines
// the logger once it is loaded.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	slog.SetDefault(config.LoggingConfig{}.NewLogger(os.Stderr, c.Verbose))
	return nil
}

// loadConfig reads the configuration and installs its logger.
func loadConfig(g *Global, root *CLI) (*config.Config, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logging.NewLogger(os.Stderr, root.Verbose)
	slog.SetDefault(logger)
	if g != nil {
		g.Logger = logger
	}
	return cfg, nil
}

// newService wires the build service. When a metrics textfile is configured
// the returned flush writes the gathered metrics to it; otherwise it is a no-op.
func newService(cfg *config.Config, root *CLI, logger *slog.Logger) (*build.DefaultBuildService, func()) {
	svc := build.NewBuildService().WithLogger(logger)

	path := root.MetricsTextfile
	if path == "" {
		path = cfg.Resolve(cfg.Metrics.Textfile)
	}
	if path == "" {
		return svc, func() {}
	}
	reg := prom.NewRegistry()
	svc.WithRecorder(metrics.NewPrometheusRecorder(reg))
	return svc, func() {
		if err := metrics.WriteTextfile(path, reg); err != nil {
			logger.Warn("Failed to write metrics", logfields.Path(path), logfields.Error(err))
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
