package build

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"git.home.luguber.info/inful/bookbuilder/internal/config"
	foundationerrors "git.home.luguber.info/inful/bookbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/bookbuilder/internal/git"
	"git.home.luguber.info/inful/bookbuilder/internal/logfields"
	"git.home.luguber.info/inful/bookbuilder/internal/metrics"
	"git.home.luguber.info/inful/bookbuilder/internal/pipeline"
	"git.home.luguber.info/inful/bookbuilder/internal/stages"
	"git.home.luguber.info/inful/bookbuilder/internal/toc"
)

// DefaultBuildService builds every format with the built-in stages and the
// table of contents plugin, plus any extra plugins.
type DefaultBuildService struct {
	logger   *slog.Logger
	recorder metrics.Recorder
	plugins  []pipeline.Plugin
}

// NewBuildService creates a DefaultBuildService.
func NewBuildService() *DefaultBuildService {
	return &DefaultBuildService{
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
	}
}

// WithLogger sets the logger.
func (s *DefaultBuildService) WithLogger(l *slog.Logger) *DefaultBuildService {
	if l != nil {
		s.logger = l
	}
	return s
}

// WithRecorder sets the metrics recorder.
func (s *DefaultBuildService) WithRecorder(r metrics.Recorder) *DefaultBuildService {
	if r != nil {
		s.recorder = r
	}
	return s
}

// WithPlugins adds plugins registered after the built-in stages.
func (s *DefaultBuildService) WithPlugins(p ...pipeline.Plugin) *DefaultBuildService {
	s.plugins = append(s.plugins, p...)
	return s
}

// Registry returns a fresh registry holding every stage of a build.
func (s *DefaultBuildService) Registry() (*pipeline.Registry, error) {
	r := pipeline.NewRegistry()
	plugins := append([]pipeline.Plugin{stages.Defaults{}, toc.Plugin{}}, s.plugins...)
	if err := r.Use(plugins...); err != nil {
		return nil, err
	}
	return r, nil
}

// Run implements BuildService. Formats are built one after another, each
// from freshly loaded files and with its own registry.
func (s *DefaultBuildService) Run(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	result := &BuildResult{StartTime: time.Now()}
	finish := func(status BuildStatus, err error) (*BuildResult, error) {
		result.Status = status
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime)
		return result, err
	}
	if req.Config == nil {
		return finish(BuildStatusFailed, foundationerrors.ValidationError("build request has no configuration").Build())
	}
	cfg := req.Config

	if req.Sync && cfg.Git != nil && cfg.Git.URL != "" {
		client := git.NewClient(*cfg.Git, cfg.Resolve(cfg.Git.Dir), s.logger)
		_, head, err := client.Sync(ctx)
		if err != nil {
			return finish(statusFor(err), err)
		}
		result.Head = head
	}

	formats := cfg.EnabledFormats
	if len(req.Formats) > 0 {
		formats = req.Formats
	}
	for _, format := range formats {
		if !slices.Contains(config.KnownFormats(), format) {
			return finish(BuildStatusFailed, foundationerrors.ValidationError("unsupported output format").
				WithContext("format", format).Build())
		}
	}

	for _, format := range formats {
		fr, err := s.buildFormat(ctx, req, format)
		if err != nil {
			return finish(statusFor(err), err)
		}
		result.Formats = append(result.Formats, *fr)
		result.FilesProcessed += fr.Files
	}
	return finish(BuildStatusSuccess, nil)
}

func (s *DefaultBuildService) buildFormat(ctx context.Context, req BuildRequest, format string) (*FormatResult, error) {
	files, err := LoadFiles(req.Config)
	if err != nil {
		return nil, err
	}
	registry, err := s.Registry()
	if err != nil {
		return nil, err
	}
	bc := req.Config.ForFormat(format)
	s.logger.Info("Building format", logfields.Format(format), logfields.Files(len(files)), logfields.Path(bc.Destination))

	runner := pipeline.NewRunner(registry, pipeline.WithLogger(s.logger), pipeline.WithRecorder(s.recorder))
	res, err := runner.Run(ctx, bc, files)
	if err != nil {
		return nil, err
	}
	return &FormatResult{
		Format:      format,
		BuildID:     res.BuildID,
		Destination: bc.Destination,
		Files:       len(res.Files),
		Duration:    res.Duration,
	}, nil
}

func statusFor(err error) BuildStatus {
	if errors.Is(err, context.Canceled) {
		return BuildStatusCancelled
	}
	return BuildStatusFailed
}
