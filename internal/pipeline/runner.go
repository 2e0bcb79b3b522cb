package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/bookbuilder/internal/book"
	"git.home.luguber.info/inful/bookbuilder/internal/config"
	foundationerrors "git.home.luguber.info/inful/bookbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/bookbuilder/internal/logfields"
	"git.home.luguber.info/inful/bookbuilder/internal/metrics"
)

// Runner executes a registry's stages against one set of files.
type Runner struct {
	registry *Registry
	logger   *slog.Logger
	recorder metrics.Recorder
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger handed to stages.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(rec metrics.Recorder) Option {
	return func(r *Runner) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// NewRunner creates a runner for registry.
func NewRunner(registry *Registry, opts ...Option) *Runner {
	r := &Runner{
		registry: registry,
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Result describes a finished run.
type Result struct {
	BuildID  string
	Files    []*book.File
	Duration time.Duration
}

// Run invokes every stage in registry order and returns the files the last
// stage emitted. Stages are invoked one after another, never concurrently.
// Any per-file failure fails the whole run. No timeout is applied; pass a
// context with a deadline to bound the run.
func (r *Runner) Run(ctx context.Context, cfg *config.Build, files []*book.File) (*Result, error) {
	start := time.Now()
	buildID := uuid.NewString()
	logger := r.logger.With(logfields.BuildID(buildID), logfields.Format(cfg.Format))
	x := newExtras(ctx, buildID, cfg.Format, logger, r.recorder)
	defer x.finish()

	result, err := r.run(x, cfg, files)
	duration := time.Since(start)
	r.recorder.ObserveBuildDuration(cfg.Format, duration)
	if err != nil {
		r.recorder.IncBuildOutcome(metrics.OutcomeFailed)
		logger.Error("Build failed", logfields.Error(err), logfields.DurationMS(float64(duration.Milliseconds())))
		return nil, err
	}
	r.recorder.IncBuildOutcome(metrics.OutcomeSuccess)
	r.recorder.AddFilesProcessed(cfg.Format, len(result))
	logger.Info("Build completed", logfields.Files(len(result)), logfields.DurationMS(float64(duration.Milliseconds())))
	return &Result{BuildID: buildID, Files: result, Duration: duration}, nil
}

func (r *Runner) run(x *Extras, cfg *config.Build, files []*book.File) ([]*book.File, error) {
	stream := FromSlice(x, files)
	for _, st := range r.registry.Stages() {
		x.Logger.Debug("Running stage", logfields.Stage(st.Name))
		t0 := time.Now()
		next, err := st.Handler(x.Context(), cfg, stream, x)
		r.recorder.ObserveStageDuration(st.Name, time.Since(t0))
		if err == nil && next == nil {
			err = foundationerrors.InternalError("stage returned no stream").WithContext("stage", st.Name).Build()
		}
		if err != nil {
			r.recorder.IncStageResult(st.Name, metrics.ResultFatal)
			return nil, r.abort(x, err)
		}
		r.recorder.IncStageResult(st.Name, metrics.ResultSuccess)
		stream = next
	}

	out, err := Collect(x.Context(), stream)
	if err != nil {
		return nil, r.abort(x, err)
	}
	// Producers whose output a stage abandoned are still blocked on send;
	// release them. Their cancellation is not a failure.
	x.finish()
	if err := x.wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// abort stops all per-file work and picks the error to report: a recorded
// per-file failure takes precedence over the error the stage returned, which
// is often just the cancellation it observed.
func (r *Runner) abort(x *Extras, stageErr error) error {
	x.cancel(stageErr)
	if err := x.wait(); err != nil {
		return err
	}
	return stageErr
}
