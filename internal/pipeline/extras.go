package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/bookbuilder/internal/book"
	"git.home.luguber.info/inful/bookbuilder/internal/metrics"
)

// errFinished cancels the build context once the final stream has been
// drained, releasing producers whose output a stage abandoned.
var errFinished = fmt.Errorf("build finished: %w", context.Canceled)

// Extras is the per-build context handed to every stage. It owns the
// goroutines doing per-file work and a small value store stages use to hand
// build-scoped state to later stages. Nothing in it outlives one Run.
type Extras struct {
	BuildID  string
	Format   string
	Logger   *slog.Logger
	Recorder metrics.Recorder

	ctx    context.Context
	cancel context.CancelCauseFunc
	group  errgroup.Group

	mu     sync.Mutex
	values map[any]any
	err    error
}

func newExtras(parent context.Context, buildID, format string, logger *slog.Logger, rec metrics.Recorder) *Extras {
	if logger == nil {
		logger = slog.Default()
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	ctx, cancel := context.WithCancelCause(parent)
	return &Extras{
		BuildID:  buildID,
		Format:   format,
		Logger:   logger,
		Recorder: rec,
		ctx:      ctx,
		cancel:   cancel,
		values:   map[any]any{},
	}
}

// Context is cancelled when any per-file goroutine fails or the build is
// aborted. context.Cause reports the failure.
func (x *Extras) Context() context.Context { return x.ctx }

// Go runs fn as part of the build. The first error fails the build and
// cancels Context.
func (x *Extras) Go(fn func(ctx context.Context) error) {
	x.group.Go(func() error {
		err := fn(x.ctx)
		if err != nil {
			x.fail(err)
		}
		return err
	})
}

// produce runs fn as part of the build and closes out when it returns. A
// failure is recorded and cancels Context before out is closed, so a
// consumer that sees the close can tell a failed stream from a complete one.
func (x *Extras) produce(out chan<- *book.File, fn func(ctx context.Context) error) {
	x.group.Go(func() error {
		err := fn(x.ctx)
		if err != nil {
			x.fail(err)
		}
		close(out)
		return err
	})
}

// fail records err as the build's error unless an earlier failure is
// already recorded, then cancels the build. Context errors seen after the
// build was cancelled are consequences, not causes, and are not recorded.
func (x *Extras) fail(err error) {
	x.mu.Lock()
	consequence := x.ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
	if x.err == nil && !consequence && !errors.Is(context.Cause(x.ctx), errFinished) {
		x.err = err
	}
	x.mu.Unlock()
	x.cancel(err)
}

// Err returns the error that failed the build: the first recorded per-file
// failure, or the cancellation cause of the parent context. It is nil while
// the build is healthy and after it finished normally.
func (x *Extras) Err() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.err != nil {
		return x.err
	}
	if cause := context.Cause(x.ctx); cause != nil && !errors.Is(cause, errFinished) {
		return cause
	}
	return nil
}

// finish releases every goroutine still blocked on an abandoned stream.
func (x *Extras) finish() { x.cancel(errFinished) }

// Store saves a build-scoped value.
func (x *Extras) Store(key, value any) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.values[key] = value
}

// Load returns a value saved with Store.
func (x *Extras) Load(key any) (any, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	v, ok := x.values[key]
	return v, ok
}

// wait blocks until every goroutine of the build returned and reports the
// build's error.
func (x *Extras) wait() error {
	_ = x.group.Wait()
	return x.Err()
}
