package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bookbuilder/internal/book"
	"git.home.luguber.info/inful/bookbuilder/internal/config"
)

func testFiles(names ...string) []*book.File {
	files := make([]*book.File, 0, len(names))
	for _, n := range names {
		files = append(files, book.New(n, []byte(n)))
	}
	return files
}

func paths(files []*book.File) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.RelativePath)
	}
	return out
}

func appendStage(suffix string) Handler {
	return func(_ context.Context, _ *config.Build, in Stream, x *Extras) (Stream, error) {
		return Map(x, in, func(_ context.Context, f *book.File) error {
			f.SetContents(append(f.Contents, suffix...))
			return nil
		}), nil
	}
}

func TestRunnerAppliesStagesInOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("one", appendStage("-1")))
	require.NoError(t, r.Register("noop", passthrough))
	require.NoError(t, r.Register("two", appendStage("-2")))

	res, err := NewRunner(r).Run(context.Background(), &config.Build{Format: "html"}, testFiles("a", "b", "c"))
	require.NoError(t, err)
	require.Len(t, res.Files, 3)
	assert.Equal(t, []string{"a", "b", "c"}, paths(res.Files))
	for _, f := range res.Files {
		assert.Equal(t, f.RelativePath+"-1-2", string(f.Contents))
	}
	assert.NotEmpty(t, res.BuildID)
}

func TestRunnerInvokesHandlersSequentially(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	record := func(name string) Handler {
		return func(_ context.Context, _ *config.Build, in Stream, _ *Extras) (Stream, error) {
			mu.Lock()
			calls = append(calls, name)
			mu.Unlock()
			return in, nil
		}
	}
	r := NewRegistry()
	require.NoError(t, r.Register("b", record("b")))
	require.NoError(t, r.Before("b", "a", record("a")))
	require.NoError(t, r.After("b", "c", record("c")))

	_, err := NewRunner(r).Run(context.Background(), &config.Build{}, testFiles("x"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, calls)
}

func TestRunnerBarrierSeesEveryFile(t *testing.T) {
	var seen []string
	r := NewRegistry()
	require.NoError(t, r.Register("upper", appendStage("!")))
	require.NoError(t, r.Register("barrier", func(ctx context.Context, _ *config.Build, in Stream, x *Extras) (Stream, error) {
		files, err := Collect(ctx, in)
		if err != nil {
			return nil, err
		}
		seen = paths(files)
		for _, f := range files {
			if !bytes.HasSuffix(f.Contents, []byte("!")) {
				return nil, fmt.Errorf("%s reached the barrier before upstream finished", f.RelativePath)
			}
		}
		return FromSlice(x, files), nil
	}))

	res, err := NewRunner(r).Run(context.Background(), &config.Build{}, testFiles("1", "2", "3", "4"))
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4"}, seen)
	assert.Equal(t, seen, paths(res.Files))
}

func TestRunnerPerFileErrorFailsBuild(t *testing.T) {
	boom := errors.New("boom")
	var shortStreams atomic.Int32
	r := NewRegistry()
	require.NoError(t, r.Register("fail", func(_ context.Context, _ *config.Build, in Stream, x *Extras) (Stream, error) {
		return Map(x, in, func(_ context.Context, f *book.File) error {
			if f.RelativePath == "b" {
				return boom
			}
			return nil
		}), nil
	}))
	require.NoError(t, r.Register("barrier", func(ctx context.Context, _ *config.Build, in Stream, x *Extras) (Stream, error) {
		files, err := Collect(ctx, in)
		if err != nil {
			return nil, err
		}
		if len(files) != 3 {
			shortStreams.Add(1)
		}
		return FromSlice(x, files), nil
	}))
	require.NoError(t, r.Register("after", appendStage("x")))

	runner := NewRunner(r, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	const runs = 3000
	for i := 0; i < runs; i++ {
		res, err := runner.Run(context.Background(), &config.Build{}, testFiles("a", "b", "c"))
		require.ErrorIs(t, err, boom, "run %d", i)
		require.Nil(t, res)
	}
	assert.Zero(t, shortStreams.Load(), "barrier drained a stream missing the failed file without an error")
}

func TestCollectAfterProducerFailure(t *testing.T) {
	boom := errors.New("boom")
	for i := 0; i < 2000; i++ {
		x := newExtras(context.Background(), "id", "html", nil, nil)
		s := Map(x, FromSlice(x, testFiles("a", "b", "c")), func(_ context.Context, f *book.File) error {
			if f.RelativePath == "a" {
				return boom
			}
			return nil
		})
		files, err := Collect(x.Context(), s)
		require.ErrorIs(t, err, boom)
		require.Empty(t, files)
		require.ErrorIs(t, x.wait(), boom)
		x.finish()
	}
}

func TestRunnerStageErrorStopsPipeline(t *testing.T) {
	stageErr := errors.New("stage setup failed")
	called := false
	r := NewRegistry()
	require.NoError(t, r.Register("one", appendStage("-1")))
	require.NoError(t, r.Register("broken", func(context.Context, *config.Build, Stream, *Extras) (Stream, error) {
		return nil, stageErr
	}))
	require.NoError(t, r.Register("never", func(_ context.Context, _ *config.Build, in Stream, _ *Extras) (Stream, error) {
		called = true
		return in, nil
	}))

	_, err := NewRunner(r).Run(context.Background(), &config.Build{}, testFiles("a", "b"))
	require.ErrorIs(t, err, stageErr)
	assert.False(t, called)
}

func TestRunnerNilStreamIsAnError(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("nil", func(context.Context, *config.Build, Stream, *Extras) (Stream, error) {
		return nil, nil
	}))
	_, err := NewRunner(r).Run(context.Background(), &config.Build{}, testFiles("a"))
	require.Error(t, err)
}

func TestRunnerReplacedStreamReleasesUpstream(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("replace", func(_ context.Context, _ *config.Build, _ Stream, x *Extras) (Stream, error) {
		return FromSlice(x, testFiles("new")), nil
	}))

	done := make(chan struct{})
	var res *Result
	var err error
	go func() {
		defer close(done)
		res, err = NewRunner(r).Run(context.Background(), &config.Build{}, testFiles("a", "b"))
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not return")
	}
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, paths(res.Files))
}

func TestRunnerHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRegistry()
	require.NoError(t, r.Register("block", func(ctx context.Context, _ *config.Build, in Stream, _ *Extras) (Stream, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	_, err := NewRunner(r).Run(ctx, &config.Build{}, testFiles("a"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestExtrasStore(t *testing.T) {
	x := newExtras(context.Background(), "id", "html", nil, nil)
	defer x.finish()
	_, ok := x.Load("k")
	assert.False(t, ok)
	x.Store("k", 42)
	v, ok := x.Load("k")
	require.True(t, ok)
	assert.Equal(t, 42, v)
}
