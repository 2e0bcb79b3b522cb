package pipeline

import (
	"context"

	"git.home.luguber.info/inful/bookbuilder/internal/book"
)

// Stream is the sequence of file records flowing between two stages. The
// producer closes it once every file has been sent.
type Stream <-chan *book.File

// FromSlice streams files in order.
func FromSlice(x *Extras, files []*book.File) Stream {
	out := make(chan *book.File)
	x.produce(out, func(ctx context.Context) error {
		for _, f := range files {
			select {
			case out <- f:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	return out
}

// Map applies fn to every file of in and forwards it. Files leave in the
// order they arrive. An error from fn fails the build.
func Map(x *Extras, in Stream, fn func(ctx context.Context, f *book.File) error) Stream {
	out := make(chan *book.File)
	x.produce(out, func(ctx context.Context) error {
		for {
			var (
				f  *book.File
				ok bool
			)
			select {
			case f, ok = <-in:
				if !ok {
					return nil
				}
			case <-ctx.Done():
				return ctx.Err()
			}
			if err := fn(ctx, f); err != nil {
				return err
			}
			select {
			case out <- f:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})
	return out
}

// Collect drains in. It returns only once the producer closed the stream, so
// the result holds every upstream file in stream order. A producer that fails
// cancels ctx before closing its stream, so a failure anywhere upstream is
// reported as the cancellation cause rather than as a short slice.
func Collect(ctx context.Context, in Stream) ([]*book.File, error) {
	var files []*book.File
	for {
		select {
		case f, ok := <-in:
			if !ok {
				if ctx.Err() != nil {
					return nil, context.Cause(ctx)
				}
				return files, nil
			}
			files = append(files, f)
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		}
	}
}
