package git

import (
	"context"
	"errors"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"

	foundationerrors "git.home.luguber.info/inful/bookbuilder/internal/foundation/errors"
)

// classify turns go-git errors into classified git errors. Failures that
// can succeed on a later attempt are marked retryable.
func classify(err error, op, url string) error {
	if err == nil {
		return nil
	}
	if _, ok := foundationerrors.AsClassified(err); ok {
		return err
	}

	b := foundationerrors.WrapError(err, foundationerrors.CategoryGit, "git "+op+" failed").
		WithContext("op", op).
		WithContext("url", url)

	l := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired), errors.Is(err, transport.ErrAuthorizationFailed),
		strings.Contains(l, "authentication"), strings.Contains(l, "not authorized"):
		b.Fatal().UserAction()
	case errors.Is(err, transport.ErrRepositoryNotFound), strings.Contains(l, "not found"):
		b.Fatal().UserAction()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// cancelled by the caller; not retried
	case strings.Contains(l, "timeout"), strings.Contains(l, "connection reset"),
		strings.Contains(l, "remote hung up"), strings.Contains(l, "no route to host"),
		strings.Contains(l, "too many requests"):
		b.Retryable()
	}
	return b.Build()
}

func isTransient(err error) bool {
	ce, ok := foundationerrors.AsClassified(err)
	return ok && ce.CanRetry()
}
