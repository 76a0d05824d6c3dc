package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/sanonone/kektorgraph/pkg/fetcher"
	"github.com/sanonone/kektorgraph/pkg/metadata"
	"github.com/sanonone/kektorgraph/pkg/query"
)

var (
	// ErrTimeout is returned when a traversal exceeds its timeout. It also
	// matches context.DeadlineExceeded.
	ErrTimeout = errors.New("traversal timed out")
	// ErrClosed is returned by Traverse after Close.
	ErrClosed = errors.New("engine closed")

	errResultCount = errors.New("fetcher returned a wrong number of results")
)

// Kind classifies a traversal failure.
type Kind string

const (
	KindInvalid       Kind = "invalid"
	KindConfiguration Kind = "configuration"
	KindUnavailable   Kind = "unavailable"
	KindTimeout       Kind = "timeout"
	KindCanceled      Kind = "canceled"
	KindClosed        Kind = "closed"
	KindInternal      Kind = "internal"
)

// TraversalError is the single terminal failure of a traversal.
type TraversalError struct {
	Kind Kind
	// Step is the failing step index, -1 before the first step.
	Step int
	// Backend names the failing backend, if any.
	Backend string
	Err     error
}

func (e *TraversalError) Error() string {
	msg := "traversal failed"
	if e.Step >= 0 {
		msg += fmt.Sprintf(" at step %d", e.Step)
	}
	if e.Backend != "" {
		msg += fmt.Sprintf(" (backend %q)", e.Backend)
	}
	return msg + ": " + string(e.Kind) + ": " + e.Err.Error()
}

func (e *TraversalError) Unwrap() error { return e.Err }

// KindOf returns the kind of a traversal error, or "" for other errors.
func KindOf(err error) Kind {
	var te *TraversalError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

func invalid(step int, err error) *TraversalError {
	return &TraversalError{Kind: KindInvalid, Step: step, Err: err}
}

// contextError reports why ctx ended.
func contextError(ctx context.Context, step int) *TraversalError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TraversalError{Kind: KindTimeout, Step: step, Err: fmt.Errorf("%w: %w", ErrTimeout, context.DeadlineExceeded)}
	}
	return &TraversalError{Kind: KindCanceled, Step: step, Err: ctx.Err()}
}

// partitionError classifies a failed Fetches call. Every partition failure
// is fatal; the kind only tells the caller why.
func partitionError(step int, backend string, err error) *TraversalError {
	te := &TraversalError{Step: step, Backend: backend, Err: err}
	switch {
	case errors.Is(err, fetcher.ErrClosed):
		te.Kind = KindClosed
	case errors.Is(err, fetcher.ErrConfiguration), errors.Is(err, fetcher.ErrNotReady):
		te.Kind = KindConfiguration
	case errors.Is(err, errResultCount):
		te.Kind = KindInternal
	case errors.Is(err, query.ErrInvalid), errors.Is(err, metadata.ErrUnknownLabel):
		te.Kind = KindInvalid
	default:
		te.Kind = KindUnavailable
	}
	return te
}
