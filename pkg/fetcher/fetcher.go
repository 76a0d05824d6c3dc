// Package fetcher defines the storage capability the traversal engine talks
// to. A Fetcher turns QueryRequests into scored edges; the engine never knows
// which storage engine sits behind it.
//
// Bundled backends implement the smaller Source contract (raw adjacency
// reads) and are adapted into Fetchers by SourceFetcher, which applies the
// shared scoring/filtering pipeline and the partial-failure policy:
//
//   - an error wrapping ErrUnavailable fails the whole Fetches call;
//   - any other per-request error becomes a failed, empty StepResult and is logged.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/sanonone/kektorgraph/pkg/query"
)

var (
	// ErrClosed is returned by Fetches after Close.
	ErrClosed = errors.New("fetcher: closed")
	// ErrNotReady is returned by Fetches before a successful Init.
	ErrNotReady = errors.New("fetcher: not initialized")
	// ErrUnavailable marks a backend that cannot be reached. It is fatal for the traversal.
	ErrUnavailable = errors.New("fetcher: backend unavailable")
	// ErrConfiguration marks an Init failure caused by bad configuration.
	ErrConfiguration = errors.New("fetcher: configuration error")
)

// Fetcher is the pluggable edge backend.
//
// Fetches must return exactly one StepResult per request, in request order,
// and must not modify reqs or prev. Implementations must be safe for
// concurrent use by many traversals.
type Fetcher interface {
	Init(ctx context.Context, cfg Config) error
	Fetches(ctx context.Context, reqs []query.Request, prev query.PrevEdges) ([]query.StepResult, error)
	Close() error
}

// Config holds the named options of one backend instance.
type Config map[string]any

// String returns the option as a string, or def when absent.
func (c Config) String(key, def string) string {
	v, ok := c[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Int returns the option as an int, or def when absent.
func (c Config) Int(key string, def int) (int, error) {
	v, ok := c[key]
	if !ok || v == nil {
		return def, nil
	}
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case uint64:
		return int(x), nil
	case float64:
		return int(x), nil
	case string:
		n, err := strconv.Atoi(x)
		if err != nil {
			return def, fmt.Errorf("%w: option %q: %w", ErrConfiguration, key, err)
		}
		return n, nil
	}
	return def, fmt.Errorf("%w: option %q: unsupported type %T", ErrConfiguration, key, v)
}

// Bool returns the option as a bool, or def when absent.
func (c Config) Bool(key string, def bool) (bool, error) {
	v, ok := c[key]
	if !ok || v == nil {
		return def, nil
	}
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(x)
		if err != nil {
			return def, fmt.Errorf("%w: option %q: %w", ErrConfiguration, key, err)
		}
		return b, nil
	}
	return def, fmt.Errorf("%w: option %q: unsupported type %T", ErrConfiguration, key, v)
}

// Duration accepts Go duration strings ("250ms") or integer seconds.
func (c Config) Duration(key string, def time.Duration) (time.Duration, error) {
	v, ok := c[key]
	if !ok || v == nil {
		return def, nil
	}
	switch x := v.(type) {
	case time.Duration:
		return x, nil
	case string:
		d, err := time.ParseDuration(x)
		if err != nil {
			return def, fmt.Errorf("%w: option %q: %w", ErrConfiguration, key, err)
		}
		return d, nil
	case int:
		return time.Duration(x) * time.Second, nil
	case float64:
		return time.Duration(x * float64(time.Second)), nil
	}
	return def, fmt.Errorf("%w: option %q: unsupported type %T", ErrConfiguration, key, v)
}

// Lifecycle states of Base.
const (
	stateNew int32 = iota
	stateReady
	stateClosed
)

// Base provides the default no-op Init and the use-after-close guard.
// Embed it and call Check at the top of Fetches and MarkClosed in Close.
type Base struct {
	state atomic.Int32
}

// Init marks the fetcher ready. Re-initializing a ready fetcher is a no-op;
// initializing a closed one fails.
func (b *Base) Init(context.Context, Config) error {
	if b.state.Load() == stateClosed {
		return ErrClosed
	}
	b.state.Store(stateReady)
	return nil
}

// MarkReady moves a new fetcher to the ready state.
func (b *Base) MarkReady() {
	b.state.CompareAndSwap(stateNew, stateReady)
}

// MarkClosed moves the fetcher to the closed state. It returns false when it
// was already closed, so callers release resources only once.
func (b *Base) MarkClosed() bool {
	return b.state.Swap(stateClosed) != stateClosed
}

// Check fails fast when the fetcher is not usable.
func (b *Base) Check() error {
	switch b.state.Load() {
	case stateReady:
		return nil
	case stateClosed:
		return ErrClosed
	default:
		return ErrNotReady
	}
}

// Close marks the fetcher closed. It is idempotent.
func (b *Base) Close() error {
	b.MarkClosed()
	return nil
}
