package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sanonone/kektorgraph/pkg/core/types"
	"github.com/sanonone/kektorgraph/pkg/metrics"
	"github.com/sanonone/kektorgraph/pkg/query"
)

// Source is the raw adjacency read a storage backend provides. dir is
// always types.Out or types.In; returned edges are oriented from v.
type Source interface {
	Neighbors(ctx context.Context, v types.VertexID, label string, dir types.Direction) ([]types.Edge, error)
	Close() error
}

// EdgeWriter is implemented by sources that accept bulk loads.
type EdgeWriter interface {
	AddEdges(edges []types.Edge) error
}

// Opener builds a Source from backend options. It runs inside Init.
type Opener func(ctx context.Context, cfg Config) (Source, error)

// SourceFetcher adapts a Source into a Fetcher.
//
// Options read at Init:
//
//	workers          max concurrent Neighbors calls per Fetches call (default GOMAXPROCS*4)
//	cache_max_items  enables the neighbor cache when > 0
//	cache_ttl        cache entry lifetime (default 1m)
type SourceFetcher struct {
	Base

	name    string
	open    Opener
	src     Source
	workers int
	logger  *slog.Logger
}

// NewSourceFetcher returns an uninitialized fetcher named name (used in logs
// and metrics) that opens its Source with open.
func NewSourceFetcher(name string, open Opener, logger *slog.Logger) *SourceFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SourceFetcher{name: name, open: open, logger: logger.With("backend", name)}
}

// WrapSource returns a ready fetcher over an already opened Source.
func WrapSource(name string, src Source, logger *slog.Logger) *SourceFetcher {
	f := NewSourceFetcher(name, nil, logger)
	f.src = src
	f.workers = defaultWorkers()
	f.MarkReady()
	return f
}

func defaultWorkers() int {
	return runtime.GOMAXPROCS(0) * 4
}

// Init opens the Source. Any failure is reported as ErrConfiguration.
func (f *SourceFetcher) Init(ctx context.Context, cfg Config) error {
	switch err := f.Check(); {
	case err == nil:
		return nil
	case errors.Is(err, ErrClosed):
		return err
	}
	workers, err := cfg.Int("workers", defaultWorkers())
	if err != nil {
		return err
	}
	if workers <= 0 {
		return fmt.Errorf("%w: backend %q: workers must be positive", ErrConfiguration, f.name)
	}
	cacheItems, err := cfg.Int("cache_max_items", 0)
	if err != nil {
		return err
	}
	cacheTTL, err := cfg.Duration("cache_ttl", time.Minute)
	if err != nil {
		return err
	}

	src, err := f.open(ctx, cfg)
	if err != nil {
		if errors.Is(err, ErrConfiguration) {
			return fmt.Errorf("backend %q: %w", f.name, err)
		}
		return fmt.Errorf("%w: backend %q: %w", ErrConfiguration, f.name, err)
	}
	if cacheItems > 0 {
		cached, err := Cached(src, CacheOptions{MaxItems: int64(cacheItems), TTL: cacheTTL})
		if err != nil {
			src.Close()
			return fmt.Errorf("%w: backend %q: %w", ErrConfiguration, f.name, err)
		}
		src = cached
	}
	f.src = src
	f.workers = workers
	f.MarkReady()
	return nil
}

// Source returns the underlying Source, nil before Init.
func (f *SourceFetcher) Source() Source { return f.src }

// Fetches runs every request against the Source with bounded concurrency.
// Results land at their request's index, so completion order never leaks
// into the output.
func (f *SourceFetcher) Fetches(ctx context.Context, reqs []query.Request, prev query.PrevEdges) ([]query.StepResult, error) {
	if err := f.Check(); err != nil {
		return nil, err
	}
	results := make([]query.StepResult, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)
	for i := range reqs {
		req := reqs[i]
		g.Go(func() error {
			res, err := f.fetchOne(gctx, req, prev)
			if err != nil {
				if errors.Is(err, ErrUnavailable) || gctx.Err() != nil {
					return err
				}
				f.logger.Warn("Request failed, continuing with partial step",
					"vertex", req.Vertex.Key(), "label", req.Param.Label, "error", err)
				metrics.FailedRequestsTotal.WithLabelValues(f.name).Inc()
				res = query.Failure(err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (f *SourceFetcher) fetchOne(ctx context.Context, req query.Request, prev query.PrevEdges) (query.StepResult, error) {
	var dirs []types.Direction
	switch req.Param.Direction {
	case types.In:
		dirs = []types.Direction{types.In}
	case types.Both:
		dirs = []types.Direction{types.Out, types.In}
	default:
		dirs = []types.Direction{types.Out}
	}

	var cands []types.Edge
	for _, d := range dirs {
		edges, err := f.src.Neighbors(ctx, req.Vertex, req.Param.Label, d)
		if err != nil {
			return query.StepResult{}, err
		}
		cands = append(cands, edges...)
	}

	edges, degree, err := req.Param.Select(req, cands, prev)
	if err != nil {
		return query.StepResult{}, err
	}
	return query.StepResult{
		Edges:   edges,
		Degrees: map[types.VertexID]int{req.Vertex: degree},
	}, nil
}

// Close releases the Source once.
func (f *SourceFetcher) Close() error {
	if !f.MarkClosed() {
		return nil
	}
	if f.src == nil {
		return nil
	}
	return f.src.Close()
}

// Writer returns the bulk-load side of f's Source, looking through the
// neighbor cache. Cached reads see new edges once their entries expire.
func Writer(f Fetcher) (EdgeWriter, bool) {
	sf, ok := f.(*SourceFetcher)
	if !ok || sf.src == nil {
		return nil, false
	}
	src := sf.src
	if c, ok := src.(*cachedSource); ok {
		src = c.Source
	}
	w, ok := src.(EdgeWriter)
	return w, ok
}
