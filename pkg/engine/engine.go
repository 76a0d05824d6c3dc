// Package engine executes traversals.
//
// An Engine owns a fetcher.Registry and a metadata.Directory. Traverse runs a
// Query step by step: every step fans its (vertex, param) requests out to the
// responsible backends concurrently, waits for all of them, merges the results
// in frontier order and derives the next frontier from the merged edges.
//
// Basic usage:
//
//	cfg, _ := config.LoadConfig("kektorgraph.yaml")
//	eng, err := engine.Open(ctx, cfg, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close()
//	res, err := eng.Traverse(ctx, q)
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sanonone/kektorgraph/pkg/config"
	"github.com/sanonone/kektorgraph/pkg/core/types"
	"github.com/sanonone/kektorgraph/pkg/fetcher"
	"github.com/sanonone/kektorgraph/pkg/metadata"
)

// Options configures an Engine.
type Options struct {
	// QueryTimeout bounds a traversal unless the Query sets its own. Zero disables it.
	QueryTimeout time.Duration

	// MaxFrontier caps the vertices expanded per step unless the Query sets
	// its own cap. Zero means unlimited.
	MaxFrontier int

	// MaintenanceInterval defines how often backends that support it compact
	// their storage. Zero disables background maintenance.
	MaintenanceInterval time.Duration

	Logger *slog.Logger
}

// DefaultOptions returns a 10s query timeout, no frontier cap and hourly maintenance.
func DefaultOptions() Options {
	return Options{
		QueryTimeout:        10 * time.Second,
		MaintenanceInterval: time.Hour,
	}
}

// Engine is safe for concurrent use. Use Close to release every backend.
type Engine struct {
	reg    *fetcher.Registry
	dir    metadata.Directory
	opts   Options
	logger *slog.Logger

	isClosed  atomic.Bool
	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
	wg        sync.WaitGroup
}

// New wraps an already populated registry. A nil dir accepts every label.
func New(reg *fetcher.Registry, dir metadata.Directory, opts Options) *Engine {
	if dir == nil {
		dir = metadata.Permissive{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	e := &Engine{
		reg:    reg,
		dir:    dir,
		opts:   opts,
		logger: opts.Logger,
		closed: make(chan struct{}),
	}
	if opts.MaintenanceInterval > 0 {
		e.wg.Add(1)
		go e.backgroundTasks()
	}
	return e
}

// Open builds the backends, label routes and metadata directory described by
// cfg. Any backend failing Init aborts Open with fetcher.ErrConfiguration and
// closes the backends opened so far.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", fetcher.ErrConfiguration, err)
	}

	reg := fetcher.NewRegistry(logger)
	fail := func(err error) (*Engine, error) {
		reg.Close()
		return nil, err
	}
	for _, b := range cfg.Backends {
		if err := reg.Open(ctx, b.Name, b.Type, fetcher.Config(b.Options)); err != nil {
			return fail(err)
		}
	}
	if cfg.DefaultBackend != "" {
		if err := reg.SetDefault(cfg.DefaultBackend); err != nil {
			return fail(err)
		}
	}

	var dir metadata.Directory = metadata.Permissive{}
	if len(cfg.Labels) > 0 || len(cfg.Services) > 0 {
		labels := make([]metadata.LabelInfo, 0, len(cfg.Labels))
		for _, l := range cfg.Labels {
			info := metadata.LabelInfo{
				Name:       l.Name,
				Backend:    l.Backend,
				SrcService: l.SrcService,
				SrcColumn:  l.SrcColumn,
				TgtService: l.TgtService,
				TgtColumn:  l.TgtColumn,
			}
			if l.Direction != "" {
				// Validate already checked the direction.
				info.Direction, _ = types.ParseDirection(l.Direction)
			}
			if l.Backend != "" {
				if err := reg.Route(l.Name, l.Backend); err != nil {
					return fail(err)
				}
			}
			labels = append(labels, info)
		}
		static, err := metadata.NewStatic(cfg.Services, labels)
		if err != nil {
			return fail(fmt.Errorf("%w: %w", fetcher.ErrConfiguration, err))
		}
		dir = static
	}

	opts := DefaultOptions()
	opts.QueryTimeout = cfg.QueryTimeout
	opts.MaxFrontier = cfg.MaxFrontier
	opts.Logger = logger
	logger.Info("Engine ready", "backends", reg.Names(), "query_timeout", cfg.QueryTimeout)
	return New(reg, dir, opts), nil
}

// Registry exposes the backends, e.g. for bulk loading.
func (e *Engine) Registry() *fetcher.Registry { return e.reg }

// Directory exposes the metadata directory.
func (e *Engine) Directory() metadata.Directory { return e.dir }

// Close stops background maintenance and closes every backend once.
// Later calls return the first result.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.isClosed.Store(true)
		close(e.closed)
		e.wg.Wait()
		e.closeErr = e.reg.Close()
	})
	return e.closeErr
}

// compacter is implemented by sources that can rewrite their storage.
type compacter interface {
	Compact() error
}

func (e *Engine) backgroundTasks() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.opts.MaintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.closed:
			return
		case <-ticker.C:
			e.runMaintenance()
		}
	}
}

// runMaintenance compacts every backend that supports it.
func (e *Engine) runMaintenance() {
	for _, name := range e.reg.Names() {
		f, ok := e.reg.Get(name)
		if !ok {
			continue
		}
		sf, ok := f.(*fetcher.SourceFetcher)
		if !ok {
			continue
		}
		c, ok := sf.Source().(compacter)
		if !ok {
			continue
		}
		if err := c.Compact(); err != nil {
			e.logger.Error("Background compaction failed", "backend", name, "error", err)
		}
	}
}
