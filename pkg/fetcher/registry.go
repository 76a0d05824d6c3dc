package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Factory creates an uninitialized Fetcher instance named name.
type Factory func(name string, logger *slog.Logger) Fetcher

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// RegisterFactory makes a backend type available to Registry.Open.
// It panics on duplicate registration, like database/sql.Register.
func RegisterFactory(typ string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if _, dup := factories[typ]; dup {
		panic("fetcher: RegisterFactory called twice for type " + typ)
	}
	factories[typ] = f
}

// RegisterSource registers a backend type implemented as a Source.
func RegisterSource(typ string, open Opener) {
	RegisterFactory(typ, func(name string, logger *slog.Logger) Fetcher {
		return NewSourceFetcher(name, open, logger)
	})
}

// Types lists the registered backend types.
func Types() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	out := make([]string, 0, len(factories))
	for t := range factories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Registry owns the process-wide fetcher instances and routes labels to them.
// Instances are initialized once when added and closed once by Close.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]Fetcher
	order     []string
	routes    map[string]string
	fallback  string
	logger    *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		instances: make(map[string]Fetcher),
		routes:    make(map[string]string),
		logger:    logger,
	}
}

// Add registers an already initialized fetcher under name. The first
// instance added becomes the default backend.
func (r *Registry) Add(name string, f Fetcher) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.instances[name]; dup {
		return fmt.Errorf("%w: duplicate backend %q", ErrConfiguration, name)
	}
	r.instances[name] = f
	r.order = append(r.order, name)
	if r.fallback == "" {
		r.fallback = name
	}
	return nil
}

// Open creates a backend of type typ, initializes it with cfg and adds it.
// An Init failure is fatal for the instance: nothing is added.
func (r *Registry) Open(ctx context.Context, name, typ string, cfg Config) error {
	factoriesMu.RLock()
	factory, ok := factories[typ]
	factoriesMu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: unknown backend type %q (known: %v)", ErrConfiguration, typ, Types())
	}

	f := factory(name, r.logger)
	if err := f.Init(ctx, cfg); err != nil {
		_ = f.Close()
		if errors.Is(err, ErrConfiguration) {
			return err
		}
		return fmt.Errorf("%w: backend %q: %w", ErrConfiguration, name, err)
	}
	if err := r.Add(name, f); err != nil {
		_ = f.Close()
		return err
	}
	r.logger.Info("Backend initialized", "backend", name, "type", typ)
	return nil
}

// Route sends every param with the given label to backend.
func (r *Registry) Route(label, backend string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.instances[backend]; !ok {
		return fmt.Errorf("%w: label %q routed to unknown backend %q", ErrConfiguration, label, backend)
	}
	r.routes[label] = backend
	return nil
}

// SetDefault selects the backend used for labels without a route.
func (r *Registry) SetDefault(backend string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.instances[backend]; !ok {
		return fmt.Errorf("%w: unknown default backend %q", ErrConfiguration, backend)
	}
	r.fallback = backend
	return nil
}

// For returns the backend responsible for label.
func (r *Registry) For(label string) (string, Fetcher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.routes[label]
	if !ok {
		name = r.fallback
	}
	f, ok := r.instances[name]
	if !ok {
		return "", nil, fmt.Errorf("%w: no backend for label %q", ErrConfiguration, label)
	}
	return name, f, nil
}

// Get returns a backend by name.
func (r *Registry) Get(name string) (Fetcher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.instances[name]
	return f, ok
}

// Names lists backend names in insertion order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Close closes every backend in reverse insertion order. Calling it again
// returns the first result.
func (r *Registry) Close() error {
	r.closeOnce.Do(func() {
		r.mu.RLock()
		defer r.mu.RUnlock()
		var errs []error
		for i := len(r.order) - 1; i >= 0; i-- {
			name := r.order[i]
			if err := r.instances[name].Close(); err != nil {
				errs = append(errs, fmt.Errorf("close backend %q: %w", name, err))
			}
		}
		r.closeErr = errors.Join(errs...)
	})
	return r.closeErr
}
