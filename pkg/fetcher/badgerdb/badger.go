// Package badgerdb stores edges in BadgerDB. Each edge is written twice, once
// under its source (out) and once under its target (in), so both scan
// directions are a single prefix iteration.
package badgerdb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/sanonone/kektorgraph/pkg/core/types"
	"github.com/sanonone/kektorgraph/pkg/fetcher"
)

func init() {
	fetcher.RegisterSource("badger", open)
}

// open reads the backend options:
//
//	path       data directory (required unless in_memory)
//	in_memory  run without disk persistence
func open(_ context.Context, cfg fetcher.Config) (fetcher.Source, error) {
	inMemory, err := cfg.Bool("in_memory", false)
	if err != nil {
		return nil, err
	}
	return Open(Options{Dir: cfg.String("path", ""), InMemory: inMemory})
}

// Options configures the store.
type Options struct {
	Dir      string
	InMemory bool
	// Logger receives badger's warnings and errors. Defaults to slog.Default().
	Logger *slog.Logger
}

// Store is a fetcher.Source over a BadgerDB database.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the database.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, fmt.Errorf("%w: badger path is required for on-disk mode", fetcher.ErrConfiguration)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dbOpts := badger.DefaultOptions(opts.Dir).
		WithLogger(slogAdapter{logger.With("component", "badger")})
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

const sep = 0x00

// prefix is "e" 0 vertex dir 0 len(label) label. Vertex and label are
// length prefixed, so no field value can make one key alias another.
func prefix(v types.VertexID, label string, dir types.Direction) []byte {
	b := make([]byte, 0, 64)
	b = append(b, 'e', sep)
	b = v.AppendKey(b)
	b = append(b, dir...)
	b = append(b, sep)
	b = binary.AppendUvarint(b, uint64(len(label)))
	return append(b, label...)
}

func edgeKey(v types.VertexID, label string, dir types.Direction, other types.VertexID) []byte {
	return other.AppendKey(prefix(v, label, dir))
}

// value is the stored payload. Endpoints live in the key.
type value struct {
	Src       types.VertexID `msgpack:"s"`
	Tgt       types.VertexID `msgpack:"t"`
	Weight    float64        `msgpack:"w,omitempty"`
	Timestamp int64          `msgpack:"ts,omitempty"`
	Props     map[string]any `msgpack:"p,omitempty"`
}

// AddEdges writes edges as outgoing edges of their Src in one batch.
// Writing the same (src, label, tgt) again replaces it.
func (s *Store) AddEdges(edges []types.Edge) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, e := range edges {
		payload, err := msgpack.Marshal(value{Src: e.Src, Tgt: e.Tgt, Weight: e.Weight, Timestamp: e.Timestamp, Props: e.Props})
		if err != nil {
			return err
		}
		if err := wb.Set(edgeKey(e.Src, e.Label, types.Out, e.Tgt), payload); err != nil {
			return unavailable(err)
		}
		if err := wb.Set(edgeKey(e.Tgt, e.Label, types.In, e.Src), payload); err != nil {
			return unavailable(err)
		}
	}
	return unavailable(wb.Flush())
}

// AddEdge writes a single edge.
func (s *Store) AddEdge(e types.Edge) error {
	return s.AddEdges([]types.Edge{e})
}

// DeleteEdge removes src -label-> tgt. Missing edges are ignored.
func (s *Store) DeleteEdge(src, tgt types.VertexID, label string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(edgeKey(src, label, types.Out, tgt)); err != nil {
			return err
		}
		return txn.Delete(edgeKey(tgt, label, types.In, src))
	})
	return unavailable(err)
}

// Neighbors scans the edges of v with label in direction dir, ordered by
// the other endpoint's key.
func (s *Store) Neighbors(ctx context.Context, v types.VertexID, label string, dir types.Direction) ([]types.Edge, error) {
	p := prefix(v, label, dir)
	var out []types.Edge
	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = p
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var val value
			if err := msgpack.Unmarshal(raw, &val); err != nil {
				return fmt.Errorf("decode edge %q: %w", it.Item().Key(), err)
			}
			e := types.Edge{
				Src:       val.Src,
				Tgt:       val.Tgt,
				Label:     label,
				Dir:       types.Out,
				Weight:    val.Weight,
				Timestamp: val.Timestamp,
				Props:     val.Props,
			}
			if dir == types.In {
				e = e.Reversed()
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// unavailable maps a closed database onto fetcher.ErrUnavailable.
func unavailable(err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return fmt.Errorf("%w: %w", fetcher.ErrUnavailable, err)
	}
	return err
}

// slogAdapter routes badger's printf-style logging into slog, dropping
// info and debug chatter.
type slogAdapter struct {
	l *slog.Logger
}

func (a slogAdapter) Errorf(f string, v ...any)   { a.l.Error(fmt.Sprintf(f, v...)) }
func (a slogAdapter) Warningf(f string, v ...any) { a.l.Warn(fmt.Sprintf(f, v...)) }
func (slogAdapter) Infof(string, ...any)          {}
func (slogAdapter) Debugf(string, ...any)         {}
