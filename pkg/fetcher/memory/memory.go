// Package memory is an in-process edge backend. Adjacency lives in an
// ordered B-tree keyed by (vertex, label, direction, target); writes can be
// journaled to a framed edge log that is replayed on open.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/tidwall/btree"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/sanonone/kektorgraph/pkg/core/types"
	"github.com/sanonone/kektorgraph/pkg/fetcher"
	"github.com/sanonone/kektorgraph/pkg/persistence"
)

func init() {
	fetcher.RegisterSource("memory", open)
}

// open builds a Store from backend options:
//
//	log_path  edge log to replay and append to (optional)
func open(_ context.Context, cfg fetcher.Config) (fetcher.Source, error) {
	path := cfg.String("log_path", "")
	if path == "" {
		return NewStore(), nil
	}
	return OpenStore(path)
}

// item is one adjacency entry. Every stored edge has two: an Out entry under
// its source and an In entry under its target.
type item struct {
	vertex types.VertexID
	label  string
	dir    types.Direction
	other  types.VertexID
	edge   types.Edge
}

func itemLess(a, b item) bool {
	if c := a.vertex.Compare(b.vertex); c != 0 {
		return c < 0
	}
	if a.label != b.label {
		return a.label < b.label
	}
	if a.dir != b.dir {
		return a.dir < b.dir
	}
	return a.other.Compare(b.other) < 0
}

// Store is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	index  *btree.BTreeG[item]
	log    *persistence.Log
	closed bool
}

// NewStore returns an empty store without a log.
func NewStore() *Store {
	return &Store{
		index: btree.NewBTreeGOptions(itemLess, btree.Options{NoLocks: true}),
	}
}

// OpenStore replays the edge log at path and keeps appending to it.
func OpenStore(path string) (*Store, error) {
	s := NewStore()
	_, truncated, err := persistence.Replay(path, func(f persistence.Frame) error {
		var rec record
		if err := msgpack.Unmarshal(f.Payload, &rec); err != nil {
			return err
		}
		switch f.Op {
		case persistence.OpAddEdge:
			s.insert(rec.edge())
		case persistence.OpDeleteEdge:
			s.remove(rec.edge())
		default:
			return fmt.Errorf("unknown op 0x%02x", byte(f.Op))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if truncated {
		// Appending after a torn frame would hide every later write.
		if err := s.writeSnapshot(path); err != nil {
			return nil, err
		}
	}
	l, err := persistence.OpenLog(path)
	if err != nil {
		return nil, err
	}
	s.log = l
	return s, nil
}

// Compact rewrites the edge log so it holds one add frame per live edge.
func (s *Store) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.log == nil {
		return nil
	}
	path := s.log.Path()
	if err := s.log.Close(); err != nil {
		return err
	}
	if err := s.writeSnapshot(path); err != nil {
		return err
	}
	l, err := persistence.OpenLog(path)
	if err != nil {
		return err
	}
	s.log = l
	return nil
}

func (s *Store) writeSnapshot(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	fw := persistence.NewFrameWriter(w)

	var werr error
	s.index.Scan(func(it item) bool {
		if it.dir != types.Out {
			return true
		}
		payload, err := msgpack.Marshal(newRecord(it.edge))
		if err == nil {
			err = fw.WriteFrame(persistence.OpAddEdge, payload)
		}
		werr = err
		return err == nil
	})
	if werr == nil {
		werr = w.Flush()
	}
	if werr == nil {
		werr = f.Sync()
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write edge snapshot: %w", werr)
	}
	return os.Rename(tmp, path)
}

// AddEdge stores e as an outgoing edge of e.Src (e.Dir is ignored).
// Adding the same (src, label, tgt) again replaces it.
func (s *Store) AddEdge(e types.Edge) error {
	e.Dir = types.Out
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.journal(persistence.OpAddEdge, e); err != nil {
		return err
	}
	s.insert(e)
	return nil
}

// AddEdges stores a batch of edges in order.
func (s *Store) AddEdges(edges []types.Edge) error {
	for _, e := range edges {
		if err := s.AddEdge(e); err != nil {
			return err
		}
	}
	return nil
}

// DeleteEdge removes the edge src -label-> tgt. Missing edges are ignored.
func (s *Store) DeleteEdge(src, tgt types.VertexID, label string) error {
	e := types.Edge{Src: src, Tgt: tgt, Label: label, Dir: types.Out}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.journal(persistence.OpDeleteEdge, e); err != nil {
		return err
	}
	s.remove(e)
	return nil
}

func (s *Store) journal(op persistence.OpCode, e types.Edge) error {
	if s.closed {
		return fmt.Errorf("write edge %s -%s-> %s: %w", e.Src, e.Label, e.Tgt, fetcher.ErrClosed)
	}
	if s.log == nil {
		return nil
	}
	payload, err := msgpack.Marshal(newRecord(e))
	if err != nil {
		return err
	}
	if err := s.log.Append(op, payload); err != nil {
		return err
	}
	return s.log.Flush()
}

func (s *Store) insert(e types.Edge) {
	s.index.Set(item{vertex: e.Src, label: e.Label, dir: types.Out, other: e.Tgt, edge: e})
	r := e.Reversed()
	s.index.Set(item{vertex: r.Src, label: r.Label, dir: types.In, other: r.Tgt, edge: r})
}

func (s *Store) remove(e types.Edge) {
	s.index.Delete(item{vertex: e.Src, label: e.Label, dir: types.Out, other: e.Tgt})
	s.index.Delete(item{vertex: e.Tgt, label: e.Label, dir: types.In, other: e.Src})
}

// Neighbors returns the edges of v with the given label in direction dir,
// ordered by the other endpoint.
func (s *Store) Neighbors(ctx context.Context, v types.VertexID, label string, dir types.Direction) ([]types.Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	pivot := item{vertex: v, label: label, dir: dir}
	var out []types.Edge
	s.index.Ascend(pivot, func(it item) bool {
		if it.vertex != pivot.vertex || it.label != label || it.dir != dir {
			return false
		}
		out = append(out, it.edge)
		return true
	})
	return out, nil
}

// Len returns the number of stored edges.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Len() / 2
}

// Close closes the edge log, if any. Later writes fail with
// fetcher.ErrClosed; reads keep serving the in-memory index.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.log == nil {
		return nil
	}
	err := s.log.Close()
	s.log = nil
	return err
}

// record is the msgpack payload of a log frame.
type record struct {
	SrcService string         `msgpack:"ss"`
	SrcColumn  string         `msgpack:"sc"`
	SrcID      string         `msgpack:"si"`
	TgtService string         `msgpack:"ts"`
	TgtColumn  string         `msgpack:"tc"`
	TgtID      string         `msgpack:"ti"`
	Label      string         `msgpack:"l"`
	Weight     float64        `msgpack:"w,omitempty"`
	Timestamp  int64          `msgpack:"t,omitempty"`
	Props      map[string]any `msgpack:"p,omitempty"`
}

func newRecord(e types.Edge) record {
	return record{
		SrcService: e.Src.Service, SrcColumn: e.Src.Column, SrcID: e.Src.ID,
		TgtService: e.Tgt.Service, TgtColumn: e.Tgt.Column, TgtID: e.Tgt.ID,
		Label: e.Label, Weight: e.Weight, Timestamp: e.Timestamp, Props: e.Props,
	}
}

func (r record) edge() types.Edge {
	return types.Edge{
		Src:       types.VertexID{Service: r.SrcService, Column: r.SrcColumn, ID: r.SrcID},
		Tgt:       types.VertexID{Service: r.TgtService, Column: r.TgtColumn, ID: r.TgtID},
		Label:     r.Label,
		Dir:       types.Out,
		Weight:    r.Weight,
		Timestamp: r.Timestamp,
		Props:     r.Props,
	}
}
