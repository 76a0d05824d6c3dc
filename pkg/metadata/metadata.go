// Package metadata answers the read-only schema questions the traversal core
// asks: what a label's default direction and backend are, and whether a
// vertex id names a known (service, column).
package metadata

import (
	"errors"
	"fmt"

	"github.com/sanonone/kektorgraph/pkg/core/types"
)

var (
	ErrUnknownLabel   = errors.New("unknown label")
	ErrUnknownService = errors.New("unknown service")
	ErrUnknownColumn  = errors.New("unknown column")
)

// LabelInfo describes one edge label. Empty service/column fields mean any.
type LabelInfo struct {
	Name       string          `json:"name"`
	Direction  types.Direction `json:"direction,omitempty"`
	Backend    string          `json:"backend,omitempty"`
	SrcService string          `json:"src_service,omitempty"`
	SrcColumn  string          `json:"src_column,omitempty"`
	TgtService string          `json:"tgt_service,omitempty"`
	TgtColumn  string          `json:"tgt_column,omitempty"`
}

// Connects reports whether a scan in direction dir may start at v. For out
// scans v must match the source side, for in scans the target side, and for
// both either side.
func (l LabelInfo) Connects(v types.VertexID, dir types.Direction) bool {
	src := matches(v, l.SrcService, l.SrcColumn)
	tgt := matches(v, l.TgtService, l.TgtColumn)
	switch dir {
	case types.In:
		return tgt
	case types.Both:
		return src || tgt
	default:
		return src
	}
}

func matches(v types.VertexID, service, column string) bool {
	return (service == "" || service == v.Service) && (column == "" || column == v.Column)
}

// Directory is the lookup interface consumed by the engine. Implementations
// must be safe for concurrent use.
type Directory interface {
	Label(name string) (LabelInfo, error)
	ValidateVertex(v types.VertexID) error
}

// Static is an immutable Directory.
type Static struct {
	services map[string]map[string]struct{}
	labels   map[string]LabelInfo
}

// NewStatic builds a directory from service columns and label definitions.
// A label without a direction defaults to out.
func NewStatic(services map[string][]string, labels []LabelInfo) (*Static, error) {
	s := &Static{
		services: make(map[string]map[string]struct{}, len(services)),
		labels:   make(map[string]LabelInfo, len(labels)),
	}
	for name, cols := range services {
		set := make(map[string]struct{}, len(cols))
		for _, c := range cols {
			set[c] = struct{}{}
		}
		s.services[name] = set
	}
	for _, l := range labels {
		if l.Name == "" {
			return nil, errors.New("label without a name")
		}
		if _, dup := s.labels[l.Name]; dup {
			return nil, fmt.Errorf("duplicate label %q", l.Name)
		}
		if l.Direction == "" {
			l.Direction = types.Out
		}
		if !l.Direction.Valid() {
			return nil, fmt.Errorf("label %q: %w", l.Name, types.ErrInvalidDirection)
		}
		for _, side := range [][2]string{{l.SrcService, l.SrcColumn}, {l.TgtService, l.TgtColumn}} {
			if side[0] == "" || len(s.services) == 0 {
				continue
			}
			if err := s.checkColumn(side[0], side[1]); err != nil {
				return nil, fmt.Errorf("label %q: %w", l.Name, err)
			}
		}
		s.labels[l.Name] = l
	}
	return s, nil
}

// Label returns the definition of name.
func (s *Static) Label(name string) (LabelInfo, error) {
	l, ok := s.labels[name]
	if !ok {
		return LabelInfo{}, fmt.Errorf("%w: %q", ErrUnknownLabel, name)
	}
	return l, nil
}

// Labels returns every label definition.
func (s *Static) Labels() []LabelInfo {
	out := make([]LabelInfo, 0, len(s.labels))
	for _, l := range s.labels {
		out = append(out, l)
	}
	return out
}

// ValidateVertex checks the vertex shape. With no services configured any
// non-empty id is accepted.
func (s *Static) ValidateVertex(v types.VertexID) error {
	if v.Service == "" || v.Column == "" || v.ID == "" {
		return fmt.Errorf("%w: %q", types.ErrInvalidVertex, v.Key())
	}
	if len(s.services) == 0 {
		return nil
	}
	return s.checkColumn(v.Service, v.Column)
}

func (s *Static) checkColumn(service, column string) error {
	cols, ok := s.services[service]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownService, service)
	}
	if column == "" {
		return nil
	}
	if _, ok := cols[column]; !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, service, column)
	}
	return nil
}

// Permissive accepts every label (direction out, default backend) and every
// vertex with a non-empty id.
type Permissive struct{}

func (Permissive) Label(name string) (LabelInfo, error) {
	return LabelInfo{Name: name, Direction: types.Out}, nil
}

func (Permissive) ValidateVertex(v types.VertexID) error {
	if v.ID == "" {
		return fmt.Errorf("%w: empty id", types.ErrInvalidVertex)
	}
	return nil
}
