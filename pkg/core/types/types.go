// Package types holds the value types shared by every layer of the traversal
// core: vertex identities, edge kinds and scored edges.
package types

import (
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDirection is returned when a direction string is not one of out, in, both.
var ErrInvalidDirection = errors.New("invalid direction")

// ErrInvalidVertex is returned by ParseVertexID for malformed identifiers.
var ErrInvalidVertex = errors.New("invalid vertex id")

// VertexID identifies a vertex by the service and column it belongs to plus
// its raw id value. It is comparable and can be used as a map key.
type VertexID struct {
	Service string `json:"service" yaml:"service"`
	Column  string `json:"column" yaml:"column"`
	ID      string `json:"id" yaml:"id"`
}

// Key renders the vertex as "service/column/id" for display and text
// protocols. It is not injective when service or column contain a slash;
// storage and cache keys use AppendKey.
func (v VertexID) Key() string {
	return v.Service + "/" + v.Column + "/" + v.ID
}

// AppendKey appends a binary encoding of v to dst. Every field is prefixed
// with its uvarint length, so distinct vertices never share an encoding and
// the encoding is never a prefix of another one.
func (v VertexID) AppendKey(dst []byte) []byte {
	for _, f := range [...]string{v.Service, v.Column, v.ID} {
		dst = binary.AppendUvarint(dst, uint64(len(f)))
		dst = append(dst, f...)
	}
	return dst
}

// Compare orders vertices by service, then column, then id.
func (v VertexID) Compare(o VertexID) int {
	return cmp.Or(
		strings.Compare(v.Service, o.Service),
		strings.Compare(v.Column, o.Column),
		strings.Compare(v.ID, o.ID),
	)
}

func (v VertexID) String() string { return v.Key() }

// IsZero reports whether v is the zero value.
func (v VertexID) IsZero() bool {
	return v == VertexID{}
}

// ParseVertexID parses the "service/column/id" form produced by Key.
// The id part may itself contain slashes.
func ParseVertexID(s string) (VertexID, error) {
	parts := strings.SplitN(s, "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return VertexID{}, fmt.Errorf("%w: %q", ErrInvalidVertex, s)
	}
	return VertexID{Service: parts[0], Column: parts[1], ID: parts[2]}, nil
}

// Direction of an edge scan relative to the frontier vertex.
type Direction string

const (
	Out  Direction = "out"
	In   Direction = "in"
	Both Direction = "both"
)

// ParseDirection accepts "out", "in" or "both" (case-insensitive).
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case Out, In, Both:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
}

// Valid reports whether d is one of the enumerated directions.
func (d Direction) Valid() bool {
	return d == Out || d == In || d == Both
}

// Reverse flips out and in. Both is its own reverse.
func (d Direction) Reverse() Direction {
	switch d {
	case Out:
		return In
	case In:
		return Out
	}
	return d
}

// LabelWithDirection is a typed, directed edge kind.
type LabelWithDirection struct {
	Label string    `json:"label"`
	Dir   Direction `json:"direction"`
}

func (l LabelWithDirection) String() string {
	return l.Label + ":" + string(l.Dir)
}

// Edge is a stored edge oriented in traversal order: Src is the vertex the
// scan started from and Tgt is the next hop. Dir records whether the stored
// edge is outgoing (Out) or incoming (In) relative to Src.
type Edge struct {
	Src       VertexID       `json:"src"`
	Tgt       VertexID       `json:"tgt"`
	Label     string         `json:"label"`
	Dir       Direction      `json:"direction"`
	Weight    float64        `json:"weight,omitempty"`
	Timestamp int64          `json:"ts,omitempty"` // Unix millis
	Props     map[string]any `json:"props,omitempty"`
}

// Reversed returns the same stored edge seen from the other endpoint.
func (e Edge) Reversed() Edge {
	r := e
	r.Src, r.Tgt = e.Tgt, e.Src
	r.Dir = e.Dir.Reverse()
	return r
}

// Document returns the edge as a generic map, used by filter expressions.
// Numeric values are normalized to float64 and nested containers to
// []any / map[string]any.
func (e Edge) Document() map[string]any {
	props := make(map[string]any, len(e.Props))
	for k, v := range e.Props {
		props[k] = Normalize(v)
	}
	return map[string]any{
		"src":       e.Src.Key(),
		"tgt":       e.Tgt.Key(),
		"label":     e.Label,
		"direction": string(e.Dir),
		"weight":    e.Weight,
		"ts":        float64(e.Timestamp),
		"props":     props,
	}
}

// Normalize converts decoded property values (which may come from JSON,
// msgpack or a database driver) into plain JSON-like Go values.
func Normalize(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = Normalize(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = Normalize(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[fmt.Sprint(k)] = Normalize(item)
		}
		return out
	default:
		return v
	}
}

// Number returns v as a float64 when it holds a numeric value.
func Number(v any) (float64, bool) {
	f, ok := Normalize(v).(float64)
	return f, ok
}

// EdgeWithScore is an edge produced by a traversal step with its accumulated score.
type EdgeWithScore struct {
	Edge
	Score float64 `json:"score"`
	Step  int     `json:"step"`
}
