// Package query models a traversal plan: fetch specifications (Param), the
// rounds they run in (Step), the full plan (Query), the unit of work handed
// to a backend (Request) and the aggregated output of a round (StepResult).
package query

import (
	"errors"
	"fmt"

	"github.com/itchyny/gojq"

	"github.com/sanonone/kektorgraph/pkg/core/types"
)

// ErrInvalid is wrapped by every validation error of this package.
var ErrInvalid = errors.New("invalid query")

// TimeRange restricts edges to From <= ts < To (unix millis). A zero bound is open.
type TimeRange struct {
	From int64 `json:"from,omitempty" yaml:"from,omitempty"`
	To   int64 `json:"to,omitempty" yaml:"to,omitempty"`
}

// Contains reports whether ts lies inside the range.
func (r *TimeRange) Contains(ts int64) bool {
	if r == nil {
		return true
	}
	if r.From != 0 && ts < r.From {
		return false
	}
	if r.To != 0 && ts >= r.To {
		return false
	}
	return true
}

// Param is the fetch specification for one (label, direction) edge scan
// from one vertex. A zero Limit means no limit and a zero Weight means 1.
type Param struct {
	Label     string          `json:"label" yaml:"label"`
	Direction types.Direction `json:"direction,omitempty" yaml:"direction,omitempty"`
	Limit     int             `json:"limit,omitempty" yaml:"limit,omitempty"`
	Offset    int             `json:"offset,omitempty" yaml:"offset,omitempty"`
	Weight    float64         `json:"weight,omitempty" yaml:"weight,omitempty"`
	// Threshold drops edges scoring below it. Nil keeps every score, including negative ones.
	Threshold *float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	// Where is a jq expression evaluated against the edge document
	// ({src, tgt, label, direction, weight, ts, props}). The edge is kept
	// when the first output is true.
	Where    string             `json:"where,omitempty" yaml:"where,omitempty"`
	Duration *TimeRange         `json:"duration,omitempty" yaml:"duration,omitempty"`
	Sample   int                `json:"sample,omitempty" yaml:"sample,omitempty"`
	Rank     map[string]float64 `json:"rank,omitempty" yaml:"rank,omitempty"`
	// Exclude drops edges whose target was already reached by the previous step.
	Exclude bool `json:"exclude,omitempty" yaml:"exclude,omitempty"`

	where *gojq.Code
}

// LabelWithDirection returns the edge kind this param scans.
func (p *Param) LabelWithDirection() types.LabelWithDirection {
	return types.LabelWithDirection{Label: p.Label, Dir: p.Direction}
}

// Validate checks the static invariants of the param.
func (p *Param) Validate() error {
	if p.Label == "" {
		return fmt.Errorf("%w: param label is required", ErrInvalid)
	}
	if p.Direction != "" && !p.Direction.Valid() {
		return fmt.Errorf("%w: label %q: %w", ErrInvalid, p.Label, types.ErrInvalidDirection)
	}
	if p.Limit < 0 {
		return fmt.Errorf("%w: label %q: negative limit %d", ErrInvalid, p.Label, p.Limit)
	}
	if p.Offset < 0 {
		return fmt.Errorf("%w: label %q: negative offset %d", ErrInvalid, p.Label, p.Offset)
	}
	if p.Sample < 0 {
		return fmt.Errorf("%w: label %q: negative sample %d", ErrInvalid, p.Label, p.Sample)
	}
	if p.Weight < 0 {
		return fmt.Errorf("%w: label %q: negative weight %v", ErrInvalid, p.Label, p.Weight)
	}
	if p.Duration != nil && p.Duration.To != 0 && p.Duration.To < p.Duration.From {
		return fmt.Errorf("%w: label %q: empty duration range", ErrInvalid, p.Label)
	}
	return nil
}

// Compile validates the param and returns a copy with the Where expression
// parsed. The returned value must be treated as read-only; it is shared by
// every Request built from it.
func (p Param) Compile() (*Param, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Direction == "" {
		p.Direction = types.Out
	}
	if p.Where != "" {
		q, err := gojq.Parse(p.Where)
		if err != nil {
			return nil, fmt.Errorf("%w: label %q: where %q: %w", ErrInvalid, p.Label, p.Where, err)
		}
		code, err := gojq.Compile(q)
		if err != nil {
			return nil, fmt.Errorf("%w: label %q: where %q: %w", ErrInvalid, p.Label, p.Where, err)
		}
		p.where = code
	}
	return &p, nil
}

// effectiveWeight treats an unset weight as 1.
func (p *Param) effectiveWeight() float64 {
	if p.Weight == 0 {
		return 1
	}
	return p.Weight
}

// accept runs the time range and Where filters against one edge.
func (p *Param) accept(e types.Edge) (bool, error) {
	if !p.Duration.Contains(e.Timestamp) {
		return false, nil
	}
	if p.where == nil {
		if p.Where != "" {
			return false, fmt.Errorf("%w: label %q: param used without Compile", ErrInvalid, p.Label)
		}
		return true, nil
	}
	iter := p.where.Run(e.Document())
	v, ok := iter.Next()
	if !ok {
		return false, nil
	}
	if err, isErr := v.(error); isErr {
		return false, fmt.Errorf("where %q: %w", p.Where, err)
	}
	b, _ := v.(bool)
	return b, nil
}
