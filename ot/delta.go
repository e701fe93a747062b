package ot

import "github.com/google/uuid"

// Delta is an ordered group of operations committed together. BaseVersion is
// the document version the first operation applies to; every operation
// advances the version by one.
type Delta struct {
	BaseVersion int         `json:"baseVersion"`
	Operations  []Operation `json:"operations"`
}

// NewDelta creates a delta of ops based on version.
func NewDelta(baseVersion int, ops ...Operation) Delta {
	return Delta{BaseVersion: baseVersion, Operations: ops}
}

// NextVersion returns the document version right after the delta.
func (d Delta) NextVersion() int { return d.BaseVersion + len(d.Operations) }

// Reversed returns the delta that undoes d when applied right after it.
func (d Delta) Reversed() Delta {
	ops := make([]Operation, len(d.Operations))
	for i, op := range d.Operations {
		ops[len(ops)-1-i] = op.Reversed()
	}
	return Delta{BaseVersion: d.NextVersion(), Operations: ops}
}

// Clone returns a deep copy of the delta.
func (d Delta) Clone() Delta {
	ops := make([]Operation, len(d.Operations))
	for i, op := range d.Operations {
		ops[i] = op.Clone()
	}
	return Delta{BaseVersion: d.BaseVersion, Operations: ops}
}

// Batch groups deltas into one undoable unit.
type Batch struct {
	ID     uuid.UUID `json:"id"`
	Deltas []Delta   `json:"deltas"`
}

// NewBatch creates an empty batch with a fresh ID.
func NewBatch() *Batch {
	return &Batch{ID: uuid.New()}
}

// BaseVersion returns the base version of the batch's first delta, or -1 for
// an empty batch.
func (b *Batch) BaseVersion() int {
	if len(b.Deltas) == 0 {
		return -1
	}
	return b.Deltas[0].BaseVersion
}

// Add appends a committed delta to the batch.
func (b *Batch) Add(d Delta) { b.Deltas = append(b.Deltas, d) }

// Selection is a set of ranges plus the direction the user made it in.
type Selection struct {
	Ranges     []Range `json:"ranges"`
	IsBackward bool    `json:"isBackward"`
}

// Clone returns a copy of the selection that shares no positions with it.
func (s Selection) Clone() Selection {
	ranges := make([]Range, len(s.Ranges))
	for i, r := range s.Ranges {
		ranges[i] = NewRange(r.Start, r.End)
	}
	return Selection{Ranges: ranges, IsBackward: s.IsBackward}
}
