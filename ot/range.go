package ot

import "slices"

// Range is a half-open span of a document between two positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// NewRange creates a range from start to end.
func NewRange(start, end Position) Range {
	return Range{Start: start.clone(), End: end.clone()}
}

// NewFlatRange creates a range covering howMany nodes starting at start.
func NewFlatRange(start Position, howMany int) Range {
	return Range{Start: start.clone(), End: start.ShiftedBy(howMany)}
}

func (r Range) IsCollapsed() bool { return r.Start.IsEqual(r.End) }

// IsFlat reports whether both ends share the same parent.
func (r Range) IsFlat() bool {
	if r.Start.Root != r.End.Root {
		return false
	}
	rel, _ := comparePaths(r.Start.ParentPath(), r.End.ParentPath())
	return rel == pathSame
}

// Len returns the number of nodes a flat range covers.
func (r Range) Len() int { return r.End.Offset() - r.Start.Offset() }

// InGraveyard reports whether the range starts in the graveyard root.
func (r Range) InGraveyard() bool { return r.Start.InGraveyard() }

// ContainsPosition reports whether p lies strictly inside the range.
func (r Range) ContainsPosition(p Position) bool {
	return p.IsAfter(r.Start) && p.IsBefore(r.End)
}

func (r Range) IsIntersecting(o Range) bool {
	return r.Start.IsBefore(o.End) && r.End.IsAfter(o.Start)
}

// Difference returns the parts of r that are not covered by o, in document
// order.
func (r Range) Difference(o Range) []Range {
	if !r.IsIntersecting(o) {
		return []Range{r}
	}
	var parts []Range
	if r.ContainsPosition(o.Start) {
		parts = append(parts, Range{Start: r.Start, End: o.Start})
	}
	if r.ContainsPosition(o.End) {
		parts = append(parts, Range{Start: o.End, End: r.End})
	}
	return parts
}

// Intersection returns the part of r that is also covered by o.
func (r Range) Intersection(o Range) (Range, bool) {
	if !r.IsIntersecting(o) {
		return Range{}, false
	}
	common := r
	if r.ContainsPosition(o.Start) {
		common.Start = o.Start
	}
	if r.ContainsPosition(o.End) {
		common.End = o.End
	}
	return common, true
}

// TransformedByInsertion returns the range after howMany nodes were inserted
// at at. With spread set, an insertion strictly inside a range whose ends
// share the insertion's parent splits it in two around the new nodes.
// Otherwise insertions inside the range grow it, insertions on its edges stay
// outside of it, and a collapsed range moves past the new nodes.
func (r Range) TransformedByInsertion(at Position, howMany int, spread bool) []Range {
	if spread && r.spreadsAt(at) {
		return []Range{
			{Start: r.Start, End: at.clone()},
			{
				Start: at.ShiftedBy(howMany),
				End:   r.End.TransformedByInsertion(at, howMany, true),
			},
		}
	}
	if r.IsCollapsed() {
		return []Range{{
			Start: r.Start.TransformedByInsertion(at, howMany, true),
			End:   r.End.TransformedByInsertion(at, howMany, true),
		}}
	}
	return []Range{{
		Start: r.Start.TransformedByInsertion(at, howMany, true),
		End:   r.End.TransformedByInsertion(at, howMany, false),
	}}
}

func (r Range) spreadsAt(at Position) bool {
	if at.Root != r.Start.Root || !r.IsFlat() {
		return false
	}
	rel, _ := comparePaths(at.ParentPath(), r.Start.ParentPath())
	return rel == pathSame && r.ContainsPosition(at)
}

// TransformedByMove returns the range after howMany nodes were moved from
// source to target. The parts outside the moved span come first, in document
// order, each shifted by the move. The part inside the moved span, if any,
// comes last and follows the moved nodes.
func (r Range) TransformedByMove(source, target Position, howMany int, spread bool) []Range {
	parts, common, ok := r.moveParts(source, target, howMany, spread)
	if ok {
		parts = append(parts, common)
	}
	return parts
}

func (r Range) moveParts(source, target Position, howMany int, spread bool) ([]Range, Range, bool) {
	moved := NewFlatRange(source, howMany)
	insertAt := movedStart(source, target, howMany)

	var parts []Range
	for _, d := range r.Difference(moved) {
		d = Range{
			Start: deleted(d.Start, source, insertAt, howMany),
			End:   deleted(d.End, source, insertAt, howMany),
		}
		parts = append(parts, d.TransformedByInsertion(insertAt, howMany, spread)...)
	}

	common, ok := r.Intersection(moved)
	if !ok {
		return parts, Range{}, false
	}
	return parts, Range{
		Start: common.Start.combined(source, insertAt),
		End:   common.End.combined(source, insertAt),
	}, true
}

// deleted transforms p by taking out howMany nodes at source, letting
// positions inside the span follow it to start.
func deleted(p, source, start Position, howMany int) Position {
	if t, ok := p.TransformedByDeletion(source, howMany); ok {
		return t
	}
	return p.combined(source, start)
}

// transformedByOperation moves a range along with op without splitting it.
func (r Range) transformedByOperation(op Operation) Range {
	if op.Type == OpInsert {
		return r.TransformedByInsertion(op.Position, len(op.Nodes), false)[0]
	}
	return Range{
		Start: r.Start.TransformedByMove(op.Source, op.Target, op.HowMany, true),
		End:   r.End.TransformedByMove(op.Source, op.Target, op.HowMany, false),
	}
}

// SortRanges sorts ranges by start position.
func SortRanges(ranges []Range) {
	slices.SortStableFunc(ranges, func(a, b Range) int {
		return Compare(a.Start, b.Start)
	})
}

// MergeTouching joins consecutive ranges whose ends touch. The input must be
// sorted by start position.
func MergeTouching(ranges []Range) []Range {
	for i := 1; i < len(ranges); i++ {
		a, b := ranges[i-1], ranges[i]
		if a.End.IsTouching(b.Start) {
			ranges[i-1].End = b.End
			ranges = slices.Delete(ranges, i, i+1)
			i--
		}
	}
	return ranges
}
