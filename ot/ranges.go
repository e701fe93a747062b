package ot

import "slices"

// TransformRangesByDeltas re-projects ranges through every operation of
// deltas, in the order they were applied. A range split by an operation is
// replaced in place by its pieces; the pieces are only transformed by later
// operations. The returned slice may share memory with ranges.
func TransformRangesByDeltas(ranges []Range, deltas []Delta) []Range {
	for _, d := range deltas {
		for _, op := range d.Operations {
			if op.IsNoop() {
				continue
			}
			for i := 0; i < len(ranges); i++ {
				var res []Range
				if op.Type == OpInsert {
					res = ranges[i].TransformedByInsertion(op.Position, len(op.Nodes), false)
				} else {
					res = ranges[i].TransformedByMove(op.Source, op.Target, op.HowMany, true)
				}
				ranges = slices.Replace(ranges, i, i+1, res...)
				i += len(res) - 1
			}
		}
	}
	return ranges
}

// TransformSelectionRange transforms a single range by deltas and returns the
// resulting ranges sorted by start, with touching neighbours merged.
func TransformSelectionRange(r Range, deltas []Delta) []Range {
	transformed := TransformRangesByDeltas([]Range{r}, deltas)
	SortRanges(transformed)
	return MergeTouching(transformed)
}
