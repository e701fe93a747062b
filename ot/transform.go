package ot

import "slices"

// TransformDelta transforms every delta in toTransform against every delta in
// transformBy, in order, and returns the results in the order of toTransform.
//
// A delta can split into several deltas when one of its operations splits, so
// each input delta keeps a work list. Every item of the list is transformed by
// the next delta of transformBy and replaced in place by its results, which
// are then transformed by the remaining deltas of transformBy.
//
// isStrong breaks ties between operations that target the same spot: when
// true the transformed side keeps its place before the other side.
func TransformDelta(toTransform, transformBy []Delta, isStrong bool) []Delta {
	results := make([]Delta, 0, len(toTransform))
	for _, delta := range toTransform {
		work := []Delta{delta}
		for _, by := range transformBy {
			for i := 0; i < len(work); i++ {
				res := transformPair(work[i], by, isStrong)
				work = slices.Replace(work, i, i+1, res...)
				i += len(res) - 1
			}
		}
		results = append(results, work...)
	}
	return results
}

// transformPair transforms a as if b had been applied first. Both deltas must
// start from the same document state. Pieces of a split operation open new
// result deltas; deltas left with no operations are dropped.
func transformPair(a, b Delta, isStrong bool) []Delta {
	by := b.Operations
	var out []Delta
	cur := Delta{}
	for _, op := range a.Operations {
		var pieces []Operation
		pieces, by = transformOps([]Operation{op}, by, isStrong)
		for i, p := range pieces {
			if i > 0 && len(cur.Operations) > 0 {
				out = append(out, cur)
				cur = Delta{}
			}
			cur.Operations = append(cur.Operations, p)
		}
	}
	out = append(out, cur)

	version := b.NextVersion()
	deltas := out[:0]
	for _, d := range out {
		if len(d.Operations) == 0 {
			continue
		}
		d.BaseVersion = version
		version = d.NextVersion()
		deltas = append(deltas, d)
	}
	return deltas
}

// transformOps transforms two operation lists that start from the same state
// against each other. It returns as rebased onto bs and bs rebased onto as.
func transformOps(as, bs []Operation, isStrong bool) ([]Operation, []Operation) {
	switch {
	case len(as) == 0 || len(bs) == 0:
		return as, bs
	case len(as) == 1 && len(bs) == 1:
		return transformOperation(as[0], bs[0], isStrong),
			transformOperation(bs[0], as[0], !isStrong)
	case len(as) > 1:
		first, bs1 := transformOps(as[:1], bs, isStrong)
		rest, bs2 := transformOps(as[1:], bs1, isStrong)
		return append(first, rest...), bs2
	default:
		as1, first := transformOps(as, bs[:1], isStrong)
		as2, rest := transformOps(as1, bs[1:], isStrong)
		return as2, append(first, rest...)
	}
}

// transformOperation returns a rebased onto b. The result is empty when a has
// nothing left to do and has several operations when a's span was split.
func transformOperation(a, b Operation, isStrong bool) []Operation {
	if a.IsNoop() {
		return nil
	}
	if b.IsNoop() {
		return []Operation{a}
	}
	a = a.Clone()
	switch {
	case a.Type == OpInsert && b.Type == OpInsert:
		a.Position = a.Position.TransformedByInsertion(b.Position, len(b.Nodes), !isStrong)
		return []Operation{a}
	case a.Type == OpInsert:
		a.Position = a.Position.TransformedByMove(b.Source, b.Target, b.HowMany, !isStrong)
		return []Operation{a}
	case b.Type == OpInsert:
		return []Operation{moveByInsert(a, b, isStrong)}
	default:
		return moveByMove(a, b, isStrong)
	}
}

// moveByInsert grows a's span by nodes inserted strictly inside it.
func moveByInsert(a, b Operation, isStrong bool) Operation {
	r := a.MovedRange().TransformedByInsertion(b.Position, len(b.Nodes), false)[0]
	a.Source = r.Start
	a.HowMany = r.Len()
	a.Target = a.Target.TransformedByInsertion(b.Position, len(b.Nodes), !isStrong)
	return a
}

// moveByMove splits a's span into the parts b left alone and the part both
// moved. The shared part stays with b unless a is strong. Nodes b carried
// along inside a moved ancestor are still moved by a.
func moveByMove(a, b Operation, isStrong bool) []Operation {
	parts, common, ok := a.MovedRange().moveParts(b.Source, b.Target, b.HowMany, true)
	SortRanges(parts)
	parts = MergeTouching(parts)

	if ok {
		rel, _ := comparePaths(a.Source.ParentPath(), b.Source.ParentPath())
		sameRoot := a.Source.Root == b.Source.Root
		if sameRoot && (rel == pathExtension || (rel == pathSame && isStrong)) {
			parts = append(parts, common)
		}
	}

	target := a.Target.TransformedByMove(b.Source, b.Target, b.HowMany, !isStrong)
	return chain(a.Type, parts, target)
}

// chain turns flat ranges into moves to target that can be applied one after
// another, keeping the ranges' order at the target.
func chain(typ OpType, parts []Range, target Position) []Operation {
	parts = slices.Clone(parts)
	ops := make([]Operation, 0, len(parts))
	for i, r := range parts {
		if !r.IsFlat() || r.Len() <= 0 {
			continue
		}
		op := Operation{Type: typ, Source: r.Start, Target: target, HowMany: r.Len()}
		ops = append(ops, op)
		for j := i + 1; j < len(parts); j++ {
			parts[j] = parts[j].transformedByOperation(op)
		}
		target = op.MovedStart().ShiftedBy(op.HowMany)
	}
	return ops
}
