package ot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rng(start, end Position) Range { return NewRange(start, end) }

func assertRanges(t *testing.T, want, got []Range) {
	t.Helper()
	require.Len(t, got, len(want), "got %v, want %v", got, want)
	for i := range want {
		assert.True(t, got[i].Start.IsEqual(want[i].Start) && got[i].End.IsEqual(want[i].End),
			"range %d = %v, want %v", i, got[i], want[i])
	}
}

func TestRange_DifferenceAndIntersection(t *testing.T) {
	r := rng(pos(0, 2), pos(0, 8))
	tests := []struct {
		name       string
		other      Range
		wantDiff   []Range
		wantCommon *Range
	}{
		{
			"disjoint",
			rng(pos(0, 8), pos(0, 9)),
			[]Range{r},
			nil,
		},
		{
			"strictly inside",
			rng(pos(0, 4), pos(0, 6)),
			[]Range{rng(pos(0, 2), pos(0, 4)), rng(pos(0, 6), pos(0, 8))},
			&Range{pos(0, 4), pos(0, 6)},
		},
		{
			"overlapping end",
			rng(pos(0, 6), pos(0, 10)),
			[]Range{rng(pos(0, 2), pos(0, 6))},
			&Range{pos(0, 6), pos(0, 8)},
		},
		{
			"covering",
			rng(pos(0, 0), pos(0, 10)),
			nil,
			&Range{pos(0, 2), pos(0, 8)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertRanges(t, tt.wantDiff, r.Difference(tt.other))
			common, ok := r.Intersection(tt.other)
			require.Equal(t, tt.wantCommon != nil, ok)
			if ok {
				assertRanges(t, []Range{*tt.wantCommon}, []Range{common})
			}
		})
	}
}

func TestRange_TransformedByInsertion(t *testing.T) {
	r := rng(pos(0, 2), pos(0, 8))
	tests := []struct {
		name   string
		r      Range
		at     Position
		spread bool
		want   []Range
	}{
		{"inside grows", r, pos(0, 4), false, []Range{rng(pos(0, 2), pos(0, 11))}},
		{"inside spreads", r, pos(0, 4), true, []Range{rng(pos(0, 2), pos(0, 4)), rng(pos(0, 7), pos(0, 11))}},
		{"at start stays outside", r, pos(0, 2), false, []Range{rng(pos(0, 5), pos(0, 11))}},
		{"at end stays outside", r, pos(0, 8), false, []Range{r}},
		{"collapsed moves past", rng(pos(0, 4), pos(0, 4)), pos(0, 4), false, []Range{rng(pos(0, 7), pos(0, 7))}},
		{"deeper insertion never spreads", rng(pos(0), pos(3)), pos(1, 0), true, []Range{rng(pos(0), pos(3))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertRanges(t, tt.want, tt.r.TransformedByInsertion(tt.at, 3, tt.spread))
		})
	}
}

func TestRange_TransformedByMove(t *testing.T) {
	gy := func(path ...int) Position { return NewPosition(GraveyardRoot, path...) }
	tests := []struct {
		name   string
		r      Range
		source Position
		target Position
		n      int
		want   []Range
	}{
		{
			"interior removal splits and parks the middle",
			rng(pos(0, 2), pos(0, 8)),
			pos(0, 4), gy(0), 2,
			[]Range{rng(pos(0, 2), pos(0, 4)), rng(pos(0, 4), pos(0, 6)), rng(gy(0), gy(2))},
		},
		{
			"range before moved span",
			rng(pos(0, 0), pos(0, 2)),
			pos(0, 4), pos(1, 0), 2,
			[]Range{rng(pos(0, 0), pos(0, 2))},
		},
		{
			"range after moved span shifts back",
			rng(pos(0, 6), pos(0, 8)),
			pos(0, 2), pos(1, 0), 2,
			[]Range{rng(pos(0, 4), pos(0, 6))},
		},
		{
			"range inside moved span follows it",
			rng(pos(0, 3), pos(0, 4)),
			pos(0, 2), pos(1, 1), 4,
			[]Range{rng(pos(1, 2), pos(1, 3))},
		},
		{
			"content moved into range spreads it",
			rng(pos(0, 0), pos(0, 6)),
			pos(1, 0), pos(0, 3), 2,
			[]Range{rng(pos(0, 0), pos(0, 3)), rng(pos(0, 5), pos(0, 8))},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertRanges(t, tt.want, tt.r.TransformedByMove(tt.source, tt.target, tt.n, true))
		})
	}
}

func TestMergeTouching(t *testing.T) {
	ranges := []Range{
		rng(pos(0, 0), pos(0, 3)),
		rng(pos(0, 3), pos(0, 7)),
		rng(pos(0, 7), pos(0, 9)),
		rng(pos(1, 0), pos(1, 2)),
	}
	want := []Range{rng(pos(0, 0), pos(0, 9)), rng(pos(1, 0), pos(1, 2))}
	assertRanges(t, want, MergeTouching(ranges))
}
