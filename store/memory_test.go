package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alimasry/go-undo-ot/ot"
)

func insertRecord(base int, text string) DeltaRecord {
	at := ot.NewPosition("main", 0, 0)
	return DeltaRecord{
		Delta:   ot.NewDelta(base, ot.NewInsert(at, ot.NewText(text)...)),
		BatchID: uuid.New(),
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "doc1", "hello"))

	info, err := s.Get(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, "doc1", info.ID)
	assert.Equal(t, "hello", info.Content)
	assert.Equal(t, 0, info.Version)
}

func TestMemoryStore_CreateDuplicate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "doc1", ""))
	assert.ErrorIs(t, s.Create(ctx, "doc1", ""), ErrExists)
}

func TestMemoryStore_GetNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_List(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Create(ctx, id, ""))
	}

	docs, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 3)
}

func TestMemoryStore_AppendAndGetDeltas(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "doc1", ""))

	// Deltas with two operations advance the version by two.
	first := insertRecord(0, "ab")
	first.Delta.Operations = append(first.Delta.Operations,
		ot.NewRemove(ot.NewPosition("main", 0, 0), 1))
	for _, rec := range []DeltaRecord{first, insertRecord(2, "c"), insertRecord(3, "d")} {
		require.NoError(t, s.AppendDelta(ctx, "doc1", rec))
	}

	info, err := s.Get(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, 4, info.Version)

	tests := []struct {
		from      int
		wantBases []int
	}{
		{0, []int{0, 2, 3}},
		{1, []int{2, 3}},
		{3, []int{3}},
		{4, []int{}},
	}
	for _, tt := range tests {
		recs, err := s.GetDeltas(ctx, "doc1", tt.from)
		require.NoError(t, err, "GetDeltas(%d)", tt.from)
		bases := make([]int, len(recs))
		for i, rec := range recs {
			bases[i] = rec.Delta.BaseVersion
		}
		assert.Equal(t, tt.wantBases, bases, "GetDeltas(%d)", tt.from)
	}
}

func TestMemoryStore_AppendVersionConflict(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "doc1", ""))

	assert.ErrorIs(t, s.AppendDelta(ctx, "doc1", insertRecord(5, "x")), ErrVersionConflict)
}

func TestMemoryStore_AppendNotFound(t *testing.T) {
	s := NewMemoryStore()
	err := s.AppendDelta(context.Background(), "nope", insertRecord(0, "x"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_GetDeltasInvalidVersion(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "doc1", ""))
	require.NoError(t, s.AppendDelta(ctx, "doc1", insertRecord(0, "a")))

	_, err := s.GetDeltas(ctx, "doc1", -1)
	assert.Error(t, err, "negative version")
	_, err = s.GetDeltas(ctx, "doc1", 2)
	assert.Error(t, err, "version beyond current")
}

func TestMemoryStore_MarkInactive(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "doc1", ""))
	for i := range 3 {
		require.NoError(t, s.AppendDelta(ctx, "doc1", insertRecord(i, "a")))
	}

	require.NoError(t, s.MarkInactive(ctx, "doc1", 0, 2))
	recs, err := s.GetDeltas(ctx, "doc1", 0)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	want := []bool{true, false, true}
	for i, rec := range recs {
		assert.Equal(t, want[i], rec.Inactive, "delta %d", i)
	}

	assert.ErrorIs(t, s.MarkInactive(ctx, "doc1", 7), ErrNotFound)
}

func TestMemoryStore_GetDeltasReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "doc1", ""))
	require.NoError(t, s.AppendDelta(ctx, "doc1", insertRecord(0, "a")))

	recs, err := s.GetDeltas(ctx, "doc1", 0)
	require.NoError(t, err)
	recs[0].Delta.Operations[0].Position.Path[1] = 42

	again, err := s.GetDeltas(ctx, "doc1", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, again[0].Delta.Operations[0].Position.Path[1], "stored delta changed")
}
