package history

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alimasry/go-undo-ot/document"
	"github.com/alimasry/go-undo-ot/ot"
)

func at(path ...int) ot.Position { return ot.NewPosition(document.MainRoot, path...) }

func edit(t *testing.T, doc *document.Document, ops ...ot.Operation) *ot.Batch {
	t.Helper()
	batch := doc.NewBatch()
	_, err := doc.Apply(context.Background(), batch, ot.NewDelta(0, ops...))
	require.NoError(t, err)
	return batch
}

func assertSelection(t *testing.T, doc *document.Document, want ...ot.Range) {
	t.Helper()
	got := doc.Selection().Ranges
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, got[i].Start.IsEqual(want[i].Start) && got[i].End.IsEqual(want[i].End),
			"range %d = %v, want %v", i, got[i], want[i])
	}
}

func TestManager_UndoRedoInsert(t *testing.T) {
	ctx := context.Background()
	doc := document.New("doc", "hello")
	doc.SetSelection([]ot.Range{ot.NewRange(at(0, 5), at(0, 5))}, false)
	m := NewManager(doc)

	edit(t, doc, ot.NewInsert(at(0, 5), ot.NewText(" world")...))
	assert.True(t, m.CanUndo())
	assert.False(t, m.CanRedo())

	require.NoError(t, m.Undo(ctx))
	assert.Equal(t, "hello", doc.Text(document.MainRoot))
	assertSelection(t, doc, ot.NewRange(at(0, 5), at(0, 5)))
	assert.False(t, m.CanUndo())
	assert.True(t, m.CanRedo())

	require.NoError(t, m.Redo(ctx))
	assert.Equal(t, "hello world", doc.Text(document.MainRoot))
	assertSelection(t, doc, ot.NewRange(at(0, 11), at(0, 11)))
	assert.True(t, m.CanUndo())
	assert.False(t, m.CanRedo())
}

func TestManager_UndoRedoOrder(t *testing.T) {
	ctx := context.Background()
	doc := document.New("doc", "ab")
	m := NewManager(doc)

	edit(t, doc, ot.NewInsert(at(0, 0), ot.NewText("x")...))
	edit(t, doc, ot.NewInsert(at(0, 0), ot.NewText("y")...))

	steps := []struct {
		name string
		run  func(context.Context) error
		want string
	}{
		{"undo second", m.Undo, "xab"},
		{"undo first", m.Undo, "ab"},
		{"redo first", m.Redo, "xab"},
		{"redo second", m.Redo, "yxab"},
		{"undo again", m.Undo, "xab"},
	}
	for _, step := range steps {
		require.NoError(t, step.run(ctx), step.name)
		assert.Equal(t, step.want, doc.Text(document.MainRoot), step.name)
	}
}

func TestManager_UserEditClearsRedo(t *testing.T) {
	ctx := context.Background()
	doc := document.New("doc", "ab")
	m := NewManager(doc)

	edit(t, doc, ot.NewInsert(at(0, 0), ot.NewText("x")...))
	require.NoError(t, m.Undo(ctx))
	require.True(t, m.CanRedo())

	edit(t, doc, ot.NewInsert(at(0, 2), ot.NewText("z")...))
	assert.False(t, m.CanRedo())
	assert.True(t, m.CanUndo())
}

func TestManager_MultiDeltaBatch(t *testing.T) {
	ctx := context.Background()
	doc := document.New("doc", "hello")
	m := NewManager(doc)

	batch := doc.NewBatch()
	_, err := doc.Apply(ctx, batch, ot.NewDelta(0, ot.NewInsert(at(0, 0), ot.NewText("ab")...)))
	require.NoError(t, err)
	_, err = doc.Apply(ctx, batch, ot.NewDelta(0, ot.NewRemove(at(0, 1), 2)))
	require.NoError(t, err)
	require.Equal(t, "aello", doc.Text(document.MainRoot))
	assert.Equal(t, 1, m.UndoCommand().Len(), "a batch is recorded once")

	require.NoError(t, m.Undo(ctx))
	assert.Equal(t, "hello", doc.Text(document.MainRoot))
	assert.False(t, m.CanUndo())
}

func TestManager_UndoRemovalAfterUndoingInsert(t *testing.T) {
	ctx := context.Background()
	doc := document.New("doc", "ABCDEFGH")
	m := NewManager(doc)

	edit(t, doc, ot.NewRemove(at(0, 0), 1))
	edit(t, doc, ot.NewInsert(at(0, 0), ot.NewText("a")...))
	require.Equal(t, "aBCDEFGH", doc.Text(document.MainRoot))

	require.NoError(t, m.Undo(ctx))
	assert.Equal(t, "BCDEFGH", doc.Text(document.MainRoot))
	require.NoError(t, m.Undo(ctx))
	assert.Equal(t, "ABCDEFGH", doc.Text(document.MainRoot))

	require.NoError(t, m.Redo(ctx))
	assert.Equal(t, "BCDEFGH", doc.Text(document.MainRoot))
	require.NoError(t, m.Redo(ctx))
	assert.Equal(t, "aBCDEFGH", doc.Text(document.MainRoot))
}

func TestManager_IgnoresOwnBatches(t *testing.T) {
	ctx := context.Background()
	doc := document.New("doc", "ab")
	m := NewManager(doc)

	edit(t, doc, ot.NewInsert(at(0, 0), ot.NewText("x")...))
	require.NoError(t, m.Undo(ctx))

	entry, err := m.RedoCommand().stack.Peek()
	require.NoError(t, err)
	assert.True(t, m.UndoCommand().Created(entry.Batch))
	assert.False(t, m.RedoCommand().Created(entry.Batch))

	m.Record(entry.Batch)
	assert.False(t, m.CanUndo(), "a batch created by undo is not recorded")
	assert.True(t, m.CanRedo())
}

func TestCommand_UndoAfterIndependentEdit(t *testing.T) {
	ctx := context.Background()
	doc := document.New("doc", "hello")
	doc.SetSelection([]ot.Range{ot.NewRange(at(0, 1), at(0, 3))}, true)
	undo := NewCommand("undo", doc, nil)

	batch := doc.NewBatch()
	undo.RecordBatch(batch)
	_, err := doc.Apply(ctx, batch, ot.NewDelta(0, ot.NewRemove(at(0, 1), 2)))
	require.NoError(t, err)

	// Not recorded, like an edit from somewhere else.
	edit(t, doc, ot.NewInsert(at(0, 0), ot.NewText("abc")...))
	require.Equal(t, "abchlo", doc.Text(document.MainRoot))

	require.NoError(t, undo.Execute(ctx))
	assert.Equal(t, "abchello", doc.Text(document.MainRoot))
	assertSelection(t, doc, ot.NewRange(at(0, 4), at(0, 6)))
	assert.True(t, doc.Selection().IsBackward)
}

func TestCommand_UndoLosesTies(t *testing.T) {
	ctx := context.Background()
	doc := document.New("doc", "ab")
	undo := NewCommand("undo", doc, nil)

	batch := doc.NewBatch()
	undo.RecordBatch(batch)
	_, err := doc.Apply(ctx, batch, ot.NewDelta(0, ot.NewRemove(at(0, 1), 1)))
	require.NoError(t, err)
	edit(t, doc, ot.NewInsert(at(0, 1), ot.NewText("X")...))

	require.NoError(t, undo.Execute(ctx))
	assert.Equal(t, "aXb", doc.Text(document.MainRoot))
}

func TestCommand_GraveyardRangesAreNotRestored(t *testing.T) {
	ctx := context.Background()
	doc := document.New("doc", "hello world")
	undo := NewCommand("undo", doc, nil)

	tests := []struct {
		name     string
		recorded []ot.Range
		want     []ot.Range
	}{
		{
			"only range removed keeps current selection",
			[]ot.Range{ot.NewRange(at(0, 6), at(0, 11))},
			[]ot.Range{ot.NewRange(at(0, 6), at(0, 6))},
		},
		{
			"surviving ranges are restored",
			[]ot.Range{ot.NewRange(at(0, 0), at(0, 5)), ot.NewRange(at(0, 6), at(0, 11))},
			[]ot.Range{ot.NewRange(at(0, 0), at(0, 5))},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc = document.New("doc", "hello world")
			undo = NewCommand("undo", doc, nil)
			doc.SetSelection(tt.recorded, false)

			batch := doc.NewBatch()
			undo.RecordBatch(batch)
			_, err := doc.Apply(ctx, batch, ot.NewDelta(0, ot.NewInsert(at(0, 0), ot.NewText("!")...)))
			require.NoError(t, err)
			// Someone else removes "world".
			edit(t, doc, ot.NewRemove(at(0, 7), 5))
			doc.SetSelection([]ot.Range{ot.NewRange(at(0, 7), at(0, 7))}, false)

			require.NoError(t, undo.Execute(ctx))
			assert.Equal(t, "hello ", doc.Text(document.MainRoot))
			assertSelection(t, doc, tt.want...)
		})
	}
}

func TestCommand_EnabledChanges(t *testing.T) {
	ctx := context.Background()
	doc := document.New("doc", "ab")
	m := NewManager(doc)

	var undoEvents, redoEvents []bool
	m.UndoCommand().OnEnabledChange(func(v bool) { undoEvents = append(undoEvents, v) })
	m.RedoCommand().OnEnabledChange(func(v bool) { redoEvents = append(redoEvents, v) })

	edit(t, doc, ot.NewInsert(at(0, 0), ot.NewText("x")...))
	edit(t, doc, ot.NewInsert(at(0, 0), ot.NewText("y")...))
	require.NoError(t, m.Undo(ctx))
	require.NoError(t, m.Redo(ctx))
	m.Clear()

	assert.Equal(t, []bool{true, false}, undoEvents)
	assert.Equal(t, []bool{true, false}, redoEvents)
}

func TestCommand_ExecuteEmpty(t *testing.T) {
	doc := document.New("doc", "")
	undo := NewCommand("undo", doc, nil)
	assert.False(t, undo.IsEnabled())
	assert.ErrorIs(t, undo.Execute(context.Background()), ErrEmptyStack)
}

var errApplyFailed = errors.New("apply failed")

// flakyDocument fails every Apply once budget successful calls are used up.
// A negative budget never runs out.
type flakyDocument struct {
	*document.Document
	budget int
}

func (f *flakyDocument) Apply(ctx context.Context, batch *ot.Batch, delta ot.Delta) (ot.Delta, error) {
	if f.budget == 0 {
		return ot.Delta{}, errApplyFailed
	}
	f.budget--
	return f.Document.Apply(ctx, batch, delta)
}

func TestCommand_PartialReversalGoesToLinked(t *testing.T) {
	ctx := context.Background()
	doc := document.New("doc", "ab")
	flaky := &flakyDocument{Document: doc, budget: -1}
	undo := NewCommand("undo", flaky, nil)
	redo := NewCommand("redo", flaky, nil)
	undo.Link(redo)
	redo.Link(undo)

	batch := doc.NewBatch()
	undo.RecordBatch(batch)
	_, err := doc.Apply(ctx, batch, ot.NewDelta(0, ot.NewInsert(at(0, 0), ot.NewText("x")...)))
	require.NoError(t, err)
	_, err = doc.Apply(ctx, batch, ot.NewDelta(0, ot.NewInsert(at(0, 0), ot.NewText("y")...)))
	require.NoError(t, err)

	flaky.budget = 1
	require.ErrorIs(t, undo.Execute(ctx), errApplyFailed)
	assert.Equal(t, "xab", doc.Text(document.MainRoot))
	assert.Equal(t, 0, undo.Len())
	require.Equal(t, 1, redo.Len())

	flaky.budget = -1
	require.NoError(t, redo.Execute(ctx))
	assert.Equal(t, "yxab", doc.Text(document.MainRoot))
	assert.Equal(t, 1, undo.Len())
}
