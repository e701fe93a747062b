package document

import (
	"context"
	"testing"

	"pgregory.net/rapid"

	"github.com/alimasry/go-undo-ot/ot"
)

// drawOps draws operations that are valid one after another on a single
// paragraph that starts with n characters.
func drawOps(t *rapid.T, n int) []ot.Operation {
	count := rapid.IntRange(1, 4).Draw(t, "count")
	ops := make([]ot.Operation, 0, count)
	for range count {
		kind := rapid.IntRange(0, 2).Draw(t, "kind")
		if n == 0 {
			kind = 0
		}
		switch kind {
		case 0:
			pos := rapid.IntRange(0, n).Draw(t, "insert-at")
			text := rapid.StringMatching(`[a-z]{1,3}`).Draw(t, "text")
			ops = append(ops, ot.NewInsert(at(0, pos), ot.NewText(text)...))
			n += len(text)
		case 1:
			pos := rapid.IntRange(0, n-1).Draw(t, "remove-at")
			size := rapid.IntRange(1, n-pos).Draw(t, "remove-size")
			ops = append(ops, ot.NewRemove(at(0, pos), size))
			n -= size
		default:
			pos := rapid.IntRange(0, n-1).Draw(t, "move-from")
			size := rapid.IntRange(1, n-pos).Draw(t, "move-size")
			// Drawn where the nodes land once taken out, then mapped back so
			// the target never falls inside the moved span.
			target := rapid.IntRange(0, n-size).Draw(t, "move-to")
			if target > pos {
				target += size
			}
			ops = append(ops, ot.NewMove(at(0, pos), at(0, target), size))
		}
	}
	return ops
}

func TestProperty_ReversedDeltaRestoresText(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		content := rapid.StringMatching(`[A-Z]{0,8}`).Draw(t, "content")
		d := New("doc", content)
		ctx := context.Background()

		committed, err := d.Apply(ctx, d.NewBatch(), ot.NewDelta(0, drawOps(t, len(content))...))
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		if _, err := d.Apply(ctx, d.NewBatch(), d.ReverseDelta(committed)); err != nil {
			t.Fatalf("apply reversed: %v", err)
		}
		if got := d.Text(MainRoot); got != content {
			t.Fatalf("text = %q, want %q", got, content)
		}
	})
}
