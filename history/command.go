// Package history records user batches and reverses them on request,
// transforming each reversal against everything that changed the document
// since the batch was applied.
package history

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/alimasry/go-undo-ot/ot"
)

// Document is what the commands need from the edited document.
type Document interface {
	Selection() ot.Selection
	SetSelection(ranges []ot.Range, isBackward bool)
	NewBatch() *ot.Batch
	// Apply commits delta at the current version as part of batch and
	// returns the committed delta.
	Apply(ctx context.Context, batch *ot.Batch, delta ot.Delta) (ot.Delta, error)
	// Deltas returns every delta based on version or later.
	Deltas(version int) []ot.Delta
	// DeltasSince is Deltas without the deltas that were undone or applied
	// to undo something.
	DeltasSince(version int) []ot.Delta
	ReverseDelta(delta ot.Delta) ot.Delta
	MarkUndone(ctx context.Context, undone ot.Delta, reversing ...ot.Delta) error
}

// Command reverses the batches on its stack. Undo and redo are two commands
// linked to each other: executing one pushes the batch it created onto the
// other.
type Command struct {
	name     string
	doc      Document
	stack    Stack
	created  map[uuid.UUID]struct{}
	linked   *Command
	enabled  bool
	onChange []func(enabled bool)
	logger   *slog.Logger
}

// NewCommand creates a command named name working on doc.
func NewCommand(name string, doc Document, logger *slog.Logger) *Command {
	if logger == nil {
		logger = slog.Default()
	}
	return &Command{
		name:    name,
		doc:     doc,
		created: make(map[uuid.UUID]struct{}),
		logger:  logger.With("command", name),
	}
}

// Link sets the command that receives the batches c creates.
func (c *Command) Link(other *Command) { c.linked = other }

func (c *Command) Name() string { return c.name }

// RecordBatch pushes batch with the document's current selection.
func (c *Command) RecordBatch(batch *ot.Batch) {
	c.push(Entry{Batch: batch, Selection: c.doc.Selection()})
}

// ClearStack drops every recorded entry.
func (c *Command) ClearStack() {
	c.stack.Clear()
	c.refresh()
}

// IsEnabled reports whether there is anything to execute.
func (c *Command) IsEnabled() bool { return c.stack.Len() > 0 }

// OnEnabledChange registers fn to be called whenever IsEnabled changes.
func (c *Command) OnEnabledChange(fn func(enabled bool)) {
	c.onChange = append(c.onChange, fn)
}

// Created reports whether batch was created by c.
func (c *Command) Created(batch *ot.Batch) bool {
	_, ok := c.created[batch.ID]
	return ok
}

// Len returns the number of recorded entries.
func (c *Command) Len() int { return c.stack.Len() }

func (c *Command) push(e Entry) {
	c.stack.Push(e)
	c.refresh()
}

// pushLinked hands a batch c created to the linked command, unless it is
// empty.
func (c *Command) pushLinked(e Entry) {
	if c.linked != nil && len(e.Batch.Deltas) > 0 {
		c.linked.push(e)
	}
}

func (c *Command) refresh() {
	enabled := c.IsEnabled()
	if enabled == c.enabled {
		return
	}
	c.enabled = enabled
	for _, fn := range c.onChange {
		fn(enabled)
	}
}

// Execute reverses the most recent entry. Each delta of the batch, last one
// first, is reversed, transformed against the deltas applied after it and
// applied in a new batch. The recorded selection is then moved onto the
// current document. The new batch goes to the linked command together with
// the selection from before the execution.
func (c *Command) Execute(ctx context.Context) error {
	e, err := c.stack.Pop()
	if err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}
	c.refresh()

	before := c.doc.Selection()
	batch := c.doc.NewBatch()
	c.created[batch.ID] = struct{}{}

	for i := len(e.Batch.Deltas) - 1; i >= 0; i-- {
		if err := c.reverse(ctx, batch, e.Batch.Deltas[i]); err != nil {
			executionsTotal.WithLabelValues(c.name, "error").Inc()
			// Whatever was reversed before the failure can still be taken
			// back by the linked command.
			c.pushLinked(Entry{Batch: batch, Selection: before})
			return fmt.Errorf("%s batch %s: %w", c.name, e.Batch.ID, err)
		}
	}

	c.restoreSelection(e)
	c.pushLinked(Entry{Batch: batch, Selection: before})
	executionsTotal.WithLabelValues(c.name, "ok").Inc()
	c.logger.Debug("batch reversed", "batch", e.Batch.ID, "deltas", len(batch.Deltas))
	return nil
}

func (c *Command) reverse(ctx context.Context, batch *ot.Batch, delta ot.Delta) error {
	reversed := c.doc.ReverseDelta(delta)
	since := c.doc.DeltasSince(delta.NextVersion())
	// The reversal loses ties against edits made after the batch.
	transformed := ot.TransformDelta([]ot.Delta{reversed}, since, false)

	applied := make([]ot.Delta, 0, len(transformed))
	for _, d := range transformed {
		committed, err := c.doc.Apply(ctx, batch, d)
		if err != nil {
			return fmt.Errorf("apply reversal of delta %d: %w", delta.BaseVersion, err)
		}
		applied = append(applied, committed)
	}
	if err := c.doc.MarkUndone(ctx, delta, applied...); err != nil {
		return err
	}
	reversedDeltasTotal.WithLabelValues(c.name).Add(float64(len(applied)))
	return nil
}

// restoreSelection moves the recorded ranges onto the current document. They
// were recorded before the batch, so they go through every delta from the
// batch on, its reversal included. Of the pieces a range splits into, the
// first one outside the graveyard is kept. The selection is left alone when
// no range survives.
func (c *Command) restoreSelection(e Entry) {
	if len(e.Batch.Deltas) == 0 {
		return
	}
	since := c.doc.Deltas(e.Batch.BaseVersion())

	var ranges []ot.Range
	for _, r := range e.Selection.Ranges {
		kept := false
		for _, t := range ot.TransformSelectionRange(r, since) {
			if !t.InGraveyard() {
				ranges = append(ranges, t)
				kept = true
				break
			}
		}
		if !kept {
			droppedRangesTotal.Inc()
		}
	}
	if len(ranges) == 0 {
		return
	}
	c.doc.SetSelection(ranges, e.Selection.IsBackward)
	selectionRestoresTotal.WithLabelValues(c.name).Inc()
}
