package history

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/alimasry/go-undo-ot/ot"
)

// Manager wires an undo and a redo command to one document. User batches
// are recorded on undo; batches either command created are not.
type Manager struct {
	undo     *Command
	redo     *Command
	recorded map[uuid.UUID]struct{}
	logger   *slog.Logger
}

type Option func(*Manager)

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates the undo and redo commands for doc. If doc reports
// batches before committing them, every new batch is recorded automatically.
func NewManager(doc Document, opts ...Option) *Manager {
	m := &Manager{
		recorded: make(map[uuid.UUID]struct{}),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.undo = NewCommand("undo", doc, m.logger)
	m.redo = NewCommand("redo", doc, m.logger)
	m.undo.Link(m.redo)
	m.redo.Link(m.undo)

	if n, ok := doc.(interface{ OnBeforeCommit(func(*ot.Batch)) }); ok {
		n.OnBeforeCommit(m.Record)
	}
	return m
}

// Record adds a user batch to the undo stack and clears the redo stack.
// Batches already recorded and batches created by undo or redo are ignored.
// Call it before the batch's first delta moves the selection so that the
// selection it keeps is the one the user had before the change.
func (m *Manager) Record(batch *ot.Batch) {
	if _, ok := m.recorded[batch.ID]; ok {
		return
	}
	if m.undo.Created(batch) || m.redo.Created(batch) {
		return
	}
	m.recorded[batch.ID] = struct{}{}
	m.undo.RecordBatch(batch)
	m.redo.ClearStack()
}

func (m *Manager) Undo(ctx context.Context) error { return m.undo.Execute(ctx) }

func (m *Manager) Redo(ctx context.Context) error { return m.redo.Execute(ctx) }

func (m *Manager) CanUndo() bool { return m.undo.IsEnabled() }

func (m *Manager) CanRedo() bool { return m.redo.IsEnabled() }

// Clear empties both stacks.
func (m *Manager) Clear() {
	m.undo.ClearStack()
	m.redo.ClearStack()
}

func (m *Manager) UndoCommand() *Command { return m.undo }

func (m *Manager) RedoCommand() *Command { return m.redo }
