// Package document is a tree document that executes deltas, keeps their
// history and tracks the user's selection.
package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/alimasry/go-undo-ot/ot"
	"github.com/alimasry/go-undo-ot/store"
)

// MainRoot is the root that holds the document content.
const MainRoot = "main"

var (
	ErrInvalidPosition = errors.New("invalid position")
	ErrNotFound        = errors.New("not found")
)

type entry struct {
	delta    ot.Delta
	batchID  uuid.UUID
	inactive bool // undone, or applied to undo something
}

// Document is a tree of named roots plus the graveyard. It is not safe for
// concurrent use; callers serialize access.
type Document struct {
	id        string
	roots     map[string]*ot.Node
	version   int
	history   []entry
	selection ot.Selection
	store     store.DocumentStore
	logger    *slog.Logger
	listeners []func(*ot.Batch)
}

type Option func(*Document)

// WithStore persists every applied delta and undo mark to s.
func WithStore(s store.DocumentStore) Option {
	return func(d *Document) { d.store = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Document) { d.logger = l }
}

// New creates a document whose main root holds one paragraph per line of
// content.
func New(id, content string, opts ...Option) *Document {
	main := ot.NewElement(MainRoot)
	for _, line := range strings.Split(content, "\n") {
		main.Children = append(main.Children, ot.NewElement("p", ot.NewText(line)...))
	}
	d := &Document{
		id: id,
		roots: map[string]*ot.Node{
			MainRoot:         main,
			ot.GraveyardRoot: ot.NewElement(ot.GraveyardRoot),
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("doc", id)
	return d
}

// Create adds a new document to s and returns it.
func Create(ctx context.Context, s store.DocumentStore, id, content string, opts ...Option) (*Document, error) {
	if err := s.Create(ctx, id, content); err != nil {
		return nil, fmt.Errorf("create document %q: %w", id, err)
	}
	return New(id, content, append(opts, WithStore(s))...), nil
}

// Load rebuilds a document from s by replaying its delta log.
func Load(ctx context.Context, s store.DocumentStore, id string, opts ...Option) (*Document, error) {
	info, err := s.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("load document %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("load document %q: %w", id, err)
	}
	recs, err := s.GetDeltas(ctx, id, 0)
	if err != nil {
		return nil, fmt.Errorf("load deltas of %q: %w", id, err)
	}

	d := New(id, info.Content, append(opts, WithStore(s))...)
	for _, rec := range recs {
		if rec.Delta.BaseVersion != d.version {
			return nil, fmt.Errorf("replay %q: delta based on %d at version %d", id, rec.Delta.BaseVersion, d.version)
		}
		if err := d.executeAll(rec.Delta.Operations); err != nil {
			return nil, fmt.Errorf("replay %q at version %d: %w", id, d.version, err)
		}
		d.history = append(d.history, entry{delta: rec.Delta, batchID: rec.BatchID, inactive: rec.Inactive})
		d.version = rec.Delta.NextVersion()
	}
	d.logger.Debug("document loaded", "version", d.version, "deltas", len(recs))
	return d, nil
}

func (d *Document) ID() string { return d.id }

// Root returns the named root, or nil if there is none.
func (d *Document) Root(name string) *ot.Node { return d.roots[name] }

func (d *Document) Graveyard() *ot.Node { return d.roots[ot.GraveyardRoot] }

// Version is the number of operations applied so far.
func (d *Document) Version() int { return d.version }

// Text returns the text of a root, with a newline between its elements.
func (d *Document) Text(root string) string {
	r := d.roots[root]
	if r == nil {
		return ""
	}
	var b strings.Builder
	for i, c := range r.Children {
		if i > 0 && c.Name != "" {
			b.WriteByte('\n')
		}
		b.WriteString(c.Text())
	}
	return b.String()
}

// OnBeforeCommit registers fn to be called with the batch of every delta
// that executed and persisted, before the delta is added to the batch and
// before the selection moves with it.
func (d *Document) OnBeforeCommit(fn func(*ot.Batch)) {
	d.listeners = append(d.listeners, fn)
}

// NewBatch returns an empty batch to apply deltas with.
func (d *Document) NewBatch() *ot.Batch { return ot.NewBatch() }

// Apply executes delta on top of the current version and adds it to batch.
// The delta's base version is set to the current version. Either every
// operation is applied and persisted or the document is left unchanged.
// It returns the committed delta.
func (d *Document) Apply(ctx context.Context, batch *ot.Batch, delta ot.Delta) (ot.Delta, error) {
	delta = delta.Clone()
	delta.BaseVersion = d.version
	if err := d.executeAll(delta.Operations); err != nil {
		return ot.Delta{}, fmt.Errorf("apply delta at version %d: %w", d.version, err)
	}
	if d.store != nil {
		rec := store.DeltaRecord{Delta: delta, BatchID: batch.ID}
		if err := d.store.AppendDelta(ctx, d.id, rec); err != nil {
			d.revertAll(delta.Operations)
			return ot.Delta{}, fmt.Errorf("persist delta at version %d: %w", d.version, err)
		}
	}

	for _, fn := range d.listeners {
		fn(batch)
	}
	d.history = append(d.history, entry{delta: delta, batchID: batch.ID})
	d.version = delta.NextVersion()
	batch.Add(delta.Clone())
	d.transformSelection(delta)

	d.logger.Debug("delta applied", "batch", batch.ID, "version", d.version, "operations", len(delta.Operations))
	return delta, nil
}

// Deltas returns copies of every delta based on version or later.
func (d *Document) Deltas(version int) []ot.Delta {
	i := d.find(version)
	deltas := make([]ot.Delta, 0, len(d.history)-i)
	for _, e := range d.history[i:] {
		deltas = append(deltas, e.delta.Clone())
	}
	return deltas
}

// DeltasSince returns copies of the deltas based on version or later,
// leaving out deltas that were undone or applied to undo something.
func (d *Document) DeltasSince(version int) []ot.Delta {
	i := d.find(version)
	var deltas []ot.Delta
	for _, e := range d.history[i:] {
		if !e.inactive {
			deltas = append(deltas, e.delta.Clone())
		}
	}
	return deltas
}

// ReverseDelta returns the delta that undoes delta right after it.
func (d *Document) ReverseDelta(delta ot.Delta) ot.Delta { return delta.Reversed() }

// MarkUndone records that undone was reversed by the reversing deltas. None
// of them is returned by DeltasSince afterwards.
func (d *Document) MarkUndone(ctx context.Context, undone ot.Delta, reversing ...ot.Delta) error {
	versions := make([]int, 0, len(reversing)+1)
	idx := make([]int, 0, len(reversing)+1)
	for _, delta := range append([]ot.Delta{undone}, reversing...) {
		i := d.find(delta.BaseVersion)
		if i == len(d.history) || d.history[i].delta.BaseVersion != delta.BaseVersion {
			return fmt.Errorf("delta %d: %w", delta.BaseVersion, ErrNotFound)
		}
		versions = append(versions, delta.BaseVersion)
		idx = append(idx, i)
	}
	if d.store != nil {
		if err := d.store.MarkInactive(ctx, d.id, versions...); err != nil {
			return fmt.Errorf("persist undo of delta %d: %w", undone.BaseVersion, err)
		}
	}
	for _, i := range idx {
		d.history[i].inactive = true
	}
	return nil
}

// Selection returns a copy of the current selection.
func (d *Document) Selection() ot.Selection { return d.selection.Clone() }

// SetSelection replaces the current selection.
func (d *Document) SetSelection(ranges []ot.Range, isBackward bool) {
	d.selection = ot.Selection{Ranges: ranges, IsBackward: isBackward}.Clone()
}

// find returns the index of the first history entry based on version or
// later.
func (d *Document) find(version int) int {
	i, _ := slices.BinarySearchFunc(d.history, version, func(e entry, v int) int {
		return e.delta.BaseVersion - v
	})
	return i
}

// transformSelection keeps the selection on the same content after delta.
// Ends that land inside removed content stay where the content was.
func (d *Document) transformSelection(delta ot.Delta) {
	for i, r := range d.selection.Ranges {
		collapsed := r.IsCollapsed()
		for _, op := range delta.Operations {
			r.Start = transformPosition(r.Start, op, true)
			r.End = transformPosition(r.End, op, collapsed)
		}
		d.selection.Ranges[i] = r
	}
}

func transformPosition(p ot.Position, op ot.Operation, insertBefore bool) ot.Position {
	if op.Type == ot.OpInsert {
		return p.TransformedByInsertion(op.Position, len(op.Nodes), insertBefore)
	}
	t := p.TransformedByMove(op.Source, op.Target, op.HowMany, insertBefore)
	if t.InGraveyard() && !p.InGraveyard() {
		return ot.NewPosition(op.Source.Root, op.Source.Path...)
	}
	return t
}
