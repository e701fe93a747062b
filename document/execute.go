package document

import (
	"fmt"
	"slices"

	"github.com/alimasry/go-undo-ot/ot"
)

// holderName names the graveyard elements that keep removed nodes.
const holderName = "$holder"

// executeAll applies ops in order. If one fails, the ones before it are
// reverted. Removes are retargeted in place to a new holder at the end of the
// graveyard. Holders are never taken out, so a graveyard position stays valid
// however many removes and reinserts follow it.
func (d *Document) executeAll(ops []ot.Operation) error {
	for i := range ops {
		if ops[i].Type == ot.OpRemove && !ops[i].IsNoop() {
			ops[i].Target = ot.NewPosition(ot.GraveyardRoot, len(d.Graveyard().Children), 0)
		}
		op := ops[i]
		if err := d.execute(op); err != nil {
			d.revertAll(ops[:i])
			return fmt.Errorf("operation %d (%s): %w", i, op, err)
		}
	}
	return nil
}

// revertAll undoes ops, which must have just been executed, last one first.
func (d *Document) revertAll(ops []ot.Operation) {
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		if op.Type == ot.OpInsert {
			parent, off, _ := d.locate(op.Position)
			parent.Children = slices.Delete(parent.Children, off, off+len(op.Nodes))
			continue
		}
		if err := d.execute(op.Reversed()); err != nil {
			d.logger.Error("revert operation", "operation", op.String(), "err", err)
			continue
		}
		if op.Type == ot.OpRemove {
			d.dropHolder(op.Target.Path[0])
		}
	}
}

// dropHolder removes the holder at offset i if it is the last one and empty.
func (d *Document) dropHolder(i int) {
	g := d.Graveyard()
	if i == len(g.Children)-1 && len(g.Children[i].Children) == 0 {
		g.Children = g.Children[:i]
	}
}

func (d *Document) execute(op ot.Operation) error {
	if op.IsNoop() {
		return nil
	}
	if op.Type == ot.OpInsert {
		parent, off, err := d.locate(op.Position)
		if err != nil {
			return err
		}
		if off > len(parent.Children) {
			return fmt.Errorf("insert at %s: %w", op.Position, ErrInvalidPosition)
		}
		nodes := make([]*ot.Node, len(op.Nodes))
		for i, n := range op.Nodes {
			nodes[i] = n.Clone()
		}
		parent.Children = slices.Insert(parent.Children, off, nodes...)
		return nil
	}

	src, off, err := d.locate(op.Source)
	if err != nil {
		return err
	}
	if op.HowMany < 0 || off+op.HowMany > len(src.Children) {
		return fmt.Errorf("move %d from %s: %w", op.HowMany, op.Source, ErrInvalidPosition)
	}
	if movesIntoItself(op) {
		return fmt.Errorf("move %s into itself: %w", op.Source, ErrInvalidPosition)
	}
	nodes := slices.Clone(src.Children[off : off+op.HowMany])
	src.Children = slices.Delete(src.Children, off, off+op.HowMany)

	if g := d.Graveyard(); op.Type == ot.OpRemove && len(op.Target.Path) == 2 && op.Target.Path[0] == len(g.Children) {
		g.Children = append(g.Children, ot.NewElement(holderName))
	}

	at := op.MovedStart()
	dst, toff, err := d.locate(at)
	if err == nil && toff > len(dst.Children) {
		err = fmt.Errorf("move to %s: %w", op.Target, ErrInvalidPosition)
	}
	if err != nil {
		src.Children = slices.Insert(src.Children, off, nodes...)
		return err
	}
	dst.Children = slices.Insert(dst.Children, toff, nodes...)
	return nil
}

// movesIntoItself reports whether op's target lies inside one of the nodes
// it moves.
func movesIntoItself(op ot.Operation) bool {
	s, t := op.Source, op.Target
	if s.Root != t.Root || len(t.Path) <= len(s.Path) {
		return false
	}
	depth := len(s.Path) - 1
	if !slices.Equal(s.Path[:depth], t.Path[:depth]) {
		return false
	}
	return t.Path[depth] >= s.Offset() && t.Path[depth] < s.Offset()+op.HowMany
}

// locate returns the node that contains p and p's offset in it.
func (d *Document) locate(p ot.Position) (*ot.Node, int, error) {
	node := d.roots[p.Root]
	if node == nil {
		return nil, 0, fmt.Errorf("root %q: %w", p.Root, ErrInvalidPosition)
	}
	if len(p.Path) == 0 {
		return nil, 0, fmt.Errorf("empty path in %s: %w", p, ErrInvalidPosition)
	}
	for _, i := range p.ParentPath() {
		if i < 0 || i >= len(node.Children) {
			return nil, 0, fmt.Errorf("%s: %w", p, ErrInvalidPosition)
		}
		node = node.Children[i]
	}
	if p.Offset() < 0 {
		return nil, 0, fmt.Errorf("%s: %w", p, ErrInvalidPosition)
	}
	return node, p.Offset(), nil
}
