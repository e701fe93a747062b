package ot

import (
	"fmt"
	"strings"
)

// OpType identifies the kind of an operation.
type OpType string

const (
	OpInsert   OpType = "insert"
	OpMove     OpType = "move"
	OpRemove   OpType = "remove"   // move into the graveyard
	OpReinsert OpType = "reinsert" // move out of the graveyard
)

// Node is a document tree node. Text is stored one character per node in
// Data; elements have a Name and children.
type Node struct {
	Name     string  `json:"name,omitempty"`
	Data     string  `json:"data,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// NewText returns one node per character of s.
func NewText(s string) []*Node {
	nodes := make([]*Node, 0, len(s))
	for _, r := range s {
		nodes = append(nodes, &Node{Data: string(r)})
	}
	return nodes
}

// NewElement creates an element node with the given children.
func NewElement(name string, children ...*Node) *Node {
	return &Node{Name: name, Children: children}
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	c := &Node{Name: n.Name, Data: n.Data}
	if n.Children != nil {
		c.Children = make([]*Node, len(n.Children))
		for i, ch := range n.Children {
			c.Children[i] = ch.Clone()
		}
	}
	return c
}

// Text returns the concatenated character data under n.
func (n *Node) Text() string {
	var b strings.Builder
	n.writeText(&b)
	return b.String()
}

func (n *Node) writeText(b *strings.Builder) {
	b.WriteString(n.Data)
	for _, c := range n.Children {
		c.writeText(b)
	}
}

// Operation is a single atomic change to a document tree. Inserts use
// Position and Nodes; moves, removes and reinserts use Source, Target and
// HowMany.
type Operation struct {
	Type     OpType   `json:"type"`
	Position Position `json:"position,omitzero"`
	Nodes    []*Node  `json:"nodes,omitempty"`
	Source   Position `json:"source,omitzero"`
	Target   Position `json:"target,omitzero"`
	HowMany  int      `json:"howMany,omitempty"`
}

// NewInsert creates an operation that inserts nodes at pos.
func NewInsert(pos Position, nodes ...*Node) Operation {
	return Operation{Type: OpInsert, Position: pos, Nodes: nodes}
}

// NewMove creates an operation that moves howMany nodes from source to target.
func NewMove(source, target Position, howMany int) Operation {
	return Operation{Type: OpMove, Source: source, Target: target, HowMany: howMany}
}

// NewRemove creates an operation that moves howMany nodes at source into the
// graveyard. Documents may pick a different spot in the graveyard when they
// apply it; the committed operation carries the real target.
func NewRemove(source Position, howMany int) Operation {
	return Operation{
		Type:    OpRemove,
		Source:  source,
		Target:  NewPosition(GraveyardRoot, 0),
		HowMany: howMany,
	}
}

// NewReinsert creates an operation that moves howMany nodes from the
// graveyard back to target.
func NewReinsert(source, target Position, howMany int) Operation {
	return Operation{Type: OpReinsert, Source: source, Target: target, HowMany: howMany}
}

// Size returns the number of nodes the operation inserts or moves.
func (op Operation) Size() int {
	if op.Type == OpInsert {
		return len(op.Nodes)
	}
	return op.HowMany
}

// IsNoop returns true if the operation changes nothing.
func (op Operation) IsNoop() bool { return op.Size() == 0 }

// MovedRange returns the span a move takes nodes out of.
func (op Operation) MovedRange() Range { return NewFlatRange(op.Source, op.HowMany) }

// MovedStart returns where the moved nodes begin after the operation.
func (op Operation) MovedStart() Position {
	return movedStart(op.Source, op.Target, op.HowMany)
}

// Reversed returns the operation that undoes op when applied right after it.
// Inserted nodes are reversed by sending them to the graveyard.
func (op Operation) Reversed() Operation {
	if op.Type == OpInsert {
		return NewRemove(op.Position.clone(), len(op.Nodes))
	}
	start := op.MovedStart()
	rev := Operation{
		Type:    OpMove,
		Source:  start,
		Target:  op.Source.TransformedByInsertion(start, op.HowMany, false),
		HowMany: op.HowMany,
	}
	switch op.Type {
	case OpRemove:
		rev.Type = OpReinsert
	case OpReinsert:
		rev.Type = OpRemove
	}
	return rev
}

// Clone returns a copy of op that shares no positions with it.
func (op Operation) Clone() Operation {
	c := op
	c.Position = op.Position.clone()
	c.Source = op.Source.clone()
	c.Target = op.Target.clone()
	if op.Nodes != nil {
		c.Nodes = make([]*Node, len(op.Nodes))
		for i, n := range op.Nodes {
			c.Nodes[i] = n.Clone()
		}
	}
	return c
}

func (op Operation) String() string {
	if op.Type == OpInsert {
		return fmt.Sprintf("insert %d at %s", len(op.Nodes), op.Position)
	}
	return fmt.Sprintf("%s %d from %s to %s", op.Type, op.HowMany, op.Source, op.Target)
}
