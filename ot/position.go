package ot

import (
	"fmt"
	"slices"
	"strings"
)

// GraveyardRoot is the name of the root that holds removed content so it can
// be reinserted later.
const GraveyardRoot = "$graveyard"

// Position is a location in a document tree: a root name plus a path of
// child offsets. The last path element is the offset inside the parent.
type Position struct {
	Root string `json:"root"`
	Path []int  `json:"path"`
}

// NewPosition creates a position in root at the given path.
func NewPosition(root string, path ...int) Position {
	return Position{Root: root, Path: slices.Clone(path)}
}

// Offset returns the offset of the position inside its parent.
func (p Position) Offset() int {
	if len(p.Path) == 0 {
		return 0
	}
	return p.Path[len(p.Path)-1]
}

// ParentPath returns the path of the node that contains the position.
func (p Position) ParentPath() []int {
	if len(p.Path) == 0 {
		return nil
	}
	return p.Path[:len(p.Path)-1]
}

// InGraveyard reports whether the position is in the graveyard root.
func (p Position) InGraveyard() bool { return p.Root == GraveyardRoot }

// ShiftedBy returns a copy of the position with its offset moved by n.
func (p Position) ShiftedBy(n int) Position {
	return p.withOffset(p.Offset() + n)
}

func (p Position) withOffset(offset int) Position {
	c := p.clone()
	if len(c.Path) > 0 {
		c.Path[len(c.Path)-1] = offset
	}
	return c
}

func (p Position) clone() Position {
	return Position{Root: p.Root, Path: slices.Clone(p.Path)}
}

func (p Position) String() string {
	parts := make([]string, len(p.Path))
	for i, v := range p.Path {
		parts[i] = fmt.Sprint(v)
	}
	return p.Root + ":[" + strings.Join(parts, ",") + "]"
}

// pathRelation describes how two paths relate to each other.
type pathRelation int

const (
	pathSame      pathRelation = iota
	pathPrefix                 // a is a proper prefix of b
	pathExtension              // b is a proper prefix of a
	pathDiverge                // the paths differ at some index
)

// comparePaths returns the relation of a to b and, for pathDiverge, the first
// index where they differ.
func comparePaths(a, b []int) (pathRelation, int) {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return pathDiverge, i
		}
	}
	switch {
	case len(a) == len(b):
		return pathSame, 0
	case len(a) < len(b):
		return pathPrefix, 0
	default:
		return pathExtension, 0
	}
}

// Compare orders positions: roots by name, then paths in document order, with
// an ancestor position before any position inside it.
func Compare(a, b Position) int {
	if a.Root != b.Root {
		return strings.Compare(a.Root, b.Root)
	}
	rel, i := comparePaths(a.Path, b.Path)
	switch rel {
	case pathSame:
		return 0
	case pathPrefix:
		return -1
	case pathExtension:
		return 1
	}
	if a.Path[i] < b.Path[i] {
		return -1
	}
	return 1
}

func (p Position) IsEqual(o Position) bool  { return Compare(p, o) == 0 }
func (p Position) IsBefore(o Position) bool { return Compare(p, o) < 0 }
func (p Position) IsAfter(o Position) bool  { return Compare(p, o) > 0 }

// IsTouching reports whether no content lies between p and o. Equal positions
// touch, and so does a position right before a node and the position at the
// very start of that node's children. Climbing out of the end of a node needs
// the node's size, which positions do not carry, so that case is not touching.
func (p Position) IsTouching(o Position) bool {
	if p.Root != o.Root {
		return false
	}
	left, right := p, o
	if Compare(left, right) > 0 {
		left, right = right, left
	}
	for {
		if left.IsEqual(right) {
			return true
		}
		if len(right.Path) <= len(left.Path) || right.Offset() != 0 {
			return false
		}
		right = Position{Root: right.Root, Path: right.ParentPath()}
	}
}

// TransformedByInsertion returns the position after howMany nodes were
// inserted at at. When the insertion lands exactly on the position,
// insertBefore decides whether the nodes go before it (the position shifts)
// or after it.
func (p Position) TransformedByInsertion(at Position, howMany int, insertBefore bool) Position {
	if p.Root != at.Root || len(at.Path) == 0 {
		return p
	}
	rel, _ := comparePaths(at.ParentPath(), p.ParentPath())
	switch rel {
	case pathSame:
		if at.Offset() < p.Offset() || (at.Offset() == p.Offset() && insertBefore) {
			return p.ShiftedBy(howMany)
		}
	case pathPrefix:
		i := len(at.Path) - 1
		if at.Offset() <= p.Path[i] {
			c := p.clone()
			c.Path[i] += howMany
			return c
		}
	}
	return p
}

// TransformedByDeletion returns the position after howMany nodes starting at
// at were taken out. It returns false when the position was inside the
// removed nodes.
func (p Position) TransformedByDeletion(at Position, howMany int) (Position, bool) {
	if p.Root != at.Root || len(at.Path) == 0 {
		return p, true
	}
	rel, _ := comparePaths(at.ParentPath(), p.ParentPath())
	switch rel {
	case pathSame:
		if at.Offset() < p.Offset() {
			if at.Offset()+howMany > p.Offset() {
				return Position{}, false
			}
			return p.ShiftedBy(-howMany), true
		}
	case pathPrefix:
		i := len(at.Path) - 1
		if at.Offset() <= p.Path[i] {
			if at.Offset()+howMany > p.Path[i] {
				return Position{}, false
			}
			c := p.clone()
			c.Path[i] -= howMany
			return c, true
		}
	}
	return p, true
}

// TransformedByMove returns the position after howMany nodes were moved from
// source to target. Positions inside the moved nodes follow them. Positions on
// the edges of the moved span stay where they are. insertBefore breaks the tie
// when the position equals the insertion point.
func (p Position) TransformedByMove(source, target Position, howMany int, insertBefore bool) Position {
	insertAt := movedStart(source, target, howMany)
	t, ok := p.TransformedByDeletion(source, howMany)
	if !ok {
		return p.combined(source, insertAt)
	}
	return t.TransformedByInsertion(insertAt, howMany, insertBefore)
}

// combined re-roots p, which lies inside the span starting at source, onto
// the span's new start.
func (p Position) combined(source, start Position) Position {
	i := len(source.Path) - 1
	c := start.clone()
	c.Path[len(c.Path)-1] = start.Offset() + p.Path[i] - source.Offset()
	c.Path = append(c.Path, p.Path[i+1:]...)
	return c
}

// movedStart is where moved nodes begin once they are taken out at source and
// put in at target.
func movedStart(source, target Position, howMany int) Position {
	if t, ok := target.TransformedByDeletion(source, howMany); ok {
		return t
	}
	return target
}
