package history

import (
	"errors"

	"github.com/alimasry/go-undo-ot/ot"
)

var ErrEmptyStack = errors.New("history: stack is empty")

// Entry is a recorded batch together with the selection at the time it was
// recorded.
type Entry struct {
	Batch     *ot.Batch
	Selection ot.Selection
}

// Stack is a last-in-first-out list of entries. The zero value is empty and
// ready to use.
type Stack struct {
	entries []Entry
}

func (s *Stack) Push(e Entry) { s.entries = append(s.entries, e) }

// Pop removes and returns the most recent entry.
func (s *Stack) Pop() (Entry, error) {
	e, err := s.Peek()
	if err != nil {
		return Entry{}, err
	}
	s.entries[len(s.entries)-1] = Entry{}
	s.entries = s.entries[:len(s.entries)-1]
	return e, nil
}

// Peek returns the most recent entry without removing it.
func (s *Stack) Peek() (Entry, error) {
	if len(s.entries) == 0 {
		return Entry{}, ErrEmptyStack
	}
	return s.entries[len(s.entries)-1], nil
}

func (s *Stack) Len() int { return len(s.entries) }

func (s *Stack) Clear() {
	clear(s.entries)
	s.entries = s.entries[:0]
}
