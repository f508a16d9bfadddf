// Package history implements a bounded, value-based undo/redo stack.
//
// Every Save stores a deep clone, so later mutation of the caller's value never
// leaks into a snapshot and restored values never alias stored ones.
package history

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tiendc/go-deepcopy"
)

// DefaultLimit is the maximum number of snapshots kept.
const DefaultLimit = 10

// Sentinel errors returned by Undo and Redo.
var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

// Stack holds up to limit snapshots plus a cursor. The cursor points at the
// snapshot matching the current value; -1 means empty.
type Stack[T any] struct {
	mu      sync.Mutex
	entries []T
	index   int
	limit   int
}

// New creates an empty stack. A non-positive limit selects DefaultLimit.
func New[T any](limit int) *Stack[T] {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Stack[T]{index: -1, limit: limit}
}

// Clone returns a deep copy of v.
func Clone[T any](v T) (T, error) {
	var out T
	if err := deepcopy.Copy(&out, v); err != nil {
		return out, fmt.Errorf("failed to clone snapshot: %w", err)
	}
	return out, nil
}

// Save drops every snapshot after the cursor, appends a clone of v, trims to the
// limit and moves the cursor onto the new snapshot.
func (s *Stack[T]) Save(v T) error {
	snap, err := Clone(v)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries[:s.index+1], snap)
	if over := len(s.entries) - s.limit; over > 0 {
		s.entries = s.entries[over:]
	}
	s.index = len(s.entries) - 1
	return nil
}

// Undo moves the cursor back and returns a clone of that snapshot.
func (s *Stack[T]) Undo() (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	if s.index <= 0 {
		return zero, ErrNothingToUndo
	}
	s.index--
	return Clone(s.entries[s.index])
}

// Redo moves the cursor forward and returns a clone of that snapshot.
func (s *Stack[T]) Redo() (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	if s.index >= len(s.entries)-1 {
		return zero, ErrNothingToRedo
	}
	s.index++
	return Clone(s.entries[s.index])
}

// CanUndo reports whether Undo would succeed.
func (s *Stack[T]) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index > 0
}

// CanRedo reports whether Redo would succeed.
func (s *Stack[T]) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index < len(s.entries)-1
}

// Len returns the number of stored snapshots.
func (s *Stack[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Index returns the cursor position, -1 when empty.
func (s *Stack[T]) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Reset discards every snapshot and seeds the stack with initial.
func (s *Stack[T]) Reset(initial T) error {
	snap, err := Clone(initial)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = []T{snap}
	s.index = 0
	return nil
}

// State is the serialisable form of a stack.
type State[T any] struct {
	Entries []T `json:"entries"`
	Index   int `json:"index"`
}

// Export returns a deep copy of the stack contents.
func (s *Stack[T]) Export() (State[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := Clone(s.entries)
	if err != nil {
		return State[T]{}, err
	}
	return State[T]{Entries: entries, Index: s.index}, nil
}

// Import replaces the stack contents, clamping to the limit and a valid cursor.
func (s *Stack[T]) Import(st State[T]) error {
	entries, err := Clone(st.Entries)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index := st.Index
	if over := len(entries) - s.limit; over > 0 {
		entries = entries[over:]
		index -= over
	}
	if index >= len(entries) {
		index = len(entries) - 1
	}
	if index < 0 && len(entries) > 0 {
		index = 0
	}
	if len(entries) == 0 {
		index = -1
	}
	s.entries = entries
	s.index = index
	return nil
}
