// Package history keeps the linear undo/redo log of edited image states.
//
// Index -1 denotes the original upload with no edits applied; otherwise
// the index points at the entry currently shown. The store is not safe for
// concurrent use; the session controller serializes access.
package history

import (
	"errors"
	"fmt"
	"time"

	"github.com/fpang/ai-image-editor/internal/imageref"
	"github.com/fpang/ai-image-editor/internal/operation"
)

// OriginalIndex is the index of the unedited upload.
const OriginalIndex = -1

// ErrIndexOutOfRange is returned by JumpTo for an invalid position.
var ErrIndexOutOfRange = errors.New("history index out of range")

// Entry is one successful edit. Entries are never mutated after Append.
type Entry struct {
	Image     imageref.Ref
	Operation operation.Name
	Timestamp time.Time
}

// Store is a truncating undo/redo log.
type Store struct {
	entries []Entry
	index   int
	limit   int
}

// New creates an empty store. Zero means unbounded. A positive limit caps
// the number of entries and drops the oldest first, so undo from the oldest
// retained entry lands on the original rather than on the dropped state.
func New(limit int) *Store {
	if limit < 0 {
		limit = 0
	}
	return &Store{index: OriginalIndex, limit: limit}
}

// Append discards every entry after the current index, appends e and makes
// it current.
func (s *Store) Append(e Entry) {
	s.entries = append(s.entries[:s.index+1:s.index+1], e)
	s.index = len(s.entries) - 1

	if s.limit > 0 && len(s.entries) > s.limit {
		drop := len(s.entries) - s.limit
		s.entries = append([]Entry(nil), s.entries[drop:]...)
		s.index -= drop
	}
}

// Undo steps back one position, reaching OriginalIndex after the first
// entry. It reports false when already at the original.
func (s *Store) Undo() bool {
	if !s.CanUndo() {
		return false
	}
	s.index--
	return true
}

// Redo steps forward one position. It reports false at the newest entry.
func (s *Store) Redo() bool {
	if !s.CanRedo() {
		return false
	}
	s.index++
	return true
}

// JumpTo moves directly to i, which must be OriginalIndex or a valid entry.
func (s *Store) JumpTo(i int) error {
	if i < OriginalIndex || i >= len(s.entries) {
		return fmt.Errorf("%w: %d (have %d entries)", ErrIndexOutOfRange, i, len(s.entries))
	}
	s.index = i
	return nil
}

// Current returns the entry at the index, or false at the original.
func (s *Store) Current() (Entry, bool) {
	if s.index == OriginalIndex {
		return Entry{}, false
	}
	return s.entries[s.index], true
}

func (s *Store) Index() int    { return s.index }
func (s *Store) Len() int      { return len(s.entries) }
func (s *Store) CanUndo() bool { return s.index >= 0 }
func (s *Store) CanRedo() bool { return s.index < len(s.entries)-1 }

// Entries returns a copy of the log.
func (s *Store) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Clear drops all entries and returns to the original.
func (s *Store) Clear() {
	s.entries = nil
	s.index = OriginalIndex
}
