// internal/intake/store.go
//
// Intake – form state store.
//
// Context
//   Store owns the live Draft.  Writers never hand in a whole Draft they read
//   earlier; they hand in a merge func that runs against whatever is current
//   under the lock, so a burst of edits from several goroutines cannot drop an
//   update.  Readers get value copies.
//
//------------------------------------------------------------------------------

package intake

import "sync"

// Store is safe for concurrent use.  The zero value holds an empty draft.
type Store struct {
	mu    sync.Mutex
	draft Draft
}

// NewStore returns a Store holding an empty draft.
func NewStore() *Store { return &Store{} }

// Update applies fn to the current draft and stores the result.
func (s *Store) Update(fn func(Draft) Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = fn(s.draft)
}

// SetField merges one value into the current draft.
func (s *Store) SetField(name Field, value string) error {
	if !name.Valid() {
		return ErrUnknownField
	}
	s.Update(func(d Draft) Draft {
		next, _ := d.With(name, value)
		return next
	})
	return nil
}

// Snapshot returns a copy of the current draft.  Later edits do not reach it.
func (s *Store) Snapshot() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// Reset empties the draft.
func (s *Store) Reset() {
	s.Update(func(Draft) Draft { return Draft{} })
}
