package corpus

import "sync/atomic"

// Store holds the process-wide corpus snapshot. Scans pin the snapshot once
// at start and use it for their whole duration; Reload swaps the pointer
// without touching the snapshot in-flight scans still hold. The corpus is
// the only process-wide state in the engine and it is never mutated in
// place.
type Store struct {
	current atomic.Pointer[Corpus]
}

// NewStore returns a store seeded with an initial snapshot.
func NewStore(c *Corpus) *Store {
	s := &Store{}
	s.current.Store(c)
	return s
}

// Snapshot returns the current immutable corpus.
func (s *Store) Snapshot() *Corpus {
	return s.current.Load()
}

// Reload swaps in a new snapshot. In-flight scans keep the snapshot they
// pinned; only scans started after the swap see the new corpus.
func (s *Store) Reload(c *Corpus) {
	s.current.Store(c)
}
