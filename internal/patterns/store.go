package patterns

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Store serves immutable rule snapshots. Readers always see a complete,
// validated generation; a failed reload leaves the previous snapshot live.
type Store struct {
	current    atomic.Pointer[Snapshot]
	reloadMu   sync.Mutex
	generation uint64
}

// NewStore loads all rule files from dir and returns a store serving them.
func NewStore(dir string) (*Store, error) {
	s := &Store{}
	if err := s.Reload(dir); err != nil {
		return nil, fmt.Errorf("load patterns: %w", err)
	}
	return s, nil
}

// Snapshot returns the current rule snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Reload builds a complete new snapshot from dir and swaps it in only when
// every file parses and every regex compiles. On error the current snapshot
// is untouched.
func (s *Store) Reload(dir string) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	snap, err := loadSnapshot(dir)
	if err != nil {
		return err
	}

	s.generation++
	snap.Generation = s.generation
	s.current.Store(snap)
	return nil
}
