package rankstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sync"

	sferrors "github.com/otherjamesbrown/skyfeed/pkg/errors"
)

// MemoryStore keeps lists in process. It backs local development and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	lists map[string][]string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{lists: make(map[string][]string)}
}

// LoadSeedFile reads a JSON object of window to list, e.g.
// {"hour": ["at://..."], "day": [...]}, into a new store.
func LoadSeedFile(path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	var lists map[string][]string
	if err := json.Unmarshal(data, &lists); err != nil {
		return nil, fmt.Errorf("%w: seed file %s: %v", sferrors.ErrMalformedUpstream, path, err)
	}

	s := NewMemoryStore()
	for w, items := range lists {
		if err := CheckWindow(w); err != nil {
			return nil, err
		}
		s.lists[w] = slices.Clone(items)
	}
	return s, nil
}

// Backend implements Named.
func (s *MemoryStore) Backend() string { return "memory" }

// Fetch implements Store.
func (s *MemoryStore) Fetch(_ context.Context, window string) ([]string, error) {
	if err := CheckWindow(window); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := slices.Clone(s.lists[window])
	if items == nil {
		items = []string{}
	}
	return items, nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, window string, items []string) error {
	if err := CheckWindow(window); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lists[window] = slices.Clone(items)
	return nil
}
