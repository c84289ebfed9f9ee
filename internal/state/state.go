package state

import (
	"fmt"
	"sort"
	"sync"

	"github.com/RajaShyam/JET-movie-ratings/internal/model"
)

// Store abstracts the catalog state backend. Keys are model.CatalogKey values
// and Range visits them in ascending order.
type Store interface {
	Put(key string, p model.CatalogPartition) error
	Get(key string) (model.CatalogPartition, bool)
	Range(fn func(key string, p model.CatalogPartition) error) error
	LoadAll(all map[string]model.CatalogPartition) error
	Close() error
}

// Open returns the backend named by kind: memory, pebble or badger.
func Open(kind, dir string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewInMemoryStore(), nil
	case "pebble":
		return NewPebbleStore(dir)
	case "badger":
		return NewBadgerStore(dir)
	default:
		return nil, fmt.Errorf("unknown state backend %q", kind)
	}
}

// InMemoryStore is a simple thread-safe map store.
type InMemoryStore struct {
	mu   sync.RWMutex
	data map[string]model.CatalogPartition
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: make(map[string]model.CatalogPartition)}
}

// LoadAll replaces the store contents with the provided snapshot.
func (s *InMemoryStore) LoadAll(all map[string]model.CatalogPartition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]model.CatalogPartition, len(all))
	for k, v := range all {
		s.data[k] = v
	}
	return nil
}

func (s *InMemoryStore) Put(key string, p model.CatalogPartition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = p
	return nil
}

func (s *InMemoryStore) Get(key string) (model.CatalogPartition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.data[key]
	return p, ok
}

func (s *InMemoryStore) Range(fn func(key string, p model.CatalogPartition) error) error {
	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	snap := make(map[string]model.CatalogPartition, len(s.data))
	for k, v := range s.data {
		snap[k] = v
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	for _, k := range keys {
		if err := fn(k, snap[k]); err != nil {
			return fmt.Errorf("range callback failed: %w", err)
		}
	}
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
