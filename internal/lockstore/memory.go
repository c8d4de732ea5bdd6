package lockstore

import (
	"context"
	"iter"
	"sort"
	"sync"
)

// MemoryStore is an in-process LockStore
type MemoryStore struct {
	mu     sync.RWMutex
	byPath map[string]Record
}

// NewMemoryStore creates an empty store pre-populated with records
func NewMemoryStore(records ...Record) *MemoryStore {
	s := &MemoryStore{byPath: make(map[string]Record)}
	for _, rec := range records {
		s.byPath[rec.Path] = rec
	}
	return s
}

func (s *MemoryStore) GetByPath(_ context.Context, path string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byPath[path]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.byPath {
		if rec.ID == id {
			return rec, nil
		}
	}
	return Record{}, ErrNotFound
}

// Scan yields a snapshot of the records in path order
func (s *MemoryStore) Scan(_ context.Context) iter.Seq2[Record, error] {
	s.mu.RLock()
	records := make([]Record, 0, len(s.byPath))
	for _, rec := range s.byPath {
		records = append(records, rec)
	}
	s.mu.RUnlock()
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })

	return func(yield func(Record, error) bool) {
		for _, rec := range records {
			if !yield(rec, nil) {
				return
			}
		}
	}
}

func (s *MemoryStore) Create(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byPath[rec.Path]; ok {
		return ErrAlreadyExists
	}
	s.byPath[rec.Path] = rec
	return nil
}

func (s *MemoryStore) DeleteByPath(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byPath, path)
	return nil
}
