// Package store persists manual saved-search to catalog mappings. A recorded
// mapping overrides whatever the matcher would compute for that search.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrNotFound indicates no mapping exists for the saved search.
	ErrNotFound = errors.New("mapping not found")

	// ErrUnavailable indicates the backing store cannot currently be reached.
	ErrUnavailable = errors.New("mapping store unavailable")

	// ErrInvalidMapping indicates a mapping is missing required fields.
	ErrInvalidMapping = errors.New("invalid mapping")
)

// Mapping records that a saved search corresponds to a catalog item.
type Mapping struct {
	SearchTitle string    `json:"search_title"`
	ContentID   string    `json:"content_id"`
	Source      string    `json:"source,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate checks the required fields.
func (m *Mapping) Validate() error {
	if m.SearchTitle == "" {
		return errors.Join(ErrInvalidMapping, errors.New("search title is required"))
	}
	if m.ContentID == "" {
		return errors.Join(ErrInvalidMapping, errors.New("content id is required"))
	}
	return nil
}

// MappingStore persists mappings keyed by saved-search title.
type MappingStore interface {
	Lookup(ctx context.Context, searchTitle string) (*Mapping, error)
	Save(ctx context.Context, m Mapping) error
	Delete(ctx context.Context, searchTitle string) error
	List(ctx context.Context) ([]Mapping, error)
}

// MemoryStore is an in-process MappingStore.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Mapping
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Mapping)}
}

func (s *MemoryStore) Lookup(ctx context.Context, searchTitle string) (*Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.data[searchTitle]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

func (s *MemoryStore) Save(ctx context.Context, m Mapping) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	s.data[m.SearchTitle] = m
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, searchTitle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[searchTitle]; !ok {
		return ErrNotFound
	}
	delete(s.data, searchTitle)
	return nil
}

// List returns all mappings ordered by search title.
func (s *MemoryStore) List(ctx context.Context) ([]Mapping, error) {
	s.mu.RLock()
	out := make([]Mapping, 0, len(s.data))
	for _, m := range s.data {
		out = append(out, m)
	}
	s.mu.RUnlock()
	sortMappings(out)
	return out, nil
}

func sortMappings(ms []Mapping) {
	sort.Slice(ms, func(i, j int) bool {
		return ms[i].SearchTitle < ms[j].SearchTitle
	})
}
