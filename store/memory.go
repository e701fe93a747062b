package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

type docRecord struct {
	info   DocumentInfo
	deltas []DeltaRecord
}

// find returns the index of the delta based on version.
func (r *docRecord) find(version int) (int, bool) {
	return slices.BinarySearchFunc(r.deltas, version, func(rec DeltaRecord, v int) int {
		return rec.Delta.BaseVersion - v
	})
}

// MemoryStore is an in-memory implementation of DocumentStore.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*docRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*docRecord)}
}

func (s *MemoryStore) Create(_ context.Context, id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[id]; exists {
		return fmt.Errorf("document %q: %w", id, ErrExists)
	}
	now := time.Now()
	s.docs[id] = &docRecord{
		info: DocumentInfo{
			ID:        id,
			Content:   content,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %q: %w", id, ErrNotFound)
	}
	info := rec.info
	return &info, nil
}

func (s *MemoryStore) List(_ context.Context) ([]DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]DocumentInfo, 0, len(s.docs))
	for _, rec := range s.docs {
		result = append(result, rec.info)
	}
	return result, nil
}

func (s *MemoryStore) AppendDelta(_ context.Context, id string, rec DeltaRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return fmt.Errorf("document %q: %w", id, ErrNotFound)
	}
	if rec.Delta.BaseVersion != doc.info.Version {
		return fmt.Errorf("document %q at version %d, delta based on %d: %w",
			id, doc.info.Version, rec.Delta.BaseVersion, ErrVersionConflict)
	}
	rec.Delta = rec.Delta.Clone()
	doc.deltas = append(doc.deltas, rec)
	doc.info.Version = rec.Delta.NextVersion()
	doc.info.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) GetDeltas(_ context.Context, id string, fromVersion int) ([]DeltaRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %q: %w", id, ErrNotFound)
	}
	if fromVersion < 0 || fromVersion > doc.info.Version {
		return nil, fmt.Errorf("invalid version %d", fromVersion)
	}
	i, _ := doc.find(fromVersion)
	recs := make([]DeltaRecord, 0, len(doc.deltas)-i)
	for _, rec := range doc.deltas[i:] {
		rec.Delta = rec.Delta.Clone()
		recs = append(recs, rec)
	}
	return recs, nil
}

func (s *MemoryStore) MarkInactive(_ context.Context, id string, baseVersions ...int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return fmt.Errorf("document %q: %w", id, ErrNotFound)
	}
	for _, v := range baseVersions {
		i, found := doc.find(v)
		if !found {
			return fmt.Errorf("delta %d of document %q: %w", v, id, ErrNotFound)
		}
		doc.deltas[i].Inactive = true
	}
	doc.info.UpdatedAt = time.Now()
	return nil
}
