package media

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by tests and dry runs.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID uint
	assets map[uint]*Asset
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1, assets: make(map[uint]*Asset)}
}

func (s *MemoryStore) Get(_ context.Context, id uint) (*Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	cp.Metadata = a.Metadata.Clone()
	return &cp, nil
}

func (s *MemoryStore) ReadMetadata(ctx context.Context, id uint) (Metadata, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return Metadata{}, err
	}
	return a.Metadata, nil
}

func (s *MemoryStore) WriteMetadata(_ context.Context, id uint, meta Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[id]
	if !ok {
		return ErrNotFound
	}
	a.Metadata = meta.Clone().WithFocalFrom(&a.Metadata)
	a.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) Update(_ context.Context, id uint, fn func(*Metadata) error) (Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[id]
	if !ok {
		return Metadata{}, ErrNotFound
	}
	working := a.Metadata.Clone()
	if err := fn(&working); err != nil {
		return Metadata{}, err
	}
	a.Metadata = working.WithFocalFrom(&a.Metadata)
	a.UpdatedAt = time.Now()
	return a.Metadata.Clone(), nil
}

func (s *MemoryStore) Create(_ context.Context, parentType string, meta Metadata) (*Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	a := &Asset{
		ID:         s.nextID,
		ParentType: parentType,
		Metadata:   meta.Clone(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.assets[a.ID] = a
	s.nextID++
	cp := *a
	cp.Metadata = a.Metadata.Clone()
	return &cp, nil
}

func (s *MemoryStore) ListImageIDs(_ context.Context) ([]uint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uint, 0, len(s.assets))
	for id, a := range s.assets {
		if IsImage(a.Metadata.MimeType) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *MemoryStore) FindByFile(_ context.Context, relPath string) (uint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []uint
	for id := range s.assets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if s.assets[id].Metadata.File == relPath {
			return id, nil
		}
	}
	prefix := LookupPrefix(relPath)
	for _, id := range ids {
		if strings.HasPrefix(s.assets[id].Metadata.File, prefix) {
			return id, nil
		}
	}
	return 0, ErrNotFound
}
