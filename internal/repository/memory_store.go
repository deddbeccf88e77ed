package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/timmy/stylematch/internal/domain"
	"github.com/timmy/stylematch/internal/matching"
)

// MemoryStore is an in-process record store used for tests and single-node
// deployments without Qdrant. Each Put swaps the whole record under the lock.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]domain.MediaEmbeddingRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]domain.MediaEmbeddingRecord)}
}

// Put validates rec and stores a private copy of it.
func (s *MemoryStore) Put(_ context.Context, rec *domain.MediaEmbeddingRecord) error {
	if rec.MediaID == "" {
		return fmt.Errorf("%w: empty media ID", domain.ErrInvalidVector)
	}
	if err := rec.Vectors.Validate(); err != nil {
		return err
	}
	if rec.Vectors.Empty() {
		return fmt.Errorf("%w: media %s has no vectors", domain.ErrInvalidVector, rec.MediaID)
	}

	cp := rec.Clone()
	s.mu.Lock()
	s.records[rec.MediaID] = cp
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the record for mediaID.
func (s *MemoryStore) Get(_ context.Context, mediaID string) (*domain.MediaEmbeddingRecord, error) {
	s.mu.RLock()
	rec, ok := s.records[mediaID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("media %s: %w", mediaID, domain.ErrRecordNotFound)
	}
	cp := rec.Clone()
	return &cp, nil
}

// Delete removes mediaID. Unknown IDs are ignored.
func (s *MemoryStore) Delete(_ context.Context, mediaID string) error {
	s.mu.Lock()
	delete(s.records, mediaID)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// ScanCandidates streams a consistent snapshot in media ID order. The
// prefetch hint is ignored; every record in scope is visited.
func (s *MemoryStore) ScanCandidates(ctx context.Context, q matching.CandidateQuery, fn func([]domain.MediaEmbeddingRecord) error) error {
	batchSize := q.BatchSize
	if batchSize <= 0 {
		batchSize = matching.DefaultScanBatchSize
	}

	s.mu.RLock()
	snapshot := make([]domain.MediaEmbeddingRecord, 0, len(s.records))
	for _, rec := range s.records {
		if q.ProviderID != "" && rec.ProviderID != q.ProviderID {
			continue
		}
		snapshot = append(snapshot, rec)
	}
	s.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].MediaID < snapshot[j].MediaID
	})

	for start := 0; start < len(snapshot); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + batchSize
		if end > len(snapshot) {
			end = len(snapshot)
		}
		if err := fn(snapshot[start:end]); err != nil {
			return err
		}
	}
	return nil
}
