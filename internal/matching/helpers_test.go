package matching

import (
	"context"
	"math/rand"
	"time"

	"github.com/timmy/stylematch/internal/domain"
)

// basis returns a unit vector of length dim with 1 at idx.
func basis(dim, idx int) []float32 {
	v := make([]float32, dim)
	v[idx] = 1
	return v
}

func randomVector(r *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = r.Float32()*2 - 1
	}
	return v
}

func randomVectorSet(r *rand.Rand) domain.VectorSet {
	var vs domain.VectorSet
	for _, s := range domain.AllSlots {
		vs.Set(s, randomVector(r, domain.SlotDimension(s)))
	}
	return vs
}

func record(id string, vs domain.VectorSet, tags ...string) domain.MediaEmbeddingRecord {
	return domain.MediaEmbeddingRecord{
		MediaID:    id,
		ServiceID:  "svc-" + id,
		ProviderID: "prov-1",
		Tags:       tags,
		IndexedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Vectors:    vs,
	}
}

// sliceSource serves records in fixed-size batches and optionally runs a hook
// before each batch.
type sliceSource struct {
	records     []domain.MediaEmbeddingRecord
	beforeBatch func(i int)
	lastQuery   CandidateQuery
}

func (s *sliceSource) ScanCandidates(ctx context.Context, q CandidateQuery, fn func([]domain.MediaEmbeddingRecord) error) error {
	s.lastQuery = q
	size := q.BatchSize
	if size <= 0 {
		size = len(s.records)
	}
	for i, start := 0, 0; start < len(s.records); i, start = i+1, start+size {
		if s.beforeBatch != nil {
			s.beforeBatch(i)
		}
		end := start + size
		if end > len(s.records) {
			end = len(s.records)
		}
		var batch []domain.MediaEmbeddingRecord
		for _, r := range s.records[start:end] {
			if q.ProviderID != "" && r.ProviderID != q.ProviderID {
				continue
			}
			batch = append(batch, r)
		}
		if err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}
