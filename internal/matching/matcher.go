package matching

import (
	"time"

	"github.com/timmy/stylematch/internal/domain"
	"github.com/timmy/stylematch/internal/vecmath"
)

// Candidate is the comparison result of a query against one stored record.
type Candidate struct {
	MediaID      string                  `json:"media_id"`
	ServiceID    string                  `json:"service_id"`
	ProviderID   string                  `json:"provider_id"`
	Category     string                  `json:"category,omitempty"`
	IndexedAt    time.Time               `json:"indexed_at"`
	Distances    map[domain.Slot]float64 `json:"distances"`
	Coverage     int                     `json:"coverage"`
	Distance     float64                 `json:"distance"`
	FinalScore   float64                 `json:"final_score"`
	MatchingTags []string                `json:"matching_tags"`

	tags []string
}

// Score compares query with rec under profile p. Only slots present and
// comparable on both sides contribute, with their weights re-normalized over
// the comparable set. ok is false when no slot is comparable; such a
// candidate cannot be scored and must be left out of results.
func Score(query *domain.VectorSet, rec *domain.MediaEmbeddingRecord, p Profile) (c Candidate, ok bool) {
	var (
		perSlot   [5]float64
		present   [5]bool
		coverage  int
		weightSum float64
	)
	for i, s := range domain.AllSlots {
		q, r := query.Get(s), rec.Vectors.Get(s)
		if len(q) == 0 || len(r) == 0 {
			continue
		}
		d, err := vecmath.CosineDistance(q, r)
		if err != nil {
			// dimension mismatch or zero norm: not comparable
			continue
		}
		perSlot[i], present[i] = d, true
		coverage++
		weightSum += p.Weight(s)
	}

	if coverage == 0 || weightSum == 0 {
		return Candidate{}, false
	}

	// summed in canonical slot order so identical inputs give identical scores
	var combined float64
	distances := make(map[domain.Slot]float64, coverage)
	for i, s := range domain.AllSlots {
		if !present[i] {
			continue
		}
		combined += (p.Weight(s) / weightSum) * perSlot[i]
		distances[s] = perSlot[i]
	}
	combined = vecmath.Clamp(combined, 0, 2)

	return Candidate{
		MediaID:    rec.MediaID,
		ServiceID:  rec.ServiceID,
		ProviderID: rec.ProviderID,
		Category:   rec.Category,
		IndexedAt:  rec.IndexedAt,
		Distances:  distances,
		Coverage:   coverage,
		Distance:   combined,
		FinalScore: DistanceToScore(combined),
		tags:       rec.Tags,
	}, true
}

// DistanceToScore maps a combined distance in [0, 2] to a 0-100 score.
func DistanceToScore(d float64) float64 {
	return vecmath.Clamp(100*(1-d/2), 0, 100)
}
