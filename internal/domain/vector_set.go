package domain

import (
	"fmt"
	"math"
	"time"
)

// VectorSet holds the five optional slot vectors of a media item or a query.
// A nil slice means the slot is absent; absence is never encoded as a zero vector.
type VectorSet struct {
	Visual   []float32 `json:"visual,omitempty"`
	Style    []float32 `json:"style,omitempty"`
	Semantic []float32 `json:"semantic,omitempty"`
	Color    []float32 `json:"color,omitempty"`
	Hybrid   []float32 `json:"hybrid,omitempty"`
}

// Get returns the vector stored in slot s, or nil when absent.
func (v *VectorSet) Get(s Slot) []float32 {
	switch s {
	case SlotVisual:
		return v.Visual
	case SlotStyle:
		return v.Style
	case SlotSemantic:
		return v.Semantic
	case SlotColor:
		return v.Color
	case SlotHybrid:
		return v.Hybrid
	}
	return nil
}

// Set stores vec in slot s. Unknown slots are ignored.
func (v *VectorSet) Set(s Slot, vec []float32) {
	switch s {
	case SlotVisual:
		v.Visual = vec
	case SlotStyle:
		v.Style = vec
	case SlotSemantic:
		v.Semantic = vec
	case SlotColor:
		v.Color = vec
	case SlotHybrid:
		v.Hybrid = vec
	}
}

// Has reports whether slot s holds a non-empty vector.
func (v *VectorSet) Has(s Slot) bool {
	return len(v.Get(s)) > 0
}

// Present returns the populated slots in canonical order.
func (v *VectorSet) Present() []Slot {
	slots := make([]Slot, 0, len(AllSlots))
	for _, s := range AllSlots {
		if v.Has(s) {
			slots = append(slots, s)
		}
	}
	return slots
}

// Empty reports whether no slot is populated.
func (v *VectorSet) Empty() bool {
	return len(v.Present()) == 0
}

// Clone returns a deep copy so stored records never alias caller memory.
func (v VectorSet) Clone() VectorSet {
	var out VectorSet
	for _, s := range AllSlots {
		if vec := v.Get(s); len(vec) > 0 {
			cp := make([]float32, len(vec))
			copy(cp, vec)
			out.Set(s, cp)
		}
	}
	return out
}

// Validate checks every populated slot against its fixed dimension and
// rejects NaN or infinite components.
func (v *VectorSet) Validate() error {
	for _, s := range AllSlots {
		vec := v.Get(s)
		if len(vec) == 0 {
			continue
		}
		if err := ValidateSlotVector(s, vec); err != nil {
			return err
		}
	}
	return nil
}

// ValidateSlotVector checks a single vector against the slot's invariants.
func ValidateSlotVector(s Slot, vec []float32) error {
	if want := SlotDimension(s); len(vec) != want {
		return fmt.Errorf("%w: slot %s has dimension %d, expected %d", ErrInvalidVector, s, len(vec), want)
	}
	for i, x := range vec {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: slot %s has non-finite value at index %d", ErrInvalidVector, s, i)
		}
	}
	return nil
}

// MediaEmbeddingRecord is the persisted vector record for one indexed media item.
// Re-indexing replaces the whole record; readers never see a partial update.
type MediaEmbeddingRecord struct {
	MediaID     string    `json:"media_id"`
	ServiceID   string    `json:"service_id"`
	ProviderID  string    `json:"provider_id"`
	Category    string    `json:"category,omitempty"`
	Tags        []string  `json:"tags"`
	Description string    `json:"description,omitempty"`
	IndexedAt   time.Time `json:"indexed_at"`
	Vectors     VectorSet `json:"vectors"`
}

// Clone returns a deep copy of the record.
func (r MediaEmbeddingRecord) Clone() MediaEmbeddingRecord {
	out := r
	out.Tags = append([]string(nil), r.Tags...)
	out.Vectors = r.Vectors.Clone()
	return out
}
