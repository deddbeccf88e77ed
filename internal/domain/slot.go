package domain

// Slot names one of the five specialized vectors kept per media item.
type Slot string

const (
	SlotVisual   Slot = "visual"
	SlotStyle    Slot = "style"
	SlotSemantic Slot = "semantic"
	SlotColor    Slot = "color"
	SlotHybrid   Slot = "hybrid"
)

// Fixed per-slot dimensionality. Image-space slots share the multimodal
// embedding width, text-space slots use the reduced text width.
const (
	ImageVectorDim = 1408
	TextVectorDim  = 512
)

// AllSlots lists every slot in canonical order.
var AllSlots = []Slot{SlotVisual, SlotStyle, SlotSemantic, SlotColor, SlotHybrid}

// ProviderSlots are the slots produced by an embedding provider call.
// Hybrid is derived locally.
var ProviderSlots = []Slot{SlotVisual, SlotStyle, SlotSemantic, SlotColor}

// SlotDimension returns the fixed vector length for a slot, or 0 for an unknown slot.
func SlotDimension(s Slot) int {
	switch s {
	case SlotVisual, SlotStyle, SlotHybrid:
		return ImageVectorDim
	case SlotSemantic, SlotColor:
		return TextVectorDim
	default:
		return 0
	}
}

// Valid reports whether s is one of the five known slots.
func (s Slot) Valid() bool {
	return SlotDimension(s) > 0
}

func (s Slot) String() string {
	return string(s)
}
