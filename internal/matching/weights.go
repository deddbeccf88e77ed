package matching

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/timmy/stylematch/internal/domain"
)

// Mode is a named weighting strategy for combining slot distances.
type Mode string

const (
	ModeBalanced Mode = "balanced"
	ModeVisual   Mode = "visual"
	ModeStyle    Mode = "style"
	ModeSemantic Mode = "semantic"
	ModeColor    Mode = "color"
)

// Modes lists every supported mode.
var Modes = []Mode{ModeBalanced, ModeVisual, ModeStyle, ModeSemantic, ModeColor}

// ErrInvalidProfile is returned for negative or all-zero weight profiles.
var ErrInvalidProfile = errors.New("invalid weight profile")

// ParseMode maps a caller supplied token to a Mode. Empty or unknown tokens
// resolve to ModeBalanced so a search always has a profile.
func ParseMode(token string) Mode {
	m := Mode(strings.ToLower(strings.TrimSpace(token)))
	for _, known := range Modes {
		if m == known {
			return m
		}
	}
	return ModeBalanced
}

// Profile is an immutable per-slot weight profile whose weights sum to 1.
type Profile struct {
	weights [5]float64
}

// NewProfile builds a profile from raw weights, re-normalizing them to sum to 1.
// Slots missing from the map get weight 0.
func NewProfile(raw map[domain.Slot]float64) (Profile, error) {
	var p Profile
	var sum float64
	for s, w := range raw {
		idx := slotIndex(s)
		if idx < 0 {
			return Profile{}, fmt.Errorf("%w: unknown slot %q", ErrInvalidProfile, s)
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return Profile{}, fmt.Errorf("%w: slot %s has weight %v", ErrInvalidProfile, s, w)
		}
		p.weights[idx] = w
		sum += w
	}
	if sum == 0 {
		return Profile{}, fmt.Errorf("%w: all weights are zero", ErrInvalidProfile)
	}
	for i := range p.weights {
		p.weights[i] /= sum
	}
	return p, nil
}

// Weight returns the normalized weight of slot s.
func (p Profile) Weight(s domain.Slot) float64 {
	idx := slotIndex(s)
	if idx < 0 {
		return 0
	}
	return p.weights[idx]
}

// Sum returns the total weight, 1 for any profile built by NewProfile.
func (p Profile) Sum() float64 {
	var sum float64
	for _, w := range p.weights {
		sum += w
	}
	return sum
}

// Map returns the weights keyed by slot.
func (p Profile) Map() map[domain.Slot]float64 {
	out := make(map[domain.Slot]float64, len(domain.AllSlots))
	for i, s := range domain.AllSlots {
		out[s] = p.weights[i]
	}
	return out
}

func slotIndex(s domain.Slot) int {
	for i, known := range domain.AllSlots {
		if s == known {
			return i
		}
	}
	return -1
}

// canonicalWeights are the built-in profiles, in visual/style/semantic/color/hybrid order.
var canonicalWeights = map[Mode][5]float64{
	ModeBalanced: {0.20, 0.20, 0.10, 0.10, 0.40},
	ModeVisual:   {0.50, 0.20, 0.05, 0.05, 0.20},
	ModeStyle:    {0.15, 0.50, 0.10, 0.05, 0.20},
	ModeSemantic: {0.10, 0.10, 0.55, 0.05, 0.20},
	ModeColor:    {0.10, 0.10, 0.05, 0.55, 0.20},
}

// Resolver maps modes to weight profiles. It is read-only after construction
// and safe for concurrent use.
type Resolver struct {
	profiles map[Mode]Profile
}

// NewResolver returns a resolver seeded with the canonical profiles. Each entry in
// overrides replaces the profile of the named mode; keys are mode and slot names.
func NewResolver(overrides map[string]map[string]float64) (*Resolver, error) {
	r := &Resolver{profiles: make(map[Mode]Profile, len(canonicalWeights))}
	for mode, w := range canonicalWeights {
		raw := make(map[domain.Slot]float64, len(w))
		for i, s := range domain.AllSlots {
			raw[s] = w[i]
		}
		p, err := NewProfile(raw)
		if err != nil {
			return nil, fmt.Errorf("canonical profile %s: %w", mode, err)
		}
		r.profiles[mode] = p
	}

	for name, weights := range overrides {
		mode := Mode(strings.ToLower(name))
		if _, ok := r.profiles[mode]; !ok {
			return nil, fmt.Errorf("%w: unknown search mode %q", ErrInvalidProfile, name)
		}
		raw := make(map[domain.Slot]float64, len(weights))
		for slot, w := range weights {
			raw[domain.Slot(strings.ToLower(slot))] = w
		}
		p, err := NewProfile(raw)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", mode, err)
		}
		r.profiles[mode] = p
	}
	return r, nil
}

// Resolve returns the effective mode and its profile for a caller supplied token.
func (r *Resolver) Resolve(token string) (Mode, Profile) {
	mode := ParseMode(token)
	return mode, r.profiles[mode]
}

var defaultResolver, _ = NewResolver(nil)

// Resolve resolves token against the canonical profiles.
func Resolve(token string) (Mode, Profile) {
	return defaultResolver.Resolve(token)
}
