package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrTotalAnalysisFailure means neither the visual nor the style vector could be
	// produced, so no usable query or record exists. Callers should retry.
	ErrTotalAnalysisFailure = errors.New("analysis failed, please retry")

	// ErrEmptySlotInput marks a text slot that was skipped because its input text was empty.
	ErrEmptySlotInput = errors.New("empty slot input")

	// ErrInvalidVector marks a vector that violates its slot's dimension or value invariants.
	ErrInvalidVector = errors.New("invalid vector")

	// ErrRecordNotFound is returned by record stores for unknown media IDs.
	ErrRecordNotFound = errors.New("record not found")
)

// SlotError records why one slot could not be generated.
type SlotError struct {
	Slot Slot
	Err  error
}

func (e *SlotError) Error() string {
	return fmt.Sprintf("slot %s: %v", e.Slot, e.Err)
}

func (e *SlotError) Unwrap() error {
	return e.Err
}

// SlotFailures maps failed slots to their cause.
type SlotFailures map[Slot]error

// Slots returns the failed slots sorted by name.
func (f SlotFailures) Slots() []Slot {
	slots := make([]Slot, 0, len(f))
	for s := range f {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	return slots
}

// Messages renders the failures as slot -> message for API responses.
func (f SlotFailures) Messages() map[string]string {
	if len(f) == 0 {
		return nil
	}
	out := make(map[string]string, len(f))
	for s, err := range f {
		out[string(s)] = err.Error()
	}
	return out
}

// String renders the failed slot names as a comma separated list.
func (f SlotFailures) String() string {
	names := make([]string, 0, len(f))
	for _, s := range f.Slots() {
		names = append(names, string(s))
	}
	return strings.Join(names, ",")
}

// AnalysisError wraps ErrTotalAnalysisFailure with the per-slot causes.
type AnalysisError struct {
	Failures SlotFailures
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("%s (failed slots: %s)", ErrTotalAnalysisFailure.Error(), e.Failures.String())
}

func (e *AnalysisError) Unwrap() error {
	return ErrTotalAnalysisFailure
}
