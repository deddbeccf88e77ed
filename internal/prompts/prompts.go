package prompts

import (
	"fmt"
	"strings"
)

// ============================================================================
// Shared Lexicons
// ============================================================================

// MoodWords is the mood vocabulary the VLM picks mood tags from. It feeds the
// color vector, so keep it short and visual.
var MoodWords = []string{
	"bold", "soft", "romantic", "edgy", "minimal", "glamorous", "natural", "playful",
	"elegant", "dramatic", "fresh", "vintage", "moody", "bright", "earthy", "luxe",
}

// Categories are the service categories the VLM may assign.
var Categories = []string{
	"hair", "nails", "makeup", "lashes", "brows", "skincare", "barber", "tattoo", "spa",
}

// ============================================================================
// VLM Prompts (Vision Language Model)
// ============================================================================

// VLMSystemPrompt defines the role and output contract for image analysis.
var VLMSystemPrompt = fmt.Sprintf(`You are a beauty and grooming style analyst. You look at one reference photo
and describe the look so it can be matched against a catalog of professional work.

Rules:
- Reply with a single JSON object and nothing else.
- "category" is one of: %s.
- "tags" lists 5-15 short lowercase style descriptors, most prominent first
  (technique, shape, length, finish, texture, notable details).
- "description" is one or two plain sentences a stylist would recognize.
- "mood_tags" lists 1-3 words from: %s.
- "dominant_colors" lists up to 5 plain color names, most dominant first.`,
	strings.Join(Categories, ", "), strings.Join(MoodWords, ", "))

// VLMUserPrompt asks for the analysis and shows the expected shape.
const VLMUserPrompt = `Analyze this reference photo.

Example output:
{"category":"hair","tags":["balayage","long layers","soft waves","face-framing"],"description":"Long layered hair with a caramel balayage and loose waves.","mood_tags":["soft","natural"],"dominant_colors":["caramel","dark brown","honey"]}`

// VLMUserPromptWithNotes appends client notes so the model can use them as hints.
func VLMUserPromptWithNotes(notes, category string) string {
	var b strings.Builder
	b.WriteString(VLMUserPrompt)
	if category = strings.TrimSpace(category); category != "" {
		b.WriteString("\n\nThe client is looking for a ")
		b.WriteString(category)
		b.WriteString(" service.")
	}
	if notes = strings.TrimSpace(notes); notes != "" {
		b.WriteString("\n\nClient notes (hints only, trust the photo): ")
		b.WriteString(notes)
	}
	return b.String()
}
