// Package fusion assembles the enriched text contexts fed to the style, semantic
// and color embeddings. Every function here is pure; segment order is fixed
// because it changes the resulting embedding.
package fusion

import (
	"strings"
)

// DefaultTopTags is how many tags the semantic text keeps.
const DefaultTopTags = 10

// StyleInput is everything the style context is built from.
type StyleInput struct {
	Title          string
	Description    string
	Category       string
	Tags           []string
	DominantColors []string
}

// Builder builds fusion texts. The zero value is not usable; use NewBuilder.
type Builder struct {
	topTags int
}

// NewBuilder creates a builder keeping topTags tags in the semantic text.
// Non-positive topTags falls back to DefaultTopTags.
func NewBuilder(topTags int) *Builder {
	if topTags <= 0 {
		topTags = DefaultTopTags
	}
	return &Builder{topTags: topTags}
}

// StyleContext returns the style-enriched text context. Segments, in order:
// title, description, category, keywords, tags, contrastive clause, colors.
// Empty inputs are omitted.
func (b *Builder) StyleContext(in StyleInput) string {
	category := NormalizeCategory(in.Category)
	tags := DedupeStrings(in.Tags)

	segments := make([]string, 0, 7)
	segments = appendIf(segments, "", normalizeWhitespace(in.Title))
	segments = appendIf(segments, "", normalizeWhitespace(in.Description))
	segments = appendIf(segments, "category: ", category)
	segments = appendIf(segments, "keywords: ", strings.Join(Keywords(category), ", "))
	segments = appendIf(segments, "tags: ", strings.Join(tags, ", "))
	segments = appendIf(segments, "", ContrastiveClause(category, tags))
	segments = appendIf(segments, "colors: ", strings.Join(DedupeStrings(in.DominantColors), ", "))
	return strings.Join(segments, ". ")
}

// SemanticText returns title, description, category and the first N tags.
func (b *Builder) SemanticText(title, description, category string, tags []string) string {
	tags = DedupeStrings(tags)
	if len(tags) > b.topTags {
		tags = tags[:b.topTags]
	}
	segments := make([]string, 0, 4)
	segments = appendIf(segments, "", normalizeWhitespace(title))
	segments = appendIf(segments, "", normalizeWhitespace(description))
	segments = appendIf(segments, "category: ", NormalizeCategory(category))
	segments = appendIf(segments, "tags: ", strings.Join(tags, ", "))
	return strings.Join(segments, ". ")
}

// ColorText returns a compact description of dominant colors and mood tags.
func (b *Builder) ColorText(colors, moods []string) string {
	segments := make([]string, 0, 2)
	segments = appendIf(segments, "colors: ", strings.Join(DedupeStrings(colors), ", "))
	segments = appendIf(segments, "mood: ", strings.Join(DedupeStrings(moods), ", "))
	return strings.Join(segments, "; ")
}

// Keywords returns the fixed keyword set for a category; unknown categories get none.
func Keywords(category string) []string {
	return categoryKeywords[NormalizeCategory(category)]
}

// ContrastiveClause names one similar and one opposite style for the category.
// The pair is taken from the first table row whose style appears in tags,
// falling back to the category's first row.
func ContrastiveClause(category string, tags []string) string {
	rows := contrastTable[NormalizeCategory(category)]
	if len(rows) == 0 {
		return ""
	}
	pair := rows[0]
	lowered := make([]string, len(tags))
	for i, t := range tags {
		lowered[i] = strings.ToLower(t)
	}
	for _, row := range rows {
		if containsStyle(lowered, row.Style) {
			pair = row
			break
		}
	}
	return "style similar to " + pair.Similar + ", unlike " + pair.Opposite
}

// NormalizeCategory lowercases and trims a category identifier.
func NormalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

// DedupeStrings trims items and drops empties and repeats, keeping first-seen order.
func DedupeStrings(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := normalizeWhitespace(item)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}

func containsStyle(tags []string, style string) bool {
	for _, t := range tags {
		if strings.Contains(t, style) {
			return true
		}
	}
	return false
}

func appendIf(segments []string, prefix, value string) []string {
	if value == "" {
		return segments
	}
	return append(segments, prefix+value)
}

func normalizeWhitespace(text string) string {
	if text == "" {
		return ""
	}
	return strings.Join(strings.Fields(text), " ")
}
