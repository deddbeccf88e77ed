package matching

import (
	"sort"
	"strings"
)

const (
	// DefaultMaxResults is used when the caller asks for zero or fewer results.
	DefaultMaxResults = 20
	// MaxResultsLimit bounds any response regardless of caller input.
	MaxResultsLimit = 100
)

// LimitResults applies the default and the upper bound to a requested result count.
func LimitResults(requested int) int {
	if requested <= 0 {
		return DefaultMaxResults
	}
	if requested > MaxResultsLimit {
		return MaxResultsLimit
	}
	return requested
}

// ranksBefore is the total result order: score desc, coverage desc,
// most recently indexed first, then media ID asc.
func ranksBefore(a, b *Candidate) bool {
	if a.FinalScore != b.FinalScore {
		return a.FinalScore > b.FinalScore
	}
	if a.Coverage != b.Coverage {
		return a.Coverage > b.Coverage
	}
	if !a.IndexedAt.Equal(b.IndexedAt) {
		return a.IndexedAt.After(b.IndexedAt)
	}
	return a.MediaID < b.MediaID
}

// Rank drops uncomparable candidates, orders the rest and truncates to
// maxResults (after LimitResults). It fills MatchingTags on the kept candidates
// and returns them with the number of qualifying candidates before truncation.
func Rank(candidates []Candidate, queryTags []string, maxResults int) ([]Candidate, int) {
	kept := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Coverage > 0 {
			kept = append(kept, c)
		}
	}
	total := len(kept)

	sort.Slice(kept, func(i, j int) bool { return ranksBefore(&kept[i], &kept[j]) })

	if limit := LimitResults(maxResults); len(kept) > limit {
		kept = kept[:limit]
	}
	for i := range kept {
		kept[i].MatchingTags = MatchingTags(queryTags, kept[i].tags)
	}
	return kept, total
}

// MatchingTags returns the query tags that also appear in candidateTags,
// compared case-insensitively, in query order without duplicates.
func MatchingTags(queryTags, candidateTags []string) []string {
	if len(queryTags) == 0 || len(candidateTags) == 0 {
		return []string{}
	}
	have := make(map[string]struct{}, len(candidateTags))
	for _, t := range candidateTags {
		have[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}

	out := []string{}
	seen := make(map[string]struct{}, len(queryTags))
	for _, t := range queryTags {
		key := strings.ToLower(strings.TrimSpace(t))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		if _, ok := have[key]; ok {
			seen[key] = struct{}{}
			out = append(out, strings.TrimSpace(t))
		}
	}
	return out
}
