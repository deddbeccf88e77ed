package matching

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRankOrdering(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	candidates := []Candidate{
		{MediaID: "low", FinalScore: 40, Coverage: 5, IndexedAt: t0},
		{MediaID: "tie-old", FinalScore: 90, Coverage: 3, IndexedAt: t0},
		{MediaID: "tie-new", FinalScore: 90, Coverage: 3, IndexedAt: t0.Add(time.Hour)},
		{MediaID: "tie-cov", FinalScore: 90, Coverage: 5, IndexedAt: t0},
		{MediaID: "tie-id-b", FinalScore: 90, Coverage: 3, IndexedAt: t0},
		{MediaID: "excluded", FinalScore: 99, Coverage: 0},
		{MediaID: "top", FinalScore: 95, Coverage: 1, IndexedAt: t0},
	}

	ranked, total := Rank(candidates, nil, 10)
	assert.Equal(t, 6, total)

	var ids []string
	for _, c := range ranked {
		ids = append(ids, c.MediaID)
	}
	assert.Equal(t, []string{"top", "tie-cov", "tie-new", "tie-id-b", "tie-old", "low"}, ids)
}

func TestRankIsDeterministic(t *testing.T) {
	var candidates []Candidate
	for i := 0; i < 30; i++ {
		candidates = append(candidates, Candidate{MediaID: fmt.Sprintf("m%02d", i), FinalScore: float64(i % 3), Coverage: 2})
	}
	first, _ := Rank(candidates, nil, 100)

	reversed := make([]Candidate, len(candidates))
	for i, c := range candidates {
		reversed[len(candidates)-1-i] = c
	}
	second, _ := Rank(reversed, nil, 100)
	assert.Equal(t, first, second)
}

func TestLimitResults(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultMaxResults},
		{-5, DefaultMaxResults},
		{5, 5},
		{100, 100},
		{10_000, MaxResultsLimit},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LimitResults(tt.in), "requested %d", tt.in)
	}
}

func TestRankTruncatesButCountsAll(t *testing.T) {
	var candidates []Candidate
	for i := 0; i < 250; i++ {
		candidates = append(candidates, Candidate{MediaID: fmt.Sprintf("m%03d", i), FinalScore: float64(i % 100), Coverage: 1})
	}
	ranked, total := Rank(candidates, nil, 500)
	assert.Len(t, ranked, MaxResultsLimit)
	assert.Equal(t, 250, total)
}

func TestMatchingTags(t *testing.T) {
	tests := []struct {
		name      string
		query     []string
		candidate []string
		want      []string
	}{
		{name: "query order", query: []string{"ombre", "Balayage", "curls"}, candidate: []string{"curls", "balayage"}, want: []string{"Balayage", "curls"}},
		{name: "no overlap", query: []string{"french tip"}, candidate: []string{"chrome"}, want: []string{}},
		{name: "dedupes", query: []string{"glitter", "GLITTER"}, candidate: []string{"glitter"}, want: []string{"glitter"}},
		{name: "empty query", query: nil, candidate: []string{"glitter"}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchingTags(tt.query, tt.candidate))
		})
	}
}

func TestRankFillsMatchingTags(t *testing.T) {
	c := Candidate{MediaID: "a", FinalScore: 80, Coverage: 2, tags: []string{"bob", "copper"}}
	ranked, _ := Rank([]Candidate{c}, []string{"copper", "pixie"}, 5)
	assert.Equal(t, []string{"copper"}, ranked[0].MatchingTags)
	// matching tags never change the score
	assert.Equal(t, 80.0, ranked[0].FinalScore)
}
