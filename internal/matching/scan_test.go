package matching

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/stylematch/internal/domain"
)

func TestScanExactItemRanksFirst(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	var recs []domain.MediaEmbeddingRecord
	for i := 0; i < 40; i++ {
		vs := randomVectorSet(r)
		vs.Semantic, vs.Color = nil, nil
		recs = append(recs, record(fmt.Sprintf("m%02d", i), vs, "bob"))
	}
	x := recs[17]

	scanner := NewScanner(&sliceSource{records: recs}, ScanConfig{BatchSize: 8, Parallelism: 3})
	_, p := Resolve("balanced")
	res, err := scanner.Scan(context.Background(), Request{
		Query:      domain.VectorSet{Visual: x.Vectors.Visual, Style: x.Vectors.Style, Hybrid: x.Vectors.Hybrid},
		Tags:       []string{"Bob"},
		Profile:    p,
		MaxResults: 5,
	})
	require.NoError(t, err)
	require.Len(t, res.Matches, 5)
	assert.False(t, res.Partial)
	assert.Equal(t, 40, res.TotalMatches)
	assert.Equal(t, 40, res.Scanned)

	top := res.Matches[0]
	assert.Equal(t, x.MediaID, top.MediaID)
	assert.Equal(t, 100.0, top.FinalScore)
	assert.Equal(t, 3, top.Coverage)
	assert.Equal(t, []string{"Bob"}, top.MatchingTags)

	for i := 1; i < len(res.Matches); i++ {
		assert.GreaterOrEqual(t, res.Matches[i-1].FinalScore, res.Matches[i].FinalScore)
	}
}

func TestScanMatchesFullSort(t *testing.T) {
	r := rand.New(rand.NewSource(9))
	var recs []domain.MediaEmbeddingRecord
	for i := 0; i < 100; i++ {
		recs = append(recs, record(fmt.Sprintf("m%03d", i), randomVectorSet(r)))
	}
	query := randomVectorSet(r)
	_, p := Resolve("style")

	var all []Candidate
	for i := range recs {
		c, ok := Score(&query, &recs[i], p)
		require.True(t, ok)
		all = append(all, c)
	}
	want, _ := Rank(all, nil, 10)

	res, err := NewScanner(&sliceSource{records: recs}, ScanConfig{BatchSize: 7, Parallelism: 4}).
		Scan(context.Background(), Request{Query: query, Profile: p, MaxResults: 10})
	require.NoError(t, err)
	assert.Equal(t, want, res.Matches)
}

func TestScanExcludesUncomparable(t *testing.T) {
	recs := []domain.MediaEmbeddingRecord{
		record("text-only", domain.VectorSet{Semantic: basis(domain.TextVectorDim, 0)}),
		record("visual", domain.VectorSet{Visual: basis(domain.ImageVectorDim, 0)}),
	}
	_, p := Resolve("balanced")
	res, err := NewScanner(&sliceSource{records: recs}, ScanConfig{}).Scan(context.Background(), Request{
		Query:   domain.VectorSet{Visual: basis(domain.ImageVectorDim, 0)},
		Profile: p,
	})
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "visual", res.Matches[0].MediaID)
	assert.Equal(t, 1, res.TotalMatches)
}

func TestScanEmptyStore(t *testing.T) {
	_, p := Resolve("balanced")
	res, err := NewScanner(&sliceSource{}, ScanConfig{}).Scan(context.Background(), Request{
		Query:   domain.VectorSet{Visual: basis(domain.ImageVectorDim, 0)},
		Profile: p,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
	assert.Zero(t, res.TotalMatches)
	assert.False(t, res.Partial)
}

func TestScanDeadlineReturnsPartialResults(t *testing.T) {
	var recs []domain.MediaEmbeddingRecord
	for i := 0; i < 10; i++ {
		recs = append(recs, record(fmt.Sprintf("m%d", i), domain.VectorSet{Visual: basis(domain.ImageVectorDim, i)}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	src := &sliceSource{records: recs, beforeBatch: func(i int) {
		if i == 2 {
			cancel()
		}
	}}

	_, p := Resolve("visual")
	res, err := NewScanner(src, ScanConfig{BatchSize: 2}).Scan(ctx, Request{
		Query:   domain.VectorSet{Visual: basis(domain.ImageVectorDim, 1)},
		Profile: p,
	})
	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.Equal(t, 4, res.Scanned)
	require.NotEmpty(t, res.Matches)
	assert.Equal(t, "m1", res.Matches[0].MediaID)
}

type failingSource struct{ err error }

func (f failingSource) ScanCandidates(context.Context, CandidateQuery, func([]domain.MediaEmbeddingRecord) error) error {
	return f.err
}

func TestScanStoreError(t *testing.T) {
	_, p := Resolve("balanced")
	boom := errors.New("store unavailable")
	_, err := NewScanner(failingSource{err: boom}, ScanConfig{}).Scan(context.Background(), Request{Profile: p})
	assert.ErrorIs(t, err, boom)
}

func TestScanPassesScopeAndPrefetch(t *testing.T) {
	src := &sliceSource{records: []domain.MediaEmbeddingRecord{
		record("a", domain.VectorSet{Hybrid: basis(domain.ImageVectorDim, 0)}),
	}}
	src.records[0].ProviderID = "prov-2"

	_, p := Resolve("balanced")
	hybrid := basis(domain.ImageVectorDim, 0)
	res, err := NewScanner(src, ScanConfig{BatchSize: 16, ANNPrefetch: 50}).Scan(context.Background(), Request{
		Query:      domain.VectorSet{Hybrid: hybrid},
		Profile:    p,
		ProviderID: "prov-1",
	})
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
	assert.Equal(t, "prov-1", src.lastQuery.ProviderID)
	assert.Equal(t, 16, src.lastQuery.BatchSize)
	assert.Equal(t, 50, src.lastQuery.PrefetchLimit)
	assert.Equal(t, hybrid, src.lastQuery.PrefetchVector)
}
