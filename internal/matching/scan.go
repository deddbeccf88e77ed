package matching

import (
	"container/heap"
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/timmy/stylematch/internal/domain"
)

// DefaultScanBatchSize is the number of records pulled from the store per batch.
const DefaultScanBatchSize = 256

// CandidateQuery scopes a candidate scan.
type CandidateQuery struct {
	// ProviderID restricts candidates to one provider; empty means all providers.
	ProviderID string
	BatchSize  int

	// PrefetchVector, when set, lets the store narrow the scan to its
	// PrefetchLimit nearest records on the hybrid slot.
	PrefetchVector []float32
	PrefetchLimit  int
}

// CandidateSource streams stored records in batches. fn may return an error to
// stop the scan early; that error is returned unchanged.
type CandidateSource interface {
	ScanCandidates(ctx context.Context, q CandidateQuery, fn func(batch []domain.MediaEmbeddingRecord) error) error
}

// ScanConfig tunes a Scanner.
type ScanConfig struct {
	BatchSize   int
	Parallelism int
	// ANNPrefetch > 0 enables the hybrid-slot pre-filter with that many neighbors.
	ANNPrefetch int
}

// Scanner scores every candidate of a source against a query in bounded
// batches, keeping only the best results.
type Scanner struct {
	source CandidateSource
	cfg    ScanConfig
}

// NewScanner creates a Scanner over source.
func NewScanner(source CandidateSource, cfg ScanConfig) *Scanner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultScanBatchSize
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	return &Scanner{source: source, cfg: cfg}
}

// Request is one match request.
type Request struct {
	Query      domain.VectorSet
	Tags       []string
	Profile    Profile
	MaxResults int
	ProviderID string
}

// Result is the ranked output of a scan.
type Result struct {
	Matches      []Candidate
	TotalMatches int
	Scanned      int
	// Partial is set when the deadline expired before every candidate was scored.
	Partial bool
}

var errScanStopped = errors.New("scan stopped")

// Scan runs the query against all candidates. If ctx expires mid-scan, Scan
// returns the best results found so far with Partial set instead of failing.
func (s *Scanner) Scan(ctx context.Context, req Request) (*Result, error) {
	limit := LimitResults(req.MaxResults)
	top := &topK{limit: limit}

	q := CandidateQuery{ProviderID: req.ProviderID, BatchSize: s.cfg.BatchSize}
	if s.cfg.ANNPrefetch > 0 && req.Query.Has(domain.SlotHybrid) {
		q.PrefetchVector = req.Query.Hybrid
		q.PrefetchLimit = s.cfg.ANNPrefetch
	}

	res := &Result{}
	err := s.source.ScanCandidates(ctx, q, func(batch []domain.MediaEmbeddingRecord) error {
		if ctx.Err() != nil {
			return errScanStopped
		}
		for _, c := range s.scoreBatch(&req.Query, batch, req.Profile) {
			res.TotalMatches++
			top.offer(c)
		}
		res.Scanned += len(batch)
		return nil
	})
	if err != nil {
		if !errors.Is(err, errScanStopped) && ctx.Err() == nil {
			return nil, fmt.Errorf("scan candidates: %w", err)
		}
		res.Partial = true
	}

	res.Matches, _ = Rank(top.items, req.Tags, limit)
	return res, nil
}

// scoreBatch scores a batch across up to Parallelism goroutines. Each shard
// writes only its own slot of results.
func (s *Scanner) scoreBatch(query *domain.VectorSet, batch []domain.MediaEmbeddingRecord, p Profile) []Candidate {
	shards := s.cfg.Parallelism
	if shards > len(batch) {
		shards = len(batch)
	}
	if shards <= 1 {
		return scoreRange(query, batch, p)
	}

	results := make([][]Candidate, shards)
	size := (len(batch) + shards - 1) / shards

	var g errgroup.Group
	g.SetLimit(shards)
	for i := 0; i < shards; i++ {
		start := i * size
		end := start + size
		if end > len(batch) {
			end = len(batch)
		}
		if start >= end {
			continue
		}
		g.Go(func() error {
			results[i] = scoreRange(query, batch[start:end], p)
			return nil
		})
	}
	_ = g.Wait()

	var out []Candidate
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

func scoreRange(query *domain.VectorSet, recs []domain.MediaEmbeddingRecord, p Profile) []Candidate {
	out := make([]Candidate, 0, len(recs))
	for i := range recs {
		if c, ok := Score(query, &recs[i], p); ok {
			out = append(out, c)
		}
	}
	return out
}

// topK keeps the best limit candidates seen so far. The heap root is the
// current worst kept candidate.
type topK struct {
	limit int
	items candidateHeap
}

func (t *topK) offer(c Candidate) {
	if len(t.items) < t.limit {
		heap.Push(&t.items, c)
		return
	}
	if ranksBefore(&c, &t.items[0]) {
		t.items[0] = c
		heap.Fix(&t.items, 0)
	}
}

type candidateHeap []Candidate

func (h candidateHeap) Len() int           { return len(h) }
func (h candidateHeap) Less(i, j int) bool { return ranksBefore(&h[j], &h[i]) }
func (h candidateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x interface{}) {
	*h = append(*h, x.(Candidate))
}

func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
