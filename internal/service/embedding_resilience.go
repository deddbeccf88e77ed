package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/timmy/stylematch/internal/metrics"
)

// ResilienceConfig tunes the guards placed around an EmbeddingProvider.
type ResilienceConfig struct {
	RequestsPerSecond float64 // <= 0 disables rate limiting
	Burst             int
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BreakerFailures   uint32 // consecutive failures that open the breaker
	BreakerTimeout    time.Duration
	CacheSize         int // text embedding cache entries, <= 0 disables caching
}

// ResilientEmbedder wraps an EmbeddingProvider with rate limiting, retries,
// a circuit breaker and a text embedding cache.
type ResilientEmbedder struct {
	next    EmbeddingProvider
	cfg     ResilienceConfig
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	cache   *lru.Cache[string, []float32]
	metrics *metrics.Recorder
}

// NewResilientEmbedder wraps next. rec may be nil.
func NewResilientEmbedder(next EmbeddingProvider, cfg ResilienceConfig, rec *metrics.Recorder) (*ResilientEmbedder, error) {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 2 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	r := &ResilientEmbedder{
		next:    next,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		metrics: rec,
	}

	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "embedding",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			// a rejected request says nothing about provider health
			var perr *ProviderError
			if err == nil || errors.Is(err, ErrInvalidEmbeddingInput) {
				return true
			}
			return errors.As(err, &perr) && !perr.Retryable()
		},
	})

	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, []float32](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create embedding cache: %w", err)
		}
		r.cache = cache
	}
	return r, nil
}

// EmbedImage implements EmbeddingProvider.
func (r *ResilientEmbedder) EmbedImage(ctx context.Context, image []byte, contextText string) ([]float32, error) {
	return r.call(ctx, func(ctx context.Context) ([]float32, error) {
		return r.next.EmbedImage(ctx, image, contextText)
	})
}

// EmbedText implements EmbeddingProvider. Results are cached by text.
func (r *ResilientEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if r.cache != nil {
		if vec, ok := r.cache.Get(text); ok {
			r.metrics.CacheLookup(true)
			return append([]float32(nil), vec...), nil
		}
		r.metrics.CacheLookup(false)
	}

	vec, err := r.call(ctx, func(ctx context.Context) ([]float32, error) {
		return r.next.EmbedText(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Add(text, append([]float32(nil), vec...))
	}
	return vec, nil
}

// BreakerState reports the circuit breaker state, for health checks.
func (r *ResilientEmbedder) BreakerState() string {
	return r.breaker.State().String()
}

func (r *ResilientEmbedder) call(ctx context.Context, fn func(context.Context) ([]float32, error)) ([]float32, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialBackoff
	b.MaxInterval = r.cfg.MaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	var policy backoff.BackOff = b
	if r.cfg.MaxRetries >= 0 {
		policy = backoff.WithMaxRetries(b, uint64(r.cfg.MaxRetries))
	}

	var out []float32
	operation := func() error {
		if err := r.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		res, err := r.breaker.Execute(func() (interface{}, error) {
			return fn(ctx)
		})
		if err != nil {
			if !isRetryable(ctx, err) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = res.([]float32)
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}
	return out, nil
}

func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, ErrInvalidEmbeddingInput) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Retryable()
	}
	return true
}
