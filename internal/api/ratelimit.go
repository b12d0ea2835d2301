package api

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"
)

// minBurst is the smallest burst a limited model gets
const minBurst = 5

type pooledLimiter struct {
	limiter *rate.Limiter
	rpm     int
}

// RateLimiterPool holds one limiter per model endpoint, keyed by
// "base_url:model_name". The first rate seen for a key wins.
type RateLimiterPool struct {
	mu       sync.Mutex
	limiters map[string]pooledLimiter
	logger   *slog.Logger
}

// NewRateLimiterPool creates an empty pool
func NewRateLimiterPool(logger *slog.Logger) *RateLimiterPool {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiterPool{
		limiters: make(map[string]pooledLimiter),
		logger:   logger,
	}
}

// limitFor converts requests per minute into a limiter rate and burst.
// rpm <= 0 means unlimited.
func limitFor(rpm int) (rate.Limit, int) {
	if rpm <= 0 {
		return rate.Inf, 1
	}
	return rate.Limit(float64(rpm) / 60.0), max(minBurst, rpm/5)
}

// GetOrCreate returns the limiter for modelID, creating it on first use
func (p *RateLimiterPool) GetOrCreate(modelID string, requestsPerMinute int) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.limiters[modelID]; ok {
		if existing.rpm != requestsPerMinute {
			p.logger.Warn("Rate limiter already exists with different rate, using existing rate",
				"model_id", modelID,
				"existing_rpm", existing.rpm,
				"requested_rpm", requestsPerMinute)
		}
		return existing.limiter
	}

	limit, burst := limitFor(requestsPerMinute)
	limiter := rate.NewLimiter(limit, burst)
	p.limiters[modelID] = pooledLimiter{limiter: limiter, rpm: requestsPerMinute}

	p.logger.Debug("Created rate limiter",
		"model_id", modelID,
		"rpm", requestsPerMinute,
		"burst", burst)

	return limiter
}

// Wait blocks until the model's limiter allows the next request
func (p *RateLimiterPool) Wait(ctx context.Context, modelID string, requestsPerMinute int) error {
	return p.GetOrCreate(modelID, requestsPerMinute).Wait(ctx)
}
