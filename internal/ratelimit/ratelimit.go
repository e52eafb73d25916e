package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/deusflow/dailybrief/internal/logger"
)

// Limiter caps LLM requests per backend over a rolling day.
type Limiter struct {
	mu          sync.Mutex
	counts      map[string]int
	maxPer      int
	maxTotal    int
	totalCount  int
	resetTime   time.Time
	cacheHits   int
	cacheMisses int
	now         func() time.Time
}

// New creates a limiter. A limit of 0 means unlimited.
func New(maxPerBackend, maxTotal int) *Limiter {
	return newWithClock(maxPerBackend, maxTotal, time.Now)
}

func newWithClock(maxPerBackend, maxTotal int, now func() time.Time) *Limiter {
	return &Limiter{
		counts:    map[string]int{},
		maxPer:    maxPerBackend,
		maxTotal:  maxTotal,
		resetTime: now().Add(24 * time.Hour),
		now:       now,
	}
}

// Allow reports whether backend can make another request.
func (rl *Limiter) Allow(backend string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.checkReset()
	return rl.allowLocked(backend)
}

func (rl *Limiter) allowLocked(backend string) bool {
	if rl.maxPer > 0 && rl.counts[backend] >= rl.maxPer {
		return false
	}
	if rl.maxTotal > 0 && rl.totalCount >= rl.maxTotal {
		return false
	}
	return true
}

// Use records one request for backend, failing once a cap is reached.
func (rl *Limiter) Use(backend string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.checkReset()

	if !rl.allowLocked(backend) {
		logger.Warn("LLM request budget reached", "backend", backend, "used", rl.counts[backend], "limit", rl.maxPer)
		return fmt.Errorf("%s request budget exceeded (%d/%d)", backend, rl.counts[backend], rl.maxPer)
	}

	rl.counts[backend]++
	rl.totalCount++
	rl.cacheMisses++

	logger.Debug("LLM usage", "backend", backend, "used", rl.counts[backend], "limit", rl.maxPer, "total", rl.totalCount)
	return nil
}

// RecordCacheHit records a request answered from the translation cache.
func (rl *Limiter) RecordCacheHit() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.cacheHits++
}

func (rl *Limiter) cacheHitRate() float64 {
	total := rl.cacheHits + rl.cacheMisses
	if total == 0 {
		return 0
	}
	return float64(rl.cacheHits) / float64(total) * 100
}

func (rl *Limiter) GetStats() map[string]interface{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	used := make(map[string]int, len(rl.counts))
	for k, v := range rl.counts {
		used[k] = v
	}
	return map[string]interface{}{
		"used":           used,
		"limit":          rl.maxPer,
		"total_used":     rl.totalCount,
		"total_limit":    rl.maxTotal,
		"cache_hits":     rl.cacheHits,
		"cache_misses":   rl.cacheMisses,
		"cache_hit_rate": rl.cacheHitRate(),
		"reset_time":     rl.resetTime,
	}
}

// checkReset clears counters once the reset time has passed.
func (rl *Limiter) checkReset() {
	now := rl.now()
	if now.After(rl.resetTime) {
		logger.Info("Resetting LLM request budget", "total_used", rl.totalCount, "cache_hits", rl.cacheHits)
		rl.counts = map[string]int{}
		rl.totalCount = 0
		rl.cacheHits = 0
		rl.cacheMisses = 0
		rl.resetTime = now.Add(24 * time.Hour)
	}
}
