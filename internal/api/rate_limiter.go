package api

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/raaihank/isolated-regex/internal/config"
)

// RateLimiter keeps one token bucket per client
type RateLimiter struct {
	mu      sync.Mutex
	cfg     config.RateLimitConfig
	clients map[string]*clientLimiter
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		cfg:     cfg,
		clients: make(map[string]*clientLimiter),
	}
}

// Allow reports whether a request from clientIP may proceed
func (r *RateLimiter) Allow(clientIP string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.cfg.Enabled {
		return true
	}

	c, ok := r.clients[clientIP]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(r.cfg.RequestsPerSecond), r.cfg.Burst)}
		r.clients[clientIP] = c
	}
	c.lastSeen = time.Now()
	return c.limiter.Allow()
}

// SetLimits applies new limits to every existing bucket
func (r *RateLimiter) SetLimits(cfg config.RateLimitConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cfg = cfg
	for _, c := range r.clients {
		c.limiter.SetLimit(rate.Limit(cfg.RequestsPerSecond))
		c.limiter.SetBurst(cfg.Burst)
	}
}

// CleanupOldClients removes buckets not used since cutoff
func (r *RateLimiter) CleanupOldClients(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for ip, c := range r.clients {
		if c.lastSeen.Before(cutoff) {
			delete(r.clients, ip)
			removed++
		}
	}
	return removed
}

// StartCleanupRoutine drops idle buckets every interval until ctx is done
func (r *RateLimiter) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				r.CleanupOldClients(now.Add(-time.Hour))
			}
		}
	}()
}
