// Package security provides per-client rate limiting for the masking
// service.
package security

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures per-client request limits.
type RateLimitConfig struct {
	Enabled        bool    `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMin float64 `yaml:"requests_per_min" mapstructure:"requests_per_min"`
	Burst          int     `yaml:"burst" mapstructure:"burst"`
}

// RateLimiter tracks a token-bucket limiter per client IP.
type RateLimiter struct {
	config *RateLimitConfig

	mu      sync.Mutex
	clients map[string]*clientLimiter
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(cfg *RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		config:  cfg,
		clients: make(map[string]*clientLimiter),
	}
}

// Allow reports whether a request from the given client IP is within its
// limit.
func (r *RateLimiter) Allow(clientIP string) bool {
	if !r.config.Enabled {
		return true
	}
	return r.getLimiter(clientIP).Allow()
}

func (r *RateLimiter) getLimiter(clientIP string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	cl, ok := r.clients[clientIP]
	if !ok {
		burst := r.config.Burst
		if burst <= 0 {
			burst = int(r.config.RequestsPerMin)
			if burst < 1 {
				burst = 1
			}
		}
		cl = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(r.config.RequestsPerMin/60.0), burst),
		}
		r.clients[clientIP] = cl
	}
	cl.lastSeen = time.Now()
	return cl.limiter
}

// Cleanup removes limiters idle for longer than maxIdle.
func (r *RateLimiter) Cleanup(maxIdle time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	for ip, cl := range r.clients {
		if cl.lastSeen.Before(cutoff) {
			delete(r.clients, ip)
		}
	}
}

// StartCleanupRoutine periodically drops idle client limiters.
func (r *RateLimiter) StartCleanupRoutine() {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			r.Cleanup(time.Hour)
		}
	}()
}
