package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	rateLimitCleanupInterval = 5 * time.Minute
	rateLimitEntryTTL        = 10 * time.Minute
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiterMap struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	rps      rate.Limit
	burst    int
}

func newRateLimiterMap(requestsPerMinute int) *rateLimiterMap {
	return &rateLimiterMap{
		limiters: make(map[string]*ipLimiter, 64),
		rps:      rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:    requestsPerMinute, // Allow burst up to the per-minute limit.
	}
}

func (rl *rateLimiterMap) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, exists := rl.limiters[ip]
	if !exists {
		limiter := rate.NewLimiter(rl.rps, rl.burst)
		rl.limiters[ip] = &ipLimiter{
			limiter:  limiter,
			lastSeen: time.Now(),
		}

		return limiter
	}

	entry.lastSeen = time.Now()

	return entry.limiter
}

// evict drops limiters not seen for longer than ttl.
func (rl *rateLimiterMap) evict(ttl time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, entry := range rl.limiters {
		if time.Since(entry.lastSeen) > ttl {
			delete(rl.limiters, ip)
		}
	}
}

func (rl *rateLimiterMap) cleanup(done <-chan struct{}) {
	ticker := time.NewTicker(rateLimitCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evict(rateLimitEntryTTL)
		case <-done:
			return
		}
	}
}

// rateLimitMiddleware returns a per-IP rate limiting middleware.
func (s *server) rateLimitMiddleware(
	requestsPerMinute int,
) func(http.Handler) http.Handler {
	limiterMap := newRateLimiterMap(requestsPerMinute)

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		limiterMap.cleanup(s.done)
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiterMap.getLimiter(extractIP(r)).Allow() {
				writeJSON(w, http.StatusTooManyRequests,
					errorResponse{"rate limit exceeded"})

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractIP returns the client's IP address from the request.
func extractIP(r *http.Request) string {
	// Check X-Forwarded-For first (common with reverse proxies).
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")

		return strings.TrimSpace(first)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return ip
}
