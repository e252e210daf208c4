package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lihengcn/GeminiEligibilityCheck/internal/audit"
	apperrors "github.com/lihengcn/GeminiEligibilityCheck/internal/errors"
)

const (
	maxEntries      = 10000
	cleanupInterval = time.Minute
	entryTTL        = 5 * time.Minute
	windowDuration  = time.Minute

	// WorkerIDHeader identifies a worker for per-worker rate limiting.
	WorkerIDHeader = "X-Worker-ID"
)

// Limiter counts requests per key over a one-minute sliding window.
type Limiter interface {
	Check(ctx context.Context, key string, limit int) (allowed bool, remaining int, resetAt int64)
}

type rateLimitEntry struct {
	timestamps []time.Time
	lastAccess time.Time
}

// RateLimiter is the in-process Limiter used when no Redis is configured.
type RateLimiter struct {
	mu          sync.Mutex
	store       map[string]*rateLimitEntry
	lastCleanup time.Time
}

var _ Limiter = (*RateLimiter)(nil)

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		store:       make(map[string]*rateLimitEntry),
		lastCleanup: time.Now(),
	}
}

func (rl *RateLimiter) cleanup() {
	now := time.Now()
	if now.Sub(rl.lastCleanup) < cleanupInterval {
		return
	}
	rl.lastCleanup = now

	for key, entry := range rl.store {
		if now.Sub(entry.lastAccess) > entryTTL {
			delete(rl.store, key)
		}
	}

	if len(rl.store) > maxEntries {
		oldest := make([]string, 0, len(rl.store)/5)
		for key := range rl.store {
			oldest = append(oldest, key)
			if len(oldest) >= len(rl.store)/5 {
				break
			}
		}
		for _, key := range oldest {
			delete(rl.store, key)
		}
	}
}

func (rl *RateLimiter) Check(ctx context.Context, key string, limit int) (allowed bool, remaining int, resetAt int64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.cleanup()

	now := time.Now()
	windowStart := now.Add(-windowDuration)

	entry, exists := rl.store[key]
	if !exists {
		entry = &rateLimitEntry{lastAccess: now}
		rl.store[key] = entry
	}
	entry.lastAccess = now

	filtered := entry.timestamps[:0]
	for _, ts := range entry.timestamps {
		if ts.After(windowStart) {
			filtered = append(filtered, ts)
		}
	}
	entry.timestamps = filtered

	remaining = max(limit-len(entry.timestamps), 0)

	if len(entry.timestamps) > 0 {
		resetAt = entry.timestamps[0].Add(windowDuration).Unix()
	} else {
		resetAt = now.Add(windowDuration).Unix()
	}

	if len(entry.timestamps) >= limit {
		return false, 0, resetAt
	}

	entry.timestamps = append(entry.timestamps, now)
	return true, remaining - 1, resetAt
}

// WorkerRateLimitMiddleware limits worker traffic per worker id, falling
// back to the caller address. A non-positive limit disables it.
type WorkerRateLimitMiddleware struct {
	limiter Limiter
	limit   int
}

func NewWorkerRateLimitMiddleware(limiter Limiter, limit int) *WorkerRateLimitMiddleware {
	return &WorkerRateLimitMiddleware{limiter: limiter, limit: limit}
}

func workerKey(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(WorkerIDHeader)); id != "" {
		return "worker:" + id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func (m *WorkerRateLimitMiddleware) Handler(next http.Handler) http.Handler {
	if m.limit <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := workerKey(r)
		allowed, remaining, resetAt := m.limiter.Check(r.Context(), key, m.limit)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))

		if !allowed {
			log.Warn().Str("worker", key).Msg("rate limit exceeded")
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventRateLimitExceed,
				Details: map[string]interface{}{"worker": key, "path": r.URL.Path},
			})
			secondsLeft := max(resetAt-time.Now().Unix(), 1)
			w.Header().Set("Retry-After", strconv.FormatInt(secondsLeft, 10))
			writeError(w, http.StatusTooManyRequests, apperrors.ErrCodeRateLimitExceeded, "Rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
