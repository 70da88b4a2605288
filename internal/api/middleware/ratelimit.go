package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/eventops/server/internal/api/problem"
	"github.com/eventops/server/internal/metrics"
	"github.com/eventops/server/internal/ratelimit"
)

// RateLimit enforces the shared fixed-window limit for the given kind.
// Authenticated requests count per actor; anonymous ones per client IP. The
// window lives in the database, so all server instances share one budget.
func RateLimit(limiter *ratelimit.Limiter, kind ratelimit.Kind, trustedProxyCIDRs []string, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier := ""
			if actor, ok := ActorFromContext(r.Context()); ok {
				identifier = actor.ULID
			}
			if identifier == "" {
				identifier = clientKey(r, trustedProxyCIDRs)
			}

			decision := limiter.Allow(r.Context(), kind, identifier)
			if !decision.Allowed {
				metrics.RateLimitRejectionsTotal.WithLabelValues(string(kind)).Inc()
				w.Header().Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())))
				problem.Write(w, r, http.StatusTooManyRequests, problem.TypeRateLimited, "Rate limit exceeded", nil, env,
					problem.WithDetail("Too many requests, retry later"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LoginBurstLimit is an in-process token bucket in front of the shared login
// window. It absorbs brute-force bursts without a database round trip per
// attempt; the durable per-IP budget is still enforced by RateLimit.
func LoginBurstLimit(attemptsPer15Min int, trustedProxyCIDRs []string, env string) func(http.Handler) http.Handler {
	store := newLimiterStore(attemptsPer15Min)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := store.limiter(clientKey(r, trustedProxyCIDRs))
			if limiter != nil && !limiter.Allow() {
				metrics.RateLimitRejectionsTotal.WithLabelValues(string(ratelimit.KindLogin)).Inc()
				w.Header().Set("Retry-After", "180")
				problem.Write(w, r, http.StatusTooManyRequests, problem.TypeRateLimited, "Too many login attempts", nil, env,
					problem.WithDetail("Too many login attempts, retry later"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type limiterStore struct {
	mu          sync.Mutex
	limiters    map[string]*limiterEntry
	burst       int
	stopCleanup chan struct{}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLimiterStore(burst int) *limiterStore {
	store := &limiterStore{
		limiters:    make(map[string]*limiterEntry),
		burst:       burst,
		stopCleanup: make(chan struct{}),
	}

	go store.cleanupLoop()

	return store
}

func (s *limiterStore) limiter(key string) *rate.Limiter {
	if s.burst <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.limiters[key]; ok {
		entry.lastSeen = time.Now()
		return entry.limiter
	}

	// Burst of N attempts, refilling one token per (15 min / N).
	interval := 15 * time.Minute / time.Duration(s.burst)
	limiter := rate.NewLimiter(rate.Every(interval), s.burst)

	s.limiters[key] = &limiterEntry{
		limiter:  limiter,
		lastSeen: time.Now(),
	}
	return limiter
}

// cleanupLoop removes stale entries so the map cannot grow without bound
// under attack.
func (s *limiterStore) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *limiterStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	ttl := 30 * time.Minute

	for key, entry := range s.limiters {
		if now.Sub(entry.lastSeen) > ttl {
			delete(s.limiters, key)
		}
	}
}

// clientKey extracts the client identifier for rate limiting. Forwarding
// headers are only honored when the immediate peer is a trusted proxy, so a
// client cannot spoof its way out of a limit.
func clientKey(r *http.Request, trustedProxyCIDRs []string) string {
	if r == nil {
		return ""
	}

	remoteIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		remoteIP = host
	}

	if isTrustedProxy(remoteIP, trustedProxyCIDRs) {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			parts := strings.Split(forwarded, ",")
			if len(parts) > 0 {
				return strings.TrimSpace(parts[0])
			}
		}
		if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
			return strings.TrimSpace(realIP)
		}
	}

	return remoteIP
}

func isTrustedProxy(ip string, trustedCIDRs []string) bool {
	if len(trustedCIDRs) == 0 {
		return false
	}

	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return false
	}

	for _, cidrStr := range trustedCIDRs {
		_, cidr, err := net.ParseCIDR(cidrStr)
		if err != nil {
			continue
		}
		if cidr.Contains(parsedIP) {
			return true
		}
	}

	return false
}
