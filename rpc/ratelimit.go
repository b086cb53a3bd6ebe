package rpc

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type sourceEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// sourceLimiter keeps one token bucket per client source.
type sourceLimiter struct {
	perSecond rate.Limit
	burst     int

	mu      sync.Mutex
	sources map[string]*sourceEntry
}

func newSourceLimiter(requestsPerMinute, burst int) *sourceLimiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &sourceLimiter{
		perSecond: rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:     burst,
		sources:   make(map[string]*sourceEntry),
	}
}

func (l *sourceLimiter) allow(source string, now time.Time) bool {
	if l == nil {
		return true
	}
	if source == "" {
		source = "unknown"
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, entry := range l.sources {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(l.sources, key)
		}
	}
	entry, ok := l.sources[source]
	if !ok {
		entry = &sourceEntry{limiter: rate.NewLimiter(l.perSecond, l.burst)}
		l.sources[source] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func clientSource(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			candidate := strings.TrimSpace(parts[0])
			if candidate != "" {
				return candidate
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
