// Package ratelimit guards the chat server against floods.
//
// Two shapes of limiter live here:
//   - ConnectRateLimiter: per-IP fixed window on WebSocket upgrades, checked before
//     the token is even parsed.
//   - Limiter implementations for per-user message sends: the in-memory
//     MessageRateLimiter for single-instance deployments and RedisLimiter when
//     several instances share one Redis.
//
// The package imports nothing from the rest of the module so handlers, ws and
// services can all depend on it without cycles.
package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Limiter decides whether key may perform one more action right now.
// Implementations count the call whether or not it is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
	Close() error
}

type bucket struct {
	count       int
	windowStart time.Time
}

// ConnectRateLimiter is a fixed-window limiter keyed by client IP.
//
//	limiter := NewConnectRateLimiter(20, time.Minute)
//	if !limiter.Allow(ExtractIP(r)) { return 429 }
type ConnectRateLimiter struct {
	mu          sync.Mutex
	buckets     map[string]*bucket
	maxAttempts int
	window      time.Duration
	stopCleanup chan struct{}
	closeOnce   sync.Once
}

// NewConnectRateLimiter starts a limiter with a background sweep of expired
// buckets so long-running servers don't accumulate one entry per IP forever.
func NewConnectRateLimiter(maxAttempts int, window time.Duration) *ConnectRateLimiter {
	rl := &ConnectRateLimiter{
		buckets:     make(map[string]*bucket),
		maxAttempts: maxAttempts,
		window:      window,
		stopCleanup: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Allow counts one attempt for ip and reports whether it is within the limit.
func (rl *ConnectRateLimiter) Allow(ip string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, exists := rl.buckets[ip]
	if !exists || now.Sub(b.windowStart) > rl.window {
		rl.buckets[ip] = &bucket{count: 1, windowStart: now}
		return true
	}

	b.count++
	return b.count <= rl.maxAttempts
}

// RetryAfterSeconds is the value for the Retry-After header.
func (rl *ConnectRateLimiter) RetryAfterSeconds(ip string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, exists := rl.buckets[ip]
	if !exists {
		return 0
	}

	remaining := rl.window - time.Since(b.windowStart)
	if remaining < 0 {
		return 0
	}
	return int(remaining.Seconds()) + 1
}

// Close stops the sweep goroutine.
func (rl *ConnectRateLimiter) Close() {
	rl.closeOnce.Do(func() { close(rl.stopCleanup) })
}

func (rl *ConnectRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *ConnectRateLimiter) cleanup() {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, b := range rl.buckets {
		if now.Sub(b.windowStart) > rl.window {
			delete(rl.buckets, ip)
		}
	}
}

// ExtractIP returns the client IP, preferring proxy headers because in production
// the server sits behind a reverse proxy and RemoteAddr is the proxy.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// FormatRetryMessage renders a retry delay for humans, e.g. 45 -> "45 second(s)".
func FormatRetryMessage(seconds int) string {
	if seconds >= 60 {
		return fmt.Sprintf("%d minute(s)", seconds/60)
	}
	return fmt.Sprintf("%d second(s)", seconds)
}
