// Package ratelimit throttles requests per client. It is optional: the
// service does not construct a limiter unless a rate is configured.
package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// DefaultMaxKeys bounds the number of clients a MemoryLimiter tracks.
const DefaultMaxKeys = 10000

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// MemoryLimiter keeps one token bucket per key in process memory.
type MemoryLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	maxKeys  int
	limiters map[string]*rate.Limiter
}

// NewMemoryLimiter allows perSecond requests per key with the given burst.
func NewMemoryLimiter(perSecond, burst int) *MemoryLimiter {
	if burst < 1 {
		burst = 1
	}
	return &MemoryLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		maxKeys:  DefaultMaxKeys,
		limiters: map[string]*rate.Limiter{},
	}
}

func (m *MemoryLimiter) Allow(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	l, ok := m.limiters[key]
	if !ok {
		// Forget every client once the table is full; their buckets refill
		// from scratch.
		if len(m.limiters) >= m.maxKeys {
			m.limiters = map[string]*rate.Limiter{}
		}
		l = rate.NewLimiter(m.limit, m.burst)
		m.limiters[key] = l
	}
	m.mu.Unlock()
	return l.Allow(), nil
}

// New builds the limiter for a backend name.
func New(backend string, perSecond, burst int, redisURL string) (Limiter, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemoryLimiter(perSecond, burst), nil
	case BackendRedis:
		return NewRedisLimiter(redisURL, perSecond, burst)
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", backend)
	}
}

// ClientKey derives the limiter key from a remote address.
func ClientKey(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// Middleware rejects requests over the limit with 429. When operationIDs is
// not empty only those operations are limited. Limiter errors let the request
// through.
func Middleware(api huma.API, limiter Limiter, operationIDs ...string) func(ctx huma.Context, next func(huma.Context)) {
	limited := map[string]bool{}
	for _, id := range operationIDs {
		limited[id] = true
	}
	return func(ctx huma.Context, next func(huma.Context)) {
		if len(limited) > 0 && !limited[ctx.Operation().OperationID] {
			next(ctx)
			return
		}

		allowed, err := limiter.Allow(ctx.Context(), ClientKey(ctx.RemoteAddr()))
		if err != nil {
			zerolog.Ctx(ctx.Context()).Error().Err(err).Msg("Rate limiter unavailable")
			next(ctx)
			return
		}
		if !allowed {
			ctx.SetHeader("Retry-After", "1")
			_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
			return
		}
		next(ctx)
	}
}
