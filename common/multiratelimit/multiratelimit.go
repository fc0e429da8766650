// Package multiratelimit keeps a token bucket per key
package multiratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

type MultiRatelimiter[T comparable] struct {
	mu       sync.Mutex
	limiters map[T]*rate.Limiter

	perSecond float64
	burst     int
}

func NewMultiRatelimiter[T comparable](perSecond float64, burst int) *MultiRatelimiter[T] {
	return &MultiRatelimiter[T]{
		limiters:  make(map[T]*rate.Limiter),
		perSecond: perSecond,
		burst:     burst,
	}
}

func (m *MultiRatelimiter[T]) limiter(key T) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.limiters[key]; ok {
		return l
	}

	l := rate.NewLimiter(rate.Limit(m.perSecond), m.burst)
	m.limiters[key] = l
	return l
}

// Allow reports whether an event for key may happen now, using up a token if so
func (m *MultiRatelimiter[T]) Allow(key T) bool {
	return m.limiter(key).Allow()
}

// Wait blocks until an event for key may happen or ctx is done
func (m *MultiRatelimiter[T]) Wait(ctx context.Context, key T) error {
	return m.limiter(key).Wait(ctx)
}
