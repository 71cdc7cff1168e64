package stats

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL bounds how stale an aggregate read may be.
const DefaultTTL = 60 * time.Second

// slot caches the most recent value for one key. Loading a different key
// replaces it. Entries only leave through expiry.
type slot[T any] struct {
	ttl   time.Duration
	clock func() time.Time

	mu      sync.Mutex
	key     string
	value   T
	expires time.Time
	loaded  bool

	group singleflight.Group
}

func newSlot[T any](ttl time.Duration, clock func() time.Time) *slot[T] {
	return &slot[T]{ttl: ttl, clock: clock}
}

// get returns the cached value for key, calling load on a miss. Concurrent
// misses for the same key share one load, which runs detached from any one
// caller's cancellation; a cancelled caller stops waiting on its own.
func (s *slot[T]) get(ctx context.Context, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T
	if value, ok := s.lookup(key); ok {
		return value, nil
	}
	results := s.group.DoChan(key, func() (any, error) {
		if value, ok := s.lookup(key); ok {
			return value, nil
		}
		value, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return value, err
		}
		s.store(key, value)
		return value, nil
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case result := <-results:
		if result.Err != nil {
			return zero, result.Err
		}
		return result.Val.(T), nil
	}
}

func (s *slot[T]) lookup(key string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded || s.key != key || !s.clock().Before(s.expires) {
		var zero T
		return zero, false
	}
	return s.value, true
}

func (s *slot[T]) store(key string, value T) {
	if s.ttl <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = key
	s.value = value
	s.expires = s.clock().Add(s.ttl)
	s.loaded = true
}
