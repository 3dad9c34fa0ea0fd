package iot

import (
	"sync"

	"golang.org/x/time/rate"
)

// DefaultMaxBuckets is the size at which idle default buckets start being evicted.
const DefaultMaxBuckets = 10000

// RateLimiterStore hands out one token bucket per key. Ingestion keys by credential so
// that floods with unknown credentials are throttled before they reach the database.
//
// Once the store holds maxBuckets entries, creating a bucket first evicts every default
// bucket that has refilled to its burst: a full bucket behaves exactly like a new one, so
// eviction never lets a key through early. Overrides from SetLimiter are never evicted.
type RateLimiterStore struct {
	limiters     map[string]*rate.Limiter
	pinned       map[string]bool
	mu           sync.Mutex
	defaultRate  rate.Limit
	defaultBurst int
	maxBuckets   int
}

func NewRateLimiterStore(defaultRate rate.Limit, defaultBurst int) *RateLimiterStore {
	return &RateLimiterStore{
		limiters:     make(map[string]*rate.Limiter),
		pinned:       make(map[string]bool),
		defaultRate:  defaultRate,
		defaultBurst: defaultBurst,
		maxBuckets:   DefaultMaxBuckets,
	}
}

func (s *RateLimiterStore) SetMaxBuckets(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > 0 {
		s.maxBuckets = n
	}
}

func (s *RateLimiterStore) evictIdleLocked() {
	for key, limiter := range s.limiters {
		if s.pinned[key] {
			continue
		}
		if limiter.Tokens() >= float64(limiter.Burst()) {
			delete(s.limiters, key)
		}
	}
}

func (s *RateLimiterStore) GetLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, exists := s.limiters[key]
	if !exists {
		if len(s.limiters) >= s.maxBuckets {
			s.evictIdleLocked()
		}
		limiter = rate.NewLimiter(s.defaultRate, s.defaultBurst)
		s.limiters[key] = limiter
	}
	return limiter
}

func (s *RateLimiterStore) SetLimiter(key string, keyRate rate.Limit, keyBurst int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limiters[key] = rate.NewLimiter(keyRate, keyBurst)
	s.pinned[key] = true
}

// Allow consumes one token for key.
func (s *RateLimiterStore) Allow(key string) bool {
	return s.GetLimiter(key).Allow()
}

// Forget drops the bucket of a rotated or deactivated credential.
func (s *RateLimiterStore) Forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.limiters, key)
	delete(s.pinned, key)
}

func (s *RateLimiterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}
