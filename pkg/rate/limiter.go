package rate

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const idleLimiterTTL = 10 * time.Minute

// Limiter limits operations based on a provided key.
type Limiter interface {
	Allow(key string) (bool, error)
}

type keyedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type localRateLimiter struct {
	limit rate.Limit
	burst int

	sync.Mutex
	limiters  map[string]*keyedLimiter
	lastSweep time.Time
}

// NewLocalRateLimiter returns an in memory limiter allowing limit operations
// per second for each key. A burst below 1 is treated as 1, so fractional
// limits still eventually allow an operation.
func NewLocalRateLimiter(limit rate.Limit, burst int) Limiter {
	if burst < 1 {
		burst = 1
	}

	return &localRateLimiter{
		limit:     limit,
		burst:     burst,
		limiters:  make(map[string]*keyedLimiter),
		lastSweep: time.Now(),
	}
}

// Allow implements limiter.Allow.
func (l *localRateLimiter) Allow(key string) (bool, error) {
	now := time.Now()

	l.Lock()
	entry, ok := l.limiters[key]
	if !ok {
		entry = &keyedLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now

	if now.Sub(l.lastSweep) > idleLimiterTTL {
		l.sweep(now)
	}
	l.Unlock()

	return entry.limiter.AllowN(now, 1), nil
}

// sweep drops limiters idle long enough to have refilled completely
func (l *localRateLimiter) sweep(now time.Time) {
	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > idleLimiterTTL {
			delete(l.limiters, key)
		}
	}
	l.lastSweep = now
}

// NoLimiter never limits operations
type NoLimiter struct {
}

// Allow implements limiter.Allow.
func (n *NoLimiter) Allow(_ string) (bool, error) {
	return true, nil
}
