package signal

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/Stranger/internal/domain"
	"golang.org/x/time/rate"
)

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a token bucket per identity, shared by all of its tabs.
type RateLimiter struct {
	mu      sync.Mutex
	byUser  map[domain.Identity]*limiterEntry
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
}

func NewRateLimiter(perSecond float64, burst int, idleTTL time.Duration) *RateLimiter {
	return &RateLimiter{
		byUser:  make(map[domain.Identity]*limiterEntry),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

func (rl *RateLimiter) Allow(uid domain.Identity) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	e, ok := rl.byUser[uid]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.byUser[uid] = e
	}
	e.lastSeen = now
	return e.lim.AllowN(now, 1)
}

// Sweep drops buckets that were not used for idleTTL.
func (rl *RateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-rl.idleTTL)
	n := 0
	for uid, e := range rl.byUser {
		if e.lastSeen.Before(cutoff) {
			delete(rl.byUser, uid)
			n++
		}
	}
	return n
}

func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.byUser)
}

// Run sweeps every interval until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Sweep()
		}
	}
}
