package sync

import (
	stdsync "sync"

	"golang.org/x/time/rate"
)

// typingLimiter throttles typing-start processing per (cid, user) so a
// flooding client cannot churn channel snapshots.
type typingLimiter struct {
	mu    stdsync.Mutex
	m     map[string]*rate.Limiter
	rps   float64
	burst int
}

func newTypingLimiter(rps float64, burst int) *typingLimiter {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 3
	}
	return &typingLimiter{m: map[string]*rate.Limiter{}, rps: rps, burst: burst}
}

func (p *typingLimiter) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.m[key]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[key] = l
	return l
}

// Allow reports whether a typing-start for key may be processed now.
func (p *typingLimiter) Allow(cid, userID string) bool {
	return p.get(cid + "/" + userID).Allow()
}
