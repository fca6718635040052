package scraper

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// hostIdleTTL is how long a host's limiter is kept after its last request.
// It is far longer than one token interval, so a dropped limiter would have
// been full anyway.
const hostIdleTTL = 10 * time.Minute

type hostEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// HostLimiter provides per-host rate limiting using token buckets, so a burst
// of previews for one site is spread out while other hosts proceed. Hosts
// idle for longer than hostIdleTTL are forgotten.
type HostLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*hostEntry
	rps       float64
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewHostLimiter creates a HostLimiter allowing rps requests per second per
// host with a burst of 1.
func NewHostLimiter(rps float64) *HostLimiter {
	idle := hostIdleTTL
	if interval := time.Duration(float64(time.Second) / rps); interval > idle {
		idle = interval
	}
	return &HostLimiter{
		limiters:  make(map[string]*hostEntry),
		rps:       rps,
		idle:      idle,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// Wait blocks until a request to host is allowed or ctx is done.
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweep(now)
	}
	entry, ok := l.limiters[host]
	if !ok {
		entry = &hostEntry{limiter: rate.NewLimiter(rate.Limit(l.rps), 1)}
		l.limiters[host] = entry
	}
	entry.lastUsed = now
	l.mu.Unlock()

	return entry.limiter.Wait(ctx)
}

// sweep drops limiters idle since before now-idle. l.mu must be held.
func (l *HostLimiter) sweep(now time.Time) {
	for host, entry := range l.limiters {
		if now.Sub(entry.lastUsed) >= l.idle {
			delete(l.limiters, host)
		}
	}
	l.lastSweep = now
}
