package discovery

import (
	"time"

	"golang.org/x/time/rate"

	"momentkey/internal/domain"
)

// announceLimiter applies a token bucket per token id and evicts idle
// entries. Callers hold the registry lock.
type announceLimiter struct {
	limit   rate.Limit
	burst   int
	byToken map[domain.TokenID]*limiterEntry
	hits    uint64
	idleTTL time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newAnnounceLimiter returns nil, meaning unlimited, for non-positive args.
func newAnnounceLimiter(perSecond float64, burst int, idleTTL time.Duration) *announceLimiter {
	if perSecond <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = time.Minute
	}
	return &announceLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		byToken: make(map[domain.TokenID]*limiterEntry),
		idleTTL: idleTTL,
	}
}

func (l *announceLimiter) allow(id domain.TokenID, now time.Time) bool {
	if l == nil {
		return true
	}
	e, ok := l.byToken[id]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byToken[id] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%256 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byToken {
			if v.lastSeen.Before(cutoff) {
				delete(l.byToken, k)
			}
		}
	}
	return allowed
}
