package common

import (
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// UsageTracker follows the request weight a venue reports back in its
// response headers so callers can see how close they are to a ban.
type UsageTracker struct {
	usedWeight    int
	limit         int
	lastReset     time.Time
	resetInterval time.Duration
	log           zerolog.Logger
	mu            sync.RWMutex
}

// NewUsageTracker creates a tracker for limit weight units per resetInterval.
func NewUsageTracker(limit int, resetInterval time.Duration, log zerolog.Logger) *UsageTracker {
	if limit <= 0 {
		limit = 1
	}
	return &UsageTracker{
		limit:         limit,
		resetInterval: resetInterval,
		lastReset:     time.Now(),
		log:           log,
	}
}

// UpdateFromHeader records the used weight reported by the venue.
func (u *UsageTracker) UpdateFromHeader(headerValue string) {
	if headerValue == "" {
		return
	}
	weight, err := strconv.Atoi(headerValue)
	if err != nil {
		return
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if time.Since(u.lastReset) >= u.resetInterval {
		u.usedWeight = 0
		u.lastReset = time.Now()
	}
	u.usedWeight = weight

	pct := float64(u.usedWeight) / float64(u.limit) * 100
	switch {
	case pct >= 95:
		u.log.Error().Int("used", u.usedWeight).Int("limit", u.limit).Float64("pct", pct).Msg("request weight critical")
	case pct >= 80:
		u.log.Warn().Int("used", u.usedWeight).Int("limit", u.limit).Float64("pct", pct).Msg("request weight high")
	}
}

// Usage returns current usage information.
func (u *UsageTracker) Usage() (used int, limit int, percentage float64) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	if time.Since(u.lastReset) >= u.resetInterval {
		return 0, u.limit, 0
	}
	return u.usedWeight, u.limit, float64(u.usedWeight) / float64(u.limit) * 100
}
