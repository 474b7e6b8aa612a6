package ratelimit

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tubewise/tubewise-backend/internal/platform/logger"
)

// Limiter is a per-user sliding window over message submissions. Denial is
// advisory: the session stays open, only the turn is refused.
type Limiter interface {
	Allow(userID uuid.UUID) bool
	Reset(userID uuid.UUID)
	ResetAll()
}

type slidingWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	now    func() time.Time
	users  map[uuid.UUID][]time.Time
	log    *logger.Logger
}

func NewSlidingWindow(limit int, window time.Duration, log *logger.Logger) Limiter {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &slidingWindow{
		limit:  limit,
		window: window,
		now:    time.Now,
		users:  make(map[uuid.UUID][]time.Time),
		log:    log.With("service", "RateLimiter"),
	}
}

func (l *slidingWindow) Allow(userID uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := l.users[userID][:0]
	for _, ts := range l.users[userID] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.limit {
		l.users[userID] = kept
		l.log.Debug("rate limit denied", "user_id", userID.String(), "in_window", len(kept))
		return false
	}

	l.users[userID] = append(kept, now)
	return true
}

func (l *slidingWindow) Reset(userID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.users, userID)
}

func (l *slidingWindow) ResetAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.users = make(map[uuid.UUID][]time.Time)
}
