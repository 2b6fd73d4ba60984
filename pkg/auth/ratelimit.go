package auth

import (
	"context"
	"sync"
	"time"
)

// Limiter decides whether an authenticated caller may proceed.
type Limiter interface {
	Allow(ctx context.Context, id *Identity) error
}

// Limits configures per-minute request budgets. TierPerMinute overrides
// DefaultPerMinute for the named tiers. A budget of zero or less means
// unlimited.
type Limits struct {
	DefaultPerMinute int
	TierPerMinute    map[string]int
}

func (l Limits) budget(tier string) int {
	if n, ok := l.TierPerMinute[tier]; ok {
		return n
	}
	return l.DefaultPerMinute
}

// SlidingWindow counts requests per subject in fixed one-minute windows
// held in memory. Suitable for a single process; a multi-replica
// deployment needs a shared limiter in front.
type SlidingWindow struct {
	limits Limits

	mu        sync.Mutex
	windows   map[string]*window
	lastSweep time.Time
}

type window struct {
	start time.Time
	count int
}

// NewSlidingWindow builds an in-memory limiter for the given budgets.
func NewSlidingWindow(limits Limits) *SlidingWindow {
	return &SlidingWindow{
		limits:    limits,
		windows:   make(map[string]*window),
		lastSweep: time.Now(),
	}
}

// Allow records the request and returns ErrTooManyRequests once the
// caller's budget for the current window is spent.
func (s *SlidingWindow) Allow(_ context.Context, id *Identity) error {
	budget := s.limits.budget(id.Tier)
	if budget <= 0 {
		return nil
	}

	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(now)

	w, ok := s.windows[id.Subject]
	if !ok || now.Sub(w.start) >= time.Minute {
		s.windows[id.Subject] = &window{start: now, count: 1}
		return nil
	}

	w.count++
	if w.count > budget {
		return ErrTooManyRequests
	}
	return nil
}

// sweep drops expired windows so one-off subjects do not accumulate
// forever. Runs at most once per minute; caller holds the lock.
func (s *SlidingWindow) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < time.Minute {
		return
	}
	for subject, w := range s.windows {
		if now.Sub(w.start) >= time.Minute {
			delete(s.windows, subject)
		}
	}
	s.lastSweep = now
}
