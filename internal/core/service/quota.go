package service

import (
	"context"
	"sync"
	"time"

	"github.com/aichat/chat-gateway/internal/core/domain"
)

// MemoryQuotaTracker enforces rolling-window quotas in process memory, one
// window per key. Check-then-increment runs under a single lock, so racing
// reservations can never push a window past its limit.
//
// Windows reset lazily: any reservation or read past the window boundary
// starts a fresh bucket first. There is no background timer.
type MemoryQuotaTracker struct {
	policy domain.QuotaPolicy
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*domain.QuotaWindow
}

func NewMemoryQuotaTracker(policy domain.QuotaPolicy) *MemoryQuotaTracker {
	if policy.Window <= 0 {
		policy = domain.DefaultQuotaPolicy()
	}
	return &MemoryQuotaTracker{
		policy:  policy,
		now:     time.Now,
		windows: make(map[string]*domain.QuotaWindow),
	}
}

// CheckAndReserve atomically consumes one reservation from the key's window.
// Exactly limit reservations succeed per window; the next is denied with the
// window's reset time.
func (t *MemoryQuotaTracker) CheckAndReserve(_ context.Context, key string, tier domain.Tier) (domain.QuotaDecision, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w := t.window(key, tier)
	resetAt := w.WindowStart.Add(t.policy.Window)

	if w.Count >= w.Limit {
		return domain.QuotaDecision{Tier: tier, Remaining: 0, ResetAt: resetAt}, nil
	}

	w.Count++
	return domain.QuotaDecision{
		Allowed:   true,
		Tier:      tier,
		Remaining: w.Limit - w.Count,
		ResetAt:   resetAt,
	}, nil
}

// Remaining reports the key's unused reservations without consuming one.
func (t *MemoryQuotaTracker) Remaining(_ context.Context, key string, tier domain.Tier) (domain.QuotaDecision, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w := t.window(key, tier)
	remaining := w.Limit - w.Count
	return domain.QuotaDecision{
		Allowed:   remaining > 0,
		Tier:      tier,
		Remaining: remaining,
		ResetAt:   w.WindowStart.Add(t.policy.Window),
	}, nil
}

// window returns the live window for key, resetting it when the duration has
// elapsed. The count carries over when only the tier changed (login
// mid-window raises the limit but does not forgive spent questions).
func (t *MemoryQuotaTracker) window(key string, tier domain.Tier) *domain.QuotaWindow {
	now := t.now().UTC()

	w, ok := t.windows[key]
	if !ok || now.Sub(w.WindowStart) > t.policy.Window {
		t.sweepLocked(now)
		w = &domain.QuotaWindow{WindowStart: now}
		t.windows[key] = w
	}
	w.Tier = tier
	w.Limit = t.policy.Limit(tier)
	return w
}

// sweepLocked drops every expired window, including keys whose session
// context is long gone. Runs only when a reset already happens, so steady
// in-window traffic never pays for it. Caller holds mu.
func (t *MemoryQuotaTracker) sweepLocked(now time.Time) {
	for k, w := range t.windows {
		if now.Sub(w.WindowStart) > t.policy.Window {
			delete(t.windows, k)
		}
	}
}
