package domain

import "time"

// QuotaPolicy holds the per-tier limits and the rolling window duration.
type QuotaPolicy struct {
	GuestLimit         int
	AuthenticatedLimit int
	Window             time.Duration
}

// DefaultQuotaPolicy mirrors the product defaults: 10 questions per hour for
// guests, 50 for authenticated users.
func DefaultQuotaPolicy() QuotaPolicy {
	return QuotaPolicy{GuestLimit: 10, AuthenticatedLimit: 50, Window: time.Hour}
}

// Limit returns the reservation limit for a tier.
func (p QuotaPolicy) Limit(tier Tier) int {
	if tier == TierAuthenticated {
		return p.AuthenticatedLimit
	}
	return p.GuestLimit
}

// QuotaWindow is one rolling usage bucket. Count never exceeds Limit; the
// check happens at reservation time. The window resets lazily: the next
// access past WindowStart+window duration starts a fresh bucket.
type QuotaWindow struct {
	WindowStart time.Time
	Count       int
	Tier        Tier
	Limit       int
}

// QuotaDecision is the outcome of a reservation attempt or a remaining-quota
// read. ResetAt is the zero time when no window has been opened yet.
type QuotaDecision struct {
	Allowed   bool
	Tier      Tier
	Remaining int
	ResetAt   time.Time
}
