package domain

import "time"

// Tier is the access class a request runs under. It selects the quota limit.
type Tier string

const (
	TierGuest         Tier = "guest"
	TierAuthenticated Tier = "authenticated"
)

// Credential is the authenticated identity and its tokens. The zero value is
// guest mode: no tokens, no username. A Credential is replaced wholesale on
// login and refresh, and cleared entirely on logout — there is never a
// partially-updated credential visible to readers.
type Credential struct {
	Username     string    `json:"username"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// IsGuest reports whether the credential carries no identity.
func (c Credential) IsGuest() bool { return c.AccessToken == "" }

// Tier returns the access tier this credential grants.
func (c Credential) Tier() Tier {
	if c.IsGuest() {
		return TierGuest
	}
	return TierAuthenticated
}

// Expired reports whether the access token is past its lifetime.
func (c Credential) Expired(now time.Time) bool {
	return !c.IsGuest() && now.After(c.ExpiresAt)
}

// NeedsRefresh reports whether the access token is within margin of expiry
// and should be refreshed before use.
func (c Credential) NeedsRefresh(now time.Time, margin time.Duration) bool {
	if c.IsGuest() {
		return false
	}
	return !now.Add(margin).Before(c.ExpiresAt)
}
