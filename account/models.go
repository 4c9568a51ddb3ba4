// Package account defines per-user subscription records and their validity
// state machine.
package account

import (
	"time"

	"github.com/xraph/tollgate/asset"
	"github.com/xraph/tollgate/id"
	"github.com/xraph/tollgate/types"
)

// Status is the validity state of a subscription for one (platform, owner)
// pair at a given clock reading.
type Status string

const (
	// StatusAbsent means no account record exists.
	StatusAbsent Status = "absent"
	// StatusActive means ValidUntil is strictly after the clock reading.
	StatusActive Status = "active"
	// StatusExpired means the record exists but ValidUntil has passed.
	StatusExpired Status = "expired"
)

// Account is one user's subscription record within one platform. Accounts
// are keyed by owner identity per platform, so the store's map uniqueness
// directly enforces one subscription per user.
type Account struct {
	types.Entity
	ID            id.AccountID      `json:"id"`
	PlatformID    id.PlatformID     `json:"platform_id"`
	Owner         string            `json:"owner"`
	StartedAt     time.Time         `json:"started_at"`
	LastRenewedAt time.Time         `json:"last_renewed_at,omitzero"` // zero until first renewal
	ValidUntil    time.Time         `json:"valid_until"`
	RenewalCount  int               `json:"renewal_count"`
	Escrow        *asset.Pool       `json:"escrow"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// New creates an active account: the first paid period starts immediately,
// so ValidUntil is now+period and the renewal count starts at 1.
func New(platformID id.PlatformID, owner string, now time.Time, period time.Duration) *Account {
	return &Account{
		Entity:       types.NewEntity(),
		ID:           id.NewAccountID(),
		PlatformID:   platformID,
		Owner:        owner,
		StartedAt:    now,
		ValidUntil:   now.Add(period),
		RenewalCount: 1,
		Escrow:       asset.NewPool(),
	}
}

// Renew extends the account by one period. The extension is anchored at the
// later of now and the current ValidUntil, so renewing early never forfeits
// remaining paid time.
func (a *Account) Renew(now time.Time, period time.Duration) {
	base := a.ValidUntil
	if now.After(base) {
		base = now
	}
	a.LastRenewedAt = now
	a.ValidUntil = base.Add(period)
	a.RenewalCount++
	a.Touch()
}

// ValidAt reports whether the subscription is active at the clock reading:
// ValidUntil must be strictly after now.
func (a *Account) ValidAt(now time.Time) bool {
	if a == nil {
		return false
	}
	return a.ValidUntil.After(now)
}

// StatusAt returns the validity state at the clock reading.
func (a *Account) StatusAt(now time.Time) Status {
	switch {
	case a == nil:
		return StatusAbsent
	case a.ValidUntil.After(now):
		return StatusActive
	default:
		return StatusExpired
	}
}
