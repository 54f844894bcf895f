package models

import (
	"time"
)

// PendingProof marks an outstanding offering claim waiting for a tweet URL.
type PendingProof struct {
	AwaitingProof bool      `json:"awaiting_proof"`
	CreatedAt     time.Time `json:"created_at"`
}

// User is the per-Telegram-user record. Records are created lazily on the
// first observed interaction and never deleted.
type User struct {
	ID            int64         `json:"id"`
	DisplayName   string        `json:"display_name,omitempty"`
	JoinedAt      time.Time     `json:"joined_at"`
	LastSeenAt    time.Time     `json:"last_seen_at,omitempty"`
	OfferingCount int           `json:"offering_count"`
	ReferredBy    int64         `json:"referred_by,omitempty"`
	ReferralCount int           `json:"referral_count"`
	LastClaimAt   time.Time     `json:"last_claim_at,omitempty"`
	AuraExpiresAt time.Time     `json:"aura_expires_at,omitempty"`
	Pending       *PendingProof `json:"pending_proof,omitempty"`
}

// Awaiting reports whether the user has an outstanding proof request.
// A zero ttl means pending proofs never expire.
func (u *User) Awaiting(now time.Time, ttl time.Duration) bool {
	if u.Pending == nil || !u.Pending.AwaitingProof {
		return false
	}
	if ttl > 0 && now.Sub(u.Pending.CreatedAt) > ttl {
		return false
	}
	return true
}

// HasAura reports whether the cosmetic aura is still lit.
func (u *User) HasAura(now time.Time) bool {
	return u.AuraExpiresAt.After(now)
}
