package models

import (
	"time"
)

// SchemaVersion is bumped when the persisted layout changes shape.
const SchemaVersion = 1

// Moderation modes.
const (
	ModeWarnOnce = "warn-once"
	ModeStrikes  = "strikes"
)

// ClaimEntry is one recorded offering claim, kept under its UTC date for
// "claims today" reporting. The per-user cooldown is independent of this
// index (rolling window, not calendar day).
type ClaimEntry struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	ProofURL  string    `json:"proof_url"`
	ClaimedAt time.Time `json:"claimed_at"`
}

// ModerationState tracks per-user warning bookkeeping.
type ModerationState struct {
	WarnedOnce  bool `json:"warned_once,omitempty"`
	StrikeCount int  `json:"strike_count,omitempty"`
}

// Settings are the runtime-mutable scalars, editable by group admins.
type Settings struct {
	CooldownMinutes int    `json:"cooldown_minutes"`
	AuraHours       int    `json:"aura_hours"`
	ProofTTLMinutes int    `json:"proof_ttl_minutes"`
	ReminderEnabled bool   `json:"reminder_enabled"`
	ModerationMode  string `json:"moderation_mode"`
	StrikeLimit     int    `json:"strike_limit"`
	GroupBound      bool   `json:"group_bound"`
	GroupLink       string `json:"group_link,omitempty"`
}

// DefaultSettings returns the out-of-the-box configuration: daily cooldown,
// 24h aura, hourly reminder on, warn-once moderation, no proof expiry.
func DefaultSettings() Settings {
	return Settings{
		CooldownMinutes: 1440,
		AuraHours:       24,
		ProofTTLMinutes: 0,
		ReminderEnabled: true,
		ModerationMode:  ModeWarnOnce,
		StrikeLimit:     2,
	}
}

func (s Settings) Cooldown() time.Duration {
	return time.Duration(s.CooldownMinutes) * time.Minute
}

func (s Settings) AuraDuration() time.Duration {
	return time.Duration(s.AuraHours) * time.Hour
}

func (s Settings) ProofTTL() time.Duration {
	return time.Duration(s.ProofTTLMinutes) * time.Minute
}

// Document is the whole persisted state: one JSON file owned exclusively by
// the running process.
type Document struct {
	Version     int                           `json:"version"`
	Users       map[int64]*User               `json:"users"`
	Referrals   map[int64]map[int64]time.Time `json:"referrals"`
	DailyClaims map[string][]ClaimEntry       `json:"daily_claims"`
	Moderation  map[int64]*ModerationState    `json:"moderation"`
	Config      Settings                      `json:"config"`
}

// NewDocument returns an empty document with defaults applied.
func NewDocument() *Document {
	return &Document{
		Version:     SchemaVersion,
		Users:       make(map[int64]*User),
		Referrals:   make(map[int64]map[int64]time.Time),
		DailyClaims: make(map[string][]ClaimEntry),
		Moderation:  make(map[int64]*ModerationState),
		Config:      DefaultSettings(),
	}
}

// Normalize fills in nil maps and missing defaults after unmarshaling an
// older or hand-edited file.
func (d *Document) Normalize() {
	if d.Version == 0 {
		d.Version = SchemaVersion
	}
	if d.Users == nil {
		d.Users = make(map[int64]*User)
	}
	if d.Referrals == nil {
		d.Referrals = make(map[int64]map[int64]time.Time)
	}
	if d.DailyClaims == nil {
		d.DailyClaims = make(map[string][]ClaimEntry)
	}
	if d.Moderation == nil {
		d.Moderation = make(map[int64]*ModerationState)
	}
	def := DefaultSettings()
	if d.Config.CooldownMinutes <= 0 {
		d.Config.CooldownMinutes = def.CooldownMinutes
	}
	if d.Config.AuraHours <= 0 {
		d.Config.AuraHours = def.AuraHours
	}
	if d.Config.ModerationMode == "" {
		d.Config.ModerationMode = def.ModerationMode
	}
	if d.Config.StrikeLimit <= 0 {
		d.Config.StrikeLimit = def.StrikeLimit
	}
}

// EnsureUser returns the record for id, creating it on first contact.
func (d *Document) EnsureUser(id int64, now time.Time) *User {
	u, ok := d.Users[id]
	if !ok {
		u = &User{ID: id, JoinedAt: now}
		d.Users[id] = u
	}
	return u
}

// EnsureModeration returns the moderation state for id, creating it if needed.
func (d *Document) EnsureModeration(id int64) *ModerationState {
	m, ok := d.Moderation[id]
	if !ok {
		m = &ModerationState{}
		d.Moderation[id] = m
	}
	return m
}

// ReferredByAnyone reports whether an edge for inviteeID exists under any
// inviter. Attribution is first-wins system-wide, not just per inviter.
func (d *Document) ReferredByAnyone(inviteeID int64) bool {
	for _, invitees := range d.Referrals {
		if _, ok := invitees[inviteeID]; ok {
			return true
		}
	}
	return false
}

// ClaimDay is the key format for the daily claim index.
func ClaimDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
