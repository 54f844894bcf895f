package claim

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PettyMiggzy/ChopstixBNB/internal/models"
	"github.com/PettyMiggzy/ChopstixBNB/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrNotMember means the caller is not in the bound group.
	ErrNotMember = errors.New("user is not a member of the bound group")
	// ErrInvalidProof means the submitted text does not look like a tweet URL.
	ErrInvalidProof = errors.New("submitted text is not a tweet url")
	// ErrNotAwaiting means there is no outstanding proof request for the user.
	ErrNotAwaiting = errors.New("no proof request outstanding")
)

// CooldownError is returned when the user claimed too recently.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active, %s remaining", FormatRemaining(e.Remaining))
}

// proofPattern accepts x.com / twitter.com status links, with or without a
// scheme. Only the shape is validated, never the content.
var proofPattern = regexp.MustCompile(`(?i)^(https?://)?(x\.com|twitter\.com)/.+`)

// MembershipOracle answers live group-membership questions. Both calls may
// fail on transport errors; the service treats failure as "not a member".
type MembershipOracle interface {
	IsMember(ctx context.Context, chatID, userID int64) (bool, error)
	IsElevated(ctx context.Context, chatID, userID int64) (bool, error)
}

// Broadcaster sends announcements to the bound group. Delivery is
// best-effort; a failed announce never rolls back a recorded claim.
type Broadcaster interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Receipt describes a successfully recorded claim.
type Receipt struct {
	OfferingCount int
	AuraHours     int
	ProofURL      string
}

// Service drives the per-user offering workflow:
// idle → awaiting proof → idle. Transitions for one user are serialized via
// the store's per-user lock, so two near-simultaneous claim requests cannot
// both pass the cooldown gate.
type Service struct {
	store   *store.Store
	oracle  MembershipOracle
	caster  Broadcaster
	groupID int64
	log     *zap.Logger
}

func NewService(s *store.Store, oracle MembershipOracle, caster Broadcaster, groupID int64, log *zap.Logger) *Service {
	return &Service{
		store:   s,
		oracle:  oracle,
		caster:  caster,
		groupID: groupID,
		log:     log,
	}
}

// Begin evaluates the claim gates in order (membership first, then cooldown)
// and on success parks the user in the awaiting-proof state.
// Neither gate failure mutates any state. Re-entering while already awaiting
// simply refreshes the proof request.
func (s *Service) Begin(ctx context.Context, userID int64) error {
	unlock := s.store.LockUser(userID)
	defer unlock()

	member, err := s.oracle.IsMember(ctx, s.groupID, userID)
	if err != nil {
		s.log.Warn("membership check failed, denying claim",
			zap.Int64("user_id", userID), zap.Error(err))
		member = false
	}
	if !member {
		return ErrNotMember
	}

	now := time.Now().UTC()
	cfg := s.store.Settings()
	if u, ok := s.store.GetUser(userID); ok && !u.LastClaimAt.IsZero() {
		if remaining := u.LastClaimAt.Add(cfg.Cooldown()).Sub(now); remaining > 0 {
			return &CooldownError{Remaining: remaining}
		}
	}

	if err := s.store.Update(func(doc *models.Document) {
		u := doc.EnsureUser(userID, now)
		u.Pending = &models.PendingProof{AwaitingProof: true, CreatedAt: now}
	}); err != nil {
		s.log.Error("failed to persist proof request",
			zap.Int64("user_id", userID), zap.Error(err))
	}
	return nil
}

// Awaiting reports whether userID has an outstanding proof request. An
// expired request (when a proof TTL is configured) is cleared and reported
// as absent.
func (s *Service) Awaiting(userID int64) bool {
	u, ok := s.store.GetUser(userID)
	if !ok || u.Pending == nil || !u.Pending.AwaitingProof {
		return false
	}
	now := time.Now().UTC()
	if u.Awaiting(now, s.store.Settings().ProofTTL()) {
		return true
	}
	// TTL elapsed: drop the stale request.
	if err := s.store.Update(func(doc *models.Document) {
		if rec, ok := doc.Users[userID]; ok {
			rec.Pending = nil
		}
	}); err != nil {
		s.log.Error("failed to clear stale proof request",
			zap.Int64("user_id", userID), zap.Error(err))
	}
	return false
}

// SubmitProof evaluates text as the proof for an outstanding claim. On a
// shape match the claim is recorded atomically: cooldown timestamp, counter
// increment, aura, daily index entry. A mismatch leaves the awaiting state
// untouched so the user can retry indefinitely.
func (s *Service) SubmitProof(ctx context.Context, userID int64, text string) (*Receipt, error) {
	unlock := s.store.LockUser(userID)
	defer unlock()

	if !s.Awaiting(userID) {
		return nil, ErrNotAwaiting
	}

	proofURL := strings.TrimSpace(text)
	if !proofPattern.MatchString(proofURL) {
		return nil, ErrInvalidProof
	}

	now := time.Now().UTC()
	cfg := s.store.Settings()
	receipt := &Receipt{AuraHours: cfg.AuraHours, ProofURL: proofURL}
	var name string
	if err := s.store.Update(func(doc *models.Document) {
		u := doc.EnsureUser(userID, now)
		u.LastClaimAt = now
		u.OfferingCount++
		u.AuraExpiresAt = now.Add(cfg.AuraDuration())
		u.Pending = nil
		receipt.OfferingCount = u.OfferingCount
		name = u.DisplayName

		day := models.ClaimDay(now)
		doc.DailyClaims[day] = append(doc.DailyClaims[day], models.ClaimEntry{
			ID:        uuid.New().String(),
			UserID:    userID,
			ProofURL:  proofURL,
			ClaimedAt: now,
		})
	}); err != nil {
		s.log.Error("failed to persist claim",
			zap.Int64("user_id", userID), zap.Error(err))
	}

	s.log.Info("claim recorded",
		zap.Int64("user_id", userID),
		zap.Int("offering_count", receipt.OfferingCount))
	s.announce(ctx, userID, name, proofURL)
	return receipt, nil
}

func (s *Service) announce(ctx context.Context, userID int64, name, proofURL string) {
	who := name
	if who == "" {
		who = fmt.Sprintf("%d", userID)
	}
	text := fmt.Sprintf("🎉 %s 领取供奉成功 · Claimed an offering!\n%s", who, proofURL)
	if err := s.caster.Send(ctx, s.groupID, text); err != nil {
		s.log.Debug("claim announcement failed",
			zap.Int64("user_id", userID), zap.Error(err))
	}
}

// LightAura lights the cosmetic aura for the configured duration. It has no
// effect on claim eligibility.
func (s *Service) LightAura(userID int64) error {
	now := time.Now().UTC()
	cfg := s.store.Settings()
	return s.store.Update(func(doc *models.Document) {
		doc.EnsureUser(userID, now).AuraExpiresAt = now.Add(cfg.AuraDuration())
	})
}

// FormatRemaining renders a wait duration the way the cooldown message
// expects it: "Xd Ym" above a day, "Xh Ym" above an hour, else "Zm".
// Partial minutes round up so the shown wait never underestimates.
func FormatRemaining(d time.Duration) string {
	m := int((d + time.Minute - 1) / time.Minute)
	if m < 0 {
		m = 0
	}
	switch {
	case m >= 1440:
		return fmt.Sprintf("%dd %dm", m/1440, m%1440)
	case m >= 60:
		return fmt.Sprintf("%dh %dm", m/60, m%60)
	default:
		return fmt.Sprintf("%dm", m)
	}
}
