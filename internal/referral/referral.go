package referral

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PettyMiggzy/ChopstixBNB/internal/models"
	"github.com/PettyMiggzy/ChopstixBNB/internal/store"

	"go.uber.org/zap"
)

const payloadPrefix = "ref_"

// Ledger records inviter→invitee edges and keeps the derived referral
// counters in sync. Attribution is first-wins: an invitee can be credited to
// exactly one inviter, ever.
type Ledger struct {
	store *store.Store
	log   *zap.Logger
}

func NewLedger(s *store.Store, log *zap.Logger) *Ledger {
	return &Ledger{store: s, log: log}
}

// Register attributes inviteeID to inviterID. It reports whether anything
// changed: self-referrals, already-attributed invitees and duplicate edges
// are all no-ops, so a retried /start with the same payload never double
// counts.
func (l *Ledger) Register(inviterID, inviteeID int64, now time.Time) bool {
	if inviterID == 0 || inviterID == inviteeID {
		return false
	}

	unlock := l.store.LockUser(inviteeID)
	defer unlock()

	attributed := false
	err := l.store.Update(func(doc *models.Document) {
		invitee := doc.EnsureUser(inviteeID, now)
		if invitee.ReferredBy != 0 {
			return
		}
		if doc.ReferredByAnyone(inviteeID) {
			return
		}

		invitee.ReferredBy = inviterID
		if doc.Referrals[inviterID] == nil {
			doc.Referrals[inviterID] = make(map[int64]time.Time)
		}
		doc.Referrals[inviterID][inviteeID] = now
		doc.EnsureUser(inviterID, now).ReferralCount++
		attributed = true
	})
	if err != nil {
		l.log.Error("failed to persist referral",
			zap.Int64("inviter_id", inviterID),
			zap.Int64("invitee_id", inviteeID),
			zap.Error(err))
	}
	if attributed {
		l.log.Info("referral attributed",
			zap.Int64("inviter_id", inviterID),
			zap.Int64("invitee_id", inviteeID))
	}
	return attributed
}

// EncodePayload turns a user id into the /start payload segment. The
// encoding is injective and reversible, so collisions are impossible.
func EncodePayload(id int64) string {
	return payloadPrefix + base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(id, 10)))
}

// DecodePayload recovers the user id from a /start payload. It returns false
// for anything that is not a well-formed referral payload.
func DecodePayload(payload string) (int64, bool) {
	if !strings.HasPrefix(payload, payloadPrefix) {
		return 0, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(payload, payloadPrefix))
	if err != nil {
		return 0, false
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Link builds the personal invite link for a user.
func Link(botUsername string, id int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", botUsername, EncodePayload(id))
}
