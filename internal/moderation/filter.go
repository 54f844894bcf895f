package moderation

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/PettyMiggzy/ChopstixBNB/internal/models"
	"github.com/PettyMiggzy/ChopstixBNB/internal/store"

	"go.uber.org/zap"
)

// Flood detection: more than floodLimit messages inside floodWindow gets the
// sender removed (strike-threshold mode only).
const (
	floodWindow = 10 * time.Second
	floodLimit  = 5
)

// linkPattern flags anything that smells like an external link in group chat.
var linkPattern = regexp.MustCompile(`(?i)(https?://|t\.me/|telegram\.me/|www\.)`)

// AdminChecker answers whether a user is elevated in the group. Transport
// failures are treated as "not elevated".
type AdminChecker interface {
	IsElevated(ctx context.Context, chatID, userID int64) (bool, error)
}

// Verdict is what the transport layer should do with a group message.
type Verdict int

const (
	// Pass lets the message through to normal dispatch.
	Pass Verdict = iota
	// Delete removes the message silently.
	Delete
	// DeleteAndWarn removes the message and sends the sender a warning.
	DeleteAndWarn
	// Remove deletes the message and kicks the sender from the group.
	Remove
)

// Message is the slice of an inbound group message the filter cares about.
type Message struct {
	SenderID  int64
	Text      string
	Forwarded bool
}

// Filter classifies group messages before command dispatch. Checks run in a
// fixed order (forwarded content first, then links, then flood) and the first
// match wins. The filter itself performs no transport side effects; it only
// returns the verdict.
type Filter struct {
	store   *store.Store
	admins  AdminChecker
	groupID int64
	log     *zap.Logger

	mu     sync.Mutex
	recent map[int64][]time.Time
}

func NewFilter(s *store.Store, admins AdminChecker, groupID int64, log *zap.Logger) *Filter {
	return &Filter{
		store:   s,
		admins:  admins,
		groupID: groupID,
		log:     log,
		recent:  make(map[int64][]time.Time),
	}
}

// Check classifies one group message. Elevated senders are exempt from every
// check.
func (f *Filter) Check(ctx context.Context, msg Message) Verdict {
	cfg := f.store.Settings()
	strikes := cfg.ModerationMode == models.ModeStrikes

	var flooding bool
	if strikes {
		flooding = f.trackFlood(msg.SenderID, time.Now())
	}

	if !msg.Forwarded && !linkPattern.MatchString(msg.Text) && !flooding {
		return Pass
	}

	elevated, err := f.admins.IsElevated(ctx, f.groupID, msg.SenderID)
	if err != nil {
		f.log.Debug("admin check failed, treating sender as regular",
			zap.Int64("user_id", msg.SenderID), zap.Error(err))
		elevated = false
	}
	if elevated {
		return Pass
	}

	if msg.Forwarded {
		return Delete
	}

	if linkPattern.MatchString(msg.Text) {
		if strikes {
			return f.linkStrike(msg.SenderID, cfg.StrikeLimit)
		}
		return f.linkWarnOnce(msg.SenderID)
	}

	// flooding
	return Remove
}

// linkWarnOnce deletes the message and warns the sender exactly once, ever.
func (f *Filter) linkWarnOnce(userID int64) Verdict {
	verdict := Delete
	if err := f.store.Update(func(doc *models.Document) {
		m := doc.EnsureModeration(userID)
		if !m.WarnedOnce {
			m.WarnedOnce = true
			verdict = DeleteAndWarn
		}
	}); err != nil {
		f.log.Error("failed to persist link warning",
			zap.Int64("user_id", userID), zap.Error(err))
	}
	return verdict
}

// linkStrike counts a strike and escalates to removal at the limit.
func (f *Filter) linkStrike(userID int64, limit int) Verdict {
	verdict := DeleteAndWarn
	if err := f.store.Update(func(doc *models.Document) {
		m := doc.EnsureModeration(userID)
		m.StrikeCount++
		if m.StrikeCount >= limit {
			verdict = Remove
		}
	}); err != nil {
		f.log.Error("failed to persist strike",
			zap.Int64("user_id", userID), zap.Error(err))
	}
	return verdict
}

// trackFlood appends a message timestamp to the sender's sliding window and
// reports whether the window is over the limit.
func (f *Filter) trackFlood(userID int64, now time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	cutoff := now.Add(-floodWindow)
	window := f.recent[userID][:0]
	for _, ts := range f.recent[userID] {
		if ts.After(cutoff) {
			window = append(window, ts)
		}
	}
	window = append(window, now)
	f.recent[userID] = window
	return len(window) > floodLimit
}
