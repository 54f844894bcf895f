package scheduler

import (
	"context"
	"time"

	"github.com/PettyMiggzy/ChopstixBNB/internal/leaderboard"
	"github.com/PettyMiggzy/ChopstixBNB/internal/store"

	"go.uber.org/zap"
)

const reminderText = "⏰ 每小时提醒 · Hourly reminder\n" +
	"还没领取今日供奉的朋友可用 /offer 领取（在私聊）。\n" +
	"If you haven't claimed today, use /offer (DM)."

// Broadcaster posts timer-driven messages to the bound group. Failures are
// swallowed; the next tick tries again.
type Broadcaster interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Scheduler drives the wall-clock broadcasts: the hourly claim reminder and
// an optional once-a-day leaderboard summary. It only reads snapshots of
// state and never holds locks across sends, so interactive claim handling is
// never blocked by a slow broadcast.
type Scheduler struct {
	store       *store.Store
	caster      Broadcaster
	boards      *leaderboard.Projector
	groupID     int64
	summaryHour int // -1 disables the daily summary
	log         *zap.Logger

	lastSummaryDay string
}

func New(s *store.Store, caster Broadcaster, boards *leaderboard.Projector, groupID int64, summaryHour int, log *zap.Logger) *Scheduler {
	return &Scheduler{
		store:       s,
		caster:      caster,
		boards:      boards,
		groupID:     groupID,
		summaryHour: summaryHour,
		log:         log,
	}
}

// Run ticks hourly until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	s.log.Info("scheduler started", zap.Int("summary_hour", s.summaryHour))

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case now := <-ticker.C:
			s.tick(ctx, now.UTC())
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	if s.store.Settings().ReminderEnabled {
		if err := s.caster.Send(ctx, s.groupID, reminderText); err != nil {
			s.log.Debug("reminder send failed", zap.Error(err))
		}
	}
	s.maybeSummarize(ctx, now)
}

// maybeSummarize posts the daily feast board at the configured hour, at most
// once per calendar day.
func (s *Scheduler) maybeSummarize(ctx context.Context, now time.Time) {
	if s.summaryHour < 0 || now.Hour() != s.summaryHour {
		return
	}
	day := now.Format("2006-01-02")
	if day == s.lastSummaryDay {
		return
	}
	s.lastSummaryDay = day

	entries := s.boards.Top(leaderboard.Size)
	text := "🍜 今日筷子宴榜单 · Daily Feast Hall Leaderboard\n" + leaderboard.Render(entries)
	if err := s.caster.Send(ctx, s.groupID, text); err != nil {
		s.log.Debug("daily summary send failed", zap.Error(err))
	}
}
