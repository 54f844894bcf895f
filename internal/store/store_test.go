package store

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/PettyMiggzy/ChopstixBNB/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db.json"), zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestOpenFresh(t *testing.T) {
	s := newTestStore(t)

	cfg := s.Settings()
	assert.Equal(t, 1440, cfg.CooldownMinutes)
	assert.Equal(t, 24, cfg.AuraHours)
	assert.True(t, cfg.ReminderEnabled)
	assert.Equal(t, models.ModeWarnOnce, cfg.ModerationMode)
	assert.Empty(t, s.Users())
}

func TestPersistAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db.json")
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	s, err := Open(path, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.Update(func(doc *models.Document) {
		u := doc.EnsureUser(42, now)
		u.DisplayName = "Rice Dragon"
		u.OfferingCount = 3
		doc.Referrals[42] = map[int64]time.Time{99: now}
		doc.EnsureModeration(99).WarnedOnce = true
		doc.Config.CooldownMinutes = 60
	}))

	reloaded, err := Open(path, zap.NewNop())
	require.NoError(t, err)

	u, ok := reloaded.GetUser(42)
	require.True(t, ok)
	assert.Equal(t, "Rice Dragon", u.DisplayName)
	assert.Equal(t, 3, u.OfferingCount)
	assert.True(t, u.JoinedAt.Equal(now))
	assert.Equal(t, 60, reloaded.Settings().CooldownMinutes)

	reloaded.View(func(doc *models.Document) {
		assert.Equal(t, models.SchemaVersion, doc.Version)
		assert.Contains(t, doc.Referrals[42], int64(99))
		assert.True(t, doc.Moderation[99].WarnedOnce)
	})
}

func TestOpenCorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Open(path, zap.NewNop())
	assert.Error(t, err)
}

func TestNoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "db.json"), zap.NewNop())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Update(func(doc *models.Document) {
			doc.EnsureUser(int64(i), time.Now())
		}))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "db.json", entries[0].Name())
}

func TestTouch(t *testing.T) {
	s := newTestStore(t)
	first := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	later := first.Add(2 * time.Hour)

	s.Touch(7, "Old Name", first)
	s.Touch(7, "New Name", later)

	u, ok := s.GetUser(7)
	require.True(t, ok)
	assert.Equal(t, "New Name", u.DisplayName)
	assert.True(t, u.JoinedAt.Equal(first), "joinedAt is set once, on first contact")
	assert.True(t, u.LastSeenAt.Equal(later))
}

func TestTouchKeepsNameOnEmpty(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	s.Touch(7, "Known", now)
	s.Touch(7, "", now.Add(time.Minute))

	u, _ := s.GetUser(7)
	assert.Equal(t, "Known", u.DisplayName)
}

func TestLockUserSerializes(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.LockUser(1)
			defer unlock()

			// Non-atomic read-modify-write: only safe if LockUser excludes.
			u, _ := s.GetUser(1)
			count := u.OfferingCount
			_ = s.Update(func(doc *models.Document) {
				doc.EnsureUser(1, now).OfferingCount = count + 1
			})
		}()
	}
	wg.Wait()

	u, _ := s.GetUser(1)
	assert.Equal(t, workers, u.OfferingCount)
}
