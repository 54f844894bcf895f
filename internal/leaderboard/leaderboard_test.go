package leaderboard

import (
	"testing"
	"time"

	"github.com/PettyMiggzy/ChopstixBNB/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankOrdering(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)
	t3 := t2.Add(24 * time.Hour)

	users := []models.User{
		{ID: 10, DisplayName: "later joiner", OfferingCount: 5, JoinedAt: t2},
		{ID: 11, DisplayName: "early joiner", OfferingCount: 5, JoinedAt: t1},
		{ID: 12, DisplayName: "straggler", OfferingCount: 2, JoinedAt: t3, ReferralCount: 9},
	}

	entries := Rank(users, Size)
	require.Len(t, entries, 3)

	assert.Equal(t, int64(11), entries[0].UserID, "equal score: earlier joiner ranks higher")
	assert.Equal(t, int64(10), entries[1].UserID)
	assert.Equal(t, int64(12), entries[2].UserID)

	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, 3, entries[2].Rank)
	assert.Equal(t, 9, entries[2].Referrals)
}

func TestRankIsDeterministicOnFullTies(t *testing.T) {
	joined := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	users := []models.User{
		{ID: 3, OfferingCount: 1, JoinedAt: joined},
		{ID: 1, OfferingCount: 1, JoinedAt: joined},
		{ID: 2, OfferingCount: 1, JoinedAt: joined},
	}

	entries := Rank(users, Size)
	assert.Equal(t, int64(1), entries[0].UserID)
	assert.Equal(t, int64(2), entries[1].UserID)
	assert.Equal(t, int64(3), entries[2].UserID)
}

func TestRankCapsAtN(t *testing.T) {
	var users []models.User
	for i := 0; i < 40; i++ {
		users = append(users, models.User{
			ID:            int64(i + 1),
			OfferingCount: i,
			JoinedAt:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		})
	}

	entries := Rank(users, Size)
	require.Len(t, entries, Size)
	assert.Equal(t, 39, entries[0].Offerings, "highest count first")
	assert.Equal(t, 39-Size+1, entries[Size-1].Offerings)
}

func TestNameFallsBackToID(t *testing.T) {
	users := []models.User{{ID: 777, OfferingCount: 1}}

	entries := Rank(users, Size)
	require.Len(t, entries, 1)
	assert.Equal(t, "777", entries[0].Name)
}

func TestRender(t *testing.T) {
	assert.Equal(t, "No data yet.", Render(nil))

	entries := []Entry{
		{Rank: 1, Name: "dragon", Offerings: 5, Referrals: 2},
		{Rank: 2, Name: "panda", Offerings: 3, Referrals: 0},
	}
	want := "1. dragon — 5 offers, 2 refs\n2. panda — 3 offers, 0 refs"
	assert.Equal(t, want, Render(entries))
}
