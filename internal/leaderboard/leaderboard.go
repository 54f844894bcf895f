package leaderboard

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/PettyMiggzy/ChopstixBNB/internal/models"
	"github.com/PettyMiggzy/ChopstixBNB/internal/store"
)

// Size is how many rows the feast board shows.
const Size = 15

// Entry is one rendered leaderboard row.
type Entry struct {
	Rank      int
	UserID    int64
	Name      string
	Offerings int
	Referrals int
}

// Projector is a read-only aggregation over the record store; it never
// mutates anything.
type Projector struct {
	store *store.Store
}

func NewProjector(s *store.Store) *Projector {
	return &Projector{store: s}
}

// Top returns at most n entries ordered by offering count descending. Ties
// go to the earlier joiner, then to the lower id, so the output is fully
// deterministic.
func (p *Projector) Top(n int) []Entry {
	return Rank(p.store.Users(), n)
}

// Rank orders the given records and returns the top n as entries.
func Rank(users []models.User, n int) []Entry {
	sort.Slice(users, func(i, j int) bool {
		if users[i].OfferingCount != users[j].OfferingCount {
			return users[i].OfferingCount > users[j].OfferingCount
		}
		if !users[i].JoinedAt.Equal(users[j].JoinedAt) {
			return users[i].JoinedAt.Before(users[j].JoinedAt)
		}
		return users[i].ID < users[j].ID
	})

	if len(users) > n {
		users = users[:n]
	}
	entries := make([]Entry, len(users))
	for i, u := range users {
		name := u.DisplayName
		if name == "" {
			name = strconv.FormatInt(u.ID, 10)
		}
		entries[i] = Entry{
			Rank:      i + 1,
			UserID:    u.ID,
			Name:      name,
			Offerings: u.OfferingCount,
			Referrals: u.ReferralCount,
		}
	}
	return entries
}

// Render formats entries as the feast board message body.
func Render(entries []Entry) string {
	if len(entries) == 0 {
		return "No data yet."
	}
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s — %d offers, %d refs", e.Rank, e.Name, e.Offerings, e.Referrals)
	}
	return b.String()
}
