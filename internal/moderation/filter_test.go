package moderation

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/PettyMiggzy/ChopstixBNB/internal/models"
	"github.com/PettyMiggzy/ChopstixBNB/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testGroupID int64 = -100456

type adminFake struct {
	elevated map[int64]bool
	err      error
}

func (f *adminFake) IsElevated(_ context.Context, _, userID int64) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.elevated[userID], nil
}

func newTestFilter(t *testing.T, admins *adminFake) (*Filter, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "db.json"), zap.NewNop())
	require.NoError(t, err)
	return NewFilter(st, admins, testGroupID, zap.NewNop()), st
}

func setStrikeMode(t *testing.T, st *store.Store, limit int) {
	t.Helper()
	require.NoError(t, st.Update(func(doc *models.Document) {
		doc.Config.ModerationMode = models.ModeStrikes
		doc.Config.StrikeLimit = limit
	}))
}

func TestForwardedContent(t *testing.T) {
	f, _ := newTestFilter(t, &adminFake{elevated: map[int64]bool{2: true}})
	ctx := context.Background()

	assert.Equal(t, Delete, f.Check(ctx, Message{SenderID: 1, Forwarded: true}))
	assert.Equal(t, Pass, f.Check(ctx, Message{SenderID: 2, Forwarded: true}),
		"elevated senders may forward")
}

func TestPlainTextPasses(t *testing.T) {
	f, _ := newTestFilter(t, &adminFake{})

	assert.Equal(t, Pass, f.Check(context.Background(), Message{SenderID: 1, Text: "早上好 gm"}))
}

func TestLinkPatterns(t *testing.T) {
	tests := []struct {
		text    string
		flagged bool
	}{
		{"check https://scam.example", true},
		{"http://scam.example", true},
		{"join t.me/othergroup now", true},
		{"telegram.me/othergroup", true},
		{"WWW.SCAM.EXAMPLE", true},
		{"gm everyone", false},
		{"price is 1.5 usd", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			f, _ := newTestFilter(t, &adminFake{})
			verdict := f.Check(context.Background(), Message{SenderID: 1, Text: tt.text})
			if tt.flagged {
				assert.NotEqual(t, Pass, verdict)
			} else {
				assert.Equal(t, Pass, verdict)
			}
		})
	}
}

func TestLinkWarnOnce(t *testing.T) {
	f, st := newTestFilter(t, &adminFake{})
	ctx := context.Background()
	msg := Message{SenderID: 1, Text: "https://scam.example"}

	assert.Equal(t, DeleteAndWarn, f.Check(ctx, msg), "first offense warns")
	assert.Equal(t, Delete, f.Check(ctx, msg), "warning is never repeated")
	assert.Equal(t, Delete, f.Check(ctx, msg))

	st.View(func(doc *models.Document) {
		assert.True(t, doc.Moderation[1].WarnedOnce)
	})
}

func TestLinkFromElevatedSenderPasses(t *testing.T) {
	f, _ := newTestFilter(t, &adminFake{elevated: map[int64]bool{2: true}})

	verdict := f.Check(context.Background(), Message{SenderID: 2, Text: "https://x.com/announcement"})
	assert.Equal(t, Pass, verdict)
}

func TestAdminCheckFailureTreatsSenderAsRegular(t *testing.T) {
	f, _ := newTestFilter(t, &adminFake{err: errors.New("telegram: timeout")})

	assert.Equal(t, Delete, f.Check(context.Background(), Message{SenderID: 2, Forwarded: true}))
}

func TestStrikeEscalation(t *testing.T) {
	f, st := newTestFilter(t, &adminFake{})
	setStrikeMode(t, st, 2)
	ctx := context.Background()
	msg := Message{SenderID: 1, Text: "t.me/spam"}

	assert.Equal(t, DeleteAndWarn, f.Check(ctx, msg), "first strike warns")
	assert.Equal(t, Remove, f.Check(ctx, msg), "second strike removes")

	st.View(func(doc *models.Document) {
		assert.Equal(t, 2, doc.Moderation[1].StrikeCount)
	})
}

func TestFloodRemovesInStrikeMode(t *testing.T) {
	f, st := newTestFilter(t, &adminFake{})
	setStrikeMode(t, st, 2)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.Equal(t, Pass, f.Check(ctx, Message{SenderID: 1, Text: "gm"}))
	}
	assert.Equal(t, Remove, f.Check(ctx, Message{SenderID: 1, Text: "gm"}),
		"sixth message inside the window floods")
}

func TestFloodWindowSlides(t *testing.T) {
	f, st := newTestFilter(t, &adminFake{})
	setStrikeMode(t, st, 2)
	now := time.Now()

	for i := 0; i < 5; i++ {
		f.trackFlood(1, now.Add(time.Duration(i)*time.Second))
	}
	// Sixth message lands after the first five have left the 10s window.
	assert.False(t, f.trackFlood(1, now.Add(15*time.Second)))
}

func TestFloodIgnoredInWarnOnceMode(t *testing.T) {
	f, _ := newTestFilter(t, &adminFake{})
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		assert.Equal(t, Pass, f.Check(ctx, Message{SenderID: 1, Text: "gm"}))
	}
}

func TestForwardedWinsOverLink(t *testing.T) {
	f, st := newTestFilter(t, &adminFake{})
	ctx := context.Background()

	// A forwarded message containing a link is handled by the forward check
	// first: plain delete, no warning consumed.
	verdict := f.Check(ctx, Message{SenderID: 1, Text: "https://scam.example", Forwarded: true})
	assert.Equal(t, Delete, verdict)

	st.View(func(doc *models.Document) {
		m, ok := doc.Moderation[1]
		if ok {
			assert.False(t, m.WarnedOnce)
		}
	})
}
