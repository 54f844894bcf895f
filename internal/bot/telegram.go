package bot

import (
	"context"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// chatOracle answers membership questions against the live chat, never a
// cache. Errors bubble up so the caller can pick the fallback.
type chatOracle struct {
	bot *telego.Bot
}

func (o *chatOracle) IsMember(ctx context.Context, chatID, userID int64) (bool, error) {
	member, err := o.bot.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: tu.ID(chatID),
		UserID: userID,
	})
	if err != nil {
		return false, err
	}
	switch member.MemberStatus() {
	case telego.MemberStatusMember, telego.MemberStatusAdministrator, telego.MemberStatusCreator:
		return true, nil
	}
	return false, nil
}

func (o *chatOracle) IsElevated(ctx context.Context, chatID, userID int64) (bool, error) {
	member, err := o.bot.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: tu.ID(chatID),
		UserID: userID,
	})
	if err != nil {
		return false, err
	}
	switch member.MemberStatus() {
	case telego.MemberStatusAdministrator, telego.MemberStatusCreator:
		return true, nil
	}
	return false, nil
}

// groupBroadcaster posts announcements and reminders without notifications.
type groupBroadcaster struct {
	bot *telego.Bot
}

func (g *groupBroadcaster) Send(ctx context.Context, chatID int64, text string) error {
	_, err := g.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text).WithDisableNotification())
	return err
}

func displayName(u *telego.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return name
}
