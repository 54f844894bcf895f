package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PettyMiggzy/ChopstixBNB/internal/models"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/zap"
)

// requireAdmin checks live admin status in the chat the command came from.
// A failed check denies.
func (b *Bot) requireAdmin(ctx *th.Context, message *telego.Message) bool {
	elevated, err := b.Oracle.IsElevated(ctx.Context(), message.Chat.ID, message.From.ID)
	if err != nil {
		b.Log.Debug("admin check failed", zap.Int64("user_id", message.From.ID), zap.Error(err))
		b.reply(ctx, message.Chat.ID, "无法验证管理员权限 · Cannot verify admin status.")
		return false
	}
	if !elevated {
		b.reply(ctx, message.Chat.ID, "需要管理员权限 · Admin only.")
	}
	return elevated
}

func commandArg(text string) string {
	if parts := strings.SplitN(text, " ", 2); len(parts) > 1 {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func (b *Bot) handleAdmin(ctx *th.Context, update telego.Update) error {
	message := update.Message
	if !b.requireAdmin(ctx, message) {
		return nil
	}
	b.reply(ctx, message.Chat.ID,
		"🛠 管理工具 · Admin Tools\n\n"+
			"/mute <minutes>  (reply to user)\n"+
			"/kick            (reply to user)\n"+
			"/purge <count<=200>  delete last N messages\n"+
			"/toggle_reminder  on/off hourly reminder\n"+
			"/set_cooldown <minutes>  claim cooldown\n"+
			"/set_aura <hours>       aura duration\n"+
			"/set_modmode <warn-once|strikes:N>  link policy\n"+
			"/ping")
	return nil
}

func (b *Bot) handlePing(ctx *th.Context, update telego.Update) error {
	b.reply(ctx, update.Message.Chat.ID, "pong")
	return nil
}

func (b *Bot) handleToggleReminder(ctx *th.Context, update telego.Update) error {
	message := update.Message
	if !b.requireAdmin(ctx, message) {
		return nil
	}

	enabled := false
	if err := b.Store.Update(func(doc *models.Document) {
		doc.Config.ReminderEnabled = !doc.Config.ReminderEnabled
		enabled = doc.Config.ReminderEnabled
	}); err != nil {
		b.Log.Error("failed to persist reminder toggle", zap.Error(err))
	}

	state := "OFF"
	if enabled {
		state = "ON"
	}
	b.reply(ctx, message.Chat.ID, "Reminder: "+state)
	return nil
}

func (b *Bot) handleSetCooldown(ctx *th.Context, update telego.Update) error {
	message := update.Message
	if !b.requireAdmin(ctx, message) {
		return nil
	}

	minutes, err := strconv.Atoi(commandArg(message.Text))
	if err != nil || minutes <= 0 {
		b.reply(ctx, message.Chat.ID, "Usage: /set_cooldown <minutes>")
		return nil
	}
	if err := b.Store.Update(func(doc *models.Document) {
		doc.Config.CooldownMinutes = minutes
	}); err != nil {
		b.Log.Error("failed to persist cooldown", zap.Error(err))
	}
	b.reply(ctx, message.Chat.ID, fmt.Sprintf("Cooldown set to %d min.", minutes))
	return nil
}

func (b *Bot) handleSetAura(ctx *th.Context, update telego.Update) error {
	message := update.Message
	if !b.requireAdmin(ctx, message) {
		return nil
	}

	hours, err := strconv.Atoi(commandArg(message.Text))
	if err != nil || hours <= 0 {
		b.reply(ctx, message.Chat.ID, "Usage: /set_aura <hours>")
		return nil
	}
	if err := b.Store.Update(func(doc *models.Document) {
		doc.Config.AuraHours = hours
	}); err != nil {
		b.Log.Error("failed to persist aura hours", zap.Error(err))
	}
	b.reply(ctx, message.Chat.ID, fmt.Sprintf("Aura hours set to %dh.", hours))
	return nil
}

func (b *Bot) handleSetModMode(ctx *th.Context, update telego.Update) error {
	message := update.Message
	if !b.requireAdmin(ctx, message) {
		return nil
	}

	arg := commandArg(message.Text)
	mode, limit := "", 0
	switch {
	case arg == models.ModeWarnOnce:
		mode = models.ModeWarnOnce
	case strings.HasPrefix(arg, models.ModeStrikes+":"):
		n, err := strconv.Atoi(strings.TrimPrefix(arg, models.ModeStrikes+":"))
		if err != nil || n <= 0 {
			b.reply(ctx, message.Chat.ID, "Usage: /set_modmode <warn-once|strikes:N>")
			return nil
		}
		mode, limit = models.ModeStrikes, n
	default:
		b.reply(ctx, message.Chat.ID, "Usage: /set_modmode <warn-once|strikes:N>")
		return nil
	}

	if err := b.Store.Update(func(doc *models.Document) {
		doc.Config.ModerationMode = mode
		if limit > 0 {
			doc.Config.StrikeLimit = limit
		}
	}); err != nil {
		b.Log.Error("failed to persist moderation mode", zap.Error(err))
	}
	b.reply(ctx, message.Chat.ID, "Moderation mode: "+arg)
	return nil
}

func (b *Bot) handleBind(ctx *th.Context, update telego.Update) error {
	message := update.Message
	if message.Chat.Type == telego.ChatTypePrivate {
		b.reply(ctx, message.Chat.ID, "在目标群组里发送 /bind。\nSend /bind in the target group.")
		return nil
	}
	if message.Chat.ID != b.Cfg.GroupID {
		b.reply(ctx, message.Chat.ID, fmt.Sprintf(
			"此群ID与配置不匹配。\nThis chat ID %d != GROUP_ID %d.\nUpdate GROUP_ID then retry.",
			message.Chat.ID, b.Cfg.GroupID))
		return nil
	}
	if !b.requireAdmin(ctx, message) {
		return nil
	}

	link := ""
	if message.Chat.Username != "" {
		link = "https://t.me/" + message.Chat.Username
	}
	if err := b.Store.Update(func(doc *models.Document) {
		doc.Config.GroupBound = true
		doc.Config.GroupLink = link
	}); err != nil {
		b.Log.Error("failed to persist group binding", zap.Error(err))
	}

	if link == "" {
		link = "(no public link)"
	}
	b.reply(ctx, message.Chat.ID, fmt.Sprintf(
		"✅ 已绑定到本群 · Bound to this group.\nGID = %d\nLink = %s", message.Chat.ID, link))
	return nil
}

func (b *Bot) handlePurge(ctx *th.Context, update telego.Update) error {
	message := update.Message
	if !b.requireAdmin(ctx, message) {
		return nil
	}

	count, err := strconv.Atoi(commandArg(message.Text))
	if err != nil || count <= 0 {
		b.reply(ctx, message.Chat.ID, "Usage: /purge <count (<=200)>")
		return nil
	}
	if count > 200 {
		count = 200
	}

	for i := 0; i < count; i++ {
		b.deleteMessage(ctx.Context(), message.Chat.ID, message.MessageID-i)
	}
	b.reply(ctx, message.Chat.ID, fmt.Sprintf("✅ Deleted %d messages.", count))
	return nil
}

func (b *Bot) handleMute(ctx *th.Context, update telego.Update) error {
	message := update.Message
	if !b.requireAdmin(ctx, message) {
		return nil
	}
	if message.ReplyToMessage == nil || message.ReplyToMessage.From == nil {
		b.reply(ctx, message.Chat.ID, "Reply to user and run: /mute <minutes>")
		return nil
	}
	minutes, err := strconv.Atoi(commandArg(message.Text))
	if err != nil || minutes <= 0 {
		b.reply(ctx, message.Chat.ID, "Usage: /mute <minutes>")
		return nil
	}

	target := message.ReplyToMessage.From.ID
	until := time.Now().Add(time.Duration(minutes) * time.Minute).Unix()
	err = b.Instance.RestrictChatMember(ctx.Context(), &telego.RestrictChatMemberParams{
		ChatID:      tu.ID(message.Chat.ID),
		UserID:      target,
		Permissions: telego.ChatPermissions{},
		UntilDate:   until,
	})
	if err != nil {
		b.Log.Debug("mute failed", zap.Int64("user_id", target), zap.Error(err))
		b.reply(ctx, message.Chat.ID, "Failed to mute (needs admin perms).")
		return nil
	}
	b.reply(ctx, message.Chat.ID, fmt.Sprintf("🔇 Muted for %d minutes.", minutes))
	return nil
}

func (b *Bot) handleKick(ctx *th.Context, update telego.Update) error {
	message := update.Message
	if !b.requireAdmin(ctx, message) {
		return nil
	}
	if message.ReplyToMessage == nil || message.ReplyToMessage.From == nil {
		b.reply(ctx, message.Chat.ID, "Reply to user and run: /kick")
		return nil
	}

	target := message.ReplyToMessage.From.ID
	err := b.Instance.BanChatMember(ctx.Context(), &telego.BanChatMemberParams{
		ChatID: tu.ID(message.Chat.ID),
		UserID: target,
	})
	if err != nil {
		b.Log.Debug("kick failed", zap.Int64("user_id", target), zap.Error(err))
		b.reply(ctx, message.Chat.ID, "Failed to kick (needs admin perms).")
		return nil
	}
	b.reply(ctx, message.Chat.ID, "👢 Kicked.")

	// Unban after a short delay so this acts as a kick, not a permanent ban.
	// Runs on a fresh context: the handler's context is gone by then.
	chatID := message.Chat.ID
	go func() {
		time.Sleep(10 * time.Second)
		unbanErr := b.Instance.UnbanChatMember(context.Background(), &telego.UnbanChatMemberParams{
			ChatID: tu.ID(chatID),
			UserID: target,
		})
		if unbanErr != nil {
			b.Log.Debug("unban after kick failed", zap.Int64("user_id", target), zap.Error(unbanErr))
		}
	}()
	return nil
}
