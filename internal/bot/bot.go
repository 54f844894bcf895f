package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/PettyMiggzy/ChopstixBNB/internal/claim"
	"github.com/PettyMiggzy/ChopstixBNB/internal/config"
	"github.com/PettyMiggzy/ChopstixBNB/internal/leaderboard"
	"github.com/PettyMiggzy/ChopstixBNB/internal/moderation"
	"github.com/PettyMiggzy/ChopstixBNB/internal/referral"
	"github.com/PettyMiggzy/ChopstixBNB/internal/store"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/zap"
)

type Bot struct {
	Instance  *telego.Bot
	Store     *store.Store
	Claims    *claim.Service
	Referrals *referral.Ledger
	Boards    *leaderboard.Projector
	Filter    *moderation.Filter
	Caster    *groupBroadcaster
	Oracle    *chatOracle
	Cfg       *config.Config
	Log       *zap.Logger
}

func NewBot(cfg *config.Config, st *store.Store, log *zap.Logger) (*Bot, error) {
	tgBot, err := telego.NewBot(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	oracle := &chatOracle{bot: tgBot}
	caster := &groupBroadcaster{bot: tgBot}

	return &Bot{
		Instance:  tgBot,
		Store:     st,
		Claims:    claim.NewService(st, oracle, caster, cfg.GroupID, log),
		Referrals: referral.NewLedger(st, log),
		Boards:    leaderboard.NewProjector(st),
		Filter:    moderation.NewFilter(st, oracle, cfg.GroupID, log),
		Caster:    caster,
		Oracle:    oracle,
		Cfg:       cfg,
		Log:       log,
	}, nil
}

// Broadcaster exposes the group sender for the scheduler.
func (b *Bot) Broadcaster() *groupBroadcaster {
	return b.Caster
}

// Start runs long polling until ctx is cancelled. Handler registration
// order matters: the moderation middleware runs before everything, and the
// bare-text proof catcher is registered last so commands win.
func (b *Bot) Start(ctx context.Context) error {
	updates, err := b.Instance.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	handler, err := th.NewBotHandler(b.Instance, updates)
	if err != nil {
		return fmt.Errorf("failed to create handler: %w", err)
	}

	handler.Use(b.observe)

	handler.Handle(b.handleStart, th.CommandEqual("start"))
	handler.Handle(b.handleMenu, th.CommandEqual("menu"))
	handler.Handle(b.handleOffer, th.CommandEqual("offer"))
	handler.Handle(b.handleFeast, th.CommandEqual("feast"))
	handler.Handle(b.handleReferrals, th.CommandEqual("referrals"))
	handler.Handle(b.handleStats, th.CommandEqual("stats"))
	handler.Handle(b.handleBurn, th.CommandEqual("burn"))
	handler.Handle(b.handleLore, th.CommandEqual("lore"))
	handler.Handle(b.handleFortune, th.CommandEqual("fortune"))
	handler.Handle(b.handleOracle, th.CommandEqual("oracle"))
	handler.Handle(b.handleBind, th.CommandEqual("bind"))

	handler.Handle(b.handleAdmin, th.CommandEqual("admin"))
	handler.Handle(b.handlePing, th.CommandEqual("ping"))
	handler.Handle(b.handleToggleReminder, th.CommandEqual("toggle_reminder"))
	handler.Handle(b.handleSetCooldown, th.CommandEqual("set_cooldown"))
	handler.Handle(b.handleSetAura, th.CommandEqual("set_aura"))
	handler.Handle(b.handleSetModMode, th.CommandEqual("set_modmode"))
	handler.Handle(b.handlePurge, th.CommandEqual("purge"))
	handler.Handle(b.handleMute, th.CommandEqual("mute"))
	handler.Handle(b.handleKick, th.CommandEqual("kick"))

	handler.Handle(b.callbackOffer, th.CallbackDataEqual("cb_offer"))
	handler.Handle(b.callbackFeast, th.CallbackDataEqual("cb_feast"))
	handler.Handle(b.callbackReferrals, th.CallbackDataEqual("cb_refs"))
	handler.Handle(b.callbackLore, th.CallbackDataEqual("cb_lore"))
	handler.Handle(b.callbackOracle, th.CallbackDataEqual("cb_oracle"))

	handler.Handle(b.handleNewMembers, hasNewMembers)
	handler.Handle(b.handleText, th.AnyMessageWithText())

	go func() {
		<-ctx.Done()
		handler.Stop()
	}()

	b.Log.Info("bot started", zap.Int64("group_id", b.Cfg.GroupID))
	handler.Start()
	return nil
}

func hasNewMembers(_ context.Context, update telego.Update) bool {
	return update.Message != nil && len(update.Message.NewChatMembers) > 0
}

// observe runs before dispatch for every update: it touches the sender's
// record and, for messages in the bound group, applies the moderation
// filter. A non-pass verdict swallows the update entirely.
func (b *Bot) observe(ctx *th.Context, update telego.Update) error {
	now := time.Now().UTC()
	if cb := update.CallbackQuery; cb != nil {
		b.Store.Touch(cb.From.ID, displayName(&cb.From), now)
		return ctx.Next(update)
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return ctx.Next(update)
	}
	b.Store.Touch(msg.From.ID, displayName(msg.From), now)

	if msg.Chat.ID != b.Cfg.GroupID {
		return ctx.Next(update)
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	verdict := b.Filter.Check(ctx.Context(), moderation.Message{
		SenderID:  msg.From.ID,
		Text:      text,
		Forwarded: msg.ForwardOrigin != nil,
	})

	switch verdict {
	case moderation.Pass:
		return ctx.Next(update)
	case moderation.Delete:
		b.deleteMessage(ctx.Context(), msg.Chat.ID, msg.MessageID)
	case moderation.DeleteAndWarn:
		b.deleteMessage(ctx.Context(), msg.Chat.ID, msg.MessageID)
		b.reply(ctx, msg.Chat.ID, fmt.Sprintf(
			"🚫 请勿在群内发链接 / No links in group.\n领取供奉请私聊：@%s", b.Cfg.BotUsername))
	case moderation.Remove:
		b.deleteMessage(ctx.Context(), msg.Chat.ID, msg.MessageID)
		b.removeMember(ctx.Context(), msg.Chat.ID, msg.From.ID)
	}
	return nil
}

// reply is a fire-and-forget message send; transport failures are logged
// and swallowed.
func (b *Bot) reply(ctx *th.Context, chatID int64, text string) {
	if _, err := ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(chatID), text)); err != nil {
		b.Log.Debug("reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) deleteMessage(ctx context.Context, chatID int64, messageID int) {
	err := b.Instance.DeleteMessage(ctx, &telego.DeleteMessageParams{
		ChatID:    tu.ID(chatID),
		MessageID: messageID,
	})
	if err != nil {
		b.Log.Debug("delete failed",
			zap.Int64("chat_id", chatID), zap.Int("message_id", messageID), zap.Error(err))
	}
}

func (b *Bot) removeMember(ctx context.Context, chatID, userID int64) {
	err := b.Instance.BanChatMember(ctx, &telego.BanChatMemberParams{
		ChatID: tu.ID(chatID),
		UserID: userID,
	})
	if err != nil {
		b.Log.Debug("remove failed",
			zap.Int64("chat_id", chatID), zap.Int64("user_id", userID), zap.Error(err))
		return
	}
	b.Log.Info("user removed by moderation",
		zap.Int64("chat_id", chatID), zap.Int64("user_id", userID))
}

func (b *Bot) answerCallback(ctx *th.Context, callbackID string) {
	if err := ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callbackID)); err != nil {
		b.Log.Debug("answer callback failed", zap.Error(err))
	}
}
