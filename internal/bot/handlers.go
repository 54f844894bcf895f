package bot

import (
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/PettyMiggzy/ChopstixBNB/internal/claim"
	"github.com/PettyMiggzy/ChopstixBNB/internal/leaderboard"
	"github.com/PettyMiggzy/ChopstixBNB/internal/referral"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/zap"
)

func (b *Bot) mainMenu(ctx *th.Context, chatID int64) {
	keyboard := tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("网站 · Website").WithURL(b.Cfg.WebsiteURL),
			tu.InlineKeyboardButton("X · Twitter").WithURL("https://x.com/"+b.Cfg.TwitterHandle),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("领取供奉 /offer").WithCallbackData("cb_offer"),
			tu.InlineKeyboardButton("筷子宴榜单 /feast").WithCallbackData("cb_feast"),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("我的邀请 /referrals").WithCallbackData("cb_refs"),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("传说 /lore").WithCallbackData("cb_lore"),
			tu.InlineKeyboardButton("神谕 /oracle").WithCallbackData("cb_oracle"),
		),
	)

	text := "🙏 欢迎来到筷子宴 · Welcome to the Feast of $CHOP\n\n" +
		"• /offer 领取每日供奉（需入群 + 推文）\n" +
		"  Claim daily offering (must be group member + tweet)\n\n" +
		"• /referrals 获取私聊专属邀请链接\n" +
		"  Get your personal referral link in DM\n\n" +
		"• /feast 榜单 · /lore 传说 · /fortune 签语 · /oracle 神谕\n" +
		"• /stats 我的数据 · /burn 光环（外观）\n\n" +
		b.Cfg.WebsiteURL

	_, err := ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(chatID), text).WithReplyMarkup(keyboard))
	if err != nil {
		b.Log.Debug("menu send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) handleStart(ctx *th.Context, update telego.Update) error {
	message := update.Message

	args := ""
	if parts := strings.Split(message.Text, " "); len(parts) > 1 {
		args = parts[1]
	}
	if inviterID, ok := referral.DecodePayload(strings.TrimSpace(args)); ok {
		b.Referrals.Register(inviterID, message.From.ID, time.Now().UTC())
	}

	b.mainMenu(ctx, message.Chat.ID)
	return nil
}

func (b *Bot) handleMenu(ctx *th.Context, update telego.Update) error {
	b.mainMenu(ctx, update.Message.Chat.ID)
	return nil
}

// ---- Offer flow ----

func (b *Bot) handleOffer(ctx *th.Context, update telego.Update) error {
	message := update.Message
	if message.Chat.Type != telego.ChatTypePrivate {
		b.reply(ctx, message.Chat.ID, fmt.Sprintf(
			"⚠️ 领取供奉请在私聊进行 / Claim in DM only.\n👉 @%s", b.Cfg.BotUsername))
		return nil
	}
	b.offerEntry(ctx, message.From.ID)
	return nil
}

func (b *Bot) callbackOffer(ctx *th.Context, update telego.Update) error {
	b.answerCallback(ctx, update.CallbackQuery.ID)
	b.offerEntry(ctx, update.CallbackQuery.From.ID)
	return nil
}

// offerEntry runs the claim gates and, if they pass, hands out the tweet
// intent button and asks for the tweet URL. Replies always go to the
// user's DM.
func (b *Bot) offerEntry(ctx *th.Context, userID int64) {
	err := b.Claims.Begin(ctx.Context(), userID)

	var cooldown *claim.CooldownError
	switch {
	case errors.Is(err, claim.ErrNotMember):
		link := b.Store.Settings().GroupLink
		if link == "" {
			link = "https://t.me/" + strings.TrimSuffix(b.Cfg.BotUsername, "bot")
		}
		keyboard := tu.InlineKeyboard(
			tu.InlineKeyboardRow(tu.InlineKeyboardButton("加入社群 · Join Group").WithURL(link)),
		)
		_, sendErr := ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(userID),
			"请先加入官方社群再领取。\nJoin the group first to claim.").WithReplyMarkup(keyboard))
		if sendErr != nil {
			b.Log.Debug("join-first reply failed", zap.Int64("user_id", userID), zap.Error(sendErr))
		}
		return

	case errors.As(err, &cooldown):
		b.reply(ctx, userID, fmt.Sprintf(
			"今日已领 · Already claimed. Come back in %s.", claim.FormatRemaining(cooldown.Remaining)))
		return

	case err != nil:
		b.Log.Error("claim entry failed", zap.Int64("user_id", userID), zap.Error(err))
		return
	}

	keyboard := tu.InlineKeyboard(
		tu.InlineKeyboardRow(tu.InlineKeyboardButton("发推 · Tweet").WithURL(b.tweetIntent())),
	)
	_, sendErr := ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(userID),
		"点此发推（自动带机器人链接）。\nTap to tweet (auto-includes the bot link).").WithReplyMarkup(keyboard))
	if sendErr != nil {
		b.Log.Debug("tweet prompt failed", zap.Int64("user_id", userID), zap.Error(sendErr))
	}

	_, sendErr = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(userID),
		"发布后，请把推文链接粘贴在此（x.com/twitter.com）。\nAfter posting, paste your tweet URL here.").
		WithReplyMarkup(&telego.ForceReply{ForceReply: true}))
	if sendErr != nil {
		b.Log.Debug("proof prompt failed", zap.Int64("user_id", userID), zap.Error(sendErr))
	}
}

func (b *Bot) tweetIntent() string {
	botLink := "https://t.me/" + b.Cfg.BotUsername + "?ref=x1"
	text := botLink + "\n\n" +
		"JUST CLAIMED ANOTHER OFFERING 💸\n" +
		"RISE TO GOLDEN TIER TO GET MORE DAILY OFFERINGS AND BIGGER $CHOP REWARDS @" + b.Cfg.TwitterHandle
	return "https://twitter.com/intent/tweet?text=" + url.QueryEscape(text)
}

// handleText catches tweet URLs pasted in DM while a claim is outstanding.
// Group text and users with nothing pending fall through untouched.
func (b *Bot) handleText(ctx *th.Context, update telego.Update) error {
	message := update.Message
	if message.Chat.Type != telego.ChatTypePrivate {
		return nil
	}
	userID := message.From.ID

	receipt, err := b.Claims.SubmitProof(ctx.Context(), userID, message.Text)
	switch {
	case errors.Is(err, claim.ErrNotAwaiting):
		return nil
	case errors.Is(err, claim.ErrInvalidProof):
		b.reply(ctx, userID, "需要推文链接 · Please paste your tweet URL (x.com/twitter.com).")
		return nil
	case err != nil:
		b.Log.Error("proof submission failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil
	}

	b.reply(ctx, userID, fmt.Sprintf(
		"✅ 已记录推文 · Claim recorded! Aura on for %dh. See /stats", receipt.AuraHours))
	return nil
}

// ---- Referrals ----

func (b *Bot) handleReferrals(ctx *th.Context, update telego.Update) error {
	b.sendReferralDM(ctx, update.Message.From.ID, update.Message.Chat.ID)
	return nil
}

func (b *Bot) callbackReferrals(ctx *th.Context, update telego.Update) error {
	b.answerCallback(ctx, update.CallbackQuery.ID)
	b.sendReferralDM(ctx, update.CallbackQuery.From.ID, update.CallbackQuery.From.ID)
	return nil
}

// sendReferralDM sends the invite link by DM only; in the group it just
// confirms or explains how to open a DM first.
func (b *Bot) sendReferralDM(ctx *th.Context, userID, originChatID int64) {
	u, _ := b.Store.GetUser(userID)
	text := fmt.Sprintf(
		"🔗 邀请 · Referrals\n\n你的邀请链接（仅私聊展示） / Your referral link (DM only):\n%s\n\n邀请人数 Ref count: %d",
		referral.Link(b.Cfg.BotUsername, userID), u.ReferralCount)

	_, err := ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(userID), text))
	if err != nil {
		if originChatID == b.Cfg.GroupID {
			b.reply(ctx, originChatID, fmt.Sprintf(
				"请先私聊我启动机器人，然后再用 /referrals。\nOpen DM: https://t.me/%s", b.Cfg.BotUsername))
		} else {
			b.reply(ctx, originChatID, "无法发送私信，请检查隐私设置。")
		}
		return
	}
	if originChatID == b.Cfg.GroupID {
		b.reply(ctx, originChatID, "🔐 已私信你的邀请链接 · I DM'd you your referral link.")
	}
}

// ---- Boards and stats ----

func (b *Bot) handleFeast(ctx *th.Context, update telego.Update) error {
	b.sendFeast(ctx, update.Message.Chat.ID)
	return nil
}

func (b *Bot) callbackFeast(ctx *th.Context, update telego.Update) error {
	b.answerCallback(ctx, update.CallbackQuery.ID)
	b.sendFeast(ctx, update.CallbackQuery.From.ID)
	return nil
}

func (b *Bot) sendFeast(ctx *th.Context, chatID int64) {
	entries := b.Boards.Top(leaderboard.Size)
	b.reply(ctx, chatID, "🍜 筷子宴榜单 · Feast Hall Leaderboard\n"+leaderboard.Render(entries))
}

func (b *Bot) handleStats(ctx *th.Context, update telego.Update) error {
	message := update.Message
	u, _ := b.Store.GetUser(message.From.ID)

	aura := "off"
	now := time.Now().UTC()
	if u.HasAura(now) {
		aura = claim.FormatRemaining(u.AuraExpiresAt.Sub(now))
	}
	joined := "-"
	if !u.JoinedAt.IsZero() {
		joined = u.JoinedAt.Local().Format("02.01.2006 15:04")
	}

	b.reply(ctx, message.Chat.ID, fmt.Sprintf(
		"📊 统计 · Stats\nOffers: %d\nReferrals: %d\nAura: %s\nJoined: %s\n\n(Your referral link is sent by DM with /referrals)",
		u.OfferingCount, u.ReferralCount, aura, joined))
	return nil
}

func (b *Bot) handleBurn(ctx *th.Context, update telego.Update) error {
	message := update.Message
	auraHours := b.Store.Settings().AuraHours

	err := b.Claims.LightAura(message.From.ID)
	if err != nil {
		b.Log.Error("aura update failed", zap.Int64("user_id", message.From.ID), zap.Error(err))
	}
	b.reply(ctx, message.Chat.ID, fmt.Sprintf("✨ 光环已点亮 · Aura on for %dh (cosmetic).", auraHours))
	return nil
}

// ---- Flavor ----

func (b *Bot) handleLore(ctx *th.Context, update telego.Update) error {
	b.sendLore(ctx, update.Message.Chat.ID)
	return nil
}

func (b *Bot) callbackLore(ctx *th.Context, update telego.Update) error {
	b.answerCallback(ctx, update.CallbackQuery.ID)
	b.sendLore(ctx, update.CallbackQuery.From.ID)
	return nil
}

func (b *Bot) sendLore(ctx *th.Context, chatID int64) {
	keyboard := tu.InlineKeyboard(
		tu.InlineKeyboardRow(tu.InlineKeyboardButton("阅读全文 · Read full").WithURL(b.Cfg.WebsiteURL)),
	)
	text := "📜 筷子传说 · The Legend of Chopstix\n\n" +
		"“左筷为勇，右筷为智；双筷并举，财富自来。”\n" +
		"\"The left chopstick is courage, the right is wisdom — together they lift fortune.\"\n\n" +
		"更多 · More: " + b.Cfg.WebsiteURL
	_, err := ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(chatID), text).WithReplyMarkup(keyboard))
	if err != nil {
		b.Log.Debug("lore send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

var (
	oracleOpeners = []string{"龙曰：", "师父言：", "炉火传讯：", "钟声回荡："}
	oracleFirst   = []string{"红灯未灭，心火勿旺。", "米袋渐满，不必急食。", "筹码如潮，退亦是进。", "竹影东移，时至自明。"}
	oracleSecond  = []string{"看一日线，慎一小时心。", "小胜亦胜，切莫求满。", "手稳如筷，步轻如风。", "与众同宴，勿独食。"}
	oracleEnglish = []string{
		"Calm your fire under red lanterns.",
		"A small win is still a win.",
		"Hold steady like chopsticks; move lightly.",
		"Share the feast; do not eat alone.",
	}
	fortunes = [][2]string{
		{"龙须拂盘，金粒自聚。", "Dragon whisk sweeps — grains of gold gather."},
		{"红灯常明，心定财来。", "When the red lantern glows, calm brings fortune."},
		{"左勇右智，筷起富至。", "Courage left, wisdom right — lift and wealth arrives."},
		{"守得云开，方见金鳞。", "Hold through the clouds and see golden scales."},
	}
)

func (b *Bot) handleOracle(ctx *th.Context, update telego.Update) error {
	b.sendOracle(ctx, update.Message.Chat.ID)
	return nil
}

func (b *Bot) callbackOracle(ctx *th.Context, update telego.Update) error {
	b.answerCallback(ctx, update.CallbackQuery.ID)
	b.sendOracle(ctx, update.CallbackQuery.From.ID)
	return nil
}

func (b *Bot) sendOracle(ctx *th.Context, chatID int64) {
	zh := oracleOpeners[rand.Intn(len(oracleOpeners))] +
		oracleFirst[rand.Intn(len(oracleFirst))] +
		oracleSecond[rand.Intn(len(oracleSecond))]
	en := oracleEnglish[rand.Intn(len(oracleEnglish))]
	b.reply(ctx, chatID, fmt.Sprintf("🧙‍♂️ 筷子神谕\n%s\n\nOracle: %s", zh, en))
}

func (b *Bot) handleFortune(ctx *th.Context, update telego.Update) error {
	pick := fortunes[rand.Intn(len(fortunes))]
	b.reply(ctx, update.Message.Chat.ID, fmt.Sprintf("🥠 财富签语\n%s\n%s", pick[0], pick[1]))
	return nil
}

// ---- Group lifecycle ----

func (b *Bot) handleNewMembers(ctx *th.Context, update telego.Update) error {
	message := update.Message
	if message.Chat.ID != b.Cfg.GroupID {
		return nil
	}
	for _, member := range message.NewChatMembers {
		if member.IsBot {
			continue
		}
		_, err := ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), fmt.Sprintf(
			"👋 欢迎 %s 加入筷子宴！\nWelcome to the Feast of $CHOP!\n私聊我用 /offer 领取每日供奉 · DM me /offer to claim daily offering.",
			member.FirstName)).WithDisableNotification())
		if err != nil {
			b.Log.Debug("welcome failed", zap.Int64("user_id", member.ID), zap.Error(err))
		}
	}
	return nil
}
