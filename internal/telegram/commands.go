package telegram

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/asymptotic-code/telegram-bot/internal/history"
	"github.com/asymptotic-code/telegram-bot/internal/session"
	"github.com/asymptotic-code/telegram-bot/internal/storage"
)

const helpText = `<b>Sui Move assistant</b>

Ask anything about Sui Move, Move or the Sui Prover and the bot will answer.
In groups it only replies to on-topic questions.

<b>Commands</b>
/start - register
/history - show your recent questions
/clear - start a fresh conversation
/about - about this bot
/help - this message`

const (
	aboutText        = "This is a bot that helps you."
	historyHeader    = "This is your last history:"
	noHistoryText    = "No history found."
	clearedText      = "Conversation cleared."
	clearFailedText  = "Could not clear the conversation, try again later."
	startFailedText  = "Registration failed, try again later."
	historyFailedTxt = "Could not load history, try again later."
)

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.handleStart(ctx, msg)
	case "help":
		b.sendHTML(msg.Chat.ID, helpText)
		b.writeAudit(ctx, msg, storage.ActionHelp, "")
	case "about":
		b.sendMessage(msg.Chat.ID, aboutText)
		b.writeAudit(ctx, msg, storage.ActionAbout, "")
	case "history":
		b.handleHistory(ctx, msg)
	case "clear":
		b.handleClear(ctx, msg)
	default:
		b.log.Debug("ignoring unknown command", zap.String("command", msg.Command()), zap.Int64("user_id", msg.From.ID))
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	user := storage.User{
		ID:       msg.From.ID,
		Username: msg.From.UserName,
		IsGroup:  session.OriginOf(msg.Chat.Type) == session.OriginGroup,
	}
	created, err := b.users.Register(ctx, user)
	if err != nil {
		b.log.Error("register user", zap.Int64("user_id", user.ID), zap.Error(err))
		b.sendMessage(msg.Chat.ID, startFailedText)
		return
	}
	name := displayName(msg.From)
	if created {
		b.sendMessage(msg.Chat.ID, fmt.Sprintf("Welcome %s! You have been registered.", name))
	} else {
		b.sendMessage(msg.Chat.ID, fmt.Sprintf("Welcome back %s! You are already registered.", name))
	}
	b.writeAudit(ctx, msg, storage.ActionStart, "")
}

func (b *Bot) handleHistory(ctx context.Context, msg *tgbotapi.Message) {
	entries, err := b.history.Recent(ctx, msg.From.ID)
	if err != nil {
		b.log.Error("load history", zap.Int64("user_id", msg.From.ID), zap.Error(err))
		b.sendMessage(msg.Chat.ID, historyFailedTxt)
		return
	}
	b.sendMessage(msg.Chat.ID, historyHeader)
	if len(entries) == 0 {
		b.sendMessage(msg.Chat.ID, noHistoryText)
	}
	for _, e := range entries {
		b.sendMessage(msg.Chat.ID, history.Quote(e))
	}
	b.writeAudit(ctx, msg, storage.ActionHistory, strconv.Itoa(len(entries)))
}

func (b *Bot) handleClear(ctx context.Context, msg *tgbotapi.Message) {
	if err := b.pipeline.Clear(ctx, inboundOf(msg)); err != nil {
		b.log.Error("clear session", zap.Int64("user_id", msg.From.ID), zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		b.sendMessage(msg.Chat.ID, clearFailedText)
		b.writeAudit(ctx, msg, storage.ActionClear, "error")
		return
	}
	b.sendMessage(msg.Chat.ID, clearedText)
	b.writeAudit(ctx, msg, storage.ActionClear, "")
}

func (b *Bot) writeAudit(ctx context.Context, msg *tgbotapi.Message, action, result string) {
	err := b.audit.AppendAudit(ctx, storage.AuditEntry{
		UserID: msg.From.ID,
		Action: action,
		Text:   msg.Text,
		Result: result,
	})
	if err != nil {
		b.log.Warn("append audit", zap.String("action", action), zap.Int64("user_id", msg.From.ID), zap.Error(err))
	}
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	return strconv.FormatInt(u.ID, 10)
}
