package telegram

import (
	"context"
	"errors"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/asymptotic-code/telegram-bot/internal/answer"
	"github.com/asymptotic-code/telegram-bot/internal/session"
	"github.com/asymptotic-code/telegram-bot/internal/storage"
)

type Pipeline interface {
	Answer(ctx context.Context, in answer.Inbound) (answer.Result, error)
	Clear(ctx context.Context, in answer.Inbound) error
}

type Registrar interface {
	Register(ctx context.Context, user storage.User) (bool, error)
}

type HistoryReader interface {
	Recent(ctx context.Context, userID int64) ([]storage.HistoryEntry, error)
}

type Auditor interface {
	AppendAudit(ctx context.Context, entry storage.AuditEntry) error
}

type Deps struct {
	Pipeline    Pipeline
	Users       Registrar
	History     HistoryReader
	Audit       Auditor
	AdminUserID int64
	Log         *zap.Logger
}

type Bot struct {
	api         *tgbotapi.BotAPI
	s           sender
	pipeline    Pipeline
	users       Registrar
	history     HistoryReader
	audit       Auditor
	adminUserID int64
	log         *zap.Logger
}

// Connect authorizes against the Bot API. The returned handle is shared by the
// Bot and the Messenger given to the answer pipeline.
func Connect(token string) (*tgbotapi.BotAPI, error) {
	return tgbotapi.NewBotAPI(token)
}

func New(api *tgbotapi.BotAPI, d Deps) *Bot {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Bot{
		api:         api,
		s:           botAPISender{api: api},
		pipeline:    d.Pipeline,
		users:       d.Users,
		history:     d.History,
		audit:       d.Audit,
		adminUserID: d.AdminUserID,
		log:         log,
	}
}

// Start long-polls for updates until ctx is done. Every message is handled in
// its own goroutine; nothing serializes messages of the same user. Start
// returns only after all handlers have finished.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("bot started", zap.String("username", b.api.Self.UserName))

	b.serve(ctx, updates)
	b.api.StopReceivingUpdates()
}

func (b *Bot) serve(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer wg.Done()
				b.handleMessage(ctx, msg)
			}(update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil || msg.Text == "" {
		return
	}
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	in := inboundOf(msg)
	res, err := b.pipeline.Answer(ctx, in)
	if err != nil {
		fields := []zap.Field{zap.Int64("user_id", in.UserID), zap.Int64("chat_id", in.ChatID), zap.Error(err)}
		var pe *answer.PipelineError
		if errors.As(err, &pe) {
			fields = append(fields, zap.String("stage", string(pe.Stage)))
		}
		b.log.Error("answer failed", fields...)
		return
	}
	b.log.Debug("message handled", zap.Int64("user_id", in.UserID), zap.String("state", string(res.State)))
}

// NotifyAdmin sends text to the configured admin. It is a no-op without one.
func (b *Bot) NotifyAdmin(text string) {
	if b.adminUserID == 0 {
		return
	}
	b.sendMessage(b.adminUserID, text)
}

func (b *Bot) sendMessage(chatID int64, text string) {
	if _, err := b.s.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.Warn("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) sendHTML(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.s.Send(msg); err != nil {
		b.log.Warn("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func inboundOf(msg *tgbotapi.Message) answer.Inbound {
	return answer.Inbound{
		Text:      msg.Text,
		UserID:    msg.From.ID,
		Username:  msg.From.UserName,
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Origin:    session.OriginOf(msg.Chat.Type),
		Pinned:    pinnedText(msg),
	}
}

func pinnedText(msg *tgbotapi.Message) string {
	if msg.PinnedMessage != nil && msg.PinnedMessage.Text != "" {
		return msg.PinnedMessage.Text
	}
	if msg.Chat != nil && msg.Chat.PinnedMessage != nil {
		return msg.Chat.PinnedMessage.Text
	}
	return ""
}
