package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/asymptotic-code/telegram-bot/internal/answer"
	"github.com/asymptotic-code/telegram-bot/internal/session"
	"github.com/asymptotic-code/telegram-bot/internal/storage"
)

type fakeSender struct {
	mu      sync.Mutex
	sent    []tgbotapi.MessageConfig
	edits   []tgbotapi.EditMessageTextConfig
	nextID  int
	failing bool
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return tgbotapi.Message{}, errors.New("telegram unavailable")
	}
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		f.sent = append(f.sent, m)
	case tgbotapi.EditMessageTextConfig:
		f.edits = append(f.edits, m)
	}
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeSender) texts() []string {
	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.Text)
	}
	return out
}

type fakePipeline struct {
	inbound []answer.Inbound
	cleared []answer.Inbound
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakePipeline) Answer(_ context.Context, in answer.Inbound) (answer.Result, error) {
	f.inbound = append(f.inbound, in)
	if f.started != nil {
		close(f.started)
		<-f.release
	}
	if f.err != nil {
		return answer.Result{State: answer.StateFailed}, f.err
	}
	return answer.Result{State: answer.StateRecorded}, nil
}

func (f *fakePipeline) Clear(_ context.Context, in answer.Inbound) error {
	f.cleared = append(f.cleared, in)
	return f.err
}

type fakeUsers struct{ known map[int64]bool }

func (f *fakeUsers) Register(_ context.Context, u storage.User) (bool, error) {
	if f.known[u.ID] {
		return false, nil
	}
	f.known[u.ID] = true
	return true, nil
}

type fakeHistory struct{ entries []storage.HistoryEntry }

func (f fakeHistory) Recent(context.Context, int64) ([]storage.HistoryEntry, error) {
	return f.entries, nil
}

type fakeAudit struct{ entries []storage.AuditEntry }

func (f *fakeAudit) AppendAudit(_ context.Context, e storage.AuditEntry) error {
	f.entries = append(f.entries, e)
	return nil
}

func newTestBot(hist []storage.HistoryEntry) (*Bot, *fakeSender, *fakePipeline, *fakeAudit) {
	fs := &fakeSender{}
	p := &fakePipeline{}
	a := &fakeAudit{}
	b := &Bot{
		s:           fs,
		pipeline:    p,
		users:       &fakeUsers{known: map[int64]bool{}},
		history:     fakeHistory{entries: hist},
		audit:       a,
		adminUserID: 999,
		log:         zap.NewNop(),
	}
	return b, fs, p, a
}

func command(text string, userID, chatID int64, chatType string) *tgbotapi.Message {
	name := strings.Fields(text)[0]
	return &tgbotapi.Message{
		MessageID: 5,
		From:      &tgbotapi.User{ID: userID, UserName: "alice"},
		Chat:      &tgbotapi.Chat{ID: chatID, Type: chatType},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}
}

func TestStart_RegistersOnceAndAudits(t *testing.T) {
	b, fs, _, a := newTestBot(nil)
	ctx := context.Background()

	b.handleMessage(ctx, command("/start", 42, 42, "private"))
	b.handleMessage(ctx, command("/start", 42, 42, "private"))

	got := fs.texts()
	if len(got) != 2 || got[0] != "Welcome alice! You have been registered." || got[1] != "Welcome back alice! You are already registered." {
		t.Fatalf("unexpected replies: %+v", got)
	}
	if len(a.entries) != 2 || a.entries[0].Action != storage.ActionStart || a.entries[0].Text != "/start" {
		t.Fatalf("unexpected audit: %+v", a.entries)
	}
}

func TestHelp_UsesHTML(t *testing.T) {
	b, fs, _, a := newTestBot(nil)
	b.handleMessage(context.Background(), command("/help", 1, 1, "private"))
	if len(fs.sent) != 1 || fs.sent[0].ParseMode != tgbotapi.ModeHTML {
		t.Fatalf("help must be sent as HTML: %+v", fs.sent)
	}
	if len(a.entries) != 1 || a.entries[0].Action != storage.ActionHelp {
		t.Fatalf("help not audited: %+v", a.entries)
	}
}

func TestHistory_RendersEntriesAndCount(t *testing.T) {
	hist := []storage.HistoryEntry{
		{Question: "what is Move?", Answer: "a language"},
		{Question: " objects? ", Answer: "owned or shared"},
	}
	b, fs, _, a := newTestBot(hist)
	b.handleMessage(context.Background(), command("/history", 7, 7, "private"))

	got := fs.texts()
	if len(got) != 3 || got[0] != historyHeader || got[1] != "\"\"\"what is Move?\"\"\"\na language" || got[2] != "\"\"\"objects?\"\"\"\nowned or shared" {
		t.Fatalf("unexpected history output: %q", got)
	}
	if len(a.entries) != 1 || a.entries[0].Result != "2" {
		t.Fatalf("history audit should carry the count: %+v", a.entries)
	}
}

func TestHistory_Empty(t *testing.T) {
	b, fs, _, _ := newTestBot(nil)
	b.handleMessage(context.Background(), command("/history", 7, 7, "private"))
	if got := fs.texts(); len(got) != 2 || got[1] != noHistoryText {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestClear_AcknowledgesAndAudits(t *testing.T) {
	b, fs, p, a := newTestBot(nil)
	b.handleMessage(context.Background(), command("/clear@sui_bot", 7, -100, "supergroup"))

	if len(p.cleared) != 1 || p.cleared[0].Origin != session.OriginGroup || p.cleared[0].ChatID != -100 {
		t.Fatalf("unexpected clear: %+v", p.cleared)
	}
	if got := fs.texts(); len(got) != 1 || got[0] != clearedText {
		t.Fatalf("unexpected ack: %q", got)
	}
	if len(a.entries) != 1 || a.entries[0].Action != storage.ActionClear {
		t.Fatalf("clear not audited: %+v", a.entries)
	}
}

func TestPlainText_GoesToPipelineWithPinned(t *testing.T) {
	b, fs, p, a := newTestBot(nil)
	msg := &tgbotapi.Message{
		MessageID: 9,
		From:      &tgbotapi.User{ID: 7, UserName: "bob"},
		Chat:      &tgbotapi.Chat{ID: -100, Type: "group", PinnedMessage: &tgbotapi.Message{Text: "Read the docs"}},
		Text:      "how do I publish?",
	}
	b.handleMessage(context.Background(), msg)

	if len(p.inbound) != 1 {
		t.Fatalf("message not forwarded")
	}
	in := p.inbound[0]
	if in.Origin != session.OriginGroup || in.MessageID != 9 || in.Pinned != "Read the docs" || in.Text != "how do I publish?" {
		t.Fatalf("unexpected inbound: %+v", in)
	}
	if len(fs.sent) != 0 || len(a.entries) != 0 {
		t.Fatalf("plain text must not be answered or audited by the adapter")
	}
}

func TestPipelineErrorIsSwallowed(t *testing.T) {
	b, fs, p, _ := newTestBot(nil)
	p.err = &answer.PipelineError{Stage: answer.StageConversation, Err: errors.New("boom")}
	b.handleMessage(context.Background(), &tgbotapi.Message{
		From: &tgbotapi.User{ID: 1},
		Chat: &tgbotapi.Chat{ID: 1, Type: "private"},
		Text: "hi",
	})
	if len(fs.sent) != 0 {
		t.Fatalf("failures produce no user-visible reply, got %+v", fs.sent)
	}
}

func TestUnknownCommandIgnored(t *testing.T) {
	b, fs, p, a := newTestBot(nil)
	b.handleMessage(context.Background(), command("/settings", 1, 1, "private"))
	if len(fs.sent) != 0 || len(p.inbound) != 0 || len(a.entries) != 0 {
		t.Fatalf("unknown command must be ignored")
	}
}

func TestNotifyAdmin(t *testing.T) {
	b, fs, _, _ := newTestBot(nil)
	b.NotifyAdmin("report")
	if len(fs.sent) != 1 || fs.sent[0].ChatID != 999 {
		t.Fatalf("report not sent to admin: %+v", fs.sent)
	}
	b.adminUserID = 0
	b.NotifyAdmin("report")
	if len(fs.sent) != 1 {
		t.Fatalf("no admin configured must be a no-op")
	}
}

func TestMessenger_SendReplyAndEdit(t *testing.T) {
	fs := &fakeSender{}
	m := &Messenger{s: fs}

	id, err := m.Send(-100, "Answering...", 9)
	if err != nil || id != 1 {
		t.Fatalf("send: id=%d err=%v", id, err)
	}
	if fs.sent[0].ReplyToMessageID != 9 || fs.sent[0].ChatID != -100 {
		t.Fatalf("placeholder must reply to the question: %+v", fs.sent[0])
	}
	if err := m.Edit(-100, id, "final"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if len(fs.edits) != 1 || fs.edits[0].MessageID != 1 || fs.edits[0].Text != "final" {
		t.Fatalf("unexpected edit: %+v", fs.edits)
	}

	fs.failing = true
	if _, err := m.Send(1, "x", 0); err == nil {
		t.Fatalf("send error must propagate")
	}
}

func TestServe_WaitsForInFlightHandlers(t *testing.T) {
	b, _, p, _ := newTestBot(nil)
	p.started = make(chan struct{})
	p.release = make(chan struct{})

	updates := make(chan tgbotapi.Update, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		b.serve(ctx, updates)
		close(done)
	}()

	updates <- tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: 1},
		Chat: &tgbotapi.Chat{ID: 1, Type: "private"},
		Text: "slow question",
	}}
	<-p.started
	cancel()

	select {
	case <-done:
		t.Fatalf("serve returned while a handler was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(p.release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("serve did not return after the handler finished")
	}
}

func TestServe_ClosedChannelReturns(t *testing.T) {
	b, _, _, _ := newTestBot(nil)
	updates := make(chan tgbotapi.Update)
	close(updates)
	b.serve(context.Background(), updates)
}
