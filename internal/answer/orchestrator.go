// Package answer decides whether an inbound chat message gets an AI answer,
// obtains it from the conversation backend, delivers it and records the Q/A pair.
package answer

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/asymptotic-code/telegram-bot/internal/backend"
	"github.com/asymptotic-code/telegram-bot/internal/config"
	"github.com/asymptotic-code/telegram-bot/internal/session"
	"github.com/asymptotic-code/telegram-bot/internal/storage"
)

type State string

const (
	StateRecorded State = "recorded"
	StateRejected State = "rejected"
	StateDropped  State = "dropped"
	StateFailed   State = "failed"
)

type Stage string

const (
	StageHistory      Stage = "history"
	StageGating       Stage = "gating"
	StageSession      Stage = "session"
	StageConversation Stage = "conversation"
	StageDelivery     Stage = "delivery"
	StageRecord       Stage = "record"
	StageClear        Stage = "clear"
)

// PipelineError is the only error Answer and Clear return. Err keeps the
// underlying apperr type for errors.As.
type PipelineError struct {
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("answer pipeline failed at %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Inbound is a chat message as seen by the pipeline.
type Inbound struct {
	Text      string
	UserID    int64
	Username  string
	ChatID    int64
	MessageID int
	Origin    session.Origin
	// Pinned is the chat's pinned message text, if any. Used as extra context in groups.
	Pinned string
}

type Result struct {
	State  State
	Answer string
}

type History interface {
	Recent(ctx context.Context, userID int64) ([]storage.HistoryEntry, error)
	Record(ctx context.Context, userID int64, question, answer string) error
}

type Gate interface {
	Ask(ctx context.Context, question string, prompts []string, history []storage.HistoryEntry) (bool, error)
}

// Messenger is the outbound side of the chat transport. replyTo 0 means no reply.
type Messenger interface {
	Send(chatID int64, text string, replyTo int) (int, error)
	Edit(chatID int64, messageID int, text string) error
}

type Options struct {
	ContinuationPrompt string
	TopicPrompt        string
	RejectionText      string
	PlaceholderText    string
	ChunkSize          int
	TruncateAt         int
	Ellipsis           string
}

func DefaultOptions() Options {
	return OptionsFrom(config.DefaultPrompts(), 4000, 4050)
}

func OptionsFrom(p config.Prompts, chunkSize, truncateAt int) Options {
	return Options{
		ContinuationPrompt: p.Continuation,
		TopicPrompt:        p.Topic,
		RejectionText:      p.Rejection,
		PlaceholderText:    p.Placeholder,
		ChunkSize:          chunkSize,
		TruncateAt:         truncateAt,
		Ellipsis:           "\n...",
	}
}

type Orchestrator struct {
	history History
	gate    Gate
	backend backend.Backend
	out     Messenger
	opts    Options
	log     *zap.Logger
}

func New(h History, g Gate, b backend.Backend, out Messenger, opts Options, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{history: h, gate: g, backend: b, out: out, opts: opts, log: log}
}

// Answer runs the pipeline for one message. Rejections and silent group drops
// are successful results; any failure aborts the run with a *PipelineError and
// leaves history untouched.
func (o *Orchestrator) Answer(ctx context.Context, in Inbound) (Result, error) {
	key := session.Key(in.UserID, in.Origin, in.ChatID)

	hist, err := o.history.Recent(ctx, in.UserID)
	if err != nil {
		return fail(StageHistory, err)
	}

	eligible, err := o.eligible(ctx, in.Text, hist)
	if err != nil {
		return fail(StageGating, err)
	}
	if !eligible {
		if in.Origin == session.OriginGroup {
			o.log.Debug("dropping off-topic group message", zap.Int64("user_id", in.UserID), zap.Int64("chat_id", in.ChatID))
			return Result{State: StateDropped}, nil
		}
		if _, err := o.out.Send(in.ChatID, o.opts.RejectionText, 0); err != nil {
			return fail(StageDelivery, err)
		}
		return Result{State: StateRejected}, nil
	}

	var answer string
	if in.Origin == session.OriginGroup {
		answer, err = o.answerGroup(ctx, in, key)
	} else {
		answer, err = o.answerPrivate(ctx, in, key)
	}
	if err != nil {
		return Result{State: StateFailed}, err
	}

	if err := o.history.Record(ctx, in.UserID, in.Text, answer); err != nil {
		return fail(StageRecord, err)
	}
	o.log.Info("answered",
		zap.Int64("user_id", in.UserID),
		zap.Int64("chat_id", in.ChatID),
		zap.String("origin", string(in.Origin)),
		zap.Int("answer_len", UTF16Len(answer)),
	)
	return Result{State: StateRecorded, Answer: answer}, nil
}

// Clear drops the remote session of the user in this chat.
func (o *Orchestrator) Clear(ctx context.Context, in Inbound) error {
	key := session.Key(in.UserID, in.Origin, in.ChatID)
	if err := o.backend.ClearSession(ctx, key); err != nil {
		return &PipelineError{Stage: StageClear, Err: err}
	}
	return nil
}

// eligible asks the continuation question when there is history and falls back
// to the topic question, which sees only the current message.
func (o *Orchestrator) eligible(ctx context.Context, text string, hist []storage.HistoryEntry) (bool, error) {
	if len(hist) > 0 {
		cont, err := o.gate.Ask(ctx, text, []string{o.opts.ContinuationPrompt}, hist)
		if err != nil {
			return false, err
		}
		if cont {
			return true, nil
		}
	}
	return o.gate.Ask(ctx, text, []string{o.opts.TopicPrompt}, nil)
}

func (o *Orchestrator) answerPrivate(ctx context.Context, in Inbound, key string) (string, error) {
	raw, err := o.converse(ctx, in.Text, key)
	if err != nil {
		return "", err
	}
	for _, part := range Chunk(raw, o.opts.ChunkSize) {
		if _, err := o.out.Send(in.ChatID, part, 0); err != nil {
			return "", &PipelineError{Stage: StageDelivery, Err: err}
		}
	}
	return raw, nil
}

// answerGroup posts the placeholder while the backend works, then edits it in place.
func (o *Orchestrator) answerGroup(ctx context.Context, in Inbound, key string) (string, error) {
	var (
		placeholderID int
		raw           string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		id, err := o.out.Send(in.ChatID, o.opts.PlaceholderText, in.MessageID)
		if err != nil {
			return &PipelineError{Stage: StageDelivery, Err: err}
		}
		placeholderID = id
		return nil
	})
	g.Go(func() error {
		var err error
		raw, err = o.converse(gctx, compose(in), key)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", err
	}

	final := Truncate(raw, o.opts.TruncateAt, o.opts.Ellipsis)
	if err := o.out.Edit(in.ChatID, placeholderID, final); err != nil {
		return "", &PipelineError{Stage: StageDelivery, Err: err}
	}
	return final, nil
}

func (o *Orchestrator) converse(ctx context.Context, message, key string) (string, error) {
	if err := backend.EnsureSession(ctx, o.backend, key); err != nil {
		return "", &PipelineError{Stage: StageSession, Err: err}
	}
	raw, err := o.backend.Converse(ctx, message, key)
	if err != nil {
		return "", &PipelineError{Stage: StageConversation, Err: err}
	}
	return raw, nil
}

func compose(in Inbound) string {
	if in.Pinned == "" {
		return in.Text
	}
	return "Pinned message:\n" + in.Pinned + "\n\nQuestion:\n" + in.Text
}

func fail(stage Stage, err error) (Result, error) {
	return Result{State: StateFailed}, &PipelineError{Stage: stage, Err: err}
}
