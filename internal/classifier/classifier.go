// Package classifier asks a language model closed yes/no questions.
package classifier

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/asymptotic-code/telegram-bot/internal/apperr"
	"github.com/asymptotic-code/telegram-bot/internal/history"
	"github.com/asymptotic-code/telegram-bot/internal/llm"
	"github.com/asymptotic-code/telegram-bot/internal/storage"
)

type Classifier struct {
	client    llm.Client
	directive string
	log       *zap.Logger
}

// New wraps client. directive is appended to every request and must force a
// bare "yes" or "no" reply.
func New(client llm.Client, directive string, log *zap.Logger) *Classifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Classifier{client: client, directive: directive, log: log}
}

// Ask sends exactly one request. history is the newest-first window from the
// history accessor; it is rendered oldest-first as question/answer lines.
// Replies other than yes/no fail with *apperr.ClassificationError.
func (c *Classifier) Ask(ctx context.Context, question string, prompts []string, hist []storage.HistoryEntry) (bool, error) {
	lines := history.Lines(history.Chronological(hist))
	msgs := make([]llm.Message, 0, len(lines)+len(prompts)+2)
	for _, l := range lines {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: l})
	}
	for _, p := range prompts {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: p})
	}
	msgs = append(msgs,
		llm.Message{Role: llm.RoleSystem, Content: c.directive},
		llm.Message{Role: llm.RoleUser, Content: question},
	)

	resp, err := c.client.Generate(ctx, msgs)
	if err != nil {
		return false, apperr.Remote("classifier", err)
	}

	reply := strings.ToLower(strings.TrimSpace(resp.Content))
	c.log.Debug("classifier reply",
		zap.Strings("prompts", prompts),
		zap.Int("history", len(hist)),
		zap.String("reply", reply),
		zap.Int("total_tokens", resp.TotalTokens),
	)
	switch reply {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	default:
		return false, &apperr.ClassificationError{Reply: resp.Content}
	}
}
