package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/asymptotic-code/telegram-bot/internal/storage"
)

// Store is the part of storage.Store the accessor needs.
type Store interface {
	LastHistory(ctx context.Context, userID int64, limit int) ([]storage.HistoryEntry, error)
	AppendHistory(ctx context.Context, entry storage.HistoryEntry) error
}

// Accessor reads a bounded window of recent Q/A pairs and appends new ones.
type Accessor struct {
	store Store
	limit int
}

func NewAccessor(store Store, limit int) *Accessor {
	if limit <= 0 {
		limit = 10
	}
	return &Accessor{store: store, limit: limit}
}

// Recent returns up to Limit entries for the user, newest first.
func (a *Accessor) Recent(ctx context.Context, userID int64) ([]storage.HistoryEntry, error) {
	return a.store.LastHistory(ctx, userID, a.limit)
}

func (a *Accessor) Record(ctx context.Context, userID int64, question, answer string) error {
	return a.store.AppendHistory(ctx, storage.HistoryEntry{UserID: userID, Question: question, Answer: answer})
}

// Chronological returns a copy of a newest-first window in oldest-first order.
func Chronological(entries []storage.HistoryEntry) []storage.HistoryEntry {
	out := make([]storage.HistoryEntry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out
}

// Lines renders entries as alternating "question: ..." and "answer: ..." lines, in the given order.
func Lines(entries []storage.HistoryEntry) []string {
	out := make([]string, 0, 2*len(entries))
	for _, e := range entries {
		out = append(out, "question: "+e.Question, "answer: "+e.Answer)
	}
	return out
}

// Quote formats an entry for the /history command.
func Quote(e storage.HistoryEntry) string {
	return fmt.Sprintf(`"""%s"""`+"\n%s", strings.TrimSpace(e.Question), e.Answer)
}
