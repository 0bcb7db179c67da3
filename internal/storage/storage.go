package storage

import (
	"context"
	"time"
)

// User is a registered chat user. Created once by /start and never changed.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	IsGroup   bool      `json:"is_group"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryEntry is one answered question. Entries are append-only and are read
// newest-first in a bounded window.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

// Audit actions written by the command handlers.
const (
	ActionStart   = "start"
	ActionHelp    = "help"
	ActionAbout   = "about"
	ActionHistory = "history"
	ActionClear   = "clear"
)

// AuditEntry records a single command invocation. Write-only from the bot's view.
type AuditEntry struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Action    string    `json:"action"`
	Text      string    `json:"text"`
	Result    string    `json:"result,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the persistence boundary of the bot.
// GetUser returns (nil, nil) for unknown users.
// LastHistory returns at most limit entries for the user, newest first.
// Append operations set CreatedAt when it is zero.
// Implementations must be safe for concurrent use and return *apperr.StorageError on failure.
type Store interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, userID int64) (*User, error)
	LastHistory(ctx context.Context, userID int64, limit int) ([]HistoryEntry, error)
	AppendHistory(ctx context.Context, entry HistoryEntry) error
	AppendAudit(ctx context.Context, entry AuditEntry) error
	Close() error
}

// Reporter reads records in a time range [from, to), oldest first, for usage reports.
type Reporter interface {
	HistoryBetween(ctx context.Context, from, to time.Time) ([]HistoryEntry, error)
	AuditBetween(ctx context.Context, from, to time.Time) ([]AuditEntry, error)
}

func nowIfZero(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
