package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/asymptotic-code/telegram-bot/internal/apperr"
)

const schema = `
CREATE TABLE IF NOT EXISTS visitor (
	tid INTEGER PRIMARY KEY,
	username TEXT NOT NULL DEFAULT '',
	is_group INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS visitor_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	tid INTEGER NOT NULL,
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_visitor_history_tid_created ON visitor_history(tid, created_at);

CREATE TABLE IF NOT EXISTS general_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	tid INTEGER NOT NULL,
	action TEXT NOT NULL,
	text TEXT NOT NULL DEFAULT '',
	result TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_general_log_created ON general_log(created_at);
`

// SQLiteStore keeps users, history and the audit log in one SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO visitor (tid, username, is_group, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Username, user.IsGroup, nowIfZero(user.CreatedAt).UnixNano())
	return apperr.Storage("create user", err)
}

func (s *SQLiteStore) GetUser(ctx context.Context, userID int64) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT tid, username, is_group, created_at FROM visitor WHERE tid = ?`, userID)
	var u User
	var created int64
	err := row.Scan(&u.ID, &u.Username, &u.IsGroup, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Storage("get user", err)
	}
	u.CreatedAt = time.Unix(0, created).UTC()
	return &u, nil
}

func (s *SQLiteStore) LastHistory(ctx context.Context, userID int64, limit int) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tid, question, answer, created_at
		FROM visitor_history
		WHERE tid = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, apperr.Storage("last history", err)
	}
	defer rows.Close()
	return scanHistory(rows)
}

func (s *SQLiteStore) AppendHistory(ctx context.Context, entry HistoryEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO visitor_history (tid, question, answer, created_at) VALUES (?, ?, ?, ?)`,
		entry.UserID, entry.Question, entry.Answer, nowIfZero(entry.CreatedAt).UnixNano())
	return apperr.Storage("append history", err)
}

func (s *SQLiteStore) AppendAudit(ctx context.Context, entry AuditEntry) error {
	var result sql.NullString
	if entry.Result != "" {
		result = sql.NullString{String: entry.Result, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO general_log (tid, action, text, result, created_at) VALUES (?, ?, ?, ?, ?)`,
		entry.UserID, entry.Action, entry.Text, result, nowIfZero(entry.CreatedAt).UnixNano())
	return apperr.Storage("append audit", err)
}

func (s *SQLiteStore) HistoryBetween(ctx context.Context, from, to time.Time) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tid, question, answer, created_at
		FROM visitor_history
		WHERE created_at >= ? AND created_at < ?
		ORDER BY created_at, id`, from.UnixNano(), to.UnixNano())
	if err != nil {
		return nil, apperr.Storage("history between", err)
	}
	defer rows.Close()
	return scanHistory(rows)
}

func (s *SQLiteStore) AuditBetween(ctx context.Context, from, to time.Time) ([]AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tid, action, text, result, created_at
		FROM general_log
		WHERE created_at >= ? AND created_at < ?
		ORDER BY created_at, id`, from.UnixNano(), to.UnixNano())
	if err != nil {
		return nil, apperr.Storage("audit between", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var result sql.NullString
		var created int64
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Text, &result, &created); err != nil {
			return nil, apperr.Storage("scan audit", err)
		}
		e.Result = result.String
		e.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, e)
	}
	return out, apperr.Storage("iterate audit", rows.Err())
}

func scanHistory(rows *sql.Rows) ([]HistoryEntry, error) {
	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var created int64
		if err := rows.Scan(&e.ID, &e.UserID, &e.Question, &e.Answer, &created); err != nil {
			return nil, apperr.Storage("scan history", err)
		}
		e.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, e)
	}
	return out, apperr.Storage("iterate history", rows.Err())
}
