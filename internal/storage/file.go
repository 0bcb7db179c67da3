package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/asymptotic-code/telegram-bot/internal/apperr"
)

// FileStore keeps every table as an append-only JSON Lines file in one directory.
// Reads scan the whole file, which is fine for a single small bot.
type FileStore struct {
	mu          sync.Mutex
	usersPath   string
	historyPath string
	auditPath   string
	nextHistory int64
	nextAudit   int64
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure data dir: %w", err)
	}
	s := &FileStore{
		usersPath:   filepath.Join(dir, "visitor.jsonl"),
		historyPath: filepath.Join(dir, "visitor_history.jsonl"),
		auditPath:   filepath.Join(dir, "general_log.jsonl"),
	}
	for _, p := range []string{s.usersPath, s.historyPath, s.auditPath} {
		f, err := os.OpenFile(p, os.O_CREATE, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to init %s: %w", p, err)
		}
		_ = f.Close()
	}
	history, err := readLines[HistoryEntry](s.historyPath)
	if err != nil {
		return nil, err
	}
	audit, err := readLines[AuditEntry](s.auditPath)
	if err != nil {
		return nil, err
	}
	for _, e := range history {
		s.nextHistory = max(s.nextHistory, e.ID)
	}
	for _, e := range audit {
		s.nextAudit = max(s.nextAudit, e.ID)
	}
	return s, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) CreateUser(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := readLines[User](s.usersPath)
	if err != nil {
		return apperr.Storage("create user", err)
	}
	for _, u := range users {
		if u.ID == user.ID {
			return apperr.Storage("create user", fmt.Errorf("user %d already exists", user.ID))
		}
	}
	user.CreatedAt = nowIfZero(user.CreatedAt)
	return apperr.Storage("create user", appendLine(s.usersPath, user))
}

func (s *FileStore) GetUser(_ context.Context, userID int64) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := readLines[User](s.usersPath)
	if err != nil {
		return nil, apperr.Storage("get user", err)
	}
	for _, u := range users {
		if u.ID == userID {
			return &u, nil
		}
	}
	return nil, nil
}

func (s *FileStore) LastHistory(_ context.Context, userID int64, limit int) ([]HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := readLines[HistoryEntry](s.historyPath)
	if err != nil {
		return nil, apperr.Storage("last history", err)
	}
	var out []HistoryEntry
	for _, e := range all {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID) })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *FileStore) AppendHistory(_ context.Context, entry HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextHistory++
	entry.ID = s.nextHistory
	entry.CreatedAt = nowIfZero(entry.CreatedAt)
	return apperr.Storage("append history", appendLine(s.historyPath, entry))
}

func (s *FileStore) AppendAudit(_ context.Context, entry AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextAudit++
	entry.ID = s.nextAudit
	entry.CreatedAt = nowIfZero(entry.CreatedAt)
	return apperr.Storage("append audit", appendLine(s.auditPath, entry))
}

func (s *FileStore) HistoryBetween(_ context.Context, from, to time.Time) ([]HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := readLines[HistoryEntry](s.historyPath)
	if err != nil {
		return nil, apperr.Storage("history between", err)
	}
	var out []HistoryEntry
	for _, e := range all {
		if inRange(e.CreatedAt, from, to) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return newer(out[j].CreatedAt, out[j].ID, out[i].CreatedAt, out[i].ID) })
	return out, nil
}

func (s *FileStore) AuditBetween(_ context.Context, from, to time.Time) ([]AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := readLines[AuditEntry](s.auditPath)
	if err != nil {
		return nil, apperr.Storage("audit between", err)
	}
	var out []AuditEntry
	for _, e := range all {
		if inRange(e.CreatedAt, from, to) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return newer(out[j].CreatedAt, out[j].ID, out[i].CreatedAt, out[i].ID) })
	return out, nil
}

func newer(at time.Time, id int64, bt time.Time, bid int64) bool {
	if !at.Equal(bt) {
		return at.After(bt)
	}
	return id > bid
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func appendLine(path string, v any) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open append: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(v); err != nil {
		return fmt.Errorf("encode append: %w", err)
	}
	return nil
}

// readLines decodes a JSON Lines file, skipping blank and malformed lines.
func readLines[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open read: %w", err)
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	buf := make([]byte, 0, 1024*1024)
	s.Buffer(buf, 10*1024*1024)
	var out []T
	for s.Scan() {
		line := s.Bytes()
		if len(line) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(line, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return out, nil
}
