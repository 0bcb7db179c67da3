package analytics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/asymptotic-code/telegram-bot/internal/storage"
)

var testDate = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func TestAnalyze(t *testing.T) {
	answered := []storage.HistoryEntry{
		{UserID: 123, Question: "q1", CreatedAt: testDate.Add(2 * time.Hour)},
		{UserID: 123, Question: "q2", CreatedAt: testDate.Add(4 * time.Hour)},
		{UserID: 456, Question: "q3", CreatedAt: testDate.Add(6 * time.Hour)},
		// next day, ignored
		{UserID: 789, Question: "q4", CreatedAt: testDate.AddDate(0, 0, 1)},
	}
	audit := []storage.AuditEntry{
		{UserID: 123, Action: storage.ActionStart, CreatedAt: testDate.Add(time.Hour)},
		{UserID: 999, Action: storage.ActionHelp, CreatedAt: testDate.Add(3 * time.Hour)},
		{UserID: 999, Action: storage.ActionHelp, CreatedAt: testDate.Add(5 * time.Hour)},
		// previous day, ignored
		{UserID: 123, Action: storage.ActionClear, CreatedAt: testDate.Add(-time.Minute)},
	}

	stats := Analyze(answered, audit, testDate.Add(12*time.Hour))

	if stats.Date != "2024-01-15" {
		t.Errorf("date: got %s", stats.Date)
	}
	if stats.AnsweredMessages != 3 {
		t.Errorf("answered: got %d want 3", stats.AnsweredMessages)
	}
	if stats.UniqueUsers != 3 {
		t.Errorf("unique users: got %d want 3", stats.UniqueUsers)
	}
	if stats.CommandsTotal != 3 || stats.CommandsByAction[storage.ActionHelp] != 2 || stats.CommandsByAction[storage.ActionClear] != 0 {
		t.Errorf("unexpected commands: total=%d by=%v", stats.CommandsTotal, stats.CommandsByAction)
	}
	if us := stats.UserStats[123]; us.Answered != 2 || us.Commands != 1 {
		t.Errorf("user 123: %+v", us)
	}
}

func TestAnalyze_Empty(t *testing.T) {
	stats := Analyze(nil, nil, testDate)
	if stats.AnsweredMessages != 0 || stats.UniqueUsers != 0 || len(stats.UserStats) != 0 {
		t.Errorf("expected empty stats, got %+v", stats)
	}
}

type fakeReporter struct {
	from, to time.Time
	err      error
}

func (f *fakeReporter) HistoryBetween(_ context.Context, from, to time.Time) ([]storage.HistoryEntry, error) {
	f.from, f.to = from, to
	return []storage.HistoryEntry{{UserID: 1, CreatedAt: from.Add(time.Hour)}}, f.err
}

func (f *fakeReporter) AuditBetween(context.Context, time.Time, time.Time) ([]storage.AuditEntry, error) {
	return nil, nil
}

func TestCollect(t *testing.T) {
	r := &fakeReporter{}
	stats, err := Collect(context.Background(), r, testDate.Add(20*time.Hour))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if !r.from.Equal(testDate) || !r.to.Equal(testDate.Add(24*time.Hour)) {
		t.Errorf("unexpected range [%s, %s)", r.from, r.to)
	}
	if stats.AnsweredMessages != 1 {
		t.Errorf("answered: %d", stats.AnsweredMessages)
	}

	r.err = errors.New("locked")
	if _, err := Collect(context.Background(), r, testDate); err == nil {
		t.Errorf("expected error")
	}
}

func TestSummary(t *testing.T) {
	stats := &DailyStats{
		Date:             "2024-01-15",
		AnsweredMessages: 5,
		UniqueUsers:      2,
		CommandsTotal:    3,
		CommandsByAction: map[string]int{"start": 1, "history": 2},
		UserStats: map[int64]UserStats{
			123: {UserID: 123, Answered: 3, Commands: 1},
			456: {UserID: 456, Answered: 2, Commands: 2},
		},
	}

	summary := stats.Summary()
	for _, expected := range []string{
		"2024-01-15",
		"Answered messages: 5",
		"Unique users: 2",
		"- /history: 2",
		"- 123: 3 answered, 1 commands",
	} {
		if !strings.Contains(summary, expected) {
			t.Errorf("expected summary to contain %q, got: %s", expected, summary)
		}
	}
	if strings.Index(summary, "/history") > strings.Index(summary, "/start") {
		t.Errorf("commands should be sorted: %s", summary)
	}
}

func TestToJSON(t *testing.T) {
	stats := Analyze(nil, []storage.AuditEntry{{UserID: 1, Action: "about", CreatedAt: testDate}}, testDate)
	jsonStr, err := stats.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	if !strings.Contains(jsonStr, `"about": 1`) {
		t.Errorf("expected JSON to contain action count, got: %s", jsonStr)
	}
}
