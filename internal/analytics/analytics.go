package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/asymptotic-code/telegram-bot/internal/storage"
)

// DailyStats is the usage of the bot over one UTC day.
type DailyStats struct {
	Date             string              `json:"date"`
	AnsweredMessages int                 `json:"answered_messages"`
	UniqueUsers      int                 `json:"unique_users"`
	CommandsTotal    int                 `json:"commands_total"`
	CommandsByAction map[string]int      `json:"commands_by_action"`
	UserStats        map[int64]UserStats `json:"user_stats"`
}

type UserStats struct {
	UserID   int64 `json:"user_id"`
	Answered int   `json:"answered"`
	Commands int   `json:"commands"`
}

// dayBounds returns [start, end) of the day containing t, in t's location.
func dayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.Add(24 * time.Hour)
}

// Analyze counts answered questions and commands that fall on day.
// Users are unique across both answers and commands.
func Analyze(answered []storage.HistoryEntry, audit []storage.AuditEntry, day time.Time) *DailyStats {
	start, end := dayBounds(day)
	inDay := func(ts time.Time) bool { return !ts.Before(start) && ts.Before(end) }

	stats := &DailyStats{
		Date:             start.Format("2006-01-02"),
		CommandsByAction: make(map[string]int),
		UserStats:        make(map[int64]UserStats),
	}

	for _, h := range answered {
		if !inDay(h.CreatedAt) {
			continue
		}
		stats.AnsweredMessages++
		us := stats.UserStats[h.UserID]
		us.UserID = h.UserID
		us.Answered++
		stats.UserStats[h.UserID] = us
	}
	for _, a := range audit {
		if !inDay(a.CreatedAt) {
			continue
		}
		stats.CommandsTotal++
		stats.CommandsByAction[a.Action]++
		us := stats.UserStats[a.UserID]
		us.UserID = a.UserID
		us.Commands++
		stats.UserStats[a.UserID] = us
	}

	stats.UniqueUsers = len(stats.UserStats)
	return stats
}

// Collect reads the day's records from r and analyzes them.
func Collect(ctx context.Context, r storage.Reporter, day time.Time) (*DailyStats, error) {
	start, end := dayBounds(day)
	answered, err := r.HistoryBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("history for report: %w", err)
	}
	audit, err := r.AuditBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("audit for report: %w", err)
	}
	return Analyze(answered, audit, day), nil
}

// Summary renders the stats as a plain text message for the admin.
func (ds *DailyStats) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Bot usage for %s\n\n", ds.Date)
	fmt.Fprintf(&b, "Answered messages: %d\n", ds.AnsweredMessages)
	fmt.Fprintf(&b, "Unique users: %d\n", ds.UniqueUsers)
	fmt.Fprintf(&b, "Commands: %d\n", ds.CommandsTotal)

	if len(ds.CommandsByAction) > 0 {
		actions := make([]string, 0, len(ds.CommandsByAction))
		for a := range ds.CommandsByAction {
			actions = append(actions, a)
		}
		sort.Strings(actions)
		b.WriteString("\nCommands by type:\n")
		for _, a := range actions {
			fmt.Fprintf(&b, "- /%s: %d\n", a, ds.CommandsByAction[a])
		}
	}

	if len(ds.UserStats) > 0 {
		ids := make([]int64, 0, len(ds.UserStats))
		for id := range ds.UserStats {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		b.WriteString("\nUsers:\n")
		for _, id := range ids {
			us := ds.UserStats[id]
			fmt.Fprintf(&b, "- %d: %d answered, %d commands\n", id, us.Answered, us.Commands)
		}
	}
	return b.String()
}

func (ds *DailyStats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
