package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ohmynofan/rewards-orchestrator/internal/domain/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordThenRecent_RoundTrips(t *testing.T) {
	store := openTestStore(t)
	day := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	entry := model.AccountHistoryEntry{
		Timestamp:     day.Add(9 * time.Hour),
		Date:          day,
		DesktopPoints: 30,
		MobilePoints:  20,
		TotalPoints:   50,
		Completed:     5,
		Failed:        1,
		Errors:        []string{"search-failed", "checkin-timeout"},
		DurationMs:    1234,
		Success:       false,
	}
	if err := store.Record("Alice@Example.com", entry); err != nil {
		t.Fatalf("Record: %v", err)
	}

	out, err := store.Recent("alice@example.com", 90)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1 (account lookup is case-insensitive)", len(out))
	}
	got := out[0]
	if got.TotalPoints != 50 || got.DesktopPoints != 30 || got.MobilePoints != 20 {
		t.Fatalf("points = %+v, want 50/30/20", got)
	}
	if len(got.Errors) != 2 || got.Errors[0] != "search-failed" || got.Errors[1] != "checkin-timeout" {
		t.Fatalf("Errors = %v, want [search-failed checkin-timeout]", got.Errors)
	}
	if !got.Date.Equal(day) {
		t.Fatalf("Date = %v, want %v", got.Date, day)
	}
}

func TestRecord_SameDayUpserts(t *testing.T) {
	store := openTestStore(t)
	day := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	first := model.AccountHistoryEntry{Timestamp: day, Date: day, TotalPoints: 10}
	second := model.AccountHistoryEntry{Timestamp: day.Add(time.Hour), Date: day, TotalPoints: 40, Success: true}

	if err := store.Record("alice@example.com", first); err != nil {
		t.Fatalf("Record first: %v", err)
	}
	if err := store.Record("alice@example.com", second); err != nil {
		t.Fatalf("Record second: %v", err)
	}

	out, err := store.Recent("alice@example.com", 90)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1 (same run_date must upsert, not insert a second row)", len(out))
	}
	if out[0].TotalPoints != 40 || !out[0].Success {
		t.Fatalf("out[0] = %+v, want the second Record's values to have won", out[0])
	}
}

func TestRecent_OrdersNewestFirstAndRespectsLimit(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		day := base.AddDate(0, 0, i)
		if err := store.Record("alice@example.com", model.AccountHistoryEntry{
			Timestamp: day, Date: day, TotalPoints: i,
		}); err != nil {
			t.Fatalf("Record day %d: %v", i, err)
		}
	}

	out, err := store.Recent("alice@example.com", 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2 (limit)", len(out))
	}
	if out[0].TotalPoints != 4 || out[1].TotalPoints != 3 {
		t.Fatalf("order = [%d %d], want [4 3] (newest first)", out[0].TotalPoints, out[1].TotalPoints)
	}
}

func TestPrune_RemovesEntriesOlderThanRetention(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	old := now.AddDate(0, 0, -(model.HistoryRetentionDays + 1))
	recent := now.AddDate(0, 0, -1)

	if err := store.Record("alice@example.com", model.AccountHistoryEntry{Timestamp: old, Date: old, TotalPoints: 1}); err != nil {
		t.Fatalf("Record old: %v", err)
	}
	if err := store.Record("alice@example.com", model.AccountHistoryEntry{Timestamp: recent, Date: recent, TotalPoints: 2}); err != nil {
		t.Fatalf("Record recent: %v", err)
	}

	if err := store.Prune(now); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	out, err := store.Recent("alice@example.com", 90)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(out) != 1 || out[0].TotalPoints != 2 {
		t.Fatalf("out = %+v, want only the recent entry to survive", out)
	}
}
