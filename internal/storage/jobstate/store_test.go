package jobstate

import (
	"testing"
	"time"
)

func TestMarkThenGet_RoundTrips(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	now := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)

	if err := store.Mark("alice@example.com", "daily-check-in", 10, now); err != nil {
		t.Fatalf("Mark: %v", err)
	}

	rec, err := store.Get("alice@example.com", now)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	unit, ok := rec["daily-check-in"]
	if !ok {
		t.Fatal("expected daily-check-in to be recorded")
	}
	if unit.Points != 10 {
		t.Fatalf("Points = %d, want 10", unit.Points)
	}
	if unit.Attempts != 0 {
		t.Fatalf("Attempts = %d, want 0 (Mark never bumps attempts)", unit.Attempts)
	}
}

func TestMark_PreservesPriorAttemptCount(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	now := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)

	if err := store.IncrementAttempt("alice@example.com", "poll-offer", now); err != nil {
		t.Fatalf("IncrementAttempt: %v", err)
	}
	if err := store.IncrementAttempt("alice@example.com", "poll-offer", now); err != nil {
		t.Fatalf("IncrementAttempt: %v", err)
	}
	if err := store.Mark("alice@example.com", "poll-offer", 5, now); err != nil {
		t.Fatalf("Mark: %v", err)
	}

	rec, err := store.Get("alice@example.com", now)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec["poll-offer"].Attempts != 2 {
		t.Fatalf("Attempts = %d, want 2 (carried over from the two prior IncrementAttempt calls)", rec["poll-offer"].Attempts)
	}
	if rec["poll-offer"].Points != 5 {
		t.Fatalf("Points = %d, want 5", rec["poll-offer"].Points)
	}
}

func TestMark_SecondCallIsNoOp(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	now := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)

	if err := store.Mark("alice@example.com", "daily-check-in", 10, now); err != nil {
		t.Fatalf("first Mark: %v", err)
	}
	if err := store.Mark("alice@example.com", "daily-check-in", 999, later); err != nil {
		t.Fatalf("second Mark: %v", err)
	}

	rec, err := store.Get("alice@example.com", now)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	unit := rec["daily-check-in"]
	if unit.Points != 10 {
		t.Fatalf("Points = %d, want 10 (first write wins)", unit.Points)
	}
	if !unit.CompletedAt.Equal(now) {
		t.Fatalf("CompletedAt = %v, want %v (first write wins)", unit.CompletedAt, now)
	}
}

func TestGet_UnknownAccountReturnsEmptyRecord(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rec, err := store.Get("nobody@example.com", time.Now())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(rec) != 0 {
		t.Fatalf("rec = %v, want empty", rec)
	}
}

func TestReset_ClearsOnlyGivenDay(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	day1 := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	if err := store.Mark("alice@example.com", "unit", 1, day1); err != nil {
		t.Fatalf("Mark day1: %v", err)
	}
	if err := store.Mark("alice@example.com", "unit", 1, day2); err != nil {
		t.Fatalf("Mark day2: %v", err)
	}
	if err := store.Reset("alice@example.com", day1); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	rec1, _ := store.Get("alice@example.com", day1)
	if len(rec1) != 0 {
		t.Fatalf("day1 record = %v, want empty after Reset", rec1)
	}
	rec2, _ := store.Get("alice@example.com", day2)
	if len(rec2) != 1 {
		t.Fatalf("day2 record = %v, want still present", rec2)
	}
}

func TestResetAll_IsIdempotentOnMissingFile(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := store.ResetAll("never-written@example.com"); err != nil {
		t.Fatalf("ResetAll on missing file: %v", err)
	}
}

func TestSlugFor_SanitizesEmail(t *testing.T) {
	got := slugFor("Alice.Smith+test@Example.com")
	want := "alice.smith_test_example.com"
	if got != want {
		t.Fatalf("slugFor = %q, want %q", got, want)
	}
}
