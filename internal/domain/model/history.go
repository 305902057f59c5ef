package model

import "time"

// AccountHistoryEntry is one per-run summary persisted by the Account-History
// Store (C4), retained on a rolling 90-day window.
type AccountHistoryEntry struct {
	Timestamp     time.Time `json:"timestamp"`
	Date          time.Time `json:"date"`
	DesktopPoints int       `json:"desktopPoints"`
	MobilePoints  int       `json:"mobilePoints"`
	TotalPoints   int       `json:"totalPoints"`
	Completed     int       `json:"completed"`
	Failed        int       `json:"failed"`
	Errors        []string  `json:"errors,omitempty"`
	DurationMs    int64     `json:"durationMs"`
	Success       bool      `json:"success"`
}

// HistoryRetentionDays bounds the rolling window kept by the store.
const HistoryRetentionDays = 90
