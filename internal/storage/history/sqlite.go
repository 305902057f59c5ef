// Package history is the Account-History store: a 90-day rolling window of
// per-run outcomes backed by modernc.org/sqlite, with an ensureColumns
// migration step and an INSERT ... ON CONFLICT DO UPDATE upsert.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ohmynofan/rewards-orchestrator/internal/domain/model"
)

const dateLayout = "2006-01-02"

// Store is the sqlite-backed Account-History store of the dashboard gateway.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database at dbPath.
func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("history: database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("history: create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("history: open sqlite db: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	createStmt := `CREATE TABLE IF NOT EXISTS account_history (
        account TEXT NOT NULL,
        run_date TEXT NOT NULL,
        timestamp TEXT NOT NULL,
        desktop_points INTEGER NOT NULL DEFAULT 0,
        mobile_points INTEGER NOT NULL DEFAULT 0,
        total_points INTEGER NOT NULL DEFAULT 0,
        completed INTEGER NOT NULL DEFAULT 0,
        failed INTEGER NOT NULL DEFAULT 0,
        duration_ms INTEGER NOT NULL DEFAULT 0,
        success INTEGER NOT NULL DEFAULT 0,
        errors TEXT,
        PRIMARY KEY(account, run_date)
    )`
	if _, err := s.db.Exec(createStmt); err != nil {
		return err
	}
	return s.ensureColumns()
}

func (s *Store) ensureColumns() error {
	columns := map[string]bool{}
	rows, err := s.db.Query(`PRAGMA table_info(account_history)`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return err
		}
		columns[strings.ToLower(name)] = true
	}

	var alterStatements []string
	addColumn := func(name, definition string) {
		if !columns[name] {
			alterStatements = append(alterStatements, definition)
		}
	}

	addColumn("duration_ms", `ALTER TABLE account_history ADD COLUMN duration_ms INTEGER NOT NULL DEFAULT 0`)
	addColumn("success", `ALTER TABLE account_history ADD COLUMN success INTEGER NOT NULL DEFAULT 0`)
	addColumn("errors", `ALTER TABLE account_history ADD COLUMN errors TEXT`)

	for _, stmt := range alterStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record upserts one day's outcome for an account.
func (s *Store) Record(account string, entry model.AccountHistoryEntry) error {
	acc := normalizeAccount(account)
	dateStr := entry.Date.UTC().Format(dateLayout)
	errJoined := strings.Join(entry.Errors, "; ")
	successVal := 0
	if entry.Success {
		successVal = 1
	}

	_, err := s.db.Exec(`INSERT INTO account_history(
            account, run_date, timestamp, desktop_points, mobile_points, total_points,
            completed, failed, duration_ms, success, errors
        ) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(account, run_date) DO UPDATE SET
            timestamp = excluded.timestamp,
            desktop_points = excluded.desktop_points,
            mobile_points = excluded.mobile_points,
            total_points = excluded.total_points,
            completed = excluded.completed,
            failed = excluded.failed,
            duration_ms = excluded.duration_ms,
            success = excluded.success,
            errors = excluded.errors`,
		acc, dateStr, entry.Timestamp.UTC().Format(time.RFC3339),
		entry.DesktopPoints, entry.MobilePoints, entry.TotalPoints,
		entry.Completed, entry.Failed, entry.DurationMs, successVal, errJoined)
	return err
}

// Recent returns the most recent n days of history for an account, newest
// first.
func (s *Store) Recent(account string, n int) ([]model.AccountHistoryEntry, error) {
	acc := normalizeAccount(account)
	rows, err := s.db.Query(`SELECT run_date, timestamp, desktop_points, mobile_points, total_points,
            completed, failed, duration_ms, success, errors
        FROM account_history WHERE account = ? ORDER BY run_date DESC LIMIT ?`, acc, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AccountHistoryEntry
	for rows.Next() {
		var dateStr, tsStr string
		var e model.AccountHistoryEntry
		var successVal int
		var errJoined sql.NullString
		if err := rows.Scan(&dateStr, &tsStr, &e.DesktopPoints, &e.MobilePoints, &e.TotalPoints,
			&e.Completed, &e.Failed, &e.DurationMs, &successVal, &errJoined); err != nil {
			return nil, err
		}
		e.Date, _ = time.Parse(dateLayout, dateStr)
		e.Timestamp, _ = time.Parse(time.RFC3339, tsStr)
		e.Success = successVal == 1
		if errJoined.Valid && errJoined.String != "" {
			e.Errors = strings.Split(errJoined.String, "; ")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes entries older than model.HistoryRetentionDays relative to
// now, keeping the rolling 90-day window bounded.
func (s *Store) Prune(now time.Time) error {
	cutoff := now.AddDate(0, 0, -model.HistoryRetentionDays).UTC().Format(dateLayout)
	_, err := s.db.Exec(`DELETE FROM account_history WHERE run_date < ?`, cutoff)
	return err
}

func normalizeAccount(account string) string {
	return strings.ToLower(strings.TrimSpace(account))
}
