package storage

import (
	"database/sql"
	"fmt"
	"sync"

	"calendar-app/internal/event"
	"calendar-app/internal/ledger"
	appLog "calendar-app/internal/log"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStorage struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	s := &SQLiteStorage{db: db}

	// Create tables if they don't exist
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// createTables creates the necessary tables
func (s *SQLiteStorage) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS events (
			position INTEGER PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			date TEXT NOT NULL, -- YYYY-MM-DD
			end_date TEXT NOT NULL,
			start_time TEXT, -- HH:MM, nullable
			end_time TEXT,
			description TEXT,
			remind_mode TEXT NOT NULL DEFAULT 'off',
			color TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS reminder_ledger (
			key TEXT PRIMARY KEY, -- {date}_{eventId}_{threshold}
			fired BOOLEAN NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS popup_seen (
			date_key TEXT PRIMARY KEY,
			seen BOOLEAN NOT NULL DEFAULT 1
		)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query %q: %w", query, err)
		}
	}

	return nil
}

// Event operations
func (s *SQLiteStorage) LoadEvents() ([]event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT id, title, date, end_date, start_time, end_time,
		description, remind_mode, color FROM events ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []event.Event{}
	for rows.Next() {
		var e event.Event
		var start, end, description, color sql.NullString
		var mode string

		if err := rows.Scan(&e.ID, &e.Title, &e.Date, &e.EndDate, &start, &end,
			&description, &mode, &color); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		e.Start = start.String
		e.End = end.String
		e.Description = description.String
		e.Color = color.String

		// Stored modes were validated on save; anything else reads as off.
		if e.RemindMode, err = event.ParseRemindMode(mode); err != nil {
			appLog.Error("stored remind mode unreadable, using off", err, "id", e.ID)
		}

		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	return events, nil
}

func (s *SQLiteStorage) SaveEvents(events []event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM events"); err != nil {
		return fmt.Errorf("failed to clear events: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO events
		(position, id, title, date, end_date, start_time, end_time, description, remind_mode, color)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range events {
		_, err := stmt.Exec(i, e.ID, e.Title, e.Date, e.LastDate(),
			nullString(e.Start), nullString(e.End), e.Description, e.RemindMode.String(), e.Color)
		if err != nil {
			return fmt.Errorf("failed to insert event %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit events: %w", err)
	}
	return nil
}

// Ledger operations
func (s *SQLiteStorage) LoadLedger() (ledger.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := ledger.New()
	err := s.loadFlags("SELECT key, fired FROM reminder_ledger", func(k string, v bool) { l[k] = v })
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	return l, nil
}

func (s *SQLiteStorage) SaveLedger(l ledger.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.replaceFlags("reminder_ledger", "key", "fired", l); err != nil {
		return fmt.Errorf("failed to save ledger: %w", err)
	}
	return nil
}

// Popup-seen operations
func (s *SQLiteStorage) LoadPopupSeen() (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	err := s.loadFlags("SELECT date_key, seen FROM popup_seen", func(k string, v bool) { seen[k] = v })
	if err != nil {
		return nil, fmt.Errorf("failed to load popup-seen: %w", err)
	}
	return seen, nil
}

func (s *SQLiteStorage) SavePopupSeen(seen map[string]bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.replaceFlags("popup_seen", "date_key", "seen", seen); err != nil {
		return fmt.Errorf("failed to save popup-seen: %w", err)
	}
	return nil
}

// Helper methods
func (s *SQLiteStorage) loadFlags(query string, put func(string, bool)) error {
	rows, err := s.db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var k string
		var v bool
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		put(k, v)
	}
	return rows.Err()
}

// replaceFlags rewrites a key/flag table wholesale in one transaction.
func (s *SQLiteStorage) replaceFlags(table, keyCol, valCol string, flags map[string]bool) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM " + table); err != nil {
		return err
	}
	for k, v := range flags {
		q := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?)", table, keyCol, valCol)
		if _, err := tx.Exec(q, k, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
