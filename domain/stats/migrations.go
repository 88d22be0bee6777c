package stats

import (
	"database/sql"
	"fmt"
	"time"
)

// migration is one schema step.
type migration struct {
	Version     int
	Description string
	Up          func(*sql.Tx) error
}

var migrations = []migration{
	{Version: 1, Description: "Create schema_version table", Up: migration001Up},
	{Version: 2, Description: "Create matches table", Up: migration002Up},
	{Version: 3, Description: "Create events table", Up: migration003Up},
	{Version: 4, Description: "Index matches by start time", Up: migration004Up},
}

// Version returns the applied schema version.
func (s *Store) Version() (int, error) {
	var exists bool
	err := s.conn.QueryRow(`
		SELECT COUNT(*) > 0
		FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&exists)
	if err != nil || !exists {
		return 0, err
	}
	var version int
	err = s.conn.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	return version, err
}

func (s *Store) migrate() error {
	current, err := s.Version()
	if err != nil {
		return fmt.Errorf("stats: read schema version: %w", err)
	}
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		err := s.execTx(func(tx *sql.Tx) error {
			if err := m.Up(tx); err != nil {
				return fmt.Errorf("stats: migration %d failed: %w", m.Version, err)
			}
			_, err := tx.Exec(`
				INSERT INTO schema_version (version, description, applied_at)
				VALUES (?, ?, ?)
			`, m.Version, m.Description, time.Now())
			return err
		})
		if err != nil {
			return err
		}
		if s.logger != nil {
			s.logger.Info("stats.migration", "version", m.Version, "description", m.Description)
		}
	}
	return nil
}

func migration001Up(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version INTEGER NOT NULL UNIQUE,
			description TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)
	`)
	return err
}

func migration002Up(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS matches (
			id TEXT PRIMARY KEY,
			agent TEXT NOT NULL,
			start_ts DATETIME NOT NULL,
			end_ts DATETIME,
			predictions INTEGER NOT NULL DEFAULT 0,
			total_lines INTEGER NOT NULL DEFAULT 0,
			stuck_count INTEGER NOT NULL DEFAULT 0
		)
	`)
	return err
}

func migration003Up(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			match_id TEXT NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
			frame INTEGER NOT NULL,
			ts DATETIME NOT NULL,
			piece TEXT NOT NULL,
			rotation INTEGER NOT NULL,
			col INTEGER NOT NULL,
			lines_cleared INTEGER NOT NULL,
			score REAL NOT NULL,
			latency_ms REAL NOT NULL,
			stuck INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_events_match ON events(match_id);
	`)
	return err
}

func migration004Up(tx *sql.Tx) error {
	_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_matches_start ON matches(start_ts)`)
	return err
}
