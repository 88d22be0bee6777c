// Package stats persists assist sessions ("matches") and the placements
// suggested during them in a SQLite database.
package stats

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrUnknownMatch is returned when a match id is not in the store.
var ErrUnknownMatch = errors.New("stats: unknown match")

// Store wraps the SQLite connection.
type Store struct {
	conn   *sql.DB
	path   string
	logger *slog.Logger
}

// Match summarises one assist session.
type Match struct {
	ID          string     `json:"id"`
	Agent       string     `json:"agent"`
	StartedAt   time.Time  `json:"start_ts"`
	EndedAt     *time.Time `json:"end_ts"`
	Predictions int        `json:"predictions"`
	TotalLines  int        `json:"total_lines"`
	StuckCount  int        `json:"stuck_count"`
}

// Event is one published prediction.
type Event struct {
	Frame        uint64        `json:"frame"`
	At           time.Time     `json:"ts"`
	Piece        string        `json:"piece"`
	Rotation     int           `json:"rotation"`
	Column       int           `json:"col"`
	LinesCleared int           `json:"lines_cleared"`
	Score        float64       `json:"score"`
	Latency      time.Duration `json:"latency_ns"`
	Stuck        bool          `json:"stuck"`
}

// GlobalStats aggregates every recorded match.
type GlobalStats struct {
	TotalMatches    int            `json:"total_matches"`
	TotalEvents     int            `json:"total_events"`
	TotalLines      int            `json:"total_lines"`
	StuckCount      int            `json:"stuck_count"`
	MostCommonPiece string         `json:"most_common_piece"`
	PieceFrequency  map[string]int `json:"piece_frequency"`
}

// MatchExport is a match with all of its events.
type MatchExport struct {
	Match  *Match  `json:"match"`
	Events []Event `json:"events"`
}

// DefaultMatchLimit caps Matches when no positive limit is given.
const DefaultMatchLimit = 50

// Open opens or creates the database at path and applies pending migrations.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("stats: create directory: %w", err)
		}
	}
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("stats: open: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("stats: ping: %w", err)
	}
	// sqlite allows one writer at a time
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	s := &Store{conn: conn, path: path, logger: logger}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// execTx runs fn within a transaction.
func (s *Store) execTx(fn func(*sql.Tx) error) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// StartMatch records a new match for agent and returns its id.
func (s *Store) StartMatch(agent string) (string, error) {
	id := uuid.NewString()
	_, err := s.conn.Exec(
		`INSERT INTO matches (id, agent, start_ts) VALUES (?, ?, ?)`,
		id, agent, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("stats: start match: %w", err)
	}
	return id, nil
}

// RecordEvent appends ev to the match and updates its running totals.
func (s *Store) RecordEvent(matchID string, ev Event) error {
	stuck := 0
	if ev.Stuck {
		stuck = 1
	}
	return s.execTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE matches
			SET predictions = predictions + 1,
				total_lines = total_lines + ?,
				stuck_count = stuck_count + ?
			WHERE id = ? AND end_ts IS NULL
		`, ev.LinesCleared, stuck, matchID)
		if err != nil {
			return fmt.Errorf("stats: update match: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrUnknownMatch, matchID)
		}
		_, err = tx.Exec(`
			INSERT INTO events (match_id, frame, ts, piece, rotation, col, lines_cleared, score, latency_ms, stuck)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, matchID, ev.Frame, ev.At.UTC(), ev.Piece, ev.Rotation, ev.Column, ev.LinesCleared, ev.Score,
			float64(ev.Latency)/float64(time.Millisecond), stuck)
		if err != nil {
			return fmt.Errorf("stats: insert event: %w", err)
		}
		return nil
	})
}

// EndMatch stamps the end time of the match.
func (s *Store) EndMatch(matchID string) error {
	res, err := s.conn.Exec(`UPDATE matches SET end_ts = ? WHERE id = ? AND end_ts IS NULL`, time.Now().UTC(), matchID)
	if err != nil {
		return fmt.Errorf("stats: end match: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownMatch, matchID)
	}
	return nil
}

const matchColumns = `id, agent, start_ts, end_ts, predictions, total_lines, stuck_count`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (*Match, error) {
	m := &Match{}
	var ended sql.NullTime
	if err := row.Scan(&m.ID, &m.Agent, &m.StartedAt, &ended, &m.Predictions, &m.TotalLines, &m.StuckCount); err != nil {
		return nil, err
	}
	if ended.Valid {
		t := ended.Time
		m.EndedAt = &t
	}
	return m, nil
}

// GetMatch loads a match summary.
func (s *Store) GetMatch(matchID string) (*Match, error) {
	m, err := scanMatch(s.conn.QueryRow(`SELECT `+matchColumns+` FROM matches WHERE id = ?`, matchID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMatch, matchID)
	}
	if err != nil {
		return nil, fmt.Errorf("stats: get match: %w", err)
	}
	return m, nil
}

// Matches returns up to limit matches, newest first. A non-positive limit
// means DefaultMatchLimit.
func (s *Store) Matches(limit int) ([]Match, error) {
	if limit <= 0 {
		limit = DefaultMatchLimit
	}
	rows, err := s.conn.Query(`
		SELECT `+matchColumns+`
		FROM matches ORDER BY start_ts DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("stats: query matches: %w", err)
	}
	defer rows.Close()

	out := []Match{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("stats: scan match: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// GlobalStats aggregates all matches and counts suggested pieces. Ties for
// the most common piece go to the alphabetically first one.
func (s *Store) GlobalStats() (GlobalStats, error) {
	gs := GlobalStats{PieceFrequency: map[string]int{}}
	err := s.conn.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(predictions), 0), COALESCE(SUM(total_lines), 0), COALESCE(SUM(stuck_count), 0)
		FROM matches
	`).Scan(&gs.TotalMatches, &gs.TotalEvents, &gs.TotalLines, &gs.StuckCount)
	if err != nil {
		return gs, fmt.Errorf("stats: aggregate matches: %w", err)
	}

	rows, err := s.conn.Query(`
		SELECT piece, COUNT(*) AS n FROM events
		GROUP BY piece ORDER BY n DESC, piece
	`)
	if err != nil {
		return gs, fmt.Errorf("stats: piece frequency: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var piece string
		var n int
		if err := rows.Scan(&piece, &n); err != nil {
			return gs, fmt.Errorf("stats: scan piece frequency: %w", err)
		}
		if gs.MostCommonPiece == "" {
			gs.MostCommonPiece = piece
		}
		gs.PieceFrequency[piece] = n
	}
	return gs, rows.Err()
}

// Export returns a match together with its events.
func (s *Store) Export(matchID string) (MatchExport, error) {
	m, err := s.GetMatch(matchID)
	if err != nil {
		return MatchExport{}, err
	}
	events, err := s.Events(matchID)
	if err != nil {
		return MatchExport{}, err
	}
	if events == nil {
		events = []Event{}
	}
	return MatchExport{Match: m, Events: events}, nil
}

// Events returns the events of a match in insertion order.
func (s *Store) Events(matchID string) ([]Event, error) {
	rows, err := s.conn.Query(`
		SELECT frame, ts, piece, rotation, col, lines_cleared, score, latency_ms, stuck
		FROM events WHERE match_id = ? ORDER BY id
	`, matchID)
	if err != nil {
		return nil, fmt.Errorf("stats: query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		var latencyMS float64
		if err := rows.Scan(&ev.Frame, &ev.At, &ev.Piece, &ev.Rotation, &ev.Column, &ev.LinesCleared, &ev.Score, &latencyMS, &ev.Stuck); err != nil {
			return nil, fmt.Errorf("stats: scan event: %w", err)
		}
		ev.Latency = time.Duration(latencyMS * float64(time.Millisecond))
		out = append(out, ev)
	}
	return out, rows.Err()
}
