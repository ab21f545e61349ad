package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/starford/vaultfix/internal/models"
)

// Run is one row of the runs table.
type Run struct {
	ID         int64
	Step       string
	Vault      string
	StartedAt  time.Time
	FinishedAt *time.Time
	Stats      map[string]int
	Events     int
}

// BeginRun inserts a run row and returns its id.
func (db *DB) BeginRun(step, vault string, at time.Time) (int64, error) {
	res, err := db.conn.Exec(`INSERT INTO runs (step, vault, started_at) VALUES (?, ?, ?)`, step, vault, at.UTC())
	if err != nil {
		return 0, fmt.Errorf("journal: begin run: %w", err)
	}
	return res.LastInsertId()
}

// AddEvents appends events to a run within a transaction, continuing its sequence.
func (db *DB) AddEvents(runID int64, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("journal: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var seq int
	if err := tx.QueryRow(`SELECT COALESCE(MAX(seq), 0) FROM events WHERE run_id = ?`, runID).Scan(&seq); err != nil {
		return fmt.Errorf("journal: next seq: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO events (run_id, seq, action, src, dst, detail, at) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("journal: prepare event insert: %w", err)
	}
	defer stmt.Close()
	for _, e := range events {
		seq++
		if _, err := stmt.Exec(runID, seq, e.Action, e.Src, e.Dst, e.Detail, e.At.UTC()); err != nil {
			return fmt.Errorf("journal: insert event: %w", err)
		}
	}
	return tx.Commit()
}

// FinishRun stamps the run as finished and stores its counters.
func (db *DB) FinishRun(runID int64, stats map[string]int, at time.Time) error {
	if stats == nil {
		stats = map[string]int{}
	}
	statsJSON, _ := json.Marshal(stats)
	_, err := db.conn.Exec(`UPDATE runs SET finished_at = ?, stats = ? WHERE id = ?`, at.UTC(), string(statsJSON), runID)
	if err != nil {
		return fmt.Errorf("journal: finish run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first, optionally filtered by step.
func (db *DB) ListRuns(step string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT r.id, r.step, r.vault, r.started_at, r.finished_at, r.stats,
		(SELECT count(*) FROM events e WHERE e.run_id = r.id)
		FROM runs r`
	args := []any{}
	if step != "" {
		q += ` WHERE r.step = ?`
		args = append(args, step)
	}
	q += ` ORDER BY r.id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r        Run
			finished sql.NullTime
			stats    string
		)
		if err := rows.Scan(&r.ID, &r.Step, &r.Vault, &r.StartedAt, &finished, &stats, &r.Events); err != nil {
			return nil, err
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		_ = json.Unmarshal([]byte(stats), &r.Stats)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Events returns the events of a run in recording order.
func (db *DB) Events(runID int64) ([]models.Event, error) {
	rows, err := db.conn.Query(`SELECT action, src, dst, detail, at FROM events WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("journal: events: %w", err)
	}
	defer rows.Close()

	var out []models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.Action, &e.Src, &e.Dst, &e.Detail, &e.At); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
