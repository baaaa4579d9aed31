package report

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/ratelens/internal/database"
	"github.com/aristath/ratelens/internal/modules/regression"
	"github.com/rs/zerolog"
)

// Repository persists runs and their regression results in results.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new run repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "report_repository").Logger(),
	}
}

// EnsureSchema creates the runs tables if they do not exist.
func (r *Repository) EnsureSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id           TEXT PRIMARY KEY,
			study        TEXT NOT NULL,
			created_at   TEXT NOT NULL,
			rows         INTEGER NOT NULL DEFAULT 0,
			start_date   TEXT,
			end_date     TEXT,
			status       TEXT NOT NULL,
			error        TEXT,
			summary_path TEXT
		);
		CREATE TABLE IF NOT EXISTS run_results (
			run_id  TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq     INTEGER NOT NULL,
			spec    TEXT NOT NULL,
			payload TEXT NOT NULL,
			PRIMARY KEY (run_id, seq)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create runs schema: %w", err)
	}
	return nil
}

// SaveRun stores a run and its results in one transaction.
func (r *Repository) SaveRun(run Run, results []regression.Result) error {
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO runs (id, study, created_at, rows, start_date, end_date, status, error, summary_path)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				rows = excluded.rows, status = excluded.status,
				error = excluded.error, summary_path = excluded.summary_path
		`, run.ID, run.Study, run.CreatedAt.UTC().Format(time.RFC3339),
			run.Rows, run.StartDate, run.EndDate, run.Status, run.Error, run.SummaryPath)
		if err != nil {
			return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO run_results (run_id, seq, spec, payload)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (run_id, seq) DO UPDATE SET spec = excluded.spec, payload = excluded.payload
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare result insert: %w", err)
		}
		defer stmt.Close()

		for i, res := range results {
			payload, err := json.Marshal(res)
			if err != nil {
				return fmt.Errorf("failed to encode result %s: %w", res.Spec, err)
			}
			if _, err := stmt.Exec(run.ID, i, res.Spec, string(payload)); err != nil {
				return fmt.Errorf("failed to insert result %s: %w", res.Spec, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Debug().
		Str("run_id", run.ID).
		Int("results", len(results)).
		Msg("Saved run")
	return nil
}

// GetRun fetches one run and its results.
func (r *Repository) GetRun(id string) (*Run, []regression.Result, error) {
	run, err := r.scanRun(r.db.QueryRow(`
		SELECT id, study, created_at, rows, start_date, end_date, status, error, summary_path
		FROM runs WHERE id = ?
	`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, fmt.Errorf("run %s not found", id)
		}
		return nil, nil, err
	}

	rows, err := r.db.Query(`SELECT payload FROM run_results WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query results for run %s: %w", id, err)
	}
	defer rows.Close()

	var results []regression.Result
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, nil, fmt.Errorf("failed to scan result: %w", err)
		}
		var res regression.Result
		if err := json.Unmarshal([]byte(payload), &res); err != nil {
			return nil, nil, fmt.Errorf("failed to decode result: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating results: %w", err)
	}

	return run, results, nil
}

// ListRuns returns the most recent runs, newest first.
func (r *Repository) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`
		SELECT id, study, created_at, rows, start_date, end_date, status, error, summary_path
		FROM runs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := r.scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *Repository) scanRun(row rowScanner) (*Run, error) {
	var run Run
	var createdAt string
	var startDate, endDate, errMsg, summaryPath sql.NullString
	if err := row.Scan(&run.ID, &run.Study, &createdAt, &run.Rows,
		&startDate, &endDate, &run.Status, &errMsg, &summaryPath); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	ts, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse run timestamp %q: %w", createdAt, err)
	}
	run.CreatedAt = ts
	run.StartDate = startDate.String
	run.EndDate = endDate.String
	run.Error = errMsg.String
	run.SummaryPath = summaryPath.String
	return &run, nil
}
