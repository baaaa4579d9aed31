package series

import (
	"database/sql"
	"fmt"
	"math"

	"github.com/aristath/ratelens/internal/database"
	"github.com/rs/zerolog"
)

// Repository provides access to stored daily observations in history.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new series repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "series_repository").Logger(),
	}
}

// EnsureSchema creates the observations table if it does not exist.
func (r *Repository) EnsureSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS daily_observations (
			series TEXT NOT NULL,
			date   TEXT NOT NULL,
			value  REAL,
			PRIMARY KEY (series, date)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create daily_observations table: %w", err)
	}
	return nil
}

// SaveSeries upserts all observations of a series in one transaction.
// NaN values are stored as NULL.
func (r *Repository) SaveSeries(s Series) error {
	if err := s.Validate(); err != nil {
		return err
	}

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO daily_observations (series, date, value)
			VALUES (?, ?, ?)
			ON CONFLICT (series, date) DO UPDATE SET value = excluded.value
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, o := range s.Obs {
			var value interface{}
			if !math.IsNaN(o.Value) {
				value = o.Value
			}
			if _, err := stmt.Exec(s.Name, o.Date, value); err != nil {
				return fmt.Errorf("failed to upsert %s@%s: %w", s.Name, o.Date, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Debug().
		Str("series", s.Name).
		Int("observations", len(s.Obs)).
		Msg("Saved series")
	return nil
}

// GetSeries fetches one series within [startDate, endDate], dates ascending.
// Empty bounds are open. NULL values come back as NaN.
func (r *Repository) GetSeries(name, startDate, endDate string) (Series, error) {
	query := `
		SELECT date, value
		FROM daily_observations
		WHERE series = ?
	`
	args := []interface{}{name}
	if startDate != "" {
		query += " AND date >= ?"
		args = append(args, startDate)
	}
	if endDate != "" {
		query += " AND date <= ?"
		args = append(args, endDate)
	}
	query += " ORDER BY date ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return Series{}, fmt.Errorf("failed to query series %s: %w", name, err)
	}
	defer rows.Close()

	s := Series{Name: name}
	for rows.Next() {
		var date string
		var value sql.NullFloat64
		if err := rows.Scan(&date, &value); err != nil {
			return Series{}, fmt.Errorf("failed to scan observation: %w", err)
		}
		obs := Observation{Date: date, Value: math.NaN()}
		if value.Valid {
			obs.Value = value.Float64
		}
		s.Obs = append(s.Obs, obs)
	}
	if err := rows.Err(); err != nil {
		return Series{}, fmt.Errorf("error iterating series %s: %w", name, err)
	}

	return s, nil
}

// ListSeries returns the distinct stored series names, sorted.
func (r *Repository) ListSeries() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT series FROM daily_observations ORDER BY series`)
	if err != nil {
		return nil, fmt.Errorf("failed to list series: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan series name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating series names: %w", err)
	}

	return names, nil
}
