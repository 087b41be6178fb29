// Package sqlstore mirrors the trend artifacts into a SQL database so they
// can be queried without parsing JSON. SQLite and PostgreSQL are supported.
package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/couchcryptid/climate-data-pipeline/internal/domain"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS global_trends (
		year     INTEGER PRIMARY KEY,
		temp     DOUBLE PRECISION NOT NULL,
		co2      DOUBLE PRECISION NOT NULL,
		sea      DOUBLE PRECISION NOT NULL,
		precip   DOUBLE PRECISION NOT NULL,
		humidity DOUBLE PRECISION NOT NULL,
		wind     DOUBLE PRECISION NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS country_trends (
		country TEXT    NOT NULL,
		year    INTEGER NOT NULL,
		temp    DOUBLE PRECISION NOT NULL,
		co2     DOUBLE PRECISION NOT NULL,
		sea     DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (country, year)
	)`,
	`CREATE TABLE IF NOT EXISTS pipeline_runs (
		run_id      TEXT PRIMARY KEY,
		finished_at TIMESTAMP NOT NULL,
		years       INTEGER NOT NULL,
		countries   INTEGER NOT NULL
	)`,
}

// Run records one aggregation that replaced the stored trends.
type Run struct {
	RunID      string    `db:"run_id"`
	FinishedAt time.Time `db:"finished_at"`
	Years      int       `db:"years"`
	Countries  int       `db:"countries"`
}

type countryRow struct {
	Country string `db:"country"`
	domain.CountryTrend
}

// Store is a trend table set behind sqlx.
type Store struct {
	db *sqlx.DB
}

// Open connects to the database and creates the tables if needed. driver is
// "sqlite3" or "postgres".
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s database: %w", driver, err)
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// ReplaceTrends swaps the stored trends for the given set and records the
// run, all in one transaction.
func (s *Store) ReplaceTrends(ctx context.Context, runID string, finishedAt time.Time, global domain.GlobalTrends, countries domain.CountryTrends) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback() //nolint:errcheck // the original error wins
		}
	}()

	for _, stmt := range []string{"DELETE FROM global_trends", "DELETE FROM country_trends"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear trends: %w", err)
		}
	}

	for _, g := range global {
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO global_trends (year, temp, co2, sea, precip, humidity, wind)
			VALUES (:year, :temp, :co2, :sea, :precip, :humidity, :wind)`, g); err != nil {
			return fmt.Errorf("insert global %d: %w", g.Year, err)
		}
	}

	for _, name := range countries.Countries() {
		for _, c := range countries[name] {
			row := countryRow{Country: name, CountryTrend: c}
			if _, err := tx.NamedExecContext(ctx, `INSERT INTO country_trends (country, year, temp, co2, sea)
				VALUES (:country, :year, :temp, :co2, :sea)`, row); err != nil {
				return fmt.Errorf("insert %s %d: %w", name, c.Year, err)
			}
		}
	}

	run := Run{RunID: runID, FinishedAt: finishedAt.UTC(), Years: len(global), Countries: len(countries)}
	if _, err := tx.NamedExecContext(ctx, `INSERT INTO pipeline_runs (run_id, finished_at, years, countries)
		VALUES (:run_id, :finished_at, :years, :countries)`, run); err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GlobalTrends returns the stored global series in year order.
func (s *Store) GlobalTrends(ctx context.Context) (domain.GlobalTrends, error) {
	var out domain.GlobalTrends
	if err := s.db.SelectContext(ctx, &out, `SELECT year, temp, co2, sea, precip, humidity, wind FROM global_trends ORDER BY year`); err != nil {
		return nil, fmt.Errorf("select global trends: %w", err)
	}
	return out, nil
}

// CountryTrends returns the stored per-country series.
func (s *Store) CountryTrends(ctx context.Context) (domain.CountryTrends, error) {
	var rows []countryRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT country, year, temp, co2, sea FROM country_trends ORDER BY country, year`); err != nil {
		return nil, fmt.Errorf("select country trends: %w", err)
	}
	out := domain.CountryTrends{}
	for _, r := range rows {
		out[r.Country] = append(out[r.Country], r.CountryTrend)
	}
	return out, nil
}

// Runs returns every recorded run, oldest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	var runs []Run
	if err := s.db.SelectContext(ctx, &runs, `SELECT run_id, finished_at, years, countries FROM pipeline_runs ORDER BY finished_at, run_id`); err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	return runs, nil
}
