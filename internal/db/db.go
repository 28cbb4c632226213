package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"mspro-labs/emlak-ai/internal/models"
)

// Store persists refresh run history and the listing snapshot of each run.
type Store struct {
	db      *sql.DB
	dialect dialect
}

type dialect struct {
	name   string
	serial string // auto-increment primary key column
}

var dialects = map[string]dialect{
	"sqlite3":  {name: "sqlite3", serial: "INTEGER PRIMARY KEY AUTOINCREMENT"},
	"postgres": {name: "postgres", serial: "SERIAL PRIMARY KEY"},
}

// Open connects to the database and ensures the schema exists.
// driver is "sqlite3" or "postgres"; dsn is a file path or a postgres URL.
func Open(driver, dsn string) (*Store, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	if driver == "sqlite3" {
		if dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database dir: %w", err)
			}
		}
		// Use robust connection settings to prevent "database locked" errors
		dsn = fmt.Sprintf("%s?_busy_timeout=5000&_journal_mode=WAL", dsn)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == "sqlite3" {
		// One connection keeps ":memory:" databases shared and writes serialised.
		conn.SetMaxOpenConns(1)
	}

	if err = conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: conn, dialect: d}
	if err = s.createSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS refresh_run (
		  id TEXT PRIMARY KEY,
		  started_at TIMESTAMP NOT NULL,
		  finished_at TIMESTAMP NOT NULL,
		  status TEXT NOT NULL,
		  fetched INTEGER NOT NULL DEFAULT 0,
		  kept INTEGER NOT NULL DEFAULT 0,
		  dropped INTEGER NOT NULL DEFAULT 0,
		  error TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_started ON refresh_run(started_at)`,
		`CREATE TABLE IF NOT EXISTS listing (
		  id ` + s.dialect.serial + `,
		  run_id TEXT NOT NULL REFERENCES refresh_run (id),
		  price REAL NOT NULL,
		  region TEXT NOT NULL,
		  subregion TEXT NOT NULL,
		  title TEXT,
		  url TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_listing_run ON listing(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_listing_subregion ON listing(subregion)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun stores a run and its cleaned listings in one transaction.
func (s *Store) SaveRun(ctx context.Context, run models.RefreshRun, records []models.ListingRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO refresh_run (id, started_at, finished_at, status, fetched, kept, dropped, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Status,
		run.Fetched, run.Kept, run.Dropped, run.Error,
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	if len(records) > 0 {
		stmt, err := tx.PrepareContext(ctx, s.rebind(`
			INSERT INTO listing (run_id, price, region, subregion, title, url)
			VALUES (?, ?, ?, ?, ?, ?)`))
		if err != nil {
			tx.Rollback()
			return err
		}
		defer stmt.Close()

		for _, r := range records {
			if _, err := stmt.ExecContext(ctx,
				run.ID, r.Price, r.Region, r.Subregion,
				sql.NullString{String: r.Title, Valid: r.Title != ""},
				sql.NullString{String: r.URL, Valid: r.URL != ""},
			); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to insert listing for run %s: %w", run.ID, err)
			}
		}
	}

	return tx.Commit()
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]models.RefreshRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, started_at, finished_at, status, fetched, kept, dropped, error
		FROM refresh_run
		ORDER BY started_at DESC
		LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.RefreshRun
	for rows.Next() {
		var r models.RefreshRun
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Status, &r.Fetched, &r.Kept, &r.Dropped, &r.Error); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunListings returns the listing snapshot stored for a run.
func (s *Store) RunListings(ctx context.Context, runID string) ([]models.ListingRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT price, region, subregion, title, url
		FROM listing
		WHERE run_id = ?
		ORDER BY id`), runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ListingRecord
	for rows.Next() {
		var r models.ListingRecord
		var title, url sql.NullString
		if err := rows.Scan(&r.Price, &r.Region, &r.Subregion, &title, &url); err != nil {
			return nil, err
		}
		r.Title, r.URL = title.String, url.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// rebind rewrites "?" placeholders to "$n" for postgres.
func (s *Store) rebind(query string) string {
	if s.dialect.name != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
