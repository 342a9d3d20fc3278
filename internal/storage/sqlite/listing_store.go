// Package sqlite persists runs and their listings in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/JakeFAU/jobmarket-crawler/internal/crawler"
	"github.com/JakeFAU/jobmarket-crawler/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS job_runs (
	run_id               TEXT PRIMARY KEY,
	query                TEXT NOT NULL,
	location             TEXT NOT NULL,
	max_pages            INTEGER NOT NULL,
	pages_fetched        INTEGER NOT NULL,
	cards_rejected       INTEGER NOT NULL,
	descriptions_fetched INTEGER NOT NULL,
	stopped_early        INTEGER NOT NULL,
	started_at           TEXT NOT NULL,
	finished_at          TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS job_listings (
	run_id      TEXT NOT NULL REFERENCES job_runs (run_id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	title       TEXT NOT NULL,
	company     TEXT NOT NULL,
	location    TEXT NOT NULL,
	link        TEXT NOT NULL,
	source_page INTEGER NOT NULL,
	description TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
);`

// ListingStore writes run and listing rows into SQLite.
type ListingStore struct {
	db *sql.DB
}

// NewListingStore opens (or creates) the database at dbPath and ensures the
// tables exist. ":memory:" keeps everything in process.
func NewListingStore(ctx context.Context, dbPath string) (*ListingStore, error) {
	if dbPath == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return &ListingStore{db: db}, nil
}

// SaveRun inserts the run row and one row per listing in a single
// transaction.
func (s *ListingStore) SaveRun(ctx context.Context, res crawler.Result) error {
	if res.RunID == "" {
		return errors.New("run id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT INTO job_runs (
	run_id, query, location, max_pages, pages_fetched, cards_rejected,
	descriptions_fetched, stopped_early, started_at, finished_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID,
		res.Query.Query,
		res.Query.Location,
		res.Query.MaxPages,
		res.PagesFetched,
		res.CardsRejected,
		res.DescriptionsFetched,
		res.StoppedEarly,
		res.StartedAt.UTC().Format(time.RFC3339Nano),
		res.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", res.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO job_listings (
	run_id, position, title, company, location, link, source_page, description
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare listing insert: %w", err)
	}
	defer stmt.Close()

	for i, l := range res.Listings {
		if _, err := stmt.ExecContext(ctx, res.RunID, i, l.Title, l.Company, l.Location, l.Link, l.SourcePage, l.Description); err != nil {
			return fmt.Errorf("insert listing %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Listings returns the listings saved for runID in their original order.
func (s *ListingStore) Listings(ctx context.Context, runID string) ([]model.JobListing, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT title, company, location, link, source_page, description
FROM job_listings WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query listings for %s: %w", runID, err)
	}
	defer rows.Close()

	var out []model.JobListing
	for rows.Next() {
		var l model.JobListing
		if err := rows.Scan(&l.Title, &l.Company, &l.Location, &l.Link, &l.SourcePage, &l.Description); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return out, nil
}

// RunCount returns the number of saved runs.
func (s *ListingStore) RunCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM job_runs").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting runs: %w", err)
	}
	return count, nil
}

// Close closes the underlying database connection.
func (s *ListingStore) Close() error {
	return s.db.Close()
}
