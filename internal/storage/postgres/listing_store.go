// Package postgres persists runs and their listings in Postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/jobmarket-crawler/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Default table names.
const (
	DefaultRunsTable     = "job_runs"
	DefaultListingsTable = "job_listings"
)

// Config controls the Postgres connection pool and target tables.
type Config struct {
	DSN             string
	RunsTable       string
	ListingsTable   string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Begin(context.Context) (pgx.Tx, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// ListingStore writes run and listing rows into Postgres.
type ListingStore struct {
	pool     pool
	runs     string
	listings string
}

// NewListingStore connects a pool using cfg.
func NewListingStore(ctx context.Context, cfg Config) (*ListingStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewListingStoreWithPool(p, cfg.RunsTable, cfg.ListingsTable)
	if err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewListingStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewListingStoreWithPool(p pool, runsTable, listingsTable string) (*ListingStore, error) {
	if p == nil {
		return nil, errors.New("pool is required")
	}
	if runsTable == "" {
		runsTable = DefaultRunsTable
	}
	if listingsTable == "" {
		listingsTable = DefaultListingsTable
	}
	for _, name := range []string{runsTable, listingsTable} {
		if !validTableName.MatchString(name) {
			return nil, fmt.Errorf("invalid table name %q", name)
		}
	}
	return &ListingStore{pool: p, runs: runsTable, listings: listingsTable}, nil
}

// Close releases the underlying pool resources.
func (s *ListingStore) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Migrate creates the run and listing tables when they do not exist.
func (s *ListingStore) Migrate(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	location TEXT NOT NULL,
	max_pages INTEGER NOT NULL,
	pages_fetched INTEGER NOT NULL,
	cards_rejected INTEGER NOT NULL,
	descriptions_fetched INTEGER NOT NULL,
	stopped_early BOOLEAN NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
)`, s.runs),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id TEXT NOT NULL REFERENCES %s (run_id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	title TEXT NOT NULL,
	company TEXT NOT NULL,
	location TEXT NOT NULL,
	link TEXT NOT NULL,
	source_page INTEGER NOT NULL,
	description TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
)`, s.listings, s.runs),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// SaveRun inserts the run row and one row per listing in a single
// transaction.
func (s *ListingStore) SaveRun(ctx context.Context, res crawler.Result) error {
	if res.RunID == "" {
		return errors.New("run id is required")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := s.insert(ctx, tx, res); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *ListingStore) insert(ctx context.Context, tx pgx.Tx, res crawler.Result) error {
	runQuery := fmt.Sprintf(`INSERT INTO %s (
	run_id, query, location, max_pages, pages_fetched, cards_rejected,
	descriptions_fetched, stopped_early, started_at, finished_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`, s.runs)
	_, err := tx.Exec(ctx, runQuery,
		res.RunID,
		res.Query.Query,
		res.Query.Location,
		res.Query.MaxPages,
		res.PagesFetched,
		res.CardsRejected,
		res.DescriptionsFetched,
		res.StoppedEarly,
		res.StartedAt,
		res.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	listingQuery := fmt.Sprintf(`INSERT INTO %s (
	run_id, position, title, company, location, link, source_page, description
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, s.listings)
	for i, l := range res.Listings {
		_, err := tx.Exec(ctx, listingQuery,
			res.RunID, i, l.Title, l.Company, l.Location, l.Link, l.SourcePage, l.Description)
		if err != nil {
			return fmt.Errorf("insert listing %d: %w", i, err)
		}
	}
	return nil
}
