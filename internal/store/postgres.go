package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig controls the connection pool behind the store.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// querier is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements DocumentStore on top of pgx.
//
// Expected schema:
//
//	CREATE TABLE drugs (
//	    id   BIGSERIAL PRIMARY KEY,
//	    name TEXT NOT NULL UNIQUE
//	);
//	CREATE TABLE articles (
//	    id           BIGSERIAL PRIMARY KEY,
//	    source_url   TEXT NOT NULL UNIQUE,
//	    primary_id   TEXT,
//	    secondary_id TEXT,
//	    title        TEXT NOT NULL,
//	    sections     JSONB,
//	    published_at DATE,
//	    drug_id      BIGINT REFERENCES drugs(id),
//	    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PostgresStore struct {
	pool querier
}

// NewPostgresStore connects a pool using the provided config.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
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
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresStoreWithPool wraps an existing pool; used by tests.
func NewPostgresStoreWithPool(pool querier) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// EnsureDrug inserts the drug identity if absent and returns its id. The
// unique constraint on name makes racing creators converge on one row.
func (s *PostgresStore) EnsureDrug(ctx context.Context, name string) (int64, error) {
	var id int64
	insert := `
		INSERT INTO drugs (name)
		VALUES ($1)
		ON CONFLICT (name) DO NOTHING
		RETURNING id;
	`
	err := s.pool.QueryRow(ctx, insert, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("insert drug %q: %w", name, err)
	}

	// Conflict: another writer got there first, or the row predates us.
	err = s.pool.QueryRow(ctx, `SELECT id FROM drugs WHERE name = $1;`, name).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("select drug %q: %w", name, err)
	}
	return id, nil
}

// HasDocument reports whether the source URL is already stored.
func (s *PostgresStore) HasDocument(ctx context.Context, sourceURL string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM articles WHERE source_url = $1);`
	if err := s.pool.QueryRow(ctx, query, sourceURL).Scan(&exists); err != nil {
		return false, fmt.Errorf("check document %q: %w", sourceURL, err)
	}
	return exists, nil
}

// UpsertDocument inserts the document or, on a source-URL conflict, updates
// only the drug association. xmax = 0 distinguishes a fresh insert from a
// conflict update.
func (s *PostgresStore) UpsertDocument(ctx context.Context, doc Document) (int64, bool, error) {
	sections, err := json.Marshal(doc.Sections)
	if err != nil {
		return 0, false, fmt.Errorf("marshal sections: %w", err)
	}

	query := `
		INSERT INTO articles (source_url, primary_id, secondary_id, title, sections, published_at, drug_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (source_url) DO UPDATE
		SET drug_id = EXCLUDED.drug_id
		RETURNING id, (xmax = 0) AS inserted;
	`
	var (
		id       int64
		inserted bool
	)
	err = s.pool.QueryRow(ctx, query,
		doc.SourceURL,
		nullIfEmpty(doc.PrimaryID),
		nullIfEmpty(doc.SecondaryID),
		doc.Title,
		sections,
		doc.Published,
		doc.DrugID,
	).Scan(&id, &inserted)
	if err != nil {
		return 0, false, fmt.Errorf("upsert document %q: %w", doc.SourceURL, err)
	}
	return id, inserted, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
