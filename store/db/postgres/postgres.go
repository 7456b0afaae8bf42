package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/axisai/axismem/internal/profile"
	"github.com/axisai/axismem/store"
)

// ============================================================================
// POSTGRESQL SUPPORT (Production - Full Support)
// ============================================================================
// PostgreSQL is the PRIMARY database for production use.
//
// All features are fully supported:
// - Complete CRUD operations
// - Native vector search (pgvector extension)
// - Concurrent writes
//
// When adding new features, PostgreSQL is the reference implementation.
// ============================================================================

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", profile.DSN)
	}

	// Single-writer memory daemon; keep the pool small.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(2 * time.Hour)
	db.SetConnMaxIdleTime(15 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	d := &DB{
		db:      db,
		profile: profile,
	}
	if err := d.migrate(context.Background()); err != nil {
		return nil, errors.Wrap(err, "failed to migrate schema")
	}
	return d, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS memory_item (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			embedding vector(%d),
			tags TEXT NOT NULL DEFAULT '[]',
			privacy TEXT NOT NULL DEFAULT 'private',
			source_ref TEXT NOT NULL DEFAULT '',
			pinned BOOLEAN NOT NULL DEFAULT FALSE,
			importance DOUBLE PRECISION NOT NULL DEFAULT 1.0,
			created_ts BIGINT NOT NULL,
			last_accessed_ts BIGINT NOT NULL,
			access_count BIGINT NOT NULL DEFAULT 0
		)`, d.profile.Dimension),
		`CREATE INDEX IF NOT EXISTS idx_memory_item_owner ON memory_item (owner)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_item_importance ON memory_item (importance)`,
		`CREATE TABLE IF NOT EXISTS lineage_trace (
			id TEXT PRIMARY KEY,
			query TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			payload TEXT NOT NULL DEFAULT '{}',
			violation TEXT NOT NULL DEFAULT '',
			created_ts BIGINT NOT NULL,
			sealed_ts BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lineage_trace_status ON lineage_trace (status)`,
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "failed to execute migration: %s", stmt)
		}
	}
	return nil
}
