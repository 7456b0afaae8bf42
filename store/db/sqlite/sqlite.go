package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/axisai/axismem/internal/profile"
	"github.com/axisai/axismem/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens (and if needed initializes) the SQLite database.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	// WAL keeps concurrent readers unblocked during decay writes.
	db, err := sql.Open("sqlite", profile.DSN+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", profile.DSN)
	}

	// modernc sqlite serializes writes internally; one writer connection
	// avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	driver := &DB{db: db, profile: profile}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := driver.migrate(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to migrate schema")
	}

	return driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS memory_item (
	id TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	embedding BLOB NOT NULL,
	tags TEXT NOT NULL DEFAULT '[]',
	privacy TEXT NOT NULL DEFAULT 'private',
	source_ref TEXT NOT NULL DEFAULT '',
	pinned INTEGER NOT NULL DEFAULT 0,
	importance REAL NOT NULL DEFAULT 1.0,
	created_ts BIGINT NOT NULL,
	last_accessed_ts BIGINT NOT NULL,
	access_count BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_memory_item_owner ON memory_item (owner);
CREATE INDEX IF NOT EXISTS idx_memory_item_importance ON memory_item (importance);

CREATE TABLE IF NOT EXISTS lineage_trace (
	id TEXT PRIMARY KEY,
	query TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	payload TEXT NOT NULL DEFAULT '{}',
	violation TEXT NOT NULL DEFAULT '',
	created_ts BIGINT NOT NULL,
	sealed_ts BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_lineage_trace_status ON lineage_trace (status);
`

// migrate applies the idempotent base schema.
func (d *DB) migrate(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, schema)
	return err
}
