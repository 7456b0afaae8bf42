package db

import (
	"github.com/pkg/errors"

	"github.com/axisai/axismem/internal/profile"
	"github.com/axisai/axismem/store"
	"github.com/axisai/axismem/store/db/postgres"
	"github.com/axisai/axismem/store/db/sqlite"
)

// ============================================================================
// DATABASE SUPPORT POLICY
// ============================================================================
// This project supports only PostgreSQL and SQLite databases.
//
// PostgreSQL: full support for production use, including native vector
// search via the pgvector extension.
// SQLite: embedded/single-node deployments; vector search is served by the
// in-process index, the database stores items, embeddings and traces.
// ============================================================================

// NewDBDriver creates new db driver based on profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.New("unknown db driver: only 'postgres' and 'sqlite' are supported")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
