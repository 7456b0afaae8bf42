package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that a store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	// MemoryItem model related methods.
	CreateMemoryItem(ctx context.Context, create *MemoryItem) (*MemoryItem, error)
	ListMemoryItems(ctx context.Context, find *FindMemoryItem) ([]*MemoryItem, error)
	UpdateMemoryItem(ctx context.Context, update *UpdateMemoryItem) (*MemoryItem, error)
	DeleteMemoryItem(ctx context.Context, delete *DeleteMemoryItem) error

	// RecordAccess atomically increments access_count and sets
	// last_accessed_ts for the given item.
	RecordAccess(ctx context.Context, id string, accessedTs int64) error

	// UpdateImportance sets the decayed importance for the given item.
	// Used only by the decay scheduler.
	UpdateImportance(ctx context.Context, id string, importance float64) error

	// ListEmbeddings returns (id, vector) pairs for warm-loading and
	// rebuilding the in-process vector index.
	ListEmbeddings(ctx context.Context, owner *string) ([]*EmbeddingRow, error)

	// VectorSearch performs driver-native similarity search where supported
	// (pgvector). Drivers without native support return an error and the
	// caller uses the in-process index instead.
	VectorSearch(ctx context.Context, opts *VectorSearchOptions) ([]*ItemWithScore, error)

	// LineageTrace model related methods.
	CreateLineageTrace(ctx context.Context, create *LineageTrace) (*LineageTrace, error)
	ListLineageTraces(ctx context.Context, find *FindLineageTrace) ([]*LineageTrace, error)
	DeleteLineageTrace(ctx context.Context, delete *DeleteLineageTrace) error
}

// EmbeddingRow is one (id, vector) pair from ListEmbeddings, used for
// index loads and rebuilds.
type EmbeddingRow struct {
	ID             string
	Embedding      []float32
	LastAccessedTs int64
}
