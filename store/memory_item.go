package store

// Privacy is the visibility level of a memory item.
type Privacy string

const (
	// PrivacyPrivate items are visible only to their owner.
	PrivacyPrivate Privacy = "private"
	// PrivacyShared items are visible to collaborators of the owner.
	PrivacyShared Privacy = "shared"
	// PrivacyPublic items are visible to everyone.
	PrivacyPublic Privacy = "public"
)

// IsValid reports whether p is a known privacy level.
func (p Privacy) IsValid() bool {
	return p == PrivacyPrivate || p == PrivacyShared || p == PrivacyPublic
}

// MemoryItem is the source-of-truth record for one stored memory.
// The vector index is a derived, rebuildable structure over these rows.
type MemoryItem struct {
	ID      string
	Owner   string
	Content string
	// Embedding is a fixed-length vector; its dimension must match the
	// deployment's index dimension.
	Embedding []float32
	Tags      []string
	Privacy   Privacy
	// SourceRef optionally attributes the item to a dataset, upload or
	// external-search hit for lineage.
	SourceRef string

	Pinned bool
	// Importance is in [0,1]; decays over time unless pinned.
	Importance float64

	CreatedTs      int64
	LastAccessedTs int64
	AccessCount    int64
}

// FindMemoryItem specifies the conditions for finding memory items.
type FindMemoryItem struct {
	ID    *string
	Owner *string
	// Privacy restricts to the given visibility levels; empty means all
	// the owner may see.
	Privacy []Privacy
	Tag     *string
	Pinned  *bool
	// ImportanceBelow restricts to unpinned items whose importance has
	// fallen below the given floor (decay eviction candidates).
	ImportanceBelow *float64
	Limit           int
	Offset          int
}

// UpdateMemoryItem specifies a partial update of a memory item. Access
// statistics are never updated through this path; use RecordAccess.
type UpdateMemoryItem struct {
	ID         string
	Content    *string
	Embedding  []float32
	Tags       []string
	Privacy    *Privacy
	Pinned     *bool
	Importance *float64
}

// DeleteMemoryItem specifies the conditions for deleting memory items.
type DeleteMemoryItem struct {
	ID    *string
	Owner *string
}

// ItemWithScore is a vector search result with its similarity score.
type ItemWithScore struct {
	Item *MemoryItem
	// Score is the raw similarity in [0,1] for cosine, unbounded for dot.
	Score float64
}

// VectorSearchOptions are the options for driver-native vector search.
type VectorSearchOptions struct {
	Owner  string
	Vector []float32
	Limit  int
}

// MemoryStats summarizes a single owner's stored memories.
type MemoryStats struct {
	TotalItems          int            `json:"total_items"`
	PinnedItems         int            `json:"pinned_items"`
	PrivacyDistribution map[string]int `json:"privacy_distribution"`
	TagDistribution     map[string]int `json:"tag_distribution"`
	TotalContentBytes   int64          `json:"total_content_bytes"`
}
