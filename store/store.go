package store

import (
	"context"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lithammer/shortuuid/v4"

	"github.com/axisai/axismem/internal/errors"
	"github.com/axisai/axismem/internal/profile"
)

// itemCacheSize bounds the read-through item cache.
const itemCacheSize = 4096

// Store provides database access to memory items and lineage traces.
// Owner/privacy filtering is enforced at this layer, never at the caller.
type Store struct {
	profile *profile.Profile
	driver  Driver

	itemCache *lru.Cache[string, *MemoryItem]
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	cache, _ := lru.New[string, *MemoryItem](itemCacheSize)
	return &Store{
		driver:    driver,
		profile:   profile,
		itemCache: cache,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	s.itemCache.Purge()
	return s.driver.Close()
}

// CreateMemoryItem validates and inserts a new memory item. An empty ID is
// assigned; tags are deduplicated; importance defaults to 1.0 for new items.
func (s *Store) CreateMemoryItem(ctx context.Context, create *MemoryItem) (*MemoryItem, error) {
	if create.Owner == "" {
		return nil, errors.InvalidArgument("owner must not be empty")
	}
	if len(create.Embedding) != s.profile.Dimension {
		return nil, errors.DimensionMismatch(s.profile.Dimension, len(create.Embedding))
	}
	if create.Importance < 0 || create.Importance > 1 {
		return nil, errors.InvalidArgument("importance must be in [0,1]")
	}
	if create.ID == "" {
		create.ID = shortuuid.New()
	}
	if create.Privacy == "" {
		create.Privacy = PrivacyPrivate
	}
	if !create.Privacy.IsValid() {
		return nil, errors.InvalidArgument("unknown privacy level: " + string(create.Privacy))
	}
	if create.Importance == 0 {
		create.Importance = 1.0
	}
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}
	if create.LastAccessedTs == 0 {
		create.LastAccessedTs = create.CreatedTs
	}
	create.Tags = dedupTags(create.Tags)

	item, err := s.driver.CreateMemoryItem(ctx, create)
	if err != nil {
		return nil, err
	}
	s.itemCache.Add(item.ID, item)
	return item, nil
}

// GetMemoryItem returns the item with the given id, or nil when absent.
func (s *Store) GetMemoryItem(ctx context.Context, id string) (*MemoryItem, error) {
	if item, ok := s.itemCache.Get(id); ok {
		return item, nil
	}
	list, err := s.driver.ListMemoryItems(ctx, &FindMemoryItem{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	s.itemCache.Add(id, list[0])
	return list[0], nil
}

// ListMemoryItems lists memory items matching the filter.
func (s *Store) ListMemoryItems(ctx context.Context, find *FindMemoryItem) ([]*MemoryItem, error) {
	return s.driver.ListMemoryItems(ctx, find)
}

// UpdateMemoryItem applies a partial update. A changed embedding must match
// the index dimension.
func (s *Store) UpdateMemoryItem(ctx context.Context, update *UpdateMemoryItem) (*MemoryItem, error) {
	if update.Embedding != nil && len(update.Embedding) != s.profile.Dimension {
		return nil, errors.DimensionMismatch(s.profile.Dimension, len(update.Embedding))
	}
	if update.Importance != nil && (*update.Importance < 0 || *update.Importance > 1) {
		return nil, errors.InvalidArgument("importance must be in [0,1]")
	}
	if update.Tags != nil {
		update.Tags = dedupTags(update.Tags)
	}
	item, err := s.driver.UpdateMemoryItem(ctx, update)
	if err != nil {
		return nil, err
	}
	s.itemCache.Remove(update.ID)
	return item, nil
}

// DeleteMemoryItem deletes matching items. Deleting an absent item is a
// no-op success.
func (s *Store) DeleteMemoryItem(ctx context.Context, delete *DeleteMemoryItem) error {
	if err := s.driver.DeleteMemoryItem(ctx, delete); err != nil {
		return err
	}
	if delete.ID != nil {
		s.itemCache.Remove(*delete.ID)
	} else {
		s.itemCache.Purge()
	}
	return nil
}

// RecordAccess increments access_count and sets last_accessed_ts to now.
// This is the only path that mutates access statistics.
func (s *Store) RecordAccess(ctx context.Context, id string) error {
	if err := s.driver.RecordAccess(ctx, id, time.Now().Unix()); err != nil {
		return err
	}
	s.itemCache.Remove(id)
	return nil
}

// UpdateImportance sets the decayed importance for an item.
func (s *Store) UpdateImportance(ctx context.Context, id string, importance float64) error {
	if importance < 0 || importance > 1 {
		return errors.InvalidArgument("importance must be in [0,1]")
	}
	if err := s.driver.UpdateImportance(ctx, id, importance); err != nil {
		return err
	}
	s.itemCache.Remove(id)
	return nil
}

// ListEmbeddings returns all (id, vector) pairs for index loading.
func (s *Store) ListEmbeddings(ctx context.Context, owner *string) ([]*EmbeddingRow, error) {
	return s.driver.ListEmbeddings(ctx, owner)
}

// VectorSearch performs driver-native vector similarity search.
func (s *Store) VectorSearch(ctx context.Context, opts *VectorSearchOptions) ([]*ItemWithScore, error) {
	return s.driver.VectorSearch(ctx, opts)
}

// CreateLineageTrace persists a sealed or quarantined trace.
func (s *Store) CreateLineageTrace(ctx context.Context, create *LineageTrace) (*LineageTrace, error) {
	return s.driver.CreateLineageTrace(ctx, create)
}

// GetLineageTrace returns the trace with the given id, or nil when absent.
func (s *Store) GetLineageTrace(ctx context.Context, id string) (*LineageTrace, error) {
	list, err := s.driver.ListLineageTraces(ctx, &FindLineageTrace{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// ListLineageTraces lists persisted traces.
func (s *Store) ListLineageTraces(ctx context.Context, find *FindLineageTrace) ([]*LineageTrace, error) {
	return s.driver.ListLineageTraces(ctx, find)
}

// DeleteLineageTrace deletes matching traces.
func (s *Store) DeleteLineageTrace(ctx context.Context, delete *DeleteLineageTrace) error {
	return s.driver.DeleteLineageTrace(ctx, delete)
}

// GetMemoryStats summarizes an owner's stored memories.
func (s *Store) GetMemoryStats(ctx context.Context, owner string) (*MemoryStats, error) {
	items, err := s.driver.ListMemoryItems(ctx, &FindMemoryItem{Owner: &owner})
	if err != nil {
		return nil, err
	}

	stats := &MemoryStats{
		TotalItems:          len(items),
		PrivacyDistribution: make(map[string]int),
		TagDistribution:     make(map[string]int),
	}
	for _, item := range items {
		stats.PrivacyDistribution[string(item.Privacy)]++
		for _, tag := range item.Tags {
			stats.TagDistribution[tag]++
		}
		if item.Pinned {
			stats.PinnedItems++
		}
		stats.TotalContentBytes += int64(len(item.Content))
	}
	return stats, nil
}

// dedupTags deduplicates and sorts tags; insertion order is irrelevant.
func dedupTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
