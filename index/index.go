// Package index provides an in-process, exact (brute force) vector index.
// Readers operate on an immutable snapshot swapped in atomically, so
// searches never block behind writers.
package index

import (
	"container/heap"
	"sync"
	"sync/atomic"

	apperrors "github.com/axisai/axismem/internal/errors"
)

// Metric selects the similarity function used by the index.
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricDot    Metric = "dot"
)

// Entry is a vector with its item id, used for bulk loading.
type Entry struct {
	ID           string
	Vector       []float32
	LastAccessed int64
}

// Result is a single search hit.
type Result struct {
	ID    string
	Score float64
}

// FilterFunc restricts search candidates. A nil filter admits everything.
type FilterFunc func(id string) bool

type entry struct {
	vector       []float32
	lastAccessed int64
}

// snapshot is the immutable read view. Writers build a new snapshot and
// swap it in; readers never see a partially applied mutation.
type snapshot struct {
	entries map[string]entry
}

// VectorIndex is a flat exact-search index over fixed-dimension vectors.
type VectorIndex struct {
	mu        sync.Mutex // serializes writers
	snap      atomic.Pointer[snapshot]
	dimension int
	metric    Metric
	available atomic.Bool

	deletesSinceRebuild atomic.Int64
}

func New(dimension int, metric Metric) *VectorIndex {
	idx := &VectorIndex{
		dimension: dimension,
		metric:    metric,
	}
	idx.snap.Store(&snapshot{entries: make(map[string]entry)})
	idx.available.Store(true)
	return idx
}

func (idx *VectorIndex) Dimension() int {
	return idx.dimension
}

// Size returns the number of vectors currently indexed.
func (idx *VectorIndex) Size() int {
	return len(idx.snap.Load().entries)
}

// Available reports whether the index can serve searches. It goes false
// only when a rebuild fails, and true again when one succeeds.
func (idx *VectorIndex) Available() bool {
	return idx.available.Load()
}

// DeletesSinceRebuild returns the tombstone count accumulated since the
// last successful rebuild.
func (idx *VectorIndex) DeletesSinceRebuild() int64 {
	return idx.deletesSinceRebuild.Load()
}

// Insert adds a vector under id. The vector is copied, and normalized
// when the metric is cosine.
func (idx *VectorIndex) Insert(id string, vector []float32, lastAccessed int64) error {
	if len(vector) != idx.dimension {
		return apperrors.DimensionMismatch(idx.dimension, len(vector))
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	cur := idx.snap.Load()
	if _, exists := cur.entries[id]; exists {
		return apperrors.DuplicateID(id)
	}

	next := cur.clone()
	next.entries[id] = entry{vector: idx.prepare(vector), lastAccessed: lastAccessed}
	idx.snap.Store(next)
	return nil
}

// Delete removes id from the index. Deleting an absent id is a no-op.
func (idx *VectorIndex) Delete(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	cur := idx.snap.Load()
	if _, exists := cur.entries[id]; !exists {
		return
	}

	next := cur.clone()
	delete(next.entries, id)
	idx.snap.Store(next)
	idx.deletesSinceRebuild.Add(1)
}

// Touch records a retrieval hit so ties keep favoring recently used items.
// Touching an unknown id is a no-op.
func (idx *VectorIndex) Touch(id string, accessedTs int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	cur := idx.snap.Load()
	e, exists := cur.entries[id]
	if !exists {
		return
	}

	next := cur.clone()
	e.lastAccessed = accessedTs
	next.entries[id] = e
	idx.snap.Store(next)
}

// Search returns up to k hits ordered by score descending. Equal scores
// order by most recent access then id ascending so repeated searches over
// the same data return the same ranking.
func (idx *VectorIndex) Search(query []float32, k int, filter FilterFunc) ([]Result, error) {
	if !idx.available.Load() {
		return nil, apperrors.IndexUnavailable(nil)
	}
	if len(query) != idx.dimension {
		return nil, apperrors.DimensionMismatch(idx.dimension, len(query))
	}
	if k <= 0 {
		return []Result{}, nil
	}

	snap := idx.snap.Load()
	q := idx.prepare(query)

	h := &candidateHeap{}
	heap.Init(h)
	for id, e := range snap.entries {
		if filter != nil && !filter(id) {
			continue
		}
		cand := candidate{
			id:           id,
			score:        dotProduct(q, e.vector),
			lastAccessed: e.lastAccessed,
		}
		if h.Len() < k {
			heap.Push(h, cand)
		} else if better(cand, (*h)[0]) {
			heap.Pop(h)
			heap.Push(h, cand)
		}
	}

	// Pop yields worst first; fill the slice back to front.
	results := make([]Result, h.Len())
	for i := len(results) - 1; i >= 0; i-- {
		c := heap.Pop(h).(candidate)
		results[i] = Result{ID: c.id, Score: c.score}
	}
	return results, nil
}

// Rebuild replaces the entire index contents atomically. Searches running
// against the old snapshot complete against consistent data. A rebuild
// error marks the index unavailable until the next successful rebuild.
func (idx *VectorIndex) Rebuild(entries []Entry) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	next := &snapshot{entries: make(map[string]entry, len(entries))}
	for _, e := range entries {
		if len(e.Vector) != idx.dimension {
			idx.available.Store(false)
			return apperrors.DimensionMismatch(idx.dimension, len(e.Vector))
		}
		if _, exists := next.entries[e.ID]; exists {
			idx.available.Store(false)
			return apperrors.DuplicateID(e.ID)
		}
		next.entries[e.ID] = entry{vector: idx.prepare(e.Vector), lastAccessed: e.LastAccessed}
	}

	idx.snap.Store(next)
	idx.deletesSinceRebuild.Store(0)
	idx.available.Store(true)
	return nil
}

func (idx *VectorIndex) prepare(vector []float32) []float32 {
	v := make([]float32, len(vector))
	copy(v, vector)
	if idx.metric == MetricCosine {
		return normalize(v)
	}
	return v
}

func (s *snapshot) clone() *snapshot {
	next := &snapshot{entries: make(map[string]entry, len(s.entries)+1)}
	for id, e := range s.entries {
		next.entries[id] = e
	}
	return next
}

type candidate struct {
	id           string
	score        float64
	lastAccessed int64
}

// better reports whether a ranks ahead of b.
func better(a, b candidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if a.lastAccessed != b.lastAccessed {
		return a.lastAccessed > b.lastAccessed
	}
	return a.id < b.id
}

// candidateHeap is a min-heap keyed by ranking, worst candidate on top.
type candidateHeap []candidate

func (h candidateHeap) Len() int           { return len(h) }
func (h candidateHeap) Less(i, j int) bool { return better(h[j], h[i]) }
func (h candidateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x any) {
	*h = append(*h, x.(candidate))
}

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[0 : n-1]
	return item
}
