package retrieval

import (
	"context"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/axisai/axismem/index"
	apperrors "github.com/axisai/axismem/internal/errors"
	"github.com/axisai/axismem/internal/observability"
	"github.com/axisai/axismem/internal/profile"
	"github.com/axisai/axismem/store"
)

// overscanFactor widens the index candidate set beyond k so composite
// scoring can promote items the raw similarity ranking placed lower.
const overscanFactor = 4

// fallbackConcurrency bounds the worker count of the linear scan path.
const fallbackConcurrency = 4

// Request describes one retrieval call.
type Request struct {
	Owner   string
	Vector  []float32
	K       int
	Privacy []store.Privacy
	Tag     *string
}

// Result carries the ranked hits. Partial is set when the deadline expired
// before every candidate could be examined.
type Result struct {
	Items   []ScoredItem
	Partial bool
}

// Retriever runs the retrieval pipeline: index search, metadata lookup,
// composite scoring, and access recording.
type Retriever struct {
	profile *profile.Profile
	store   *store.Store
	index   *index.VectorIndex
	scorer  *Scorer
	metrics *observability.Metrics
	logger  *slog.Logger
}

func NewRetriever(p *profile.Profile, st *store.Store, idx *index.VectorIndex, scorer *Scorer, metrics *observability.Metrics, logger *slog.Logger) *Retriever {
	return &Retriever{
		profile: p,
		store:   st,
		index:   idx,
		scorer:  scorer,
		metrics: metrics,
		logger:  logger,
	}
}

// RetrieveContext returns the top k items for the query vector, ranked by
// composite score. An exhausted deadline yields the best-effort partial
// ranking gathered so far instead of an error. When the index is
// unavailable the call degrades to a linear store scan.
func (r *Retriever) RetrieveContext(ctx context.Context, req *Request) (*Result, error) {
	if req.Owner == "" {
		return nil, apperrors.InvalidArgument("owner is required")
	}
	if req.K <= 0 {
		return nil, apperrors.InvalidArgument("k must be positive")
	}

	ctx, cancel := context.WithTimeout(ctx, r.profile.RetrieveTimeout)
	defer cancel()

	start := time.Now()
	hits, err := r.index.Search(req.Vector, req.K*overscanFactor, r.metadataFilter(ctx, req))
	if err != nil {
		if !apperrors.IsCode(err, apperrors.ErrCodeIndexUnavailable) {
			return nil, err
		}
		r.logger.Warn("index unavailable, falling back to linear scan",
			slog.String("owner", req.Owner))
		r.metrics.RecordFallbackScan()
		return r.fallbackScan(ctx, req, start)
	}

	candidates := make([]Candidate, 0, len(hits))
	partial := false
	for _, hit := range hits {
		if ctx.Err() != nil {
			partial = true
			break
		}
		item, err := r.store.GetMemoryItem(ctx, hit.ID)
		if err != nil {
			if ctx.Err() != nil {
				partial = true
				break
			}
			return nil, err
		}
		// The filter admitted the id, but the item may have mutated since.
		if item == nil || !r.matches(item, req) {
			continue
		}
		candidates = append(candidates, Candidate{Item: item, Similarity: hit.Score})
	}

	return r.finish(ctx, req, candidates, partial, start)
}

// metadataFilter admits index candidates whose store metadata matches the
// request, so the top-k cut is taken over matching items only. Lookup
// failures exclude the candidate.
func (r *Retriever) metadataFilter(ctx context.Context, req *Request) index.FilterFunc {
	return func(id string) bool {
		item, err := r.store.GetMemoryItem(ctx, id)
		if err != nil || item == nil {
			return false
		}
		return r.matches(item, req)
	}
}

// fallbackScan ranks by brute-force similarity over the store. Slower but
// keeps retrieval alive while the index recovers.
func (r *Retriever) fallbackScan(ctx context.Context, req *Request, start time.Time) (*Result, error) {
	items, err := r.store.ListMemoryItems(ctx, &store.FindMemoryItem{
		Owner:   &req.Owner,
		Privacy: req.Privacy,
		Tag:     req.Tag,
	})
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, len(items))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(fallbackConcurrency)
	for i, item := range items {
		g.Go(func() error {
			candidates[i] = Candidate{
				Item:       item,
				Similarity: cosineSimilarity(req.Vector, item.Embedding),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return r.finish(ctx, req, candidates, ctx.Err() != nil, start)
}

// finish ranks the candidates and records one access per returned hit.
func (r *Retriever) finish(ctx context.Context, req *Request, candidates []Candidate, partial bool, start time.Time) (*Result, error) {
	ranked := r.scorer.Rank(candidates, req.K, time.Now())

	// Access stats must land even when the request deadline has passed.
	accessCtx := context.WithoutCancel(ctx)
	for _, hit := range ranked {
		if err := r.store.RecordAccess(accessCtx, hit.Item.ID); err != nil {
			r.logger.Warn("failed to record access",
				slog.String("item_id", hit.Item.ID),
				slog.String("error", err.Error()))
			continue
		}
		r.index.Touch(hit.Item.ID, time.Now().Unix())
	}

	r.metrics.RecordRetrieval(partial)
	r.metrics.RecordDuration(time.Since(start))
	return &Result{Items: ranked, Partial: partial}, nil
}

func (r *Retriever) matches(item *store.MemoryItem, req *Request) bool {
	if item.Owner != req.Owner {
		return false
	}
	if len(req.Privacy) > 0 {
		ok := false
		for _, p := range req.Privacy {
			if item.Privacy == p {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if req.Tag != nil {
		ok := false
		for _, tag := range item.Tags {
			if tag == *req.Tag {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
