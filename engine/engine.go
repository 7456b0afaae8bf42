// Package engine wires the memory components together for one process:
// store, index, retriever, decay runner, and lineage recorder.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/axisai/axismem/decay"
	"github.com/axisai/axismem/index"
	apperrors "github.com/axisai/axismem/internal/errors"
	"github.com/axisai/axismem/internal/observability"
	"github.com/axisai/axismem/internal/profile"
	"github.com/axisai/axismem/lineage"
	"github.com/axisai/axismem/retrieval"
	"github.com/axisai/axismem/store"
	"github.com/axisai/axismem/store/db"
)

// Engine owns the lifecycle of the memory subsystem. Construct it once at
// process start and pass it by reference; there is no ambient singleton.
type Engine struct {
	Profile   *profile.Profile
	Store     *store.Store
	Index     *index.VectorIndex
	Scorer    *retrieval.Scorer
	Retriever *retrieval.Retriever
	Decay     *decay.Runner
	Recorder  *lineage.Recorder
	Metrics   *observability.Metrics

	logger *slog.Logger
}

// New bootstraps the engine: opens the database, warm-loads the index from
// persisted embeddings, and builds the retrieval pipeline. Background work
// does not start until Start is called.
func New(ctx context.Context, p *profile.Profile, logger *slog.Logger) (*Engine, error) {
	driver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, err
	}
	st := store.New(driver, p)

	metrics := observability.NewMetrics(256)
	idx := index.New(p.Dimension, index.Metric(p.Metric))

	rows, err := st.ListEmbeddings(ctx, nil)
	if err != nil {
		st.Close()
		return nil, err
	}
	entries := make([]index.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, index.Entry{ID: row.ID, Vector: row.Embedding, LastAccessed: row.LastAccessedTs})
	}
	if err := idx.Rebuild(entries); err != nil {
		st.Close()
		return nil, err
	}
	logger.Info("index loaded", slog.Int("vectors", len(entries)))

	scorer := retrieval.NewScorerFromProfile(p)
	recorder := lineage.NewRecorder(p, st, metrics, logger)
	retriever := retrieval.NewRetriever(p, st, idx, scorer, metrics, logger)
	runner := decay.NewRunner(p, st, idx, recorder, nil, metrics, logger)

	return &Engine{
		Profile:   p,
		Store:     st,
		Index:     idx,
		Scorer:    scorer,
		Retriever: retriever,
		Decay:     runner,
		Recorder:  recorder,
		Metrics:   metrics,
		logger:    logger,
	}, nil
}

// Start launches the decay scheduler. It returns immediately; the runner
// stops when ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	go e.Decay.Run(ctx)
}

// Close releases the database. Callers cancel the Start context first.
func (e *Engine) Close() error {
	return e.Store.Close()
}

// Ingest stores a new memory item and indexes its vector in one step.
func (e *Engine) Ingest(ctx context.Context, item *store.MemoryItem) (*store.MemoryItem, error) {
	created, err := e.Store.CreateMemoryItem(ctx, item)
	if err != nil {
		return nil, err
	}
	if err := e.Index.Insert(created.ID, created.Embedding, created.LastAccessedTs); err != nil {
		// Roll the row back so store and index stay in step.
		if delErr := e.Store.DeleteMemoryItem(ctx, &store.DeleteMemoryItem{ID: &created.ID}); delErr != nil {
			e.logger.Error("failed to roll back item after index insert failure",
				slog.String(observability.LogFieldItemID, created.ID),
				slog.String("error", delErr.Error()))
		}
		return nil, err
	}
	return created, nil
}

// Forget deletes an item from both the store and the index. Deleting an
// unknown id succeeds.
func (e *Engine) Forget(ctx context.Context, id string) error {
	if err := e.Store.DeleteMemoryItem(ctx, &store.DeleteMemoryItem{ID: &id}); err != nil {
		return err
	}
	e.Index.Delete(id)
	return nil
}

// RetrieveContext runs the retrieval pipeline and records the returned
// items as lineage sources on a fresh trace. The trace id accompanies the
// result so the caller can append reasoning steps and seal it.
func (e *Engine) RetrieveContext(ctx context.Context, req *retrieval.Request, query string) (*retrieval.Result, string, error) {
	rc := observability.NewRequestContext(e.logger, req.Owner)
	result, err := e.Retriever.RetrieveContext(observability.WithRequestContext(ctx, rc), req)
	if err != nil {
		return nil, "", err
	}

	traceID := e.Recorder.StartTrace(query)
	for _, hit := range result.Items {
		// Raw similarity can fall outside [0,1] (negative cosine, unbounded
		// dot); source confidence must not.
		confidence := hit.Similarity
		if confidence < 0 {
			confidence = 0
		} else if confidence > 1 {
			confidence = 1
		}
		if _, err := e.Recorder.AddSource(traceID, hit.Item.ID, confidence); err != nil {
			rc.Error("failed to record source", err)
			break
		}
	}
	rc.Info("context retrieved",
		slog.Int("hits", len(result.Items)),
		slog.Bool("partial", result.Partial),
		slog.String(observability.LogFieldTraceID, traceID),
		slog.Int64(observability.LogFieldDuration, rc.DurationMs()))
	return result, traceID, nil
}

// Pin marks an item exempt from decay eviction; Unpin reverses it.
func (e *Engine) Pin(ctx context.Context, id string, pinned bool) (*store.MemoryItem, error) {
	item, err := e.Store.GetMemoryItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperrors.NotFound("memory_item", id)
	}
	return e.Store.UpdateMemoryItem(ctx, &store.UpdateMemoryItem{ID: id, Pinned: &pinned})
}

// DecayOnce triggers a single decay pass outside the schedule.
func (e *Engine) DecayOnce(ctx context.Context) (*decay.PassResult, error) {
	return e.Decay.RunOnce(ctx)
}

// Stats returns storage statistics for one owner.
func (e *Engine) Stats(ctx context.Context, owner string) (*store.MemoryStats, error) {
	return e.Store.GetMemoryStats(ctx, owner)
}

// TraceSummary loads a persisted trace and summarizes it.
func (e *Engine) TraceSummary(ctx context.Context, traceID string) (*lineage.TraceSummary, error) {
	trace, err := e.Store.GetLineageTrace(ctx, traceID)
	if err != nil {
		return nil, err
	}
	if trace == nil {
		return nil, apperrors.UnknownTrace(traceID)
	}
	g, err := lineage.UnmarshalGraph(trace.Payload)
	if err != nil {
		return nil, err
	}
	summary := lineage.Summarize(g, time.Now())
	return &summary, nil
}
