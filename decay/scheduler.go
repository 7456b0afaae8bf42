package decay

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/axisai/axismem/index"
	apperrors "github.com/axisai/axismem/internal/errors"
	"github.com/axisai/axismem/internal/observability"
	"github.com/axisai/axismem/internal/profile"
	"github.com/axisai/axismem/lineage"
	"github.com/axisai/axismem/store"
)

// PassResult reports what one decay pass did.
type PassResult struct {
	Examined  int
	Decayed   int
	Evicted   int
	Conflicts int
	Rebuilt   bool
}

// Runner is the periodic decay scheduler. A tick that fires while the
// previous pass is still running is skipped, never queued.
type Runner struct {
	profile  *profile.Profile
	store    *store.Store
	index    *index.VectorIndex
	recorder *lineage.Recorder
	strategy Strategy
	metrics  *observability.Metrics
	logger   *slog.Logger

	running atomic.Bool
}

func NewRunner(p *profile.Profile, st *store.Store, idx *index.VectorIndex, recorder *lineage.Recorder, strategy Strategy, metrics *observability.Metrics, logger *slog.Logger) *Runner {
	if strategy == nil {
		strategy = Exponential{Rate: p.DecayRate}
	}
	return &Runner{
		profile:  p,
		store:    st,
		index:    idx,
		recorder: recorder,
		strategy: strategy,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run starts the background task.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.profile.DecayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !r.running.CompareAndSwap(false, true) {
				r.metrics.RecordDecaySkipped()
				r.logger.Info("decay pass still running, tick skipped")
				continue
			}
			if _, err := r.pass(ctx); err != nil {
				r.logger.Error("decay pass failed", slog.String("error", err.Error()))
			}
			r.running.Store(false)
		case <-ctx.Done():
			r.logger.Info("decay runner stopped")
			return
		}
	}
}

// RunOnce executes a single pass (for manual trigger).
func (r *Runner) RunOnce(ctx context.Context) (*PassResult, error) {
	if !r.running.CompareAndSwap(false, true) {
		r.metrics.RecordDecaySkipped()
		return nil, nil
	}
	defer r.running.Store(false)
	return r.pass(ctx)
}

func (r *Runner) pass(ctx context.Context) (*PassResult, error) {
	start := time.Now()
	result := &PassResult{}

	// Expired open traces must stop shielding their items first.
	if collected := r.recorder.CollectAbandoned(); collected > 0 {
		r.logger.Info("collected abandoned traces", slog.Int("count", collected))
	}

	// Items inserted mid-pass wait for the next one.
	items, err := r.store.ListMemoryItems(ctx, &store.FindMemoryItem{})
	if err != nil {
		return nil, err
	}
	protected := r.recorder.ReferencedItemIDs()

	for _, item := range items {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.Examined++
		if item.Pinned {
			continue
		}

		sinceAccess := start.Sub(time.Unix(item.LastAccessedTs, 0))
		next := r.strategy.Next(item.Importance, sinceAccess, r.profile.DecayInterval)
		if next != item.Importance {
			if err := r.store.UpdateImportance(ctx, item.ID, next); err != nil {
				r.logger.Warn("failed to update importance",
					slog.String(observability.LogFieldItemID, item.ID),
					slog.String("error", err.Error()))
				continue
			}
			result.Decayed++
		}

		if next >= r.profile.EvictionFloor {
			continue
		}
		if traceID, open := protected[item.ID]; open {
			result.Conflicts++
			conflict := apperrors.EvictionConflict(item.ID, traceID)
			r.logger.Info("eviction deferred",
				slog.String(observability.LogFieldItemID, item.ID),
				slog.String(observability.LogFieldTraceID, traceID),
				slog.String("reason", conflict.Error()))
			continue
		}
		if err := r.store.DeleteMemoryItem(ctx, &store.DeleteMemoryItem{ID: &item.ID}); err != nil {
			r.logger.Warn("failed to evict item",
				slog.String(observability.LogFieldItemID, item.ID),
				slog.String("error", err.Error()))
			continue
		}
		r.index.Delete(item.ID)
		result.Evicted++
	}

	// Tombstoned deletions accumulate until a batch rebuild pays off.
	if r.index.DeletesSinceRebuild() > int64(r.profile.RebuildThreshold) {
		if err := r.rebuild(ctx); err != nil {
			r.logger.Error("index rebuild failed", slog.String("error", err.Error()))
		} else {
			result.Rebuilt = true
			r.metrics.RecordIndexRebuild()
		}
	}

	r.metrics.RecordDecayPass(result.Evicted)
	r.logger.Info("decay pass complete",
		slog.Int("examined", result.Examined),
		slog.Int("decayed", result.Decayed),
		slog.Int("evicted", result.Evicted),
		slog.Int("conflicts", result.Conflicts),
		slog.Int64(observability.LogFieldDuration, time.Since(start).Milliseconds()))
	return result, nil
}

func (r *Runner) rebuild(ctx context.Context) error {
	rows, err := r.store.ListEmbeddings(ctx, nil)
	if err != nil {
		return err
	}
	entries := make([]index.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, index.Entry{ID: row.ID, Vector: row.Embedding, LastAccessed: row.LastAccessedTs})
	}
	return r.index.Rebuild(entries)
}
