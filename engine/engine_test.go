package engine_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axisai/axismem/engine"
	apperrors "github.com/axisai/axismem/internal/errors"
	"github.com/axisai/axismem/internal/profile"
	"github.com/axisai/axismem/retrieval"
	"github.com/axisai/axismem/store"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	p := &profile.Profile{
		Mode:             "demo",
		Driver:           "sqlite",
		DSN:              filepath.Join(t.TempDir(), "axismem_test.db"),
		Dimension:        2,
		Metric:           "cosine",
		SimilarityWeight: 1.0,
		RecencyWeight:    0.4,
		FrequencyWeight:  0.3,
		ImportanceWeight: 0.3,
		PinScoreFloor:    1.0,
		RetrieveTimeout:  2 * time.Second,
		DecayInterval:    time.Hour,
		DecayRate:        0.98,
		EvictionFloor:    0.05,
		RebuildThreshold: 64,
		TraceIdleTimeout: 30 * time.Minute,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng, err := engine.New(context.Background(), p, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func TestEngine(t *testing.T) {
	ctx := context.Background()

	t.Run("ingest retrieve forget round trip", func(t *testing.T) {
		eng := newTestEngine(t)
		created, err := eng.Ingest(ctx, &store.MemoryItem{
			Owner:     "alice",
			Content:   "prefers dark roast",
			Embedding: []float32{1, 0},
		})
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)
		assert.Equal(t, 1, eng.Index.Size())

		result, traceID, err := eng.RetrieveContext(ctx, &retrieval.Request{
			Owner:  "alice",
			Vector: []float32{1, 0},
			K:      5,
		}, "coffee preference")
		require.NoError(t, err)
		require.Len(t, result.Items, 1)
		assert.Equal(t, created.ID, result.Items[0].Item.ID)
		assert.NotEmpty(t, traceID)
		assert.Equal(t, 1, eng.Recorder.OpenTraceCount())

		require.NoError(t, eng.Forget(ctx, created.ID))
		assert.Equal(t, 0, eng.Index.Size())
		got, err := eng.Store.GetMemoryItem(ctx, created.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ingest rejects wrong dimension without a stray row", func(t *testing.T) {
		eng := newTestEngine(t)
		_, err := eng.Ingest(ctx, &store.MemoryItem{
			Owner:     "alice",
			Content:   "c",
			Embedding: []float32{1, 0, 0},
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDimensionMismatch))

		items, err := eng.Store.ListMemoryItems(ctx, &store.FindMemoryItem{})
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("retrieval trace seals into a persisted graph", func(t *testing.T) {
		eng := newTestEngine(t)
		_, err := eng.Ingest(ctx, &store.MemoryItem{
			Owner:     "alice",
			Content:   "meeting moved to friday",
			Embedding: []float32{0.6, 0.8},
		})
		require.NoError(t, err)

		_, traceID, err := eng.RetrieveContext(ctx, &retrieval.Request{
			Owner:  "alice",
			Vector: []float32{0.6, 0.8},
			K:      1,
		}, "when is the meeting")
		require.NoError(t, err)

		sealed, err := eng.Recorder.Seal(ctx, traceID, "friday")
		require.NoError(t, err)
		assert.Equal(t, 0, eng.Recorder.OpenTraceCount())

		summary, err := eng.TraceSummary(ctx, sealed.TraceID)
		require.NoError(t, err)
		assert.Equal(t, "friday", summary.FinalAnswer)
		assert.Greater(t, summary.TrustScore, 0.0)
	})

	t.Run("opposite-direction hit still seals a valid trace", func(t *testing.T) {
		eng := newTestEngine(t)
		created, err := eng.Ingest(ctx, &store.MemoryItem{
			Owner:     "alice",
			Content:   "c",
			Embedding: []float32{1, 0},
		})
		require.NoError(t, err)

		// Cosine similarity against the only item is -1 here; the recorded
		// source confidence must still land in [0,1] so sealing validates.
		result, traceID, err := eng.RetrieveContext(ctx, &retrieval.Request{
			Owner:  "alice",
			Vector: []float32{-1, 0},
			K:      1,
		}, "q")
		require.NoError(t, err)
		require.Len(t, result.Items, 1)
		assert.Equal(t, created.ID, result.Items[0].Item.ID)

		_, err = eng.Recorder.Seal(ctx, traceID, "a")
		require.NoError(t, err)

		trace, err := eng.Store.GetLineageTrace(ctx, traceID)
		require.NoError(t, err)
		require.NotNil(t, trace)
		assert.Equal(t, store.TraceStatusSealed, trace.Status)
	})

	t.Run("pin survives a decay pass", func(t *testing.T) {
		eng := newTestEngine(t)
		created, err := eng.Ingest(ctx, &store.MemoryItem{
			Owner:     "alice",
			Content:   "c",
			Embedding: []float32{1, 0},
		})
		require.NoError(t, err)

		pinned, err := eng.Pin(ctx, created.ID, true)
		require.NoError(t, err)
		assert.True(t, pinned.Pinned)

		result, err := eng.DecayOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Evicted)

		got, err := eng.Store.GetMemoryItem(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
	})

	t.Run("pin unknown id returns not found", func(t *testing.T) {
		eng := newTestEngine(t)
		_, err := eng.Pin(ctx, "missing", true)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
	})

	t.Run("stats reflect stored items", func(t *testing.T) {
		eng := newTestEngine(t)
		for i := 0; i < 3; i++ {
			_, err := eng.Ingest(ctx, &store.MemoryItem{
				Owner:     "alice",
				Content:   "c",
				Embedding: []float32{1, 0},
				Tags:      []string{"work"},
			})
			require.NoError(t, err)
		}
		stats, err := eng.Stats(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, 3, stats.TotalItems)
		assert.Equal(t, 3, stats.TagDistribution["work"])
	})

	t.Run("index warm load on restart", func(t *testing.T) {
		dir := t.TempDir()
		p := &profile.Profile{
			Mode: "demo", Driver: "sqlite",
			DSN:              filepath.Join(dir, "axismem_test.db"),
			Dimension:        2,
			Metric:           "cosine",
			SimilarityWeight: 1.0,
			RetrieveTimeout:  2 * time.Second,
			DecayInterval:    time.Hour,
			DecayRate:        0.98,
			EvictionFloor:    0.05,
			RebuildThreshold: 64,
			TraceIdleTimeout: 30 * time.Minute,
		}
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))

		eng, err := engine.New(ctx, p, logger)
		require.NoError(t, err)
		_, err = eng.Ingest(ctx, &store.MemoryItem{
			Owner:     "alice",
			Content:   "c",
			Embedding: []float32{1, 0},
		})
		require.NoError(t, err)
		require.NoError(t, eng.Close())

		reopened, err := engine.New(ctx, p, logger)
		require.NoError(t, err)
		defer reopened.Close()
		assert.Equal(t, 1, reopened.Index.Size())
	})
}
