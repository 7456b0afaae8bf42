package decay_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axisai/axismem/decay"
	"github.com/axisai/axismem/index"
	"github.com/axisai/axismem/internal/observability"
	"github.com/axisai/axismem/internal/profile"
	"github.com/axisai/axismem/lineage"
	"github.com/axisai/axismem/store"
	"github.com/axisai/axismem/store/db/sqlite"
)

type fixture struct {
	store    *store.Store
	index    *index.VectorIndex
	recorder *lineage.Recorder
	runner   *decay.Runner
}

func newFixture(t *testing.T, decayRate float64) *fixture {
	t.Helper()
	p := &profile.Profile{
		Mode:             "demo",
		Driver:           "sqlite",
		DSN:              filepath.Join(t.TempDir(), "axismem_test.db"),
		Dimension:        2,
		Metric:           "cosine",
		DecayInterval:    time.Hour,
		DecayRate:        decayRate,
		EvictionFloor:    0.05,
		RebuildThreshold: 64,
		TraceIdleTimeout: 30 * time.Minute,
	}
	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)
	st := store.New(driver, p)
	t.Cleanup(func() { _ = st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetrics(16)
	idx := index.New(2, index.MetricCosine)
	rec := lineage.NewRecorder(p, st, metrics, logger)
	runner := decay.NewRunner(p, st, idx, rec, nil, metrics, logger)
	return &fixture{store: st, index: idx, recorder: rec, runner: runner}
}

// staleItem builds an item last accessed long enough ago to decay.
func staleItem(owner string, importance float64, pinned bool) *store.MemoryItem {
	past := time.Now().Add(-48 * time.Hour).Unix()
	return &store.MemoryItem{
		Owner:          owner,
		Content:        "c",
		Embedding:      []float32{1, 0},
		Pinned:         pinned,
		Importance:     importance,
		CreatedTs:      past,
		LastAccessedTs: past,
	}
}

func TestExponentialStrategy(t *testing.T) {
	s := decay.Exponential{Rate: 0.5}

	assert.Equal(t, 0.8, s.Next(0.8, 30*time.Minute, time.Hour), "recently accessed items keep their importance")
	assert.Equal(t, 0.4, s.Next(0.8, 2*time.Hour, time.Hour))
	assert.GreaterOrEqual(t, s.Next(0.0, 100*time.Hour, time.Hour), 0.0)
}

func TestRunOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("pinned items are exempt, unpinned decay and evict", func(t *testing.T) {
		f := newFixture(t, 0.5)

		pinned, err := f.store.CreateMemoryItem(ctx, staleItem("alice", 0.1, true))
		require.NoError(t, err)
		unpinned, err := f.store.CreateMemoryItem(ctx, staleItem("alice", 0.1, false))
		require.NoError(t, err)
		require.NoError(t, f.index.Insert(pinned.ID, pinned.Embedding, pinned.LastAccessedTs))
		require.NoError(t, f.index.Insert(unpinned.ID, unpinned.Embedding, unpinned.LastAccessedTs))

		var evicted int
		for i := 0; i < 10; i++ {
			result, err := f.runner.RunOnce(ctx)
			require.NoError(t, err)
			evicted += result.Evicted
		}

		got, err := f.store.GetMemoryItem(ctx, pinned.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 0.1, got.Importance, "pinned importance unchanged")

		gone, err := f.store.GetMemoryItem(ctx, unpinned.ID)
		require.NoError(t, err)
		assert.Nil(t, gone, "unpinned item evicted below the floor")
		assert.Equal(t, 1, evicted)
		assert.Equal(t, 1, f.index.Size())
	})

	t.Run("items referenced by open traces survive", func(t *testing.T) {
		f := newFixture(t, 0.01)

		item, err := f.store.CreateMemoryItem(ctx, staleItem("alice", 0.1, false))
		require.NoError(t, err)
		require.NoError(t, f.index.Insert(item.ID, item.Embedding, item.LastAccessedTs))

		traceID := f.recorder.StartTrace("q")
		_, err = f.recorder.AddSource(traceID, item.ID, 0.9)
		require.NoError(t, err)

		result, err := f.runner.RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Evicted)
		assert.Equal(t, 1, result.Conflicts)

		survivor, err := f.store.GetMemoryItem(ctx, item.ID)
		require.NoError(t, err)
		assert.NotNil(t, survivor)
	})

	t.Run("fresh items do not decay", func(t *testing.T) {
		f := newFixture(t, 0.5)

		item, err := f.store.CreateMemoryItem(ctx, &store.MemoryItem{
			Owner:      "alice",
			Content:    "c",
			Embedding:  []float32{1, 0},
			Importance: 0.8,
		})
		require.NoError(t, err)

		result, err := f.runner.RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Decayed)

		got, err := f.store.GetMemoryItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, 0.8, got.Importance)
	})

	t.Run("rebuild fires past the eviction threshold", func(t *testing.T) {
		f := newFixture(t, 0.5)

		for i := 0; i < 70; i++ {
			created, err := f.store.CreateMemoryItem(ctx, staleItem("alice", 0.01, false))
			require.NoError(t, err)
			require.NoError(t, f.index.Insert(created.ID, created.Embedding, created.LastAccessedTs))
		}

		result, err := f.runner.RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 70, result.Evicted)
		assert.True(t, result.Rebuilt)
		assert.Equal(t, int64(0), f.index.DeletesSinceRebuild())
	})
}
