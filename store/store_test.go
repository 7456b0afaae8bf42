package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/axisai/axismem/internal/errors"
	"github.com/axisai/axismem/internal/profile"
	"github.com/axisai/axismem/store"
	"github.com/axisai/axismem/store/db/sqlite"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	p := &profile.Profile{
		Mode:      "demo",
		Driver:    "sqlite",
		DSN:       filepath.Join(t.TempDir(), "axismem_test.db"),
		Dimension: 2,
		Metric:    "cosine",
	}
	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)
	st := store.New(driver, p)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newItem(owner string, embedding []float32) *store.MemoryItem {
	return &store.MemoryItem{
		Owner:     owner,
		Content:   "the sky is blue",
		Embedding: embedding,
		Tags:      []string{"fact"},
	}
}

func TestCreateMemoryItem(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	t.Run("round trip", func(t *testing.T) {
		created, err := st.CreateMemoryItem(ctx, newItem("alice", []float32{1, 0}))
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)
		assert.Equal(t, store.PrivacyPrivate, created.Privacy)
		assert.Equal(t, 1.0, created.Importance)
		assert.NotZero(t, created.CreatedTs)
		assert.Equal(t, created.CreatedTs, created.LastAccessedTs)

		got, err := st.GetMemoryItem(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, created.Content, got.Content)
		assert.Equal(t, []float32{1, 0}, got.Embedding)
		assert.Equal(t, []string{"fact"}, got.Tags)
	})

	t.Run("rejects empty owner", func(t *testing.T) {
		_, err := st.CreateMemoryItem(ctx, newItem("", []float32{1, 0}))
		require.Error(t, err)
	})

	t.Run("rejects wrong dimension", func(t *testing.T) {
		_, err := st.CreateMemoryItem(ctx, newItem("alice", []float32{1, 0, 0}))
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDimensionMismatch))
	})

	t.Run("rejects importance out of range", func(t *testing.T) {
		item := newItem("alice", []float32{1, 0})
		item.Importance = 1.5
		_, err := st.CreateMemoryItem(ctx, item)
		require.Error(t, err)
	})

	t.Run("deduplicates tags", func(t *testing.T) {
		item := newItem("alice", []float32{1, 0})
		item.Tags = []string{"b", "a", "b", "a"}
		created, err := st.CreateMemoryItem(ctx, item)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, created.Tags)
	})
}

func TestRecordAccess(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	created, err := st.CreateMemoryItem(ctx, newItem("alice", []float32{1, 0}))
	require.NoError(t, err)
	assert.Equal(t, int64(0), created.AccessCount)

	require.NoError(t, st.RecordAccess(ctx, created.ID))
	require.NoError(t, st.RecordAccess(ctx, created.ID))

	got, err := st.GetMemoryItem(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.AccessCount)
	assert.GreaterOrEqual(t, got.LastAccessedTs, created.LastAccessedTs)
}

func TestUpdateMemoryItem(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	created, err := st.CreateMemoryItem(ctx, newItem("alice", []float32{1, 0}))
	require.NoError(t, err)

	t.Run("does not touch access stats", func(t *testing.T) {
		content := "updated content"
		updated, err := st.UpdateMemoryItem(ctx, &store.UpdateMemoryItem{ID: created.ID, Content: &content})
		require.NoError(t, err)
		assert.Equal(t, content, updated.Content)
		assert.Equal(t, created.AccessCount, updated.AccessCount)
		assert.Equal(t, created.LastAccessedTs, updated.LastAccessedTs)
	})

	t.Run("pin flag", func(t *testing.T) {
		pinned := true
		updated, err := st.UpdateMemoryItem(ctx, &store.UpdateMemoryItem{ID: created.ID, Pinned: &pinned})
		require.NoError(t, err)
		assert.True(t, updated.Pinned)
	})

	t.Run("rejects wrong embedding dimension", func(t *testing.T) {
		_, err := st.UpdateMemoryItem(ctx, &store.UpdateMemoryItem{ID: created.ID, Embedding: []float32{1}})
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDimensionMismatch))
	})
}

func TestDeleteMemoryItem(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	created, err := st.CreateMemoryItem(ctx, newItem("alice", []float32{1, 0}))
	require.NoError(t, err)

	require.NoError(t, st.DeleteMemoryItem(ctx, &store.DeleteMemoryItem{ID: &created.ID}))
	got, err := st.GetMemoryItem(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Idempotent: deleting again succeeds.
	require.NoError(t, st.DeleteMemoryItem(ctx, &store.DeleteMemoryItem{ID: &created.ID}))
}

func TestListMemoryItems(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	_, err := st.CreateMemoryItem(ctx, newItem("alice", []float32{1, 0}))
	require.NoError(t, err)
	shared := newItem("alice", []float32{0, 1})
	shared.Privacy = store.PrivacyShared
	shared.Tags = []string{"note"}
	_, err = st.CreateMemoryItem(ctx, shared)
	require.NoError(t, err)
	_, err = st.CreateMemoryItem(ctx, newItem("bob", []float32{0, 1}))
	require.NoError(t, err)

	t.Run("by owner", func(t *testing.T) {
		owner := "alice"
		items, err := st.ListMemoryItems(ctx, &store.FindMemoryItem{Owner: &owner})
		require.NoError(t, err)
		assert.Len(t, items, 2)
	})

	t.Run("by privacy", func(t *testing.T) {
		owner := "alice"
		items, err := st.ListMemoryItems(ctx, &store.FindMemoryItem{
			Owner:   &owner,
			Privacy: []store.Privacy{store.PrivacyShared},
		})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, store.PrivacyShared, items[0].Privacy)
	})

	t.Run("by tag", func(t *testing.T) {
		tag := "note"
		items, err := st.ListMemoryItems(ctx, &store.FindMemoryItem{Tag: &tag})
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})
}

func TestListEmbeddings(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	a, err := st.CreateMemoryItem(ctx, newItem("alice", []float32{1, 0}))
	require.NoError(t, err)
	_, err = st.CreateMemoryItem(ctx, newItem("bob", []float32{0, 1}))
	require.NoError(t, err)

	rows, err := st.ListEmbeddings(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	owner := "alice"
	rows, err = st.ListEmbeddings(ctx, &owner)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, a.ID, rows[0].ID)
	assert.Equal(t, []float32{1, 0}, rows[0].Embedding)
	assert.Equal(t, a.LastAccessedTs, rows[0].LastAccessedTs)
}

func TestGetMemoryStats(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	pinned := newItem("alice", []float32{1, 0})
	pinned.Pinned = true
	_, err := st.CreateMemoryItem(ctx, pinned)
	require.NoError(t, err)
	_, err = st.CreateMemoryItem(ctx, newItem("alice", []float32{0, 1}))
	require.NoError(t, err)

	stats, err := st.GetMemoryStats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalItems)
	assert.Equal(t, 1, stats.PinnedItems)
	assert.Equal(t, 2, stats.PrivacyDistribution["private"])
	assert.Equal(t, 2, stats.TagDistribution["fact"])
}

func TestLineageTraces(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	trace := &store.LineageTrace{
		ID:        "t1",
		Query:     "what color is the sky",
		Status:    store.TraceStatusSealed,
		Payload:   []byte(`{"traceId":"t1"}`),
		CreatedTs: 100,
		SealedTs:  200,
	}
	_, err := st.CreateLineageTrace(ctx, trace)
	require.NoError(t, err)

	got, err := st.GetLineageTrace(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, store.TraceStatusSealed, got.Status)
	assert.JSONEq(t, `{"traceId":"t1"}`, string(got.Payload))

	status := store.TraceStatusSealed
	list, err := st.ListLineageTraces(ctx, &store.FindLineageTrace{Status: &status})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	id := "t1"
	require.NoError(t, st.DeleteLineageTrace(ctx, &store.DeleteLineageTrace{ID: &id}))
	got, err = st.GetLineageTrace(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
