package export_test

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axisai/axismem/export"
	apperrors "github.com/axisai/axismem/internal/errors"
	"github.com/axisai/axismem/internal/profile"
	"github.com/axisai/axismem/store"
	"github.com/axisai/axismem/store/db/sqlite"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	p := &profile.Profile{
		Driver:    "sqlite",
		DSN:       filepath.Join(t.TempDir(), "axismem_test.db"),
		Dimension: 2,
	}
	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)
	st := store.New(driver, p)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seed(t *testing.T, st *store.Store) {
	t.Helper()
	ctx := context.Background()
	_, err := st.CreateMemoryItem(ctx, &store.MemoryItem{
		Owner:      "alice",
		Content:    "prefers dark roast",
		Embedding:  []float32{0.3, 0.7},
		Tags:       []string{"preference"},
		Pinned:     true,
		Importance: 0.9,
	})
	require.NoError(t, err)
	_, err = st.CreateMemoryItem(ctx, &store.MemoryItem{
		Owner:     "alice",
		Content:   "meeting moved to friday",
		Embedding: []float32{0.8, 0.1},
	})
	require.NoError(t, err)
	_, err = st.CreateLineageTrace(ctx, &store.LineageTrace{
		ID:      "trace-1",
		Query:   "when is the meeting",
		Status:  store.TraceStatusSealed,
		Payload: []byte(`{"traceId":"trace-1"}`),
	})
	require.NoError(t, err)
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		src := newTestStore(t)
		seed(t, src)

		var buf bytes.Buffer
		snap, err := export.Export(ctx, src, 2, &buf)
		require.NoError(t, err)
		assert.Equal(t, export.FormatVersion, snap.Version)
		assert.Len(t, snap.Items, 2)
		assert.Len(t, snap.Traces, 1)
		assert.NotEmpty(t, snap.Checksum)

		dst := newTestStore(t)
		result, err := export.Import(ctx, dst, 2, &buf)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Items)
		assert.Equal(t, 1, result.Traces)

		items, err := dst.ListMemoryItems(ctx, &store.FindMemoryItem{})
		require.NoError(t, err)
		require.Len(t, items, 2)
		for _, item := range items {
			want, err := src.GetMemoryItem(ctx, item.ID)
			require.NoError(t, err)
			require.NotNil(t, want)
			assert.Equal(t, want.Content, item.Content)
			assert.Equal(t, want.Embedding, item.Embedding)
			assert.Equal(t, want.Pinned, item.Pinned)
			assert.Equal(t, want.Importance, item.Importance)
		}

		trace, err := dst.GetLineageTrace(ctx, "trace-1")
		require.NoError(t, err)
		require.NotNil(t, trace)
		assert.Equal(t, store.TraceStatusSealed, trace.Status)
	})

	t.Run("rejects dimension mismatch", func(t *testing.T) {
		src := newTestStore(t)
		seed(t, src)

		var buf bytes.Buffer
		_, err := export.Export(ctx, src, 2, &buf)
		require.NoError(t, err)

		dst := newTestStore(t)
		_, err = export.Import(ctx, dst, 4, &buf)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDimensionMismatch))
	})

	t.Run("rejects duplicate item ids", func(t *testing.T) {
		src := newTestStore(t)
		seed(t, src)

		var buf bytes.Buffer
		_, err := export.Export(ctx, src, 2, &buf)
		require.NoError(t, err)

		// Importing into the source store collides on every id.
		_, err = export.Import(ctx, src, 2, &buf)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDuplicateID))
	})

	t.Run("rejects tampered snapshot", func(t *testing.T) {
		src := newTestStore(t)
		seed(t, src)

		var buf bytes.Buffer
		_, err := export.Export(ctx, src, 2, &buf)
		require.NoError(t, err)

		tampered := strings.Replace(buf.String(), "dark roast", "light roast", 1)
		dst := newTestStore(t)
		_, err = export.Import(ctx, dst, 2, strings.NewReader(tampered))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "checksum")
	})

	t.Run("rejects unknown version", func(t *testing.T) {
		dst := newTestStore(t)
		payload := `{"version":99,"dimension":2,"items":[],"traces":[]}`
		_, err := export.Import(ctx, dst, 2, strings.NewReader(payload))
		require.Error(t, err)
	})

	t.Run("empty store exports cleanly", func(t *testing.T) {
		src := newTestStore(t)
		var buf bytes.Buffer
		snap, err := export.Export(ctx, src, 2, &buf)
		require.NoError(t, err)
		assert.Empty(t, snap.Items)
		assert.Empty(t, snap.Traces)

		dst := newTestStore(t)
		result, err := export.Import(ctx, dst, 2, &buf)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Items)
	})
}
