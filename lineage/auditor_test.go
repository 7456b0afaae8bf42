package lineage_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axisai/axismem/lineage"
	"github.com/axisai/axismem/store"
)

func TestAudit(t *testing.T) {
	ctx := context.Background()
	rec, st := newTestRecorder(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// A clean sealed trace.
	cleanID := rec.StartTrace("q1")
	srcID, err := rec.AddSource(cleanID, "m1", 0.9)
	require.NoError(t, err)
	_, err = rec.AddReasoningStep(cleanID, "synthesis", "r", 0.8, "model-a", []string{srcID})
	require.NoError(t, err)
	_, err = rec.Seal(ctx, cleanID, "a")
	require.NoError(t, err)

	// A quarantined trace (confidence out of range).
	badID := rec.StartTrace("q2")
	srcID, err = rec.AddSource(badID, "m2", 0.9)
	require.NoError(t, err)
	_, err = rec.AddReasoningStep(badID, "synthesis", "r", 1.5, "model-a", []string{srcID})
	require.NoError(t, err)
	_, err = rec.Seal(ctx, badID, "a")
	require.Error(t, err)

	// A trace whose payload no longer decodes.
	_, err = st.CreateLineageTrace(ctx, &store.LineageTrace{
		ID:      "broken",
		Status:  store.TraceStatusSealed,
		Payload: []byte("not json"),
	})
	require.NoError(t, err)

	report, err := lineage.Audit(ctx, st, logger)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, 1, report.Clean)
	require.Len(t, report.Flagged, 2)

	flaggedIDs := map[string]string{}
	for _, f := range report.Flagged {
		flaggedIDs[f.TraceID] = f.Status
	}
	assert.Equal(t, string(store.TraceStatusQuarantined), flaggedIDs[badID])
	assert.Equal(t, "unreadable", flaggedIDs["broken"])

	// Every readable trace gets a summary, the broken payload does not.
	require.Len(t, report.Summaries, 2)
	summarized := map[string]bool{}
	for _, s := range report.Summaries {
		summarized[s.TraceID] = true
	}
	assert.True(t, summarized[cleanID])
	assert.True(t, summarized[badID])
}
