// Package export serializes memory items and sealed lineage traces to a
// versioned JSON snapshot and restores them.
package export

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"time"

	apperrors "github.com/axisai/axismem/internal/errors"
	"github.com/axisai/axismem/store"
)

// FormatVersion identifies the snapshot layout.
const FormatVersion = 1

// ItemRecord is the exported form of one memory item.
type ItemRecord struct {
	ID             string    `json:"id"`
	Owner          string    `json:"owner"`
	Content        string    `json:"content"`
	Embedding      []float32 `json:"embedding"`
	Tags           []string  `json:"tags"`
	Privacy        string    `json:"privacy"`
	SourceRef      string    `json:"sourceRef,omitempty"`
	Pinned         bool      `json:"pinned"`
	Importance     float64   `json:"importance"`
	CreatedTs      int64     `json:"createdTs"`
	LastAccessedTs int64     `json:"lastAccessedTs"`
	AccessCount    int64     `json:"accessCount"`
}

// TraceRecord is the exported form of one persisted lineage trace.
type TraceRecord struct {
	ID        string          `json:"id"`
	Query     string          `json:"query"`
	Status    string          `json:"status"`
	Payload   json.RawMessage `json:"payload"`
	Violation string          `json:"violation,omitempty"`
	CreatedTs int64           `json:"createdTs"`
	SealedTs  int64           `json:"sealedTs"`
}

// Snapshot is the full export envelope. Checksum covers the items and
// traces so a tampered or truncated file fails import.
type Snapshot struct {
	Version    int           `json:"version"`
	Dimension  int           `json:"dimension"`
	ExportedTs int64         `json:"exportedTs"`
	Checksum   string        `json:"checksum"`
	Items      []ItemRecord  `json:"items"`
	Traces     []TraceRecord `json:"traces"`
}

// Export writes a snapshot of all items and persisted traces to w.
func Export(ctx context.Context, st *store.Store, dimension int, w io.Writer) (*Snapshot, error) {
	items, err := st.ListMemoryItems(ctx, &store.FindMemoryItem{})
	if err != nil {
		return nil, err
	}
	traces, err := st.ListLineageTraces(ctx, &store.FindLineageTrace{})
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Version:    FormatVersion,
		Dimension:  dimension,
		ExportedTs: time.Now().Unix(),
		Items:      make([]ItemRecord, 0, len(items)),
		Traces:     make([]TraceRecord, 0, len(traces)),
	}
	for _, item := range items {
		snap.Items = append(snap.Items, ItemRecord{
			ID:             item.ID,
			Owner:          item.Owner,
			Content:        item.Content,
			Embedding:      item.Embedding,
			Tags:           item.Tags,
			Privacy:        string(item.Privacy),
			SourceRef:      item.SourceRef,
			Pinned:         item.Pinned,
			Importance:     item.Importance,
			CreatedTs:      item.CreatedTs,
			LastAccessedTs: item.LastAccessedTs,
			AccessCount:    item.AccessCount,
		})
	}
	for _, trace := range traces {
		snap.Traces = append(snap.Traces, TraceRecord{
			ID:        trace.ID,
			Query:     trace.Query,
			Status:    string(trace.Status),
			Payload:   json.RawMessage(trace.Payload),
			Violation: trace.Violation,
			CreatedTs: trace.CreatedTs,
			SealedTs:  trace.SealedTs,
		})
	}

	checksum, err := checksum(snap)
	if err != nil {
		return nil, err
	}
	snap.Checksum = checksum

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// ImportResult reports what Import restored.
type ImportResult struct {
	Items  int
	Traces int
}

// Import restores a snapshot into the store. It rejects snapshots whose
// dimension disagrees with the deployment and items whose id already
// exists, leaving previously imported records in place.
func Import(ctx context.Context, st *store.Store, dimension int, r io.Reader) (*ImportResult, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidArgument, "failed to decode snapshot")
	}
	if snap.Version != FormatVersion {
		return nil, apperrors.InvalidArgument("unsupported snapshot version")
	}
	if snap.Dimension != dimension {
		return nil, apperrors.DimensionMismatch(dimension, snap.Dimension)
	}

	want := snap.Checksum
	got, err := checksum(&snap)
	if err != nil {
		return nil, err
	}
	if want != "" && want != got {
		return nil, apperrors.InvalidArgument("snapshot checksum mismatch")
	}

	result := &ImportResult{}
	for _, record := range snap.Items {
		if len(record.Embedding) != dimension {
			return nil, apperrors.DimensionMismatch(dimension, len(record.Embedding))
		}
		existing, err := st.GetMemoryItem(ctx, record.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, apperrors.DuplicateID(record.ID)
		}
		if _, err := st.CreateMemoryItem(ctx, &store.MemoryItem{
			ID:             record.ID,
			Owner:          record.Owner,
			Content:        record.Content,
			Embedding:      record.Embedding,
			Tags:           record.Tags,
			Privacy:        store.Privacy(record.Privacy),
			SourceRef:      record.SourceRef,
			Pinned:         record.Pinned,
			Importance:     record.Importance,
			CreatedTs:      record.CreatedTs,
			LastAccessedTs: record.LastAccessedTs,
			AccessCount:    record.AccessCount,
		}); err != nil {
			return nil, err
		}
		result.Items++
	}

	for _, record := range snap.Traces {
		existing, err := st.GetLineageTrace(ctx, record.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, apperrors.DuplicateID(record.ID)
		}
		if _, err := st.CreateLineageTrace(ctx, &store.LineageTrace{
			ID:        record.ID,
			Query:     record.Query,
			Status:    store.TraceStatus(record.Status),
			Payload:   []byte(record.Payload),
			Violation: record.Violation,
			CreatedTs: record.CreatedTs,
			SealedTs:  record.SealedTs,
		}); err != nil {
			return nil, err
		}
		result.Traces++
	}
	return result, nil
}

// checksum hashes the items and traces sections, ignoring the envelope
// metadata so re-exports of identical data hash identically.
func checksum(snap *Snapshot) (string, error) {
	body := struct {
		Items  []ItemRecord  `json:"items"`
		Traces []TraceRecord `json:"traces"`
	}{Items: snap.Items, Traces: snap.Traces}

	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
