package lineage

import (
	"context"
	"log/slog"
	"time"

	"github.com/axisai/axismem/internal/observability"
	"github.com/axisai/axismem/store"
)

// AuditReport is the outcome of re-validating persisted traces.
type AuditReport struct {
	Checked   int            `json:"checked"`
	Clean     int            `json:"clean"`
	Flagged   []FlaggedTrace `json:"flagged"`
	Summaries []TraceSummary `json:"summaries,omitempty"`
}

// FlaggedTrace records a persisted trace that no longer validates.
type FlaggedTrace struct {
	TraceID    string      `json:"traceId"`
	Status     string      `json:"status"`
	Violations []Violation `json:"violations"`
}

// Audit re-runs validation over every persisted sealed trace. Useful after
// schema migrations or to inspect what quarantine has accumulated.
func Audit(ctx context.Context, st *store.Store, logger *slog.Logger) (*AuditReport, error) {
	traces, err := st.ListLineageTraces(ctx, &store.FindLineageTrace{})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	report := &AuditReport{Flagged: []FlaggedTrace{}}
	for _, trace := range traces {
		report.Checked++

		g, err := UnmarshalGraph(trace.Payload)
		if err != nil {
			logger.Warn("trace payload unreadable",
				slog.String(observability.LogFieldTraceID, trace.ID),
				slog.String("error", err.Error()))
			report.Flagged = append(report.Flagged, FlaggedTrace{
				TraceID: trace.ID,
				Status:  "unreadable",
			})
			continue
		}
		report.Summaries = append(report.Summaries, Summarize(g, now))

		result := Validate(g)
		if result.Valid && trace.Status == store.TraceStatusSealed {
			report.Clean++
			continue
		}
		report.Flagged = append(report.Flagged, FlaggedTrace{
			TraceID:    trace.ID,
			Status:     string(trace.Status),
			Violations: result.Violations,
		})
	}
	return report, nil
}
