package store

// TraceStatus is the persistence state of a lineage trace.
type TraceStatus string

const (
	// TraceStatusSealed marks a trace that passed validation at seal time.
	TraceStatusSealed TraceStatus = "sealed"
	// TraceStatusQuarantined marks a trace retained for operator inspection
	// after failing validation.
	TraceStatusQuarantined TraceStatus = "quarantined"
)

// LineageTrace is the persisted form of a sealed (or quarantined) trace.
// Payload carries the full node/edge graph as JSON with stable field names.
type LineageTrace struct {
	ID        string
	Query     string
	Status    TraceStatus
	Payload   []byte
	Violation string
	CreatedTs int64
	SealedTs  int64
}

// FindLineageTrace specifies the conditions for finding lineage traces.
type FindLineageTrace struct {
	ID     *string
	Status *TraceStatus
	Limit  int
	Offset int
}

// DeleteLineageTrace specifies the conditions for deleting lineage traces.
type DeleteLineageTrace struct {
	ID *string
}
