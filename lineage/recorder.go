package lineage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"

	apperrors "github.com/axisai/axismem/internal/errors"
	"github.com/axisai/axismem/internal/observability"
	"github.com/axisai/axismem/internal/profile"
	"github.com/axisai/axismem/store"
)

// openTrace is a trace being built. Mutations on the same trace serialize
// on its mutex; different traces proceed concurrently.
type openTrace struct {
	mu           sync.Mutex
	graph        *Graph
	nodeIDs      map[string]struct{}
	itemRefs     map[string]struct{}
	lastActivity time.Time
	seq          int
}

func (t *openTrace) nextNodeID(prefix string) string {
	t.seq++
	return fmt.Sprintf("%s-%d", prefix, t.seq)
}

// Recorder accumulates lineage graphs for in-flight requests and persists
// them on seal. Open traces protect their referenced memory items from
// decay eviction until sealed or abandoned.
type Recorder struct {
	mu      sync.RWMutex
	open    map[string]*openTrace
	store   *store.Store
	profile *profile.Profile
	metrics *observability.Metrics
	logger  *slog.Logger
}

func NewRecorder(p *profile.Profile, st *store.Store, metrics *observability.Metrics, logger *slog.Logger) *Recorder {
	return &Recorder{
		open:    make(map[string]*openTrace),
		store:   st,
		profile: p,
		metrics: metrics,
		logger:  logger,
	}
}

// StartTrace opens a new trace for an answer-producing request.
func (r *Recorder) StartTrace(query string) string {
	traceID := shortuuid.New()
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.open[traceID] = &openTrace{
		graph: &Graph{
			TraceID:   traceID,
			Query:     query,
			Nodes:     []*Node{},
			Edges:     []*Edge{},
			CreatedTs: now.Unix(),
		},
		nodeIDs:      make(map[string]struct{}),
		itemRefs:     make(map[string]struct{}),
		lastActivity: now,
	}
	return traceID
}

func (r *Recorder) openTrace(traceID string) (*openTrace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.open[traceID]
	if !ok {
		return nil, apperrors.UnknownTrace(traceID)
	}
	return t, nil
}

// AddSource appends a source node referencing a memory item or external
// source id. Returns the node id for use as a reasoning step input.
func (r *Recorder) AddSource(traceID, ref string, confidence float64) (string, error) {
	t, err := r.openTrace(traceID)
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	nodeID := t.nextNodeID("src")
	t.graph.Nodes = append(t.graph.Nodes, &Node{
		ID:         nodeID,
		Type:       NodeTypeSource,
		Ref:        ref,
		Confidence: confidence,
		CreatedTs:  time.Now().Unix(),
	})
	t.nodeIDs[nodeID] = struct{}{}
	t.itemRefs[ref] = struct{}{}
	t.lastActivity = time.Now()
	return nodeID, nil
}

// AddReasoningStep appends a reasoning node consuming previously created
// nodes. Referencing a node id that does not yet exist in the trace fails,
// which makes cycles structurally impossible.
func (r *Recorder) AddReasoningStep(traceID, stepType, rationale string, confidence float64, modelRef string, inputNodeIDs []string) (string, error) {
	t, err := r.openTrace(traceID)
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(inputNodeIDs) == 0 {
		return "", apperrors.InvalidArgument("reasoning step requires at least one input node")
	}
	for _, inputID := range inputNodeIDs {
		if _, ok := t.nodeIDs[inputID]; !ok {
			return "", apperrors.InvalidInputReference(inputID)
		}
	}

	nodeID := t.nextNodeID("step")
	t.graph.Nodes = append(t.graph.Nodes, &Node{
		ID:         nodeID,
		Type:       NodeTypeReasoning,
		StepType:   stepType,
		Rationale:  rationale,
		ModelRef:   modelRef,
		Confidence: confidence,
		CreatedTs:  time.Now().Unix(),
	})
	for _, inputID := range inputNodeIDs {
		input := t.graph.Node(inputID)
		t.graph.Edges = append(t.graph.Edges, &Edge{
			From:       inputID,
			To:         nodeID,
			Type:       EdgeTypeReasoningInput,
			Confidence: input.Confidence,
		})
	}
	t.nodeIDs[nodeID] = struct{}{}
	t.lastActivity = time.Now()
	return nodeID, nil
}

// Seal closes the trace: it appends the final answer node referencing all
// leaf reasoning steps, validates the graph, and persists it. A failed
// validation persists the trace quarantined for operator inspection and
// returns ValidationFailed.
func (r *Recorder) Seal(ctx context.Context, traceID, finalAnswer string) (*Graph, error) {
	t, err := r.openTrace(traceID)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// The sealed graph is built on a copy; a failed persist leaves the open
	// trace untouched so a retried Seal does not stack answer nodes.
	now := time.Now()
	answer := &Node{
		ID:         t.nextNodeID("answer"),
		Type:       NodeTypeAnswer,
		Confidence: 1.0,
		CreatedTs:  now.Unix(),
	}
	sealed := &Graph{
		TraceID:     t.graph.TraceID,
		Query:       t.graph.Query,
		Nodes:       append(append([]*Node{}, t.graph.Nodes...), answer),
		Edges:       append([]*Edge{}, t.graph.Edges...),
		FinalAnswer: finalAnswer,
		CreatedTs:   t.graph.CreatedTs,
		SealedTs:    now.Unix(),
	}
	for _, leaf := range r.leaves(t.graph) {
		sealed.Edges = append(sealed.Edges, &Edge{
			From:       leaf.ID,
			To:         answer.ID,
			Type:       EdgeTypeReasoningOutput,
			Confidence: leaf.Confidence,
		})
	}

	result := Validate(sealed)
	if !result.Valid {
		violation := result.Violations[0].String()
		if err := r.persist(ctx, sealed, store.TraceStatusQuarantined, violation); err != nil {
			return nil, err
		}
		r.removeOpen(traceID)
		r.metrics.RecordTraceQuarantined()
		r.logger.Warn("trace quarantined",
			slog.String(observability.LogFieldTraceID, traceID),
			slog.String("violation", violation))
		return nil, apperrors.ValidationFailed(violation)
	}

	if err := r.persist(ctx, sealed, store.TraceStatusSealed, ""); err != nil {
		return nil, err
	}
	r.removeOpen(traceID)
	r.metrics.RecordTraceSealed()
	return sealed, nil
}

// leaves returns the nodes the final answer should consume: reasoning
// steps nothing else consumed, or the sources themselves when the trace
// recorded no reasoning at all.
func (r *Recorder) leaves(g *Graph) []*Node {
	steps := g.NodesOfType(NodeTypeReasoning)
	if len(steps) == 0 {
		return g.NodesOfType(NodeTypeSource)
	}
	leaves := []*Node{}
	for _, step := range steps {
		if g.outbound(step.ID) == 0 {
			leaves = append(leaves, step)
		}
	}
	return leaves
}

func (r *Recorder) persist(ctx context.Context, g *Graph, status store.TraceStatus, violation string) error {
	payload, err := g.Marshal()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInvalidArgument, "failed to marshal lineage graph")
	}
	_, err = r.store.CreateLineageTrace(ctx, &store.LineageTrace{
		ID:        g.TraceID,
		Query:     g.Query,
		Status:    status,
		Payload:   payload,
		Violation: violation,
		CreatedTs: g.CreatedTs,
		SealedTs:  g.SealedTs,
	})
	return err
}

func (r *Recorder) removeOpen(traceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.open, traceID)
}

// OpenTraceCount returns the number of traces currently being built.
func (r *Recorder) OpenTraceCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.open)
}

// ReferencedItemIDs maps each memory item ref held by an open trace to
// one of the traces holding it. The decay scheduler consults this before
// evicting.
func (r *Recorder) ReferencedItemIDs() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	refs := make(map[string]string)
	for traceID, t := range r.open {
		t.mu.Lock()
		for ref := range t.itemRefs {
			refs[ref] = traceID
		}
		t.mu.Unlock()
	}
	return refs
}

// CollectAbandoned drops open traces idle beyond the configured timeout.
// Abandoned traces are discarded, not persisted, and stop protecting
// their referenced items from eviction.
func (r *Recorder) CollectAbandoned() int {
	cutoff := time.Now().Add(-r.profile.TraceIdleTimeout)

	r.mu.Lock()
	defer r.mu.Unlock()

	collected := 0
	for traceID, t := range r.open {
		t.mu.Lock()
		idle := t.lastActivity.Before(cutoff)
		t.mu.Unlock()
		if idle {
			delete(r.open, traceID)
			collected++
			r.metrics.RecordTraceAbandoned()
			r.logger.Info("abandoned trace collected",
				slog.String(observability.LogFieldTraceID, traceID))
		}
	}
	return collected
}
