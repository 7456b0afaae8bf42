// Package lineage records the provenance of answer-producing requests as
// a DAG of source, reasoning, and answer nodes.
package lineage

import "encoding/json"

// NodeType classifies graph nodes.
type NodeType string

const (
	NodeTypeSource    NodeType = "source"
	NodeTypeReasoning NodeType = "reasoning"
	NodeTypeAnswer    NodeType = "answer"
)

// EdgeType classifies graph edges. Input edges feed a reasoning step;
// output edges connect terminal steps to the final answer.
type EdgeType string

const (
	EdgeTypeReasoningInput  EdgeType = "reasoning_input"
	EdgeTypeReasoningOutput EdgeType = "reasoning_output"
)

// Node is a single element of a lineage graph.
type Node struct {
	ID         string   `json:"id"`
	Type       NodeType `json:"type"`
	StepType   string   `json:"stepType,omitempty"`
	Rationale  string   `json:"rationale,omitempty"`
	Ref        string   `json:"ref,omitempty"`      // memory item id or external source id
	ModelRef   string   `json:"modelRef,omitempty"` // model/agent that produced a reasoning step
	Confidence float64  `json:"confidence"`
	CreatedTs  int64    `json:"createdTs"`
}

// Edge is a directed connection carrying the consumed node's confidence.
type Edge struct {
	From       string   `json:"from"`
	To         string   `json:"to"`
	Type       EdgeType `json:"type"`
	Confidence float64  `json:"confidence"`
}

// Graph is the full lineage of one trace. Nodes appear in creation order.
type Graph struct {
	TraceID     string  `json:"traceId"`
	Query       string  `json:"query"`
	Nodes       []*Node `json:"nodes"`
	Edges       []*Edge `json:"edges"`
	FinalAnswer string  `json:"finalAnswer,omitempty"`
	CreatedTs   int64   `json:"createdTs"`
	SealedTs    int64   `json:"sealedTs,omitempty"`
}

// Marshal serializes the graph for trace persistence.
func (g *Graph) Marshal() ([]byte, error) {
	return json.Marshal(g)
}

// UnmarshalGraph restores a graph from a persisted trace payload.
func UnmarshalGraph(payload []byte) (*Graph, error) {
	var g Graph
	if err := json.Unmarshal(payload, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// NodesOfType returns all nodes of the given type in creation order.
func (g *Graph) NodesOfType(t NodeType) []*Node {
	nodes := []*Node{}
	for _, n := range g.Nodes {
		if n.Type == t {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// inbound returns the number of edges ending at id.
func (g *Graph) inbound(id string) int {
	count := 0
	for _, e := range g.Edges {
		if e.To == id {
			count++
		}
	}
	return count
}

// outbound returns the number of edges starting at id.
func (g *Graph) outbound(id string) int {
	count := 0
	for _, e := range g.Edges {
		if e.From == id {
			count++
		}
	}
	return count
}
