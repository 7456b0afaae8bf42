package lineage

import "fmt"

// ViolationKind identifies a structural problem found by validation.
type ViolationKind string

const (
	ViolationOrphanNode           ViolationKind = "OrphanNode"
	ViolationUnusedSource         ViolationKind = "UnusedSource"
	ViolationConfidenceOutOfRange ViolationKind = "ConfidenceOutOfRange"
	ViolationMissingFinalAnswer   ViolationKind = "MissingFinalAnswer"
	ViolationMultipleFinalAnswers ViolationKind = "MultipleFinalAnswers"
)

// Violation pins a violation kind to the node that triggered it.
type Violation struct {
	Kind   ViolationKind `json:"kind"`
	NodeID string        `json:"nodeId,omitempty"`
	Detail string        `json:"detail"`
}

func (v Violation) String() string {
	if v.NodeID == "" {
		return fmt.Sprintf("%s: %s", v.Kind, v.Detail)
	}
	return fmt.Sprintf("%s (%s): %s", v.Kind, v.NodeID, v.Detail)
}

// ValidationResult is the outcome of validating one graph.
type ValidationResult struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations"`
}

// Validate checks the structural invariants of a lineage graph. Cycles are
// impossible by construction, so validation covers connectivity and
// confidence bounds: every non-source node needs an inbound edge, every
// source must feed something downstream, confidences stay within [0, 1],
// and exactly one final answer node exists.
func Validate(g *Graph) ValidationResult {
	violations := []Violation{}

	answers := g.NodesOfType(NodeTypeAnswer)
	if len(answers) == 0 {
		violations = append(violations, Violation{
			Kind:   ViolationMissingFinalAnswer,
			Detail: "graph has no final answer node",
		})
	} else if len(answers) > 1 {
		violations = append(violations, Violation{
			Kind:   ViolationMultipleFinalAnswers,
			Detail: fmt.Sprintf("graph has %d final answer nodes", len(answers)),
		})
	}

	for _, n := range g.Nodes {
		if n.Confidence < 0 || n.Confidence > 1 {
			violations = append(violations, Violation{
				Kind:   ViolationConfidenceOutOfRange,
				NodeID: n.ID,
				Detail: fmt.Sprintf("confidence %.4f outside [0, 1]", n.Confidence),
			})
		}

		switch n.Type {
		case NodeTypeSource:
			if g.outbound(n.ID) == 0 {
				violations = append(violations, Violation{
					Kind:   ViolationUnusedSource,
					NodeID: n.ID,
					Detail: "source was recorded but never consumed",
				})
			}
		default:
			if g.inbound(n.ID) == 0 {
				violations = append(violations, Violation{
					Kind:   ViolationOrphanNode,
					NodeID: n.ID,
					Detail: "node has no inbound edges",
				})
			}
		}
	}

	for _, e := range g.Edges {
		if e.Confidence < 0 || e.Confidence > 1 {
			violations = append(violations, Violation{
				Kind:   ViolationConfidenceOutOfRange,
				NodeID: e.From,
				Detail: fmt.Sprintf("edge %s -> %s confidence %.4f outside [0, 1]", e.From, e.To, e.Confidence),
			})
		}
	}

	return ValidationResult{
		Valid:      len(violations) == 0,
		Violations: violations,
	}
}
