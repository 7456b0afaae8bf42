package lineage

import "time"

// GraphAnalysis summarizes the structure of a sealed lineage graph.
type GraphAnalysis struct {
	TotalNodes      int     `json:"totalNodes"`
	TotalEdges      int     `json:"totalEdges"`
	SourceNodes     int     `json:"sourceNodes"`
	ReasoningNodes  int     `json:"reasoningNodes"`
	IsConnected     bool    `json:"isConnected"`
	Depth           int     `json:"depth"`
	BranchingFactor float64 `json:"branchingFactor"`
}

// Analyze computes structural statistics over a graph.
func Analyze(g *Graph) GraphAnalysis {
	sources := g.NodesOfType(NodeTypeSource)
	steps := g.NodesOfType(NodeTypeReasoning)

	return GraphAnalysis{
		TotalNodes:      len(g.Nodes),
		TotalEdges:      len(g.Edges),
		SourceNodes:     len(sources),
		ReasoningNodes:  len(steps),
		IsConnected:     isConnected(g),
		Depth:           depth(g),
		BranchingFactor: branchingFactor(g, steps),
	}
}

// depth is the longest source-to-answer hop count. A graph with sources
// wired straight to the answer has depth 1.
func depth(g *Graph) int {
	answers := g.NodesOfType(NodeTypeAnswer)
	if len(answers) == 0 {
		return 0
	}
	answerID := answers[0].ID

	// Longest path via DFS; nodes only reference earlier nodes so the
	// traversal always terminates.
	adjacency := make(map[string][]string, len(g.Nodes))
	for _, e := range g.Edges {
		adjacency[e.From] = append(adjacency[e.From], e.To)
	}

	memo := make(map[string]int, len(g.Nodes))
	var longest func(id string) int
	longest = func(id string) int {
		if id == answerID {
			return 0
		}
		if d, ok := memo[id]; ok {
			return d
		}
		best := -1
		for _, next := range adjacency[id] {
			if d := longest(next); d >= 0 && d+1 > best {
				best = d + 1
			}
		}
		memo[id] = best
		return best
	}

	maxDepth := 0
	for _, src := range g.NodesOfType(NodeTypeSource) {
		if d := longest(src.ID); d > maxDepth {
			maxDepth = d
		}
	}
	return maxDepth
}

// branchingFactor is the average input count across reasoning steps.
func branchingFactor(g *Graph, steps []*Node) float64 {
	if len(steps) == 0 {
		return 0.0
	}
	total := 0
	for _, step := range steps {
		total += g.inbound(step.ID)
	}
	return float64(total) / float64(len(steps))
}

// isConnected reports weak connectivity: ignoring edge direction, every
// node is reachable from every other.
func isConnected(g *Graph) bool {
	if len(g.Nodes) <= 1 {
		return true
	}

	neighbors := make(map[string][]string, len(g.Nodes))
	for _, e := range g.Edges {
		neighbors[e.From] = append(neighbors[e.From], e.To)
		neighbors[e.To] = append(neighbors[e.To], e.From)
	}

	visited := map[string]struct{}{}
	stack := []string{g.Nodes[0].ID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := visited[id]; ok {
			continue
		}
		visited[id] = struct{}{}
		stack = append(stack, neighbors[id]...)
	}
	return len(visited) == len(g.Nodes)
}

// TraceSummary is a compact view of one trace for listings and audits.
type TraceSummary struct {
	TraceID           string    `json:"traceId"`
	Query             string    `json:"query"`
	FinalAnswer       string    `json:"finalAnswer"`
	NumSources        int       `json:"numSources"`
	NumReasoningSteps int       `json:"numReasoningSteps"`
	ConfidenceScores  []float64 `json:"confidenceScores"`
	TrustScore        float64   `json:"trustScore"`
	CreatedTs         int64     `json:"createdTs"`
	SealedTs          int64     `json:"sealedTs"`
}

// Summarize builds the summary view of a graph at now.
func Summarize(g *Graph, now time.Time) TraceSummary {
	sources := g.NodesOfType(NodeTypeSource)
	steps := g.NodesOfType(NodeTypeReasoning)

	confidences := make([]float64, 0, len(sources)+len(steps))
	for _, n := range sources {
		confidences = append(confidences, n.Confidence)
	}
	for _, n := range steps {
		confidences = append(confidences, n.Confidence)
	}

	return TraceSummary{
		TraceID:           g.TraceID,
		Query:             g.Query,
		FinalAnswer:       g.FinalAnswer,
		NumSources:        len(sources),
		NumReasoningSteps: len(steps),
		ConfidenceScores:  confidences,
		TrustScore:        TrustScore(g, now),
		CreatedTs:         g.CreatedTs,
		SealedTs:          g.SealedTs,
	}
}

// TrustScore combines average source confidence, average reasoning
// confidence, and source freshness into a single [0, 1] figure.
func TrustScore(g *Graph, now time.Time) float64 {
	sources := g.NodesOfType(NodeTypeSource)
	steps := g.NodesOfType(NodeTypeReasoning)

	score := 0.4*meanConfidence(sources) +
		0.4*meanConfidence(steps) +
		0.2*freshness(sources, now)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func meanConfidence(nodes []*Node) float64 {
	if len(nodes) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, n := range nodes {
		sum += n.Confidence
	}
	return sum / float64(len(nodes))
}

// freshness decays linearly to zero over one week of source age.
func freshness(sources []*Node, now time.Time) float64 {
	if len(sources) == 0 {
		return 0.0
	}
	const week = 168 * time.Hour
	sum := 0.0
	for _, n := range sources {
		age := now.Sub(time.Unix(n.CreatedTs, 0))
		f := 1.0 - age.Hours()/week.Hours()
		if f < 0 {
			f = 0
		}
		sum += f
	}
	return sum / float64(len(sources))
}
