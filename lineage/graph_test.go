package lineage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze(t *testing.T) {
	t.Run("single chain", func(t *testing.T) {
		analysis := Analyze(validGraph())
		assert.Equal(t, 3, analysis.TotalNodes)
		assert.Equal(t, 2, analysis.TotalEdges)
		assert.Equal(t, 1, analysis.SourceNodes)
		assert.Equal(t, 1, analysis.ReasoningNodes)
		assert.True(t, analysis.IsConnected)
		assert.Equal(t, 2, analysis.Depth)
		assert.Equal(t, 1.0, analysis.BranchingFactor)
	})

	t.Run("two sources into one step", func(t *testing.T) {
		g := validGraph()
		g.Nodes = append(g.Nodes, &Node{ID: "src-4", Type: NodeTypeSource, Confidence: 0.7})
		g.Edges = append(g.Edges, &Edge{From: "src-4", To: "step-2", Type: EdgeTypeReasoningInput, Confidence: 0.7})

		analysis := Analyze(g)
		assert.Equal(t, 2, analysis.SourceNodes)
		assert.Equal(t, 2.0, analysis.BranchingFactor)
		assert.True(t, analysis.IsConnected)
	})

	t.Run("disconnected node", func(t *testing.T) {
		g := validGraph()
		g.Nodes = append(g.Nodes, &Node{ID: "src-9", Type: NodeTypeSource, Confidence: 0.5})
		assert.False(t, Analyze(g).IsConnected)
	})

	t.Run("sources wired straight to answer have depth 1", func(t *testing.T) {
		g := &Graph{
			TraceID: "t2",
			Nodes: []*Node{
				{ID: "src-1", Type: NodeTypeSource, Confidence: 0.9},
				{ID: "answer-2", Type: NodeTypeAnswer, Confidence: 1.0},
			},
			Edges: []*Edge{
				{From: "src-1", To: "answer-2", Type: EdgeTypeReasoningOutput, Confidence: 0.9},
			},
		}
		assert.Equal(t, 1, Analyze(g).Depth)
	})
}

func TestTrustScore(t *testing.T) {
	now := time.Now()

	t.Run("fresh confident trace scores high", func(t *testing.T) {
		g := validGraph()
		for _, n := range g.Nodes {
			n.CreatedTs = now.Unix()
		}
		score := TrustScore(g, now)
		// 0.4*0.9 + 0.4*0.8 + 0.2*~1.0
		assert.InDelta(t, 0.88, score, 0.01)
	})

	t.Run("stale sources lose the freshness share", func(t *testing.T) {
		g := validGraph()
		for _, n := range g.Nodes {
			n.CreatedTs = now.Add(-14 * 24 * time.Hour).Unix()
		}
		score := TrustScore(g, now)
		assert.InDelta(t, 0.68, score, 0.01)
	})

	t.Run("bounded in unit interval", func(t *testing.T) {
		g := validGraph()
		score := TrustScore(g, now)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	})
}

func TestSummarize(t *testing.T) {
	now := time.Now()
	g := validGraph()
	g.CreatedTs = now.Add(-time.Minute).Unix()
	g.SealedTs = now.Unix()

	summary := Summarize(g, now)
	assert.Equal(t, "t1", summary.TraceID)
	assert.Equal(t, "q1", summary.Query)
	assert.Equal(t, "blue", summary.FinalAnswer)
	assert.Equal(t, 1, summary.NumSources)
	assert.Equal(t, 1, summary.NumReasoningSteps)
	assert.Equal(t, []float64{0.9, 0.8}, summary.ConfidenceScores)
	assert.Greater(t, summary.TrustScore, 0.0)
}

func TestGraphMarshalRoundTrip(t *testing.T) {
	g := validGraph()
	payload, err := g.Marshal()
	require.NoError(t, err)

	restored, err := UnmarshalGraph(payload)
	require.NoError(t, err)
	assert.Equal(t, g.TraceID, restored.TraceID)
	require.Len(t, restored.Nodes, 3)
	assert.Equal(t, NodeTypeSource, restored.Nodes[0].Type)
	require.Len(t, restored.Edges, 2)
	assert.Equal(t, EdgeTypeReasoningInput, restored.Edges[0].Type)
}
