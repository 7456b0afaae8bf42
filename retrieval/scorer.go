// Package retrieval ranks vector search candidates with a weighted
// composite of similarity, recency, frequency, and importance.
package retrieval

import (
	"math"
	"sort"
	"time"

	"github.com/axisai/axismem/internal/profile"
	"github.com/axisai/axismem/store"
)

// Weights holds the composite score coefficients.
type Weights struct {
	Similarity float64
	Recency    float64
	Frequency  float64
	Importance float64
}

// RecencyStrategy maps elapsed time since last access to a factor in [0, 1].
type RecencyStrategy interface {
	Factor(elapsed time.Duration) float64
}

// FrequencyStrategy maps an access count to a factor in [0, 1].
type FrequencyStrategy interface {
	Factor(accessCount int64) float64
}

// ExponentialRecency halves the recency factor every HalfLife.
type ExponentialRecency struct {
	HalfLife time.Duration
}

func (r ExponentialRecency) Factor(elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 1.0
	}
	halfLife := r.HalfLife
	if halfLife <= 0 {
		halfLife = 24 * time.Hour
	}
	return math.Pow(0.5, elapsed.Seconds()/halfLife.Seconds())
}

// LogFrequency grows logarithmically and saturates at Saturation accesses.
type LogFrequency struct {
	Saturation int64
}

func (f LogFrequency) Factor(accessCount int64) float64 {
	if accessCount <= 0 {
		return 0.0
	}
	saturation := f.Saturation
	if saturation <= 0 {
		saturation = 100
	}
	factor := math.Log1p(float64(accessCount)) / math.Log1p(float64(saturation))
	return math.Min(factor, 1.0)
}

// Candidate pairs an index hit with the item's metadata.
type Candidate struct {
	Item       *store.MemoryItem
	Similarity float64
}

// ScoredItem is a ranked retrieval result.
type ScoredItem struct {
	Item       *store.MemoryItem
	Similarity float64
	Score      float64
}

// Scorer computes composite retrieval scores. It holds only configuration,
// never request state, so identical inputs always produce identical output.
type Scorer struct {
	weights   Weights
	recency   RecencyStrategy
	frequency FrequencyStrategy
	pinFloor  float64
}

func NewScorer(weights Weights, recency RecencyStrategy, frequency FrequencyStrategy, pinFloor float64) *Scorer {
	if recency == nil {
		recency = ExponentialRecency{HalfLife: 24 * time.Hour}
	}
	if frequency == nil {
		frequency = LogFrequency{Saturation: 100}
	}
	return &Scorer{
		weights:   weights,
		recency:   recency,
		frequency: frequency,
		pinFloor:  pinFloor,
	}
}

// NewScorerFromProfile builds a scorer with the configured weights and the
// default normalization strategies.
func NewScorerFromProfile(p *profile.Profile) *Scorer {
	return NewScorer(Weights{
		Similarity: p.SimilarityWeight,
		Recency:    p.RecencyWeight,
		Frequency:  p.FrequencyWeight,
		Importance: p.ImportanceWeight,
	}, nil, nil, p.PinScoreFloor)
}

// Score computes the composite score of a single candidate at now.
// Similarity is clamped to [0, 1] before weighting; cosine can go negative
// and dot is unbounded, but the composite must stay within the weight sum.
// Pinned items never score below the configured floor.
func (s *Scorer) Score(c Candidate, now time.Time) float64 {
	item := c.Item
	elapsed := now.Sub(time.Unix(item.LastAccessedTs, 0))

	score := s.weights.Similarity*clampUnit(c.Similarity) +
		s.weights.Recency*s.recency.Factor(elapsed) +
		s.weights.Frequency*s.frequency.Factor(item.AccessCount) +
		s.weights.Importance*item.Importance

	if item.Pinned && score < s.pinFloor {
		score = s.pinFloor
	}
	return score
}

// Rank scores all candidates and returns the top k ordered by score
// descending. Equal scores order by similarity descending, then higher
// access count, then id ascending. An empty candidate set yields an empty
// result, and k larger than the candidate set returns everything available.
func (s *Scorer) Rank(candidates []Candidate, k int, now time.Time) []ScoredItem {
	if len(candidates) == 0 || k <= 0 {
		return []ScoredItem{}
	}

	scored := make([]ScoredItem, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, ScoredItem{
			Item:       c.Item,
			Similarity: c.Similarity,
			Score:      s.Score(c, now),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.Item.AccessCount != b.Item.AccessCount {
			return a.Item.AccessCount > b.Item.AccessCount
		}
		return a.Item.ID < b.Item.ID
	})

	if k < len(scored) {
		scored = scored[:k]
	}
	return scored
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
