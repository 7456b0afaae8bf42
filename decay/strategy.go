// Package decay runs the background importance decay and eviction pass.
package decay

import "time"

// Strategy computes an item's importance after one scheduler pass.
// Implementations must be pure so passes stay reproducible.
type Strategy interface {
	// Next returns the decayed importance given how long ago the item was
	// last accessed. Items accessed within one interval do not decay.
	Next(importance float64, sinceAccess, interval time.Duration) float64
}

// Exponential multiplies importance by Rate once per pass, floored at 0.
type Exponential struct {
	Rate float64
}

func (e Exponential) Next(importance float64, sinceAccess, interval time.Duration) float64 {
	if sinceAccess < interval {
		return importance
	}
	next := importance * e.Rate
	if next < 0 {
		return 0
	}
	return next
}
