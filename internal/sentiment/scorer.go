// Package sentiment holds the pluggable sentiment scorers used for risk detection.
package sentiment

import (
	"context"
	"fmt"
	"math"
)

// Scorer returns a sentiment score in [0, 1] for text. Higher is more positive.
type Scorer interface {
	Score(ctx context.Context, text string) (float64, error)
}

// ScorerFunc adapts a plain function to Scorer.
type ScorerFunc func(ctx context.Context, text string) (float64, error)

func (f ScorerFunc) Score(ctx context.Context, text string) (float64, error) {
	return f(ctx, text)
}

// Fixed always returns the same score. Useful for dry runs and tests.
type Fixed float64

func (f Fixed) Score(context.Context, string) (float64, error) {
	return float64(f), nil
}

// ValidScore reports an error for scores outside [0, 1] or NaN.
func ValidScore(s float64) error {
	if math.IsNaN(s) || s < 0 || s > 1 {
		return fmt.Errorf("score %v outside [0,1]", s)
	}
	return nil
}
