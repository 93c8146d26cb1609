package grading

import (
	"context"
	"errors"
	"fmt"
)

// ErrClassification wraps runtime failures of a Classifier call.
var ErrClassification = errors.New("classification failed")

// Classifier scores hypotheses against a premise with a zero-shot NLI model.
// It returns one entailment probability in [0,1] per hypothesis, in order.
type Classifier interface {
	Classify(ctx context.Context, premise string, hypotheses []string) ([]float64, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, premise string, hypotheses []string) ([]float64, error)

func (f ClassifierFunc) Classify(ctx context.Context, premise string, hypotheses []string) ([]float64, error) {
	return f(ctx, premise, hypotheses)
}

// ChunkResult is the winning level for one chunk and the classifier's
// entailment probability for it.
type ChunkResult struct {
	Level      string  `json:"level"`
	Confidence float64 `json:"confidence"`
}

// ScoreChunk builds one hypothesis per level (in the given order), classifies
// them in a single call and returns the most entailed level. Ties go to the
// level that comes first.
func ScoreChunk(ctx context.Context, c Classifier, ph Phrasebook, chunk string, criterion string, levels []Level) (ChunkResult, error) {
	if len(levels) == 0 {
		return ChunkResult{}, fmt.Errorf("criterion %q: %w", criterion, ErrNoLevels)
	}
	hypotheses := make([]string, len(levels))
	for i, l := range levels {
		hypotheses[i] = ph.BuildHypothesis(criterion, l.Name, l.Descriptors)
	}

	probs, err := c.Classify(ctx, chunk, hypotheses)
	if err != nil {
		return ChunkResult{}, fmt.Errorf("criterion %q: %w: %w", criterion, ErrClassification, err)
	}
	if len(probs) != len(hypotheses) {
		return ChunkResult{}, fmt.Errorf("criterion %q: %w: got %d probabilities for %d hypotheses",
			criterion, ErrClassification, len(probs), len(hypotheses))
	}

	// NaN and out-of-range values are clamped before comparing.
	best, bestP := 0, clamp01(probs[0])
	for i := 1; i < len(probs); i++ {
		if p := clamp01(probs[i]); p > bestP {
			best, bestP = i, p
		}
	}
	return ChunkResult{Level: levels[best].Name, Confidence: bestP}, nil
}

func clamp01(v float64) float64 {
	switch {
	case v != v, v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
