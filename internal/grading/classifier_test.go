package grading

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedClassifier returns the same probabilities for every call and records
// the hypotheses it saw.
type fixedClassifier struct {
	probs []float64
	err   error
	calls int
	seen  [][]string
}

func (f *fixedClassifier) Classify(_ context.Context, _ string, hypotheses []string) ([]float64, error) {
	f.calls++
	f.seen = append(f.seen, hypotheses)
	if f.err != nil {
		return nil, f.err
	}
	return f.probs, nil
}

func fourLevels() []Level {
	return []Level{
		{Name: "Excelente", MinPoints: 4, MaxPoints: 5, Descriptors: []string{"Justifica el problema"}, Order: 1},
		{Name: "Bueno", MinPoints: 3, MaxPoints: 3.9, Order: 2},
		{Name: "Regular", MinPoints: 2, MaxPoints: 2.9, Order: 3},
		{Name: "Insuficiente", MinPoints: 0, MaxPoints: 1.9, Order: 4},
	}
}

func TestScoreChunkPicksMostEntailedLevel(t *testing.T) {
	c := &fixedClassifier{probs: []float64{0.1, 0.7, 0.15, 0.05}}

	got, err := ScoreChunk(context.Background(), c, Spanish, "texto", "Análisis", fourLevels())
	require.NoError(t, err)
	assert.Equal(t, ChunkResult{Level: "Bueno", Confidence: 0.7}, got)

	require.Equal(t, 1, c.calls, "all levels go in one classifier call")
	require.Len(t, c.seen[0], 4)
	assert.Equal(t, "Este texto demuestra Análisis ya que justifica el problema.", c.seen[0][0])
	assert.Equal(t, "Este texto no demuestra Análisis de manera adecuada.", c.seen[0][3])
}

func TestScoreChunkTiesGoToFirstLevel(t *testing.T) {
	c := &fixedClassifier{probs: []float64{0.3, 0.3, 0.3, 0.1}}

	got, err := ScoreChunk(context.Background(), c, English, "text", "Clarity", fourLevels())
	require.NoError(t, err)
	assert.Equal(t, "Excelente", got.Level)
}

func TestScoreChunkClampsConfidence(t *testing.T) {
	c := &fixedClassifier{probs: []float64{1.7, 0.2}}

	got, err := ScoreChunk(context.Background(), c, English, "text", "Clarity", fourLevels()[:2])
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Confidence)
}

func TestScoreChunkIgnoresNaN(t *testing.T) {
	c := &fixedClassifier{probs: []float64{math.NaN(), 0.9, 0.1, math.NaN()}}

	got, err := ScoreChunk(context.Background(), c, English, "text", "Clarity", fourLevels())
	require.NoError(t, err)
	assert.Equal(t, ChunkResult{Level: "Bueno", Confidence: 0.9}, got)

	c = &fixedClassifier{probs: []float64{math.NaN(), math.NaN()}}
	got, err = ScoreChunk(context.Background(), c, English, "text", "Clarity", fourLevels()[:2])
	require.NoError(t, err)
	assert.Equal(t, ChunkResult{Level: "Excelente", Confidence: 0}, got)
}

func TestScoreChunkPropagatesFailures(t *testing.T) {
	boom := errors.New("boom")
	_, err := ScoreChunk(context.Background(), &fixedClassifier{err: boom}, English, "text", "Clarity", fourLevels())
	assert.ErrorIs(t, err, ErrClassification)
	assert.ErrorIs(t, err, boom)

	_, err = ScoreChunk(context.Background(), &fixedClassifier{probs: []float64{0.5}}, English, "text", "Clarity", fourLevels())
	assert.ErrorIs(t, err, ErrClassification)

	_, err = ScoreChunk(context.Background(), &fixedClassifier{}, English, "text", "Clarity", nil)
	assert.ErrorIs(t, err, ErrNoLevels)
}

func TestClassifierFunc(t *testing.T) {
	var c Classifier = ClassifierFunc(func(_ context.Context, premise string, h []string) ([]float64, error) {
		return []float64{float64(len(premise)), float64(len(h))}, nil
	})
	got, err := c.Classify(context.Background(), "abc", []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 2}, got)
}
