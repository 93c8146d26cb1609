package grading

import (
	"fmt"
	"strings"
)

// VisualAssessment is an optional score for the document's figures produced
// by a vision collaborator.
type VisualAssessment struct {
	Score    float64 `json:"score"`
	Comments string  `json:"comments,omitempty"`
}

const (
	visualWeightFigures = 0.4
	visualWeightGeneral = 0.1
	visualFeedbackLen   = 50
)

var visualKeywords = []string{"diagrama", "esquema", "grafico", "imagen", "prototipo", "diseno", "visual", "diagram", "chart", "figure", "design"}

// visualWeight is the share of the criterion score taken from the visual
// assessment.
func visualWeight(criterion string) float64 {
	n := foldName(criterion)
	for _, k := range visualKeywords {
		if strings.Contains(n, k) {
			return visualWeightFigures
		}
	}
	return visualWeightGeneral
}

// fuseVisual blends the text score with the visual score and re-derives the
// level from the blended score using the rubric bands.
func fuseVisual(res CriterionResult, cr Criterion, v VisualAssessment) CriterionResult {
	w := visualWeight(cr.Name)
	res.Score = clamp01(res.Score*(1-w) + clamp01(v.Score)*w)
	if l, ok := LevelForScore(res.Score, cr.Levels); ok {
		res.Level = l.Name
	}
	if c := strings.TrimSpace(v.Comments); c != "" {
		if rs := []rune(c); len(rs) > visualFeedbackLen {
			c = string(rs[:visualFeedbackLen])
		}
		res.Feedback = fmt.Sprintf("%s [Visual: %s...]", res.Feedback, c)
	}
	return res
}
