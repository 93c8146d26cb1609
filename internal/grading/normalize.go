package grading

import "sort"

// MaxGrade is the top of the final grade scale.
const MaxGrade = 20.0

// percentageCutoff separates fractional weights (sum ≈ 1) from percentages
// (sum ≈ 100). A rubric weighted {1, 1, 0.5} sums to 2.5 and is read as
// percentages.
const percentageCutoff = 2.0

// NormalizeLevel maps a level name to [0,1] using the criterion's own point
// scale: the level's MaxPoints over the highest MaxPoints. Names that are not
// among levels, or levels without points, go through a fixed keyword table.
func NormalizeLevel(name string, levels []Level) float64 {
	if top := scaleMax(levels); top > 0 {
		for _, l := range levels {
			if l.Name == name {
				return clamp01(l.MaxPoints / top)
			}
		}
	}
	return keywordScore(name)
}

func keywordScore(name string) float64 {
	switch classifyLevel(name) {
	case bandExcellent:
		return 1.0
	case bandGood:
		return 0.75
	case bandBasic:
		return 0.50
	case bandDeficient:
		return 0.20
	default:
		return 0.50
	}
}

// LevelForScore maps a [0,1] score back onto the rubric bands: the score is
// scaled to the criterion's points and the highest band whose MinPoints it
// reaches wins. Below every band the lowest band is returned.
func LevelForScore(score float64, levels []Level) (Level, bool) {
	if len(levels) == 0 {
		return Level{}, false
	}
	scaled := clamp01(score) * scaleMax(levels)
	bands := make([]Level, len(levels))
	copy(bands, levels)
	sort.SliceStable(bands, func(i, j int) bool { return bands[i].MinPoints > bands[j].MinPoints })
	for _, b := range bands {
		if scaled >= b.MinPoints {
			return b, true
		}
	}
	return bands[len(bands)-1], true
}

// WeightScale is the convention a rubric's weights were authored in.
type WeightScale string

const (
	WeightsFractional WeightScale = "fractional"
	WeightsPercentage WeightScale = "percentage"
)

// Divisor converts a weight of this scale into a fraction.
func (s WeightScale) Divisor() float64 {
	if s == WeightsPercentage {
		return 100
	}
	return 1
}

// DetectWeightScale reads weights summing above 2.0 as percentages.
func DetectWeightScale(weights []float64) WeightScale {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum > percentageCutoff {
		return WeightsPercentage
	}
	return WeightsFractional
}

// WeightedScore is one criterion's normalized score and its rubric weight.
type WeightedScore struct {
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
}

// ScoreFromPoints normalizes a raw point score against the criterion maximum.
func ScoreFromPoints(raw, maxPoints float64) float64 {
	if maxPoints <= 0 {
		return 0
	}
	return clamp01(raw / maxPoints)
}

// FinalGrade combines criterion scores into a grade on [0, MaxGrade]. The
// weight convention is detected from the weights themselves, so {0.3,0.4,0.3}
// and {30,40,30} give the same grade.
func FinalGrade(results map[string]WeightedScore) float64 {
	keys := make([]string, 0, len(results))
	weights := make([]float64, 0, len(results))
	for k, r := range results {
		keys = append(keys, k)
		weights = append(weights, r.Weight)
	}
	sort.Strings(keys)
	div := DetectWeightScale(weights).Divisor()

	total := 0.0
	for _, k := range keys {
		r := results[k]
		total += clamp01(r.Score) * (r.Weight / div) * MaxGrade
	}
	switch {
	case total != total, total < 0:
		return 0
	case total > MaxGrade:
		return MaxGrade
	}
	return total
}
