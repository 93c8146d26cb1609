package grading

// Tier is the coarse evidence bucket a level falls into during cross-chunk
// aggregation.
type Tier int

const (
	TierBottom Tier = iota
	TierMiddle
	TierTop
)

func (t Tier) String() string {
	switch t {
	case TierTop:
		return "top"
	case TierMiddle:
		return "middle"
	default:
		return "bottom"
	}
}

// EvidenceConfig tunes how per-chunk results are combined.
type EvidenceConfig struct {
	TopWeight    float64 `json:"top_weight"`
	MiddleWeight float64 `json:"middle_weight"`
	BottomWeight float64 `json:"bottom_weight"`

	// Chunks at or below ConfidenceGate contribute LowConfidenceFactor of
	// their weight.
	ConfidenceGate      float64 `json:"confidence_gate"`
	LowConfidenceFactor float64 `json:"low_confidence_factor"`

	// Ratio strictly above TopThreshold selects the top tier, strictly above
	// MiddleThreshold the middle tier.
	TopThreshold    float64 `json:"top_threshold"`
	MiddleThreshold float64 `json:"middle_threshold"`
}

func DefaultEvidence() EvidenceConfig {
	return EvidenceConfig{
		TopWeight:           3.0,
		MiddleWeight:        1.0,
		BottomWeight:        0.0,
		ConfidenceGate:      0.4,
		LowConfidenceFactor: 0.5,
		TopThreshold:        0.25,
		MiddleThreshold:     0.10,
	}
}

func (e EvidenceConfig) weight(t Tier) float64 {
	switch t {
	case TierTop:
		return e.TopWeight
	case TierMiddle:
		return e.MiddleWeight
	default:
		return e.BottomWeight
	}
}

func (e EvidenceConfig) maxWeight() float64 {
	m := e.TopWeight
	if e.MiddleWeight > m {
		m = e.MiddleWeight
	}
	if e.BottomWeight > m {
		m = e.BottomWeight
	}
	return m
}

// Aggregate is the document-level outcome for one criterion.
type Aggregate struct {
	Level      string  `json:"level"`
	Tier       Tier    `json:"tier"`
	Score      float64 `json:"score"`
	Ratio      float64 `json:"ratio"`
	Confidence float64 `json:"confidence"`
	Feedback   string  `json:"feedback"`
	Chunks     int     `json:"chunks"`
}

// Aggregator combines noisy per-chunk results into one level per criterion.
type Aggregator struct {
	Evidence   EvidenceConfig
	Phrasebook Phrasebook
}

func NewAggregator(e EvidenceConfig, ph Phrasebook) Aggregator {
	return Aggregator{Evidence: e, Phrasebook: ph}
}

// Aggregate weighs every chunk's level by its tier and confidence, maps the
// evidence ratio to a tier and resolves that tier to one of levels (ordered
// best to worst). With no chunks it returns the lowest level with zero score
// and confidence.
func (a Aggregator) Aggregate(results []ChunkResult, levels []Level) Aggregate {
	if len(levels) == 0 {
		levels = DefaultLevels()
	}
	if len(results) == 0 {
		return Aggregate{
			Level:    levelForTier(TierBottom, levels).Name,
			Tier:     TierBottom,
			Feedback: a.Phrasebook.fragmentsFeedback(0),
		}
	}

	evidence, confidence := 0.0, 0.0
	for _, r := range results {
		factor := 1.0
		if r.Confidence <= a.Evidence.ConfidenceGate {
			factor = a.Evidence.LowConfidenceFactor
		}
		evidence += a.Evidence.weight(tierOf(r.Level, levels)) * factor
		confidence += r.Confidence
	}

	n := float64(len(results))
	ratio := 0.0
	if denom := n * a.Evidence.maxWeight(); denom > 0 {
		ratio = clamp01(evidence / denom)
	}

	tier := TierBottom
	switch {
	case ratio > a.Evidence.TopThreshold:
		tier = TierTop
	case ratio > a.Evidence.MiddleThreshold:
		tier = TierMiddle
	}
	level := levelForTier(tier, levels)

	return Aggregate{
		Level:      level.Name,
		Tier:       tier,
		Score:      NormalizeLevel(level.Name, levels),
		Ratio:      ratio,
		Confidence: clamp01(confidence / n),
		Feedback:   a.Phrasebook.fragmentsFeedback(len(results)),
		Chunks:     len(results),
	}
}

// tierOf reads the tier from the level name first; names the keyword table
// does not know fall back to their position among levels.
func tierOf(name string, levels []Level) Tier {
	switch classifyLevel(name) {
	case bandExcellent:
		return TierTop
	case bandGood, bandBasic:
		return TierMiddle
	case bandDeficient:
		return TierBottom
	}
	idx := -1
	for i, l := range levels {
		if l.Name == name {
			idx = i
			break
		}
	}
	switch {
	case idx < 0:
		return TierBottom
	case idx == 0 && len(levels) > 1:
		return TierTop
	case idx == len(levels)-1:
		return TierBottom
	default:
		return TierMiddle
	}
}

// levelForTier picks the first level for the top tier, the last for the
// bottom tier and the middle one otherwise.
func levelForTier(t Tier, levels []Level) Level {
	switch t {
	case TierTop:
		return levels[0]
	case TierBottom:
		return levels[len(levels)-1]
	default:
		return levels[len(levels)/2]
	}
}
