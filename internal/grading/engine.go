package grading

import (
	"context"
	"errors"
	"fmt"
)

// Logger is what the engine needs from a leveled logger.
type Logger interface {
	Debug(format string, v ...any)
	Info(format string, v ...any)
	Error(format string, v ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Document is the extracted text handed over by ingestion, with the topic
// context the instructor entered.
type Document struct {
	Text             string            `json:"text"`
	Topic            string            `json:"topic,omitempty"`
	TopicDescription string            `json:"topic_description,omitempty"`
	Visual           *VisualAssessment `json:"visual,omitempty"`
}

// CriterionResult is the engine output for one criterion.
type CriterionResult struct {
	Level      string  `json:"nivel"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Feedback   string  `json:"feedback"`
	Weight     float64 `json:"peso"`
	Chunks     int     `json:"chunks"`
}

// Report is the engine output for a whole document.
type Report struct {
	Criteria    map[string]CriterionResult `json:"criteria"`
	Failures    map[string]string          `json:"failures,omitempty"`
	FinalGrade  float64                    `json:"final_grade"`
	WeightScale WeightScale                `json:"weight_scale"`
}

// Engine options

type Option func(*config)

type config struct {
	window     Window
	threshold  int
	evidence   EvidenceConfig
	phrasebook Phrasebook
	logger     Logger
	fusion     bool
}

func WithWindow(w Window) Option           { return func(c *config) { c.window = w } }
func WithThreshold(n int) Option           { return func(c *config) { c.threshold = n } }
func WithEvidence(e EvidenceConfig) Option { return func(c *config) { c.evidence = e } }
func WithPhrasebook(p Phrasebook) Option   { return func(c *config) { c.phrasebook = p } }
func WithLogger(l Logger) Option           { return func(c *config) { c.logger = l } }
func WithVisualFusion(enabled bool) Option { return func(c *config) { c.fusion = enabled } }

// Engine grades documents against rubrics. It keeps no state between calls
// beyond the classifier it was given.
type Engine struct {
	classifier Classifier
	cfg        config
	agg        Aggregator
}

// NewEngine validates the window and installs defaults for unset options.
func NewEngine(c Classifier, opts ...Option) (*Engine, error) {
	if c == nil {
		return nil, errors.New("grading: classifier is required")
	}
	cfg := config{
		window:     DefaultWindow(),
		threshold:  DefaultChunkThreshold,
		evidence:   DefaultEvidence(),
		phrasebook: English,
		logger:     nopLogger{},
	}
	for _, o := range opts {
		o(&cfg)
	}
	if err := cfg.window.Validate(); err != nil {
		return nil, fmt.Errorf("grading: %w", err)
	}
	if cfg.logger == nil {
		cfg.logger = nopLogger{}
	}
	return &Engine{classifier: c, cfg: cfg, agg: NewAggregator(cfg.evidence, cfg.phrasebook)}, nil
}

// Chunks returns the windows the engine would score for text: one chunk when
// the text is at or under the chunking threshold.
func (e *Engine) Chunks(text string) []Chunk {
	n := charLen(text)
	if n <= e.cfg.threshold {
		return []Chunk{{Index: 0, Start: 0, End: n, Text: text}}
	}
	chunks, _ := Split(text, e.cfg.window) // window validated in NewEngine
	return chunks
}

// AnalyzeCriterion scores one criterion. A criterion without levels fails
// fast with ErrNoLevels; classifier failures are returned as they come.
func (e *Engine) AnalyzeCriterion(ctx context.Context, doc Document, cr Criterion) (CriterionResult, error) {
	if len(cr.Levels) == 0 {
		return CriterionResult{}, fmt.Errorf("criterion %q: %w", cr.Name, ErrNoLevels)
	}
	res, err := e.analyzeLevels(ctx, doc, cr.Name, cr.SortedLevels())
	if err != nil {
		return CriterionResult{}, err
	}
	res.Weight = cr.Weight
	if e.cfg.fusion && doc.Visual != nil {
		res = fuseVisual(res, cr, *doc.Visual)
	}
	return res, nil
}

// AnalyzeLevels scores a criterion known only by name. Without levels the
// default Excelente/Bueno/Regular/Insuficiente set is used.
func (e *Engine) AnalyzeLevels(ctx context.Context, doc Document, criterion string, levels []Level) (CriterionResult, error) {
	if len(levels) == 0 {
		levels = DefaultLevels()
	}
	return e.analyzeLevels(ctx, doc, criterion, Criterion{Name: criterion, Levels: levels}.SortedLevels())
}

func (e *Engine) analyzeLevels(ctx context.Context, doc Document, criterion string, levels []Level) (CriterionResult, error) {
	if err := ctx.Err(); err != nil {
		return CriterionResult{}, err
	}
	e.cfg.logger.Debug("criterion %q context:\n%s", criterion,
		e.cfg.phrasebook.BuildContextPrompt(criterion, doc.Topic, doc.TopicDescription, levels[0].Descriptors))

	chunks := e.Chunks(doc.Text)
	if len(chunks) == 1 {
		cr, err := ScoreChunk(ctx, e.classifier, e.cfg.phrasebook, chunks[0].Text, criterion, levels)
		if err != nil {
			return CriterionResult{}, err
		}
		res := CriterionResult{
			Level:      cr.Level,
			Score:      NormalizeLevel(cr.Level, levels),
			Confidence: cr.Confidence,
			Feedback:   e.cfg.phrasebook.fragmentsFeedback(1),
			Chunks:     1,
		}
		e.cfg.logger.Info("criterion %q: level=%s score=%.3f confidence=%.3f", criterion, res.Level, res.Score, res.Confidence)
		return res, nil
	}

	e.cfg.logger.Info("criterion %q: long text (%d chars), %d chunks", criterion, charLen(doc.Text), len(chunks))
	results := make([]ChunkResult, 0, len(chunks))
	for _, ch := range chunks {
		if err := ctx.Err(); err != nil {
			return CriterionResult{}, err
		}
		r, err := ScoreChunk(ctx, e.classifier, e.cfg.phrasebook, ch.Text, criterion, levels)
		if err != nil {
			return CriterionResult{}, fmt.Errorf("chunk %d/%d: %w", ch.Index+1, len(chunks), err)
		}
		e.cfg.logger.Debug("criterion %q chunk %d/%d [%d:%d]: level=%s confidence=%.3f",
			criterion, ch.Index+1, len(chunks), ch.Start, ch.End, r.Level, r.Confidence)
		results = append(results, r)
	}

	agg := e.agg.Aggregate(results, levels)
	e.cfg.logger.Info("criterion %q: ratio=%.3f level=%s score=%.3f confidence=%.3f",
		criterion, agg.Ratio, agg.Level, agg.Score, agg.Confidence)
	return CriterionResult{
		Level:      agg.Level,
		Score:      agg.Score,
		Confidence: agg.Confidence,
		Feedback:   agg.Feedback,
		Chunks:     agg.Chunks,
	}, nil
}

// Analyze grades every criterion of the rubric. Criteria fail independently
// and are reported in Report.Failures; the final grade covers the criteria
// that succeeded. Errors the caller must treat as fatal (see Fatal) abort the
// whole call.
func (e *Engine) Analyze(ctx context.Context, doc Document, r Rubric) (Report, error) {
	if len(r.Criteria) == 0 {
		return Report{}, fmt.Errorf("%w: at least one criterion is required", ErrInvalidRubric)
	}
	rep := Report{Criteria: make(map[string]CriterionResult, len(r.Criteria))}
	weighted := make(map[string]WeightedScore, len(r.Criteria))
	all := make([]float64, 0, len(r.Criteria))

	for _, cr := range r.Criteria {
		all = append(all, cr.Weight)
		key := cr.Key()
		res, err := e.AnalyzeCriterion(ctx, doc, cr)
		if err != nil {
			if Fatal(err) {
				return Report{}, err
			}
			e.cfg.logger.Error("criterion %q failed: %v", key, err)
			if rep.Failures == nil {
				rep.Failures = map[string]string{}
			}
			rep.Failures[key] = err.Error()
			continue
		}
		rep.Criteria[key] = res
		weighted[key] = WeightedScore{Score: res.Score, Weight: cr.Weight}
	}

	rep.WeightScale = DetectWeightScale(all)
	rep.FinalGrade = finalGrade(weighted, rep.WeightScale)
	e.cfg.logger.Info("document graded: %d/%d criteria, final grade %.2f (%s weights)",
		len(rep.Criteria), len(r.Criteria), rep.FinalGrade, rep.WeightScale)
	return rep, nil
}

// finalGrade applies a scale detected over the full rubric so a failed
// criterion does not flip the weight convention of the ones that remain.
func finalGrade(results map[string]WeightedScore, scale WeightScale) float64 {
	if scale == WeightsFractional {
		return FinalGrade(results)
	}
	fr := make(map[string]WeightedScore, len(results))
	for k, r := range results {
		fr[k] = WeightedScore{Score: r.Score, Weight: r.Weight / scale.Divisor()}
	}
	return FinalGrade(fr)
}

// fatalErr marks errors that invalidate every criterion, not just one.
type fatalErr interface{ Fatal() bool }

// Fatal reports whether err should abort a whole document: a cancelled
// context or an error that declares itself fatal, such as a model that
// could not be loaded.
func Fatal(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var f fatalErr
	return errors.As(err, &f) && f.Fatal()
}
