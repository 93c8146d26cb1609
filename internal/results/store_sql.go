package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mind-engage/rubricscore/internal/grading"
)

// SQLStore persists evaluations in sqlite, postgres or mysql. Queries are
// written with ? placeholders and rebound for the driver.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore wraps an open handle; driverName is the database/sql driver
// name it was opened with.
func NewSQLStore(db *sql.DB, driverName string) *SQLStore {
	return &SQLStore{db: sqlx.NewDb(db, driverName)}
}

type evaluationRow struct {
	ID          string  `db:"id"`
	RubricID    string  `db:"rubric_id"`
	RubricName  string  `db:"rubric_name"`
	TextKey     string  `db:"text_key"`
	FinalGrade  float64 `db:"final_grade"`
	WeightScale string  `db:"weight_scale"`
	CreatedAt   int64   `db:"created_at"`
}

type criterionRow struct {
	EvaluationID string  `db:"evaluation_id"`
	Key          string  `db:"criterion_key"`
	Level        string  `db:"nivel"`
	Score        float64 `db:"score"`
	Confidence   float64 `db:"confidence"`
	Weight       float64 `db:"peso"`
	Feedback     string  `db:"feedback"`
	Chunks       int     `db:"chunks"`
	Error        string  `db:"error"`
}

const (
	insertEvaluation = `INSERT INTO evaluations (id,rubric_id,rubric_name,text_key,final_grade,weight_scale,created_at)
		VALUES (:id,:rubric_id,:rubric_name,:text_key,:final_grade,:weight_scale,:created_at)`
	insertCriterion = `INSERT INTO criterion_results (evaluation_id,criterion_key,nivel,score,confidence,peso,feedback,chunks,error)
		VALUES (:evaluation_id,:criterion_key,:nivel,:score,:confidence,:peso,:feedback,:chunks,:error)`
)

// Save writes the evaluation and one row per criterion in a single
// transaction. An empty ID is assigned a fresh UUID.
func (s *SQLStore) Save(ctx context.Context, ev Evaluation) (string, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, insertEvaluation, evaluationRow{
		ID:          ev.ID,
		RubricID:    ev.RubricID,
		RubricName:  ev.RubricName,
		TextKey:     ev.TextKey,
		FinalGrade:  ev.Report.FinalGrade,
		WeightScale: string(ev.Report.WeightScale),
		CreatedAt:   ev.CreatedAt.Unix(),
	}); err != nil {
		return "", fmt.Errorf("insert evaluation: %w", err)
	}

	for _, k := range sortedKeys(ev.Report.Criteria) {
		r := ev.Report.Criteria[k]
		row := criterionRow{
			EvaluationID: ev.ID, Key: k, Level: r.Level, Score: r.Score,
			Confidence: r.Confidence, Weight: r.Weight, Feedback: r.Feedback, Chunks: r.Chunks,
		}
		if _, err := tx.NamedExecContext(ctx, insertCriterion, row); err != nil {
			return "", fmt.Errorf("insert criterion %q: %w", k, err)
		}
	}
	for _, k := range sortedKeys(ev.Report.Failures) {
		row := criterionRow{EvaluationID: ev.ID, Key: k, Error: ev.Report.Failures[k]}
		if _, err := tx.NamedExecContext(ctx, insertCriterion, row); err != nil {
			return "", fmt.Errorf("insert failed criterion %q: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return ev.ID, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (Evaluation, error) {
	var er evaluationRow
	err := s.db.GetContext(ctx, &er, s.db.Rebind(`SELECT id,rubric_id,rubric_name,text_key,final_grade,weight_scale,created_at
		FROM evaluations WHERE id=?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Evaluation{}, ErrNotFound
		}
		return Evaluation{}, err
	}

	var rows []criterionRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT evaluation_id,criterion_key,nivel,score,confidence,peso,feedback,chunks,error
		FROM criterion_results WHERE evaluation_id=? ORDER BY criterion_key`), id); err != nil {
		return Evaluation{}, err
	}

	ev := Evaluation{
		ID:         er.ID,
		RubricID:   er.RubricID,
		RubricName: er.RubricName,
		TextKey:    er.TextKey,
		CreatedAt:  time.Unix(er.CreatedAt, 0),
		Report: grading.Report{
			Criteria:    make(map[string]grading.CriterionResult, len(rows)),
			FinalGrade:  er.FinalGrade,
			WeightScale: grading.WeightScale(er.WeightScale),
		},
	}
	for _, r := range rows {
		if r.Error != "" {
			if ev.Report.Failures == nil {
				ev.Report.Failures = map[string]string{}
			}
			ev.Report.Failures[r.Key] = r.Error
			continue
		}
		ev.Report.Criteria[r.Key] = grading.CriterionResult{
			Level:      r.Level,
			Score:      r.Score,
			Confidence: r.Confidence,
			Feedback:   r.Feedback,
			Weight:     r.Weight,
			Chunks:     r.Chunks,
		}
	}
	return ev, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
