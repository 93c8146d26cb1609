package results

import (
	"context"
	"errors"
	"time"

	"github.com/mind-engage/rubricscore/internal/grading"
)

var ErrNotFound = errors.New("evaluation not found")

// Evaluation is a graded document as persisted.
type Evaluation struct {
	ID         string         `json:"id"`
	RubricID   string         `json:"rubric_id,omitempty"`
	RubricName string         `json:"rubric_name,omitempty"`
	TextKey    string         `json:"text_key,omitempty"`
	Report     grading.Report `json:"report"`
	CreatedAt  time.Time      `json:"created_at"`
}

type Store interface {
	Save(ctx context.Context, ev Evaluation) (string, error) // returns the evaluation id
	Get(ctx context.Context, id string) (Evaluation, error)
}
