package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mind-engage/rubricscore/internal/grading"
	"github.com/mind-engage/rubricscore/internal/results"
	"github.com/mind-engage/rubricscore/internal/storage"
)

// Grader is the part of grading.Engine the handlers use.
type Grader interface {
	Analyze(ctx context.Context, doc grading.Document, r grading.Rubric) (grading.Report, error)
}

type gradeReq struct {
	Text             string                    `json:"text"`
	TextKey          string                    `json:"text_key"`
	Topic            string                    `json:"topic"`
	TopicDescription string                    `json:"topic_description"`
	Rubric           json.RawMessage           `json:"rubric"`
	Visual           *grading.VisualAssessment `json:"visual,omitempty"`
}

type gradeResp struct {
	ID string `json:"id,omitempty"`
	grading.Report
}

// POST /grade[?persist=1]
func GradeHandler(g Grader, store results.Store, bs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gradeReq
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 2*MaxTextBytes)).Decode(&req); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		if len(req.Rubric) == 0 {
			http.Error(w, "rubric required", http.StatusBadRequest)
			return
		}
		rub, err := grading.DecodeRubricJSON(bytes.NewReader(req.Rubric))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		text := req.Text
		if text == "" && req.TextKey != "" {
			if bs == nil {
				http.Error(w, "text_key given but no document store configured", http.StatusBadRequest)
				return
			}
			if text, err = storage.ReadText(bs, req.TextKey, MaxTextBytes); err != nil {
				http.Error(w, "document: "+err.Error(), textErrStatus(err))
				return
			}
		}
		if strings.TrimSpace(text) == "" {
			http.Error(w, "text or text_key required", http.StatusBadRequest)
			return
		}

		doc := grading.Document{Text: text, Topic: req.Topic, TopicDescription: req.TopicDescription, Visual: req.Visual}
		rep, err := g.Analyze(r.Context(), doc, rub)
		if err != nil {
			http.Error(w, "grade: "+err.Error(), gradeErrStatus(err))
			return
		}

		resp := gradeResp{Report: rep}
		if persist(r) {
			if store == nil {
				http.Error(w, "persistence not configured", http.StatusServiceUnavailable)
				return
			}
			id, err := store.Save(r.Context(), results.Evaluation{
				RubricID:   rub.ID,
				RubricName: rub.Name,
				TextKey:    req.TextKey,
				Report:     rep,
			})
			if err != nil {
				http.Error(w, "save: "+err.Error(), http.StatusInternalServerError)
				return
			}
			resp.ID = id
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// POST /rubrics/validate
func ValidateRubricHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rub, err := grading.DecodeRubricJSON(http.MaxBytesReader(w, r.Body, MaxTextBytes))
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(w).Encode(map[string]any{"valid": false, "error": err.Error()})
			return
		}
		weights := make([]float64, len(rub.Criteria))
		for i, c := range rub.Criteria {
			weights[i] = c.Weight
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"valid":        true,
			"criteria":     len(rub.Criteria),
			"weight_scale": grading.DetectWeightScale(weights),
			"rubric":       rub,
		})
	}
}

// GET /evaluations/{id}
func GetEvaluationHandler(store results.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		if id == "" {
			http.Error(w, "id required", http.StatusBadRequest)
			return
		}
		ev, err := store.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, results.ErrNotFound) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			http.Error(w, "evaluation: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ev)
	}
}

func persist(r *http.Request) bool {
	switch r.URL.Query().Get("persist") {
	case "1", "true", "yes":
		return true
	}
	return false
}

func gradeErrStatus(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, grading.ErrInvalidRubric), errors.Is(err, grading.ErrNoLevels):
		return http.StatusBadRequest
	case grading.Fatal(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
