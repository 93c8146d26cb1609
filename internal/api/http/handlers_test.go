package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/mind-engage/rubricscore/internal/db"
	"github.com/mind-engage/rubricscore/internal/grading"
	"github.com/mind-engage/rubricscore/internal/nli"
	"github.com/mind-engage/rubricscore/internal/results"
	"github.com/mind-engage/rubricscore/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rubricJSON = `{
  "id": "lab-1",
  "nombre_rubrica": "Informe",
  "criterios": [
    {"id": "1", "nombre_criterio": "Metodo", "peso": 60, "niveles": [
      {"nombre_nivel": "Excelente", "puntaje_min": 7, "puntaje_max": 10, "orden": 1},
      {"nombre_nivel": "Insuficiente", "puntaje_min": 0, "puntaje_max": 0, "orden": 2}
    ]},
    {"id": "2", "nombre_criterio": "Resultados", "peso": 40, "niveles": [
      {"nombre_nivel": "Excelente", "puntaje_min": 7, "puntaje_max": 10, "orden": 1},
      {"nombre_nivel": "Insuficiente", "puntaje_min": 0, "puntaje_max": 0, "orden": 2}
    ]}
  ]
}`

// entailsFirstFor prefers the first hypothesis when it mentions criterion.
func entailsFirstFor(criterion string) grading.ClassifierFunc {
	return func(_ context.Context, _ string, h []string) ([]float64, error) {
		out := make([]float64, len(h))
		if strings.Contains(h[0], criterion) {
			out[0] = 0.9
		} else {
			out[len(out)-1] = 0.9
		}
		return out, nil
	}
}

type fixture struct {
	srv   *httptest.Server
	store *results.SQLStore
	blobs *storage.FSStore
}

func newFixture(t *testing.T, c grading.Classifier) fixture {
	t.Helper()
	eng, err := grading.NewEngine(c)
	require.NoError(t, err)

	conn, err := db.Open(context.Background(), db.DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })
	store := results.NewSQLStore(conn, db.SQLName(db.DriverSQLite))

	blobs, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Post("/grade", GradeHandler(eng, store, blobs))
	r.Post("/rubrics/validate", ValidateRubricHandler())
	r.Get("/evaluations/{id}", GetEvaluationHandler(store))
	r.Route("/documents", func(dr chi.Router) { MountDocuments(dr, blobs) })
	r.Get("/healthz", HealthHandler())
	r.Get("/readyz", ReadyHandler(conn.PingContext))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return fixture{srv: srv, store: store, blobs: blobs}
}

func post(t *testing.T, url, contentType, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, contentType, strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func gradeBody(t *testing.T, fields map[string]any) string {
	t.Helper()
	fields["rubric"] = json.RawMessage(rubricJSON)
	b, err := json.Marshal(fields)
	require.NoError(t, err)
	return string(b)
}

func TestGradeInlineText(t *testing.T) {
	f := newFixture(t, entailsFirstFor("Metodo"))

	resp, body := post(t, f.srv.URL+"/grade", "application/json", gradeBody(t, map[string]any{"text": "El método es claro."}))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var got gradeResp
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Empty(t, got.ID)
	assert.Equal(t, "Excelente", got.Criteria["1"].Level)
	assert.Equal(t, "Insuficiente", got.Criteria["2"].Level)
	assert.InDelta(t, 12.0, got.FinalGrade, 1e-9)
	assert.Equal(t, grading.WeightsPercentage, got.WeightScale)
	assert.Contains(t, string(body), `"nivel":"Excelente"`)
	assert.Contains(t, string(body), `"peso":60`)
}

func TestGradePersistsAndReadsBack(t *testing.T) {
	f := newFixture(t, entailsFirstFor("Resultados"))

	resp, body := post(t, f.srv.URL+"/documents", "text/plain", "Los resultados se presentan en tablas.")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var stored map[string]string
	require.NoError(t, json.Unmarshal(body, &stored))

	resp, body = post(t, f.srv.URL+"/grade?persist=1", "application/json", gradeBody(t, map[string]any{"text_key": stored["key"]}))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var got gradeResp
	require.NoError(t, json.Unmarshal(body, &got))
	require.NotEmpty(t, got.ID)
	assert.InDelta(t, 8.0, got.FinalGrade, 1e-9)

	res, err := http.Get(f.srv.URL + "/evaluations/" + got.ID)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	var ev results.Evaluation
	require.NoError(t, json.NewDecoder(res.Body).Decode(&ev))
	assert.Equal(t, "lab-1", ev.RubricID)
	assert.Equal(t, stored["key"], ev.TextKey)
	assert.Equal(t, "Excelente", ev.Report.Criteria["2"].Level)

	doc, err := http.Get(f.srv.URL + "/documents/" + stored["key"])
	require.NoError(t, err)
	defer doc.Body.Close()
	text, _ := io.ReadAll(doc.Body)
	assert.Equal(t, "Los resultados se presentan en tablas.", string(text))
}

func TestGradeRejectsBadInput(t *testing.T) {
	f := newFixture(t, entailsFirstFor("Metodo"))

	cases := map[string]struct {
		body string
		code int
	}{
		"bad json":     {`{`, http.StatusBadRequest},
		"no rubric":    {`{"text": "x"}`, http.StatusBadRequest},
		"no text":      {gradeBody(t, map[string]any{}), http.StatusBadRequest},
		"bad rubric":   {`{"text": "x", "rubric": {"criteria": []}}`, http.StatusBadRequest},
		"missing blob": {gradeBody(t, map[string]any{"text_key": "texts/none.txt"}), http.StatusNotFound},
		"escaping key": {gradeBody(t, map[string]any{"text_key": "../secrets"}), http.StatusBadRequest},
	}
	for name, tc := range cases {
		resp, body := post(t, f.srv.URL+"/grade", "application/json", tc.body)
		assert.Equal(t, tc.code, resp.StatusCode, "%s: %s", name, body)
	}
}

func TestGradeModelUnavailable(t *testing.T) {
	lazy := nli.NewLazy(func(context.Context) (nli.Classifier, error) { return nil, errors.New("no weights") })
	f := newFixture(t, lazy)

	resp, body := post(t, f.srv.URL+"/grade", "application/json", gradeBody(t, map[string]any{"text": "x"}))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, string(body), "nli model unavailable")
}

func TestValidateRubric(t *testing.T) {
	f := newFixture(t, entailsFirstFor("x"))

	resp, body := post(t, f.srv.URL+"/rubrics/validate", "application/json", rubricJSON)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, true, got["valid"])
	assert.Equal(t, "percentage", got["weight_scale"])

	resp, body = post(t, f.srv.URL+"/rubrics/validate", "application/json", `{"criteria": [{"name": "a"}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), "criterion has no levels")
}

func TestEvaluationNotFoundAndProbes(t *testing.T) {
	f := newFixture(t, entailsFirstFor("x"))

	for path, code := range map[string]int{
		"/evaluations/missing": http.StatusNotFound,
		"/healthz":             http.StatusOK,
		"/readyz":              http.StatusOK,
		"/documents/texts/x":   http.StatusNotFound,
	} {
		res, err := http.Get(f.srv.URL + path)
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, code, res.StatusCode, path)
	}
}

func TestReadyHandlerReportsFailingCheck(t *testing.T) {
	h := ReadyHandler(func(context.Context) error { return nil }, func(context.Context) error { return errors.New("model loading") })
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "model loading")
}

func TestDocumentUploadLimits(t *testing.T) {
	f := newFixture(t, entailsFirstFor("x"))

	resp, body := post(t, f.srv.URL+"/documents", "text/plain", strings.Repeat("a", MaxTextBytes+1000))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode, string(body))

	resp, body = post(t, f.srv.URL+"/documents", "text/plain", "caf\xc3")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(body))

	full := strings.Repeat("é", MaxTextBytes/2)
	resp, body = post(t, f.srv.URL+"/documents", "text/plain", full)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var stored map[string]string
	require.NoError(t, json.Unmarshal(body, &stored))

	res, err := http.Get(f.srv.URL + "/documents/" + stored["key"])
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	got, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Len(t, got, MaxTextBytes)
}
