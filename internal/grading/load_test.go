package grading

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const spanishRubric = `{
  "nombre_rubrica": "Informe de laboratorio",
  "criterios": [
    {
      "id": 7,
      "nombre_criterio": "Análisis",
      "descripcion_criterio": "Interpreta los datos",
      "peso": 60,
      "niveles": [
        {"nombre_nivel": "Insuficiente", "puntaje_min": 0, "puntaje_max": 1.9, "orden": 4},
        {"nombre_nivel": "Excelente", "puntaje_min": 4, "puntaje_max": 5, "descriptores": ["Justifica", " "], "orden": 1}
      ]
    },
    {
      "nombre_criterio": "Formato",
      "peso": 40,
      "niveles": [{"nombre_nivel": "Bueno", "puntaje_max": 2}]
    }
  ]
}`

func TestDecodeRubricJSONSpanishKeys(t *testing.T) {
	r, err := DecodeRubricJSON(strings.NewReader(spanishRubric))
	require.NoError(t, err)

	assert.Equal(t, "Informe de laboratorio", r.Name)
	require.Len(t, r.Criteria, 2)

	c := r.Criteria[0]
	assert.Equal(t, "7", c.ID)
	assert.Equal(t, "Análisis", c.Name)
	assert.Equal(t, 60.0, c.Weight)
	assert.Equal(t, 5.0, c.MaxPoints())
	assert.Equal(t, []string{"Justifica"}, c.Levels[1].Descriptors)
	assert.Equal(t, "Excelente", c.SortedLevels()[0].Name)

	assert.Equal(t, "2", r.Criteria[1].ID, "missing ids follow position")
}

const englishRubric = `
name: Essay
criteria:
  - id: thesis
    name: Thesis
    weight: 0.5
    levels:
      - name: Excellent
        min_points: 8
        max_points: 10
        descriptors: [States a clear claim]
      - name: Poor
        max_points: 4
  - id: style
    name: Style
    weight: 0.5
    levels:
      - name: Good
        max_points: 10
`

func TestDecodeRubricYAML(t *testing.T) {
	r, err := DecodeRubricYAML(strings.NewReader(englishRubric))
	require.NoError(t, err)
	require.Len(t, r.Criteria, 2)
	assert.Equal(t, "thesis", r.Criteria[0].Key())
	assert.Equal(t, 8.0, r.Criteria[0].Levels[0].MinPoints)
	assert.Equal(t, []string{"States a clear claim"}, r.Criteria[0].Levels[0].Descriptors)
}

func TestDecodeRubricRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"not json":      `{`,
		"no criteria":   `{"name": "x"}`,
		"no levels":     `{"criteria": [{"name": "a", "weight": 1}]}`,
		"min above max": `{"criteria": [{"name": "a", "levels": [{"name": "x", "min_points": 3, "max_points": 1}]}]}`,
		"negative":      `{"criteria": [{"name": "a", "weight": -1, "levels": [{"name": "x"}]}]}`,
		"dup criterion": `{"criteria": [{"id": "1", "name": "a", "levels": [{"name": "x"}]}, {"id": "1", "name": "b", "levels": [{"name": "x"}]}]}`,
		"dup level":     `{"criteria": [{"name": "a", "levels": [{"name": "x"}, {"name": "x"}]}]}`,
	}
	for name, doc := range cases {
		_, err := DecodeRubricJSON(strings.NewReader(doc))
		assert.Error(t, err, name)
	}

	_, err := DecodeRubricJSON(strings.NewReader(`{"criteria": [{"name": "a", "levels": []}]}`))
	assert.ErrorIs(t, err, ErrNoLevels)
}

func TestLoadRubricFile(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "r.json")
	yamlPath := filepath.Join(dir, "r.yml")
	require.NoError(t, os.WriteFile(jsonPath, []byte(spanishRubric), 0o644))
	require.NoError(t, os.WriteFile(yamlPath, []byte(englishRubric), 0o644))

	r, err := LoadRubricFile(jsonPath)
	require.NoError(t, err)
	assert.Len(t, r.Criteria, 2)

	r, err = LoadRubricFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "Essay", r.Name)

	_, err = LoadRubricFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
