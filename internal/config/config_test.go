package config

import (
	"context"
	"strings"
	"testing"

	"github.com/mind-engage/rubricscore/internal/grading"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "CHUNK_SIZE", "CHUNK_OVERLAP", "EVIDENCE_GATE", "CORS_ORIGINS", "VISUAL_FUSION"} {
		t.Setenv(k, "")
	}
	c := FromEnv()
	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, 1600, c.ChunkSize)
	assert.Equal(t, 400, c.ChunkOverlap)
	assert.Equal(t, 0.4, c.EvidenceGate)
	assert.False(t, c.VisualFusion)
	assert.Len(t, c.CORSOrigins, 2)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "800")
	t.Setenv("CHUNK_OVERLAP", " 100 ")
	t.Setenv("EVIDENCE_TOP", "0.3")
	t.Setenv("VISUAL_FUSION", "yes")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("CHUNK_THRESHOLD", "not-a-number")

	c := FromEnv()
	assert.Equal(t, 800, c.ChunkSize)
	assert.Equal(t, 100, c.ChunkOverlap)
	assert.Equal(t, 0.3, c.EvidenceTop)
	assert.True(t, c.VisualFusion)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.CORSOrigins)
	assert.Equal(t, 2000, c.ChunkThreshold)
	require.NoError(t, c.Validate())
}

func TestValidate(t *testing.T) {
	base := Config{ChunkSize: 10, ChunkOverlap: 2, EvidenceTop: 0.25, EvidenceMiddle: 0.1, DBDriver: "sqlite"}
	require.NoError(t, base.Validate())

	bad := []func(c *Config){
		func(c *Config) { c.ChunkSize = 0 },
		func(c *Config) { c.ChunkOverlap = 10 },
		func(c *Config) { c.ChunkOverlap = -1 },
		func(c *Config) { c.ChunkThreshold = -5 },
		func(c *Config) { c.EvidenceMiddle = 0.5 },
		func(c *Config) { c.DBDriver = "oracle" },
	}
	for i, mut := range bad {
		c := base
		mut(&c)
		assert.Error(t, c.Validate(), "case %d", i)
	}
}

func TestEngineOptionsFollowConfig(t *testing.T) {
	c := Config{
		ChunkSize: 8, ChunkOverlap: 2, ChunkThreshold: 10,
		EvidenceGate: 0.6, EvidenceTop: 0.5, EvidenceMiddle: 0.2,
		HypothesisLang: "es",
	}
	e := c.Evidence()
	assert.Equal(t, 0.6, e.ConfidenceGate)
	assert.Equal(t, 0.5, e.TopThreshold)
	assert.Equal(t, 0.2, e.MiddleThreshold)
	assert.Equal(t, grading.DefaultEvidence().TopWeight, e.TopWeight)

	var seen []string
	record := grading.ClassifierFunc(func(_ context.Context, _ string, h []string) ([]float64, error) {
		seen = append(seen, h...)
		out := make([]float64, len(h))
		out[0] = 0.9
		return out, nil
	})
	eng, err := grading.NewEngine(record, c.EngineOptions(nil)...)
	require.NoError(t, err)
	assert.Len(t, eng.Chunks(strings.Repeat("x", 20)), 4)

	_, err = eng.AnalyzeLevels(context.Background(), grading.Document{Text: "texto"}, "Claridad", nil)
	require.NoError(t, err)
	require.NotEmpty(t, seen)
	assert.Contains(t, seen[0], "Este texto demuestra Claridad")
}
