package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mind-engage/rubricscore/internal/grading"
)

type Config struct {
	HTTPAddr string

	DBDriver string
	DBDSN    string

	BlobBasePath string // extracted document text

	CORSOrigins []string

	// NLI worker
	ModelName    string
	ModelPath    string // local checkpoint, preferred over ModelName when present
	NLIPython    string
	NLIScriptDir string
	MaxLength    int

	ChunkSize      int
	ChunkOverlap   int
	ChunkThreshold int

	EvidenceGate   float64
	EvidenceTop    float64
	EvidenceMiddle float64

	HypothesisLang string // en|es
	VisualFusion   bool

	LogLevel string
}

// FromEnv reads the process environment. A .env file in the working
// directory is loaded first when present; real variables win over it.
func FromEnv() Config {
	_ = godotenv.Load()
	return Config{
		HTTPAddr:       envOr("HTTP_ADDR", ":8080"),
		DBDriver:       envOr("DB_DRIVER", "sqlite"),
		DBDSN:          envOr("DB_DSN", ""),
		BlobBasePath:   envOr("BLOB_BASE_PATH", "./data"),
		CORSOrigins:    csvOr("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		ModelName:      envOr("MODEL_NAME", "MoritzLaurer/DeBERTa-v3-base-mnli-fever-anli"),
		ModelPath:      envOr("MODEL_PATH", "./models/deberta"),
		NLIPython:      envOr("NLI_PYTHON", "python3"),
		NLIScriptDir:   envOr("NLI_SCRIPT_DIR", ""),
		MaxLength:      envInt("NLI_MAX_LENGTH", 512),
		ChunkSize:      envInt("CHUNK_SIZE", 1600),
		ChunkOverlap:   envInt("CHUNK_OVERLAP", 400),
		ChunkThreshold: envInt("CHUNK_THRESHOLD", 2000),
		EvidenceGate:   envFloat("EVIDENCE_GATE", 0.4),
		EvidenceTop:    envFloat("EVIDENCE_TOP", 0.25),
		EvidenceMiddle: envFloat("EVIDENCE_MIDDLE", 0.10),
		HypothesisLang: envOr("HYPOTHESIS_LANG", "en"),
		VisualFusion:   envBool("VISUAL_FUSION", false),
		LogLevel:       envOr("LOG_LEVEL", "info"),
	}
}

func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, %d), got %d", c.ChunkSize, c.ChunkOverlap)
	}
	if c.ChunkThreshold < 0 {
		return fmt.Errorf("CHUNK_THRESHOLD must not be negative, got %d", c.ChunkThreshold)
	}
	if c.EvidenceMiddle > c.EvidenceTop {
		return fmt.Errorf("EVIDENCE_MIDDLE %.2f is above EVIDENCE_TOP %.2f", c.EvidenceMiddle, c.EvidenceTop)
	}
	switch c.DBDriver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	return nil
}

// Evidence is the aggregation tuning with the configured gate and thresholds.
func (c Config) Evidence() grading.EvidenceConfig {
	e := grading.DefaultEvidence()
	e.ConfidenceGate = c.EvidenceGate
	e.TopThreshold = c.EvidenceTop
	e.MiddleThreshold = c.EvidenceMiddle
	return e
}

// EngineOptions builds the grading engine options shared by the server and
// the CLI.
func (c Config) EngineOptions(logger grading.Logger) []grading.Option {
	return []grading.Option{
		grading.WithWindow(grading.Window{Size: c.ChunkSize, Overlap: c.ChunkOverlap}),
		grading.WithThreshold(c.ChunkThreshold),
		grading.WithEvidence(c.Evidence()),
		grading.WithPhrasebook(grading.PhrasebookFor(c.HypothesisLang)),
		grading.WithVisualFusion(c.VisualFusion),
		grading.WithLogger(logger),
	}
}
func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envInt(k string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(k)))
	if err != nil {
		return def
	}
	return n
}
func envFloat(k string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(k)), 64)
	if err != nil {
		return def
	}
	return f
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
