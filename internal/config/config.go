package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/Skufu/cardioscreen/internal/artifact"
	"github.com/Skufu/cardioscreen/internal/features"
)

// Variant names.
const (
	VariantNeural    = "neural"
	VariantCommittee = "committee"
)

// Artifact source kinds.
const (
	SourceDir      = "dir"
	SourcePostgres = "postgres"
)

// Config holds all service configuration.
type Config struct {
	Port        string
	GinMode     string
	LogLevel    string
	LogFormat   string
	DatabaseURL string
	EnableDB    bool
	Model       ModelConfig
}

// ModelConfig selects the deployed model variant and where its artifacts live.
type ModelConfig struct {
	Variant       string
	Strategy      string
	Threshold     float64
	Exclude       []string
	Source        string
	ArtifactDir   string
	ArtifactTable string
	Classifier    string
	Columns       string
	Transform     string
	ONNXLib       string
}

// Manifest returns the artifact manifest for the configured variant.
func (m ModelConfig) Manifest() artifact.Manifest {
	return artifact.Manifest{
		Classifier: m.Classifier,
		Columns:    m.Columns,
		Transform:  m.Transform,
		Strategy:   m.Strategy,
		Exclude:    m.Exclude,
		ONNXLib:    m.ONNXLib,
	}
}

// profile holds a variant's defaults. The neural pipeline was trained without
// the fasting blood sugar field; the committee kept it.
type profile struct {
	strategy   string
	threshold  float64
	exclude    string
	classifier string
	columns    string
	transform  string
}

var profiles = map[string]profile{
	VariantNeural: {
		strategy:   features.StrategyPipeline,
		threshold:  0.20,
		exclude:    "fbs",
		classifier: "modelo_RedesNeurais_Otimizado.onnx",
		columns:    "deploy/colunas_treino.json",
		transform:  "deploy/preprocessor.json",
	},
	VariantCommittee: {
		strategy:   features.StrategyManual,
		threshold:  0.30,
		classifier: "committee.json",
		columns:    "committee_columns.json",
	},
}

// Load reads configuration from the environment, after loading a .env file
// when one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	variant := strings.ToLower(getEnv("MODEL_VARIANT", VariantNeural))
	prof, ok := profiles[variant]
	if !ok {
		return nil, fmt.Errorf("unknown MODEL_VARIANT %q (want %s or %s)", variant, VariantNeural, VariantCommittee)
	}

	threshold, err := getEnvFloat("DECISION_THRESHOLD", prof.threshold)
	if err != nil {
		return nil, err
	}
	if !(threshold > 0 && threshold <= 1) {
		return nil, fmt.Errorf("DECISION_THRESHOLD must be in (0, 1], got %v", threshold)
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "release"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		EnableDB:    strings.EqualFold(getEnv("ENABLE_DB", "false"), "true"),
		Model: ModelConfig{
			Variant:       variant,
			Strategy:      getEnv("ALIGN_STRATEGY", prof.strategy),
			Threshold:     threshold,
			Exclude:       splitList(getEnvAllowEmpty("EXCLUDE_FIELDS", prof.exclude)),
			Source:        strings.ToLower(getEnv("ARTIFACT_SOURCE", SourceDir)),
			ArtifactDir:   getEnv("ARTIFACT_DIR", "models"),
			ArtifactTable: getEnv("ARTIFACT_TABLE", "model_artifacts"),
			Classifier:    getEnv("CLASSIFIER_ARTIFACT", prof.classifier),
			Columns:       getEnv("COLUMNS_ARTIFACT", prof.columns),
			Transform:     getEnv("TRANSFORM_ARTIFACT", prof.transform),
			ONNXLib:       getEnv("ONNXRUNTIME_LIB", "models/libonnxruntime.so"),
		},
	}

	switch cfg.Model.Strategy {
	case features.StrategyPipeline, features.StrategyManual:
	default:
		return nil, fmt.Errorf("unknown ALIGN_STRATEGY %q", cfg.Model.Strategy)
	}

	switch cfg.Model.Source {
	case SourceDir:
	case SourcePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when ARTIFACT_SOURCE=postgres")
		}
	default:
		return nil, fmt.Errorf("unknown ARTIFACT_SOURCE %q", cfg.Model.Source)
	}

	if cfg.EnableDB && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when ENABLE_DB=true")
	}

	return cfg, nil
}

// NeedsDB reports whether a database connection must be opened.
func (c *Config) NeedsDB() bool {
	return c.EnableDB || c.Model.Source == SourcePostgres
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvAllowEmpty distinguishes an unset variable from one set to "".
func getEnvAllowEmpty(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
