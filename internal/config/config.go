package config

import (
	"os"
	"strconv"
	"strings"

	"abtest/domain/experiment"
	"abtest/internal/errors"

	"github.com/go-playground/validator/v10"
)

// DefaultAlpha is the significance level shared by every threshold check
const DefaultAlpha = 0.05

// DefaultMinNormalitySamples is the smallest sample a normality check accepts
const DefaultMinNormalitySamples = 3

// Config represents the complete application configuration
type Config struct {
	Analysis AnalysisConfig
	Schema   SchemaConfig
	Source   SourceConfig
	Server   ServerConfig
}

// AnalysisConfig holds the statistical settings of a run
type AnalysisConfig struct {
	Alpha               float64 `validate:"gt=0,lt=1"`
	MinNormalitySamples int     `validate:"gte=3"`
	TreatmentGroup      string  `validate:"required"`
	ControlGroup        string  `validate:"required,nefield=TreatmentGroup"`
}

// Groups returns the configured arm labels
func (a AnalysisConfig) Groups() experiment.GroupPair {
	return experiment.GroupPair{
		Treatment: experiment.GroupLabel(a.TreatmentGroup),
		Control:   experiment.GroupLabel(a.ControlGroup),
	}
}

// ConfidenceLevel is 1 - alpha
func (a AnalysisConfig) ConfidenceLevel() float64 {
	return 1 - a.Alpha
}

// SchemaConfig points at an optional YAML aggregation schema and extra input columns
type SchemaConfig struct {
	MetricsFile     string
	ExtendedColumns []string
}

// SourceConfig holds input settings
type SourceConfig struct {
	Kind        string `validate:"oneof=file postgres"`
	DataFile    string
	DatabaseURL string
	Query       string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port              string `validate:"required"`
	GinMode           string
	MaxConcurrentRuns int `validate:"gte=1"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Alpha:               DefaultAlpha,
			MinNormalitySamples: DefaultMinNormalitySamples,
			TreatmentGroup:      string(experiment.DefaultGroups().Treatment),
			ControlGroup:        string(experiment.DefaultGroups().Control),
		},
		Source: SourceConfig{Kind: "file"},
		Server: ServerConfig{
			Port:              "8080",
			GinMode:           "release",
			MaxConcurrentRuns: 4,
		},
	}
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := Default()

	config.Analysis = *loadAnalysisConfig(config.Analysis)
	config.Schema = *loadSchemaConfig()
	config.Source = *loadSourceConfig(config.Source)
	config.Server = *loadServerConfig(config.Server)

	if err := Validate(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadAnalysisConfig(defaults AnalysisConfig) *AnalysisConfig {
	return &AnalysisConfig{
		Alpha:               getEnvFloatOrDefault("ANALYSIS_ALPHA", defaults.Alpha),
		MinNormalitySamples: getEnvIntOrDefault("MIN_NORMALITY_SAMPLES", defaults.MinNormalitySamples),
		TreatmentGroup:      getEnvOrDefault("TREATMENT_GROUP", defaults.TreatmentGroup),
		ControlGroup:        getEnvOrDefault("CONTROL_GROUP", defaults.ControlGroup),
	}
}

func loadSchemaConfig() *SchemaConfig {
	return &SchemaConfig{
		MetricsFile:     getEnvOrDefault("METRICS_FILE", ""),
		ExtendedColumns: getEnvListOrDefault("EXTENDED_COLUMNS", nil),
	}
}

func loadSourceConfig(defaults SourceConfig) *SourceConfig {
	return &SourceConfig{
		Kind:        getEnvOrDefault("SOURCE_KIND", defaults.Kind),
		DataFile:    getEnvOrDefault("DATA_FILE", ""),
		DatabaseURL: getEnvOrDefault("DATABASE_URL", ""),
		Query:       getEnvOrDefault("SOURCE_QUERY", ""),
	}
}

func loadServerConfig(defaults ServerConfig) *ServerConfig {
	return &ServerConfig{
		Port:              getEnvOrDefault("PORT", defaults.Port),
		GinMode:           getEnvOrDefault("GIN_MODE", defaults.GinMode),
		MaxConcurrentRuns: getEnvIntOrDefault("MAX_CONCURRENT_RUNS", defaults.MaxConcurrentRuns),
	}
}

var validate = validator.New()

// Validate checks struct constraints and the cross-field rules validator tags cannot express
func Validate(config *Config) error {
	if err := validate.Struct(config); err != nil {
		return errors.ConfigInvalid(err.Error())
	}
	if config.Source.Kind == "postgres" && (config.Source.DatabaseURL == "" || config.Source.Query == "") {
		return errors.ConfigInvalid("postgres source requires DATABASE_URL and SOURCE_QUERY")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
