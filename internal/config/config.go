package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"maizemap/internal/validation"
)

// EnvPrefix namespaces every environment variable
const EnvPrefix = "MAIZE"

// Config represents the complete run configuration
type Config struct {
	Pipeline      PipelineConfig      `yaml:"pipeline" envconfig:"PIPELINE"`
	Interpolation InterpolationConfig `yaml:"interpolation" envconfig:"INTERPOLATION"`
	Paths         PathsConfig         `yaml:"paths" envconfig:"PATHS"`
	Logging       LoggingConfig       `yaml:"logging" envconfig:"LOGGING"`
	Telemetry     TelemetryConfig     `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// PipelineConfig controls ingestion, decomposition and indexing
type PipelineConfig struct {
	Anchor          string        `yaml:"anchor" envconfig:"ANCHOR" validate:"required"`
	SeasonalMethod  string        `yaml:"seasonal_method" envconfig:"SEASONAL_METHOD" validate:"oneof=additive multiplicative"`
	IndexMode       string        `yaml:"index_mode" envconfig:"INDEX_MODE" validate:"oneof=ratio difference"`
	MissingSentinel string        `yaml:"missing_sentinel" envconfig:"MISSING_SENTINEL" validate:"len=1"`
	RequireSeasonal bool          `yaml:"require_seasonal" envconfig:"REQUIRE_SEASONAL"`
	CrossValidate   bool          `yaml:"cross_validate" envconfig:"CROSS_VALIDATE"`
	Workers         int           `yaml:"workers" envconfig:"WORKERS" validate:"gte=0"`
	Timeout         time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gte=0"`
	StepTimeout     time.Duration `yaml:"step_timeout" envconfig:"STEP_TIMEOUT" validate:"gte=0"`
	DisabledSteps   []string      `yaml:"disabled_steps" envconfig:"DISABLED_STEPS" validate:"dive,oneof=interpolate validate"`
}

// InterpolationConfig controls the grid and the estimators
type InterpolationConfig struct {
	Methods     []string `yaml:"methods" envconfig:"METHODS" validate:"min=1,dive,oneof=tps idw rf"`
	Resolution  float64  `yaml:"resolution" envconfig:"RESOLUTION" validate:"gt=0"`
	IDWPower    float64  `yaml:"idw_power" envconfig:"IDW_POWER" validate:"gte=1"`
	Neighbors   int      `yaml:"neighbors" envconfig:"NEIGHBORS" validate:"gte=0"`
	Distance    string   `yaml:"distance" envconfig:"DISTANCE" validate:"oneof=planar geodesic"`
	Smoothing   float64  `yaml:"smoothing" envconfig:"SMOOTHING" validate:"gte=0"`
	ForestTrees int      `yaml:"forest_trees" envconfig:"FOREST_TREES" validate:"gte=1"`
	MinLeaf     int      `yaml:"min_leaf" envconfig:"MIN_LEAF" validate:"gte=1"`
	Seed        int64    `yaml:"seed" envconfig:"SEED"`
}

// PathsConfig names the input files and the output directory
type PathsConfig struct {
	Input      string   `yaml:"input" envconfig:"INPUT"`
	Boundary   string   `yaml:"boundary" envconfig:"BOUNDARY"`
	Covariates []string `yaml:"covariates" envconfig:"COVARIATES"`
	OutputDir  string   `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// TelemetryConfig controls tracing and the metrics endpoint
type TelemetryConfig struct {
	ServiceName string `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
	Tracing     bool   `yaml:"tracing" envconfig:"TRACING"`
	MetricsAddr string `yaml:"metrics_addr" envconfig:"METRICS_ADDR"`
}

// Default returns default configuration. The anchor is left empty.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			SeasonalMethod:  "additive",
			IndexMode:       "ratio",
			MissingSentinel: "-",
			Timeout:         30 * time.Minute,
		},
		Interpolation: InterpolationConfig{
			Methods:     []string{"tps", "idw", "rf"},
			Resolution:  0.05,
			IDWPower:    2,
			Distance:    "planar",
			ForestTrees: 500,
			MinLeaf:     5,
			Seed:        1,
		},
		Paths: PathsConfig{
			OutputDir: "output",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/pricesurface.log",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "maizemap",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (or
// the first file found in the default locations when path is empty) and
// the environment. It does not validate; call Validate after applying
// flag overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Fields without a matching variable keep their current value.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, cfg)
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// findConfigFile returns the first config file in the common locations
func findConfigFile() string {
	locations := []string{
		"pricesurface.yaml",
		"config.yaml",
		"configs/pricesurface.yaml",
		"../configs/pricesurface.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}
