// Package config loads cvlab configuration from file and environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"voltammetry-lab/internal/analysis"
	"voltammetry-lab/internal/calibration"
	"voltammetry-lab/internal/classify"
	"voltammetry-lab/internal/detection"
	"voltammetry-lab/internal/features"
	"voltammetry-lab/internal/preprocess"
	"voltammetry-lab/internal/scoring"
)

// EnvPrefix prefixes environment overrides, e.g. CVLAB_SCORING_THRESHOLD.
const EnvPrefix = "CVLAB"

// Config represents the complete application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Analysis    AnalysisConfig    `mapstructure:"analysis"`
	Detection   DetectionConfig   `mapstructure:"detection"`
	Features    FeaturesConfig    `mapstructure:"features"`
	Scoring     ScoringConfig     `mapstructure:"scoring"`
	Calibration CalibrationConfig `mapstructure:"calibration"`
	Ingestion   IngestionConfig   `mapstructure:"ingestion"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	MetricsPath     string        `mapstructure:"metrics_path"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// StorageConfig selects and connects the persistence backend.
// The postgres backend keeps samples in ClickHouse.
type StorageConfig struct {
	Backend       string `mapstructure:"backend"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	ClickHouseDSN string `mapstructure:"clickhouse_dsn"`
	Migrate       bool   `mapstructure:"migrate"`
}

// AnalysisConfig holds pipeline-wide settings.
type AnalysisConfig struct {
	Workers       int  `mapstructure:"workers"`
	BaselineFlank int  `mapstructure:"baseline_flank"`
	RecordMetrics bool `mapstructure:"record_metrics"`
}

// DetectionConfig holds detector and unit heuristic thresholds.
type DetectionConfig struct {
	Detectors           []string `mapstructure:"detectors"`
	MinProminence       float64  `mapstructure:"min_prominence"`
	MinWidth            int      `mapstructure:"min_width"`
	SmoothingSigma      float64  `mapstructure:"smoothing_sigma"`
	MinSNR              float64  `mapstructure:"min_snr"`
	MergeWindowFraction float64  `mapstructure:"merge_window_fraction"`
	AmpereCeiling       float64  `mapstructure:"ampere_ceiling"`
	NanoampFloor        float64  `mapstructure:"nanoamp_floor"`
}

// FeaturesConfig tunes the feature extractor.
type FeaturesConfig struct {
	SmoothingSigma  float64                            `mapstructure:"smoothing_sigma"`
	ApexSearch      int                                `mapstructure:"apex_search"`
	MinWindow       int                                `mapstructure:"min_window"`
	NoiseWindow     int                                `mapstructure:"noise_window"`
	NoiseOffsetFWHM float64                            `mapstructure:"noise_offset_fwhm"`
	AreaHalfWidth   float64                            `mapstructure:"area_half_width"`
	PositionFalloff float64                            `mapstructure:"position_falloff"`
	Expected        features.AnalyteWindows            `mapstructure:"expected"`
	Analytes        map[string]features.AnalyteWindows `mapstructure:"analytes"`
}

// ScoringConfig tunes the confidence scorer.
type ScoringConfig struct {
	Weights         scoring.Weights `mapstructure:"weights"`
	Threshold       float64         `mapstructure:"threshold"`
	ProminenceScale float64         `mapstructure:"prominence_scale"`
	WidthMin        float64         `mapstructure:"width_min"`
	WidthMax        float64         `mapstructure:"width_max"`
	SNRScale        float64         `mapstructure:"snr_scale"`
}

// CalibrationConfig holds model acceptance and tiering rules.
type CalibrationConfig struct {
	calibration.BuilderConfig `mapstructure:",squash"`
}

// IngestionConfig holds the potentiostat bridge connection settings.
type IngestionConfig struct {
	WSURL        string        `mapstructure:"ws_url"`
	ReconnectMin time.Duration `mapstructure:"reconnect_min"`
	ReconnectMax time.Duration `mapstructure:"reconnect_max"`
	Analyze      bool          `mapstructure:"analyze"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// An empty path skips the file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// defaults always decode
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults mirrors the component defaults so every key is known to viper
// and can be overridden from the environment.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.metrics_path", "/metrics")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.clickhouse_dsn", "")
	v.SetDefault("storage.migrate", true)

	v.SetDefault("analysis.workers", 0)
	v.SetDefault("analysis.baseline_flank", classify.DefaultConfig().FlankWindow)
	v.SetDefault("analysis.record_metrics", true)

	det := detection.DefaultConfig()
	pre := preprocess.DefaultConfig()
	v.SetDefault("detection.detectors", detection.Names())
	v.SetDefault("detection.min_prominence", det.MinProminence)
	v.SetDefault("detection.min_width", det.MinWidth)
	v.SetDefault("detection.smoothing_sigma", det.SmoothingSigma)
	v.SetDefault("detection.min_snr", det.MinSNR)
	v.SetDefault("detection.merge_window_fraction", det.MergeWindowFraction)
	v.SetDefault("detection.ampere_ceiling", pre.AmpereCeiling)
	v.SetDefault("detection.nanoamp_floor", pre.NanoampFloor)

	fc := features.DefaultConfig()
	v.SetDefault("features.smoothing_sigma", fc.SmoothingSigma)
	v.SetDefault("features.apex_search", fc.ApexSearch)
	v.SetDefault("features.min_window", fc.MinWindow)
	v.SetDefault("features.noise_window", fc.NoiseWindow)
	v.SetDefault("features.noise_offset_fwhm", fc.NoiseOffsetFWHM)
	v.SetDefault("features.area_half_width", fc.AreaHalfWidth)
	v.SetDefault("features.position_falloff", fc.PositionFalloff)
	v.SetDefault("features.expected.oxidation.min", fc.Expected.Oxidation.Min)
	v.SetDefault("features.expected.oxidation.max", fc.Expected.Oxidation.Max)
	v.SetDefault("features.expected.reduction.min", fc.Expected.Reduction.Min)
	v.SetDefault("features.expected.reduction.max", fc.Expected.Reduction.Max)

	sc := scoring.DefaultConfig()
	v.SetDefault("scoring.weights.prominence", sc.Weights.Prominence)
	v.SetDefault("scoring.weights.width", sc.Weights.Width)
	v.SetDefault("scoring.weights.symmetry", sc.Weights.Symmetry)
	v.SetDefault("scoring.weights.position", sc.Weights.Position)
	v.SetDefault("scoring.weights.snr", sc.Weights.SNR)
	v.SetDefault("scoring.threshold", sc.Threshold)
	v.SetDefault("scoring.prominence_scale", sc.ProminenceScale)
	v.SetDefault("scoring.width_min", sc.WidthMin)
	v.SetDefault("scoring.width_max", sc.WidthMax)
	v.SetDefault("scoring.snr_scale", sc.SNRScale)

	bc := calibration.DefaultBuilderConfig()
	v.SetDefault("calibration.r_squared_floor", bc.RSquaredFloor)
	v.SetDefault("calibration.high_tier", bc.HighTier)
	v.SetDefault("calibration.medium_tier", bc.MediumTier)
	v.SetDefault("calibration.min_points", bc.MinPoints)
	v.SetDefault("calibration.default_weighting", string(bc.DefaultWeighting))

	v.SetDefault("ingestion.ws_url", "ws://localhost:9000/frames")
	v.SetDefault("ingestion.reconnect_min", "1s")
	v.SetDefault("ingestion.reconnect_max", "30s")
	v.SetDefault("ingestion.analyze", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if !strings.HasPrefix(c.Server.MetricsPath, "/") {
		return fmt.Errorf("server.metrics_path must start with /")
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required for the postgres backend")
		}
		if c.Storage.ClickHouseDSN == "" {
			return fmt.Errorf("storage.clickhouse_dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("storage.backend must be one of: memory, postgres")
	}

	if c.Analysis.Workers < 0 {
		return fmt.Errorf("analysis.workers must be >= 0")
	}
	for _, name := range c.Detection.Detectors {
		if !detection.IsKnown(name) {
			return fmt.Errorf("detection.detectors: unknown detector %q", name)
		}
	}
	if c.Detection.MinProminence < 0 || c.Detection.MinProminence >= 1 {
		return fmt.Errorf("detection.min_prominence must be in [0, 1)")
	}
	if c.Detection.MergeWindowFraction <= 0 {
		return fmt.Errorf("detection.merge_window_fraction must be > 0")
	}
	if c.Detection.AmpereCeiling <= 0 || c.Detection.NanoampFloor <= c.Detection.AmpereCeiling {
		return fmt.Errorf("detection: need 0 < ampere_ceiling < nanoamp_floor")
	}

	if err := c.featuresConfig().Validate(); err != nil {
		return err
	}
	if err := c.Scoring.Weights.Validate(); err != nil {
		return fmt.Errorf("scoring.weights: %w", err)
	}
	if c.Scoring.Threshold < 0 || c.Scoring.Threshold > 100 {
		return fmt.Errorf("scoring.threshold must be between 0 and 100")
	}
	if err := c.Calibration.Validate(); err != nil {
		return fmt.Errorf("calibration: %w", err)
	}

	if c.Ingestion.ReconnectMin <= 0 || c.Ingestion.ReconnectMax < c.Ingestion.ReconnectMin {
		return fmt.Errorf("ingestion: need 0 < reconnect_min <= reconnect_max")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}
	return nil
}

// AnalysisOptions builds analyzer options from the config.
func (c *Config) AnalysisOptions(log logrus.FieldLogger) analysis.Options {
	opts := analysis.DefaultOptions()
	opts.Preprocess = preprocess.Config{
		AmpereCeiling: c.Detection.AmpereCeiling,
		NanoampFloor:  c.Detection.NanoampFloor,
	}
	opts.Detection = detection.Config{
		MinProminence:       c.Detection.MinProminence,
		MinWidth:            c.Detection.MinWidth,
		SmoothingSigma:      c.Detection.SmoothingSigma,
		MinSNR:              c.Detection.MinSNR,
		MergeWindowFraction: c.Detection.MergeWindowFraction,
	}
	opts.Detectors = c.Detection.Detectors
	opts.Features = c.featuresConfig()
	opts.Scoring = scoring.Config{
		Weights:         c.Scoring.Weights,
		Threshold:       c.Scoring.Threshold,
		ProminenceScale: c.Scoring.ProminenceScale,
		WidthMin:        c.Scoring.WidthMin,
		WidthMax:        c.Scoring.WidthMax,
		SNRScale:        c.Scoring.SNRScale,
	}
	opts.Classify = classify.Config{FlankWindow: c.Analysis.BaselineFlank}
	opts.Workers = c.Analysis.Workers
	opts.RecordMetrics = c.Analysis.RecordMetrics
	opts.Logger = log
	return opts
}

func (c *Config) featuresConfig() features.Config {
	fc := features.DefaultConfig()
	fc.SmoothingSigma = c.Features.SmoothingSigma
	fc.ApexSearch = c.Features.ApexSearch
	fc.MinWindow = c.Features.MinWindow
	fc.NoiseWindow = c.Features.NoiseWindow
	fc.NoiseOffsetFWHM = c.Features.NoiseOffsetFWHM
	fc.AreaHalfWidth = c.Features.AreaHalfWidth
	fc.PositionFalloff = c.Features.PositionFalloff
	fc.Expected = c.Features.Expected
	fc.Analytes = c.Features.Analytes
	return fc
}

// NewLogger builds a logrus logger from the logging section.
func (c LoggingConfig) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	log := logrus.New()
	log.SetLevel(level)
	if c.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}
