// Package config loads application configuration from an optional YAML
// file overlaid with environment variables.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config is the complete application configuration.
type Config struct {
	Workbook WorkbookConfig `yaml:"workbook" envconfig:"WORKBOOK"`
	Cache    CacheConfig    `yaml:"cache" envconfig:"CACHE"`
	Analysis AnalysisConfig `yaml:"analysis" envconfig:"ANALYSIS"`
	Output   OutputConfig   `yaml:"output" envconfig:"OUTPUT"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
}

// WorkbookConfig describes the source workbook layout.
type WorkbookConfig struct {
	Path              string `yaml:"path" envconfig:"PATH"`
	SaleSheetPrefix   string `yaml:"sale_sheet_prefix" envconfig:"SALE_SHEET_PREFIX"`
	ReturnSheetPrefix string `yaml:"return_sheet_prefix" envconfig:"RETURN_SHEET_PREFIX"`
	// CostIsLineTotal declares that the cost column carries line totals
	// instead of per-unit values; see the enrichment pipeline.
	CostIsLineTotal bool `yaml:"cost_is_line_total" envconfig:"COST_IS_LINE_TOTAL"`
}

// CacheConfig controls the enriched-dataset cache. Caching is on unless
// explicitly disabled, so the zero value needs no special casing.
type CacheConfig struct {
	Disabled bool   `yaml:"disabled" envconfig:"DISABLED"`
	Dir      string `yaml:"dir" envconfig:"DIR"`
}

// AnalysisConfig carries the tunable thresholds of the five analyses.
type AnalysisConfig struct {
	RankSize     int `yaml:"rank_size" envconfig:"RANK_SIZE" validate:"gt=0"`
	RecentWindow int `yaml:"recent_window" envconfig:"RECENT_WINDOW" validate:"gt=0"`

	MinHistoryMonths    int     `yaml:"min_history_months" envconfig:"MIN_HISTORY_MONTHS" validate:"gt=0"`
	MinDeclinePct       float64 `yaml:"min_decline_pct" envconfig:"MIN_DECLINE_PCT" validate:"gt=0,lte=1"`
	MaxRecentReturnRate float64 `yaml:"max_recent_return_rate" envconfig:"MAX_RECENT_RETURN_RATE" validate:"gt=0,lte=1"`

	MinMonthsActive int `yaml:"min_months_active" envconfig:"MIN_MONTHS_ACTIVE" validate:"gt=0"`

	CostPercentile float64 `yaml:"cost_percentile" envconfig:"COST_PERCENTILE" validate:"gt=0,lt=1"`
	MinQuantity    float64 `yaml:"min_quantity" envconfig:"MIN_QUANTITY" validate:"gt=0"`
	MaxReturnRate  float64 `yaml:"max_return_rate" envconfig:"MAX_RETURN_RATE" validate:"gt=0,lte=1"`

	MinReturnRate float64 `yaml:"min_return_rate" envconfig:"MIN_RETURN_RATE" validate:"gt=0,lte=1"`
}

// OutputConfig controls where export workbooks are written.
type OutputConfig struct {
	Dir string `yaml:"dir" envconfig:"DIR"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=text json"`
}

// Load reads the YAML file at path (when it exists), overlays SP_*
// environment variables and validates the result. An empty path skips
// the file step.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			raw, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	// Environment wins over the file; defaults fill whatever is left.
	if err := envconfig.Process("SP", &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}
	applyDefaults(&cfg)

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// applyDefaults fills zero values that neither the file nor the
// environment set. Defaults live here instead of in struct tags so a
// value from the file is never clobbered by an absent environment
// variable.
func applyDefaults(cfg *Config) {
	if cfg.Workbook.Path == "" {
		cfg.Workbook.Path = "BASE.xlsx"
	}
	if cfg.Workbook.SaleSheetPrefix == "" {
		cfg.Workbook.SaleSheetPrefix = "VENDA"
	}
	if cfg.Workbook.ReturnSheetPrefix == "" {
		cfg.Workbook.ReturnSheetPrefix = "DEVOLUCAO"
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = ".cache"
	}
	if cfg.Analysis.RankSize == 0 {
		cfg.Analysis.RankSize = 20
	}
	if cfg.Analysis.RecentWindow == 0 {
		cfg.Analysis.RecentWindow = 3
	}
	if cfg.Analysis.MinHistoryMonths == 0 {
		cfg.Analysis.MinHistoryMonths = 3
	}
	if cfg.Analysis.MinDeclinePct == 0 {
		cfg.Analysis.MinDeclinePct = 0.30
	}
	if cfg.Analysis.MaxRecentReturnRate == 0 {
		cfg.Analysis.MaxRecentReturnRate = 0.20
	}
	if cfg.Analysis.MinMonthsActive == 0 {
		cfg.Analysis.MinMonthsActive = 3
	}
	if cfg.Analysis.CostPercentile == 0 {
		cfg.Analysis.CostPercentile = 0.25
	}
	if cfg.Analysis.MinQuantity == 0 {
		cfg.Analysis.MinQuantity = 50
	}
	if cfg.Analysis.MaxReturnRate == 0 {
		cfg.Analysis.MaxReturnRate = 0.05
	}
	if cfg.Analysis.MinReturnRate == 0 {
		cfg.Analysis.MinReturnRate = 0.20
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "reports"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}
