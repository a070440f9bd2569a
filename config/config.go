// Package config defines service configuration and how it is loaded.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// INCENTIVE_* environment variables.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/warp/incentive-engine/incentive"
)

// Config contains process configuration.
type Config struct {
	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite database file; ":memory:" for ephemeral runs.
	DBPath string `koanf:"db_path"`

	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format"`

	// AliasSuffixes are tried, in order, after the exact column name.
	AliasSuffixes []string `koanf:"alias_suffixes"`

	// Aliases maps logical field names to extra physical column names.
	Aliases map[string][]string `koanf:"aliases"`

	// SchemesFile, when set, is loaded at startup and watched for changes.
	SchemesFile string `koanf:"schemes_file"`

	// TotalPolicy is "exclude_tiered" (default) or "include_tiered".
	TotalPolicy string `koanf:"total_policy"`

	// BatchWorkers bounds parallel evaluation.
	BatchWorkers int `koanf:"batch_workers"`

	// ManagerColumns hold manager codes in the merged records.
	ManagerColumns []string `koanf:"manager_columns"`

	// DefaultForwardRequirement fills bridge schemes that omit one.
	DefaultForwardRequirement int64 `koanf:"default_forward_requirement"`

	// LogRetentionMonths is how many months of message logs are kept.
	LogRetentionMonths int `koanf:"log_retention_months"`

	// CleanupInterval is how often old message logs are purged.
	CleanupInterval time.Duration `koanf:"cleanup_interval"`

	// AllowedOrigins configures CORS.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// New returns a Config holding the defaults.
func New(_ context.Context) *Config {
	return &Config{
		Addr:                      ":8080",
		DBPath:                    "./data/incentive.db",
		LogLevel:                  "info",
		LogFormat:                 "text",
		AliasSuffixes:             append([]string(nil), incentive.DefaultSuffixes...),
		Aliases:                   map[string][]string{},
		TotalPolicy:               string(incentive.ExcludeTiered),
		BatchWorkers:              8,
		ManagerColumns:            []string{"매니저코드", "지원매니저코드"},
		DefaultForwardRequirement: 100000,
		LogRetentionMonths:        1,
		CleanupInterval:           time.Hour,
		AllowedOrigins:            []string{"http://localhost:3000", "http://localhost:5173", "http://localhost:5174"},
	}
}

// Validate checks value ranges. Errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	var problems []string
	if c.Addr == "" {
		problems = append(problems, "addr must not be empty")
	}
	if c.DBPath == "" {
		problems = append(problems, "db_path must not be empty")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, fmt.Sprintf("log_level: %v", err))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		problems = append(problems, "log_format must be text or json")
	}
	if _, err := incentive.ParseTotalPolicy(c.TotalPolicy); err != nil {
		problems = append(problems, err.Error())
	}
	if c.BatchWorkers < 1 {
		problems = append(problems, "batch_workers must be positive")
	}
	if c.DefaultForwardRequirement < 0 {
		problems = append(problems, "default_forward_requirement must not be negative")
	}
	if c.LogRetentionMonths < 1 {
		problems = append(problems, "log_retention_months must be at least 1")
	}
	if c.CleanupInterval <= 0 {
		problems = append(problems, "cleanup_interval must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Policy returns the parsed grand-total policy.
func (c *Config) Policy() incentive.TotalPolicy {
	p, _ := incentive.ParseTotalPolicy(c.TotalPolicy)
	return p
}

// ForwardRequirement returns DefaultForwardRequirement as a decimal.
func (c *Config) ForwardRequirement() decimal.Decimal {
	return decimal.NewFromInt(c.DefaultForwardRequirement)
}

// Resolver builds the column resolver from the alias settings.
func (c *Config) Resolver() *incentive.Resolver {
	return incentive.NewResolver(
		incentive.WithSuffixes(c.AliasSuffixes...),
		incentive.WithAliases(c.Aliases),
	)
}

// Engine builds an engine that logs dropped schemes to logger.
func (c *Config) Engine(logger log.FieldLogger) *incentive.Engine {
	return incentive.NewEngine(
		incentive.WithResolver(c.Resolver()),
		incentive.WithTotalPolicy(c.Policy()),
		incentive.WithWorkers(c.BatchWorkers),
		incentive.WithLogger(logger),
	)
}

// ConfigureLogger applies level and format to logger.
func (c *Config) ConfigureLogger(logger *log.Logger) error {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	logger.SetLevel(level)
	logger.SetOutput(os.Stderr)
	if c.LogFormat == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
