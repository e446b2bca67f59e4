// Package config provides configuration loading for recalld.
package config

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/recalld/internal/oracle"
	"github.com/fyrsmithlabs/recalld/internal/retrieval"
	"github.com/fyrsmithlabs/recalld/internal/utility"
)

// Config is the full recalld configuration tree.
type Config struct {
	Store     StoreConfig      `koanf:"store"`
	Oracle    OracleConfig     `koanf:"oracle"`
	Utility   utility.Params   `koanf:"utility"`
	Retrieval retrieval.Config `koanf:"retrieval"`
	Scheduler SchedulerConfig  `koanf:"scheduler"`
	Logging   LoggingConfig    `koanf:"logging"`
}

// StoreConfig configures the episode record store.
type StoreConfig struct {
	// Path is the root directory for episode records.
	Path string `koanf:"path"`
}

// OracleConfig configures the similarity oracle.
type OracleConfig struct {
	// Provider selects the oracle implementation: "chromem" (embedded
	// vector index, the default) or "text" (token-overlap fallback).
	Provider string `koanf:"provider"`

	Chromem oracle.ChromemConfig `koanf:"chromem"`
}

// SchedulerConfig configures the background learning scheduler.
type SchedulerConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is "console" or "json".
	Format string `koanf:"format"`
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path cannot be empty")
	}
	switch c.Oracle.Provider {
	case "chromem", "text":
	default:
		return fmt.Errorf("oracle.provider %q must be chromem or text", c.Oracle.Provider)
	}
	if err := c.Utility.Validate(); err != nil {
		return fmt.Errorf("utility: %w", err)
	}
	if err := c.Retrieval.Validate(); err != nil {
		return fmt.Errorf("retrieval: %w", err)
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval < time.Minute {
		return fmt.Errorf("scheduler.interval %v must be at least 1m", c.Scheduler.Interval)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	return nil
}
