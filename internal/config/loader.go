package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/fyrsmithlabs/recalld/internal/retrieval"
	"github.com/fyrsmithlabs/recalld/internal/utility"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// envPrefix scopes environment overrides to recalld.
	envPrefix = "RECALLD_"
)

// Load loads configuration from a YAML file, then overrides with
// environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (RECALLD_STORE_PATH, RECALLD_LOGGING_LEVEL, ...)
//  2. YAML config file (~/.config/recalld/config.yaml by default)
//  3. Hardcoded defaults
//
// A missing config file is not an error; defaults apply. The
// environment transformer splits on the first underscore after the
// prefix, so RECALLD_RETRIEVAL_UTILITY_WEIGHT maps to
// retrieval.utility_weight.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "recalld", "config.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		// Open once and validate through the descriptor to avoid a
		// TOCTOU race between stat and read.
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", transformEnv), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// transformEnv maps RECALLD_SECTION_FIELD_NAME to section.field_name.
// The section is everything before the first underscore; field names
// keep their underscores.
func transformEnv(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// EnsureConfigDir creates the recalld config directory if it does not
// exist, with owner-only permissions.
func EnsureConfigDir() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	configDir := filepath.Join(home, ".config", "recalld")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}
	return nil
}

// applyDefaults fills in zero-valued fields.
func applyDefaults(cfg *Config) {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".local", "share", "recalld")

	if cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(dataDir, "episodes")
	}

	if cfg.Oracle.Provider == "" {
		cfg.Oracle.Provider = "chromem"
	}
	if cfg.Oracle.Provider == "chromem" && cfg.Oracle.Chromem.Path == "" {
		cfg.Oracle.Chromem.Path = filepath.Join(dataDir, "index")
	}

	defaults := utility.DefaultParams()
	if cfg.Utility.DecayRate == 0 {
		cfg.Utility.DecayRate = defaults.DecayRate
	}
	if cfg.Utility.DiscountFactor == 0 {
		cfg.Utility.DiscountFactor = defaults.DiscountFactor
	}
	if cfg.Utility.LearningRate == 0 {
		cfg.Utility.LearningRate = defaults.LearningRate
	}
	if cfg.Utility.PropagationThreshold == 0 {
		cfg.Utility.PropagationThreshold = defaults.PropagationThreshold
	}
	if cfg.Utility.MaxPropagationDepth == 0 {
		cfg.Utility.MaxPropagationDepth = defaults.MaxPropagationDepth
	}

	retrievalDefaults := retrieval.DefaultConfig()
	if cfg.Retrieval.UtilityWeight == 0 {
		cfg.Retrieval.UtilityWeight = retrievalDefaults.UtilityWeight
	}
	if cfg.Retrieval.MinSimilarity == 0 {
		cfg.Retrieval.MinSimilarity = retrievalDefaults.MinSimilarity
	}
	if cfg.Retrieval.DefaultLimit == 0 {
		cfg.Retrieval.DefaultLimit = retrievalDefaults.DefaultLimit
	}

	if cfg.Scheduler.Interval == 0 {
		cfg.Scheduler.Interval = 24 * time.Hour
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}
