// Package config loads and persists Unbound process configuration.
//
// Configuration comes from TOML files merged with UNBOUND_* environment
// variables. Precedence, lowest to highest: defaults, the user config at
// ~/.unbound/config.toml, a project unbound.toml found by walking up from
// the working directory, then environment variables.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/unbound-ml/unbound/errors"
	"github.com/unbound-ml/unbound/internal/capmode"
	"github.com/unbound-ml/unbound/internal/parallel"
	"github.com/unbound-ml/unbound/logger"
)

// Config is the full Unbound configuration.
type Config struct {
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Parallel ParallelConfig `mapstructure:"parallel"`
}

// DispatchConfig configures operation resolution.
type DispatchConfig struct {
	Mode string `mapstructure:"mode"` // "structural" or "explicit"
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level string `mapstructure:"level"` // zap level name: debug, info, warn, error
	JSON  bool   `mapstructure:"json"`  // structured JSON output instead of console
}

// ParallelConfig configures kernel parallelism.
type ParallelConfig struct {
	Workers      int `mapstructure:"workers"`        // 0 = one per CPU
	MinChunkSize int `mapstructure:"min_chunk_size"` // elements per goroutine floor
}

var (
	mu            sync.Mutex
	globalConfig  *Config
	viperInstance *viper.Viper
)

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("dispatch.mode", capmode.Structural.String())

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json", false)

	v.SetDefault("parallel.workers", 0)
	v.SetDefault("parallel.min_chunk_size", 1024)
}

// Load reads the Unbound configuration, caching the result. Reset clears
// the cache.
func Load() (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalConfig != nil {
		return globalConfig, nil
	}

	v := initViperLocked()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	globalConfig = &cfg
	return globalConfig, nil
}

// LoadWithViper loads configuration from a provided Viper instance.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &cfg, nil
}

// LoadFromFile loads configuration from a specific file, with defaults but
// without environment overrides.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config from %s", path)
	}
	return &cfg, nil
}

// Reset clears the cached configuration (useful for testing).
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	globalConfig = nil
	viperInstance = nil
}

// GetViper returns the shared Viper instance for advanced access.
func GetViper() *viper.Viper {
	mu.Lock()
	defer mu.Unlock()
	return initViperLocked()
}

func initViperLocked() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()

	v.SetEnvPrefix("UNBOUND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)
	mergeConfigFiles(v)

	viperInstance = v
	return v
}

// DefaultUserConfigPath returns ~/.unbound/config.toml, or "" when the home
// directory cannot be determined.
func DefaultUserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".unbound", "config.toml")
}

// findProjectConfig walks up from the working directory looking for an
// unbound.toml.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, "unbound.toml")
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// mergeConfigFiles merges configuration files in precedence order,
// lowest to highest: user < project. Environment variables override both.
func mergeConfigFiles(v *viper.Viper) {
	configPaths := make([]string, 0, 2)
	if user := DefaultUserConfigPath(); user != "" {
		configPaths = append(configPaths, user)
	}
	if project := findProjectConfig(); project != "" {
		configPaths = append(configPaths, project)
	}

	for _, path := range configPaths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		layer := viper.New()
		layer.SetConfigFile(path)
		layer.SetConfigType("toml")
		if err := layer.ReadInConfig(); err != nil {
			logger.Warnw("skipping unreadable config file", "path", path, "error", err)
			continue
		}
		for key, value := range layer.AllSettings() {
			v.Set(key, value)
		}
	}
}

// Validate checks the configuration for values that cannot be applied.
func (c *Config) Validate() error {
	if _, err := capmode.Parse(c.Dispatch.Mode); err != nil {
		return err
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return errors.Wrapf(err, "invalid logging level %q", c.Logging.Level)
	}
	if c.Parallel.Workers < 0 {
		return errors.Newf("parallel.workers must be >= 0, got %d", c.Parallel.Workers)
	}
	if c.Parallel.MinChunkSize < 0 {
		return errors.Newf("parallel.min_chunk_size must be >= 0, got %d", c.Parallel.MinChunkSize)
	}
	return nil
}

// Apply pushes the dispatch section into the process-wide capability mode.
// A mode change only affects dispatch plans built afterwards; the note in
// the log points at ResetPlans or a restart for full adoption.
func Apply(cfg *Config) error {
	mode, err := capmode.Parse(cfg.Dispatch.Mode)
	if err != nil {
		return err
	}

	if prev := capmode.Get(); prev != mode {
		capmode.Set(mode)
		logger.Infow("capability mode changed",
			"from", prev.String(),
			"to", mode.String(),
			"note", "cached dispatch plans keep their old decisions until rebuilt")
	}
	return nil
}

// ApplyLogging rebuilds the global logger per the logging section. Library
// embedders that want a silent process simply never call it.
func ApplyLogging(cfg *Config) error {
	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return errors.Wrapf(err, "invalid logging level %q", cfg.Logging.Level)
	}
	if err := logger.Initialize(cfg.Logging.JSON); err != nil {
		return err
	}
	return logger.SetLevel(level)
}

// ParallelConfig translates the parallel section into kernel settings.
func (c *Config) ParallelConfig() parallel.Config {
	p := parallel.DefaultConfig()
	if c.Parallel.Workers > 0 {
		p.NumWorkers = c.Parallel.Workers
		p.Enabled = c.Parallel.Workers > 1
	}
	if c.Parallel.MinChunkSize > 0 {
		p.MinChunkSize = c.Parallel.MinChunkSize
	}
	return p
}
