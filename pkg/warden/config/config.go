package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/dustin/go-humanize"
	"github.com/jamesainslie/warden/pkg/warden/inspect"
	"github.com/jamesainslie/warden/pkg/warden/logging"
	"github.com/jamesainslie/warden/pkg/warden/monitor"
	"github.com/spf13/viper"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Console    string            `mapstructure:"console"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// HistoryConfig configures the check history store.
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// OutputConfig configures report rendering.
type OutputConfig struct {
	Format   string `mapstructure:"format"`
	Template string `mapstructure:"template"`
}

// Config represents the application configuration.
type Config struct {
	BaseDir      string        `mapstructure:"base_dir"`
	Include      []string      `mapstructure:"include"`
	Exclude      []string      `mapstructure:"exclude"`
	IncludeMerge []string      `mapstructure:"include_merge"`
	ExcludeMerge []string      `mapstructure:"exclude_merge"`
	Tokens       []string      `mapstructure:"tokens"`
	Radius       int           `mapstructure:"radius"`
	Workers      int           `mapstructure:"workers"`
	Output       OutputConfig  `mapstructure:"output"`
	History      HistoryConfig `mapstructure:"history"`
	Logging      LoggingConfig `mapstructure:"logging"`
}

// Load loads configuration from the default config file locations and
// environment variables.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/warden/config.yaml
//   - $HOME/.config/warden/config.yaml
//
// Environment variables are prefixed with WARDEN_ (e.g., WARDEN_RADIUS).
func Load() (*Config, error) {
	return LoadWith(viper.New(), "")
}

// LoadWith loads configuration into v, which may already carry bound
// command line flags. A non-empty file replaces the search paths.
func LoadWith(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, AppName))
		}
		if homeDir, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".config", AppName))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is acceptable; we use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var err error
	if cfg.History.Path, err = ExpandPath(cfg.History.Path); err != nil {
		return nil, err
	}
	if cfg.Logging.Path, err = ExpandPath(cfg.Logging.Path); err != nil {
		return nil, err
	}
	if cfg.BaseDir, err = ExpandPath(cfg.BaseDir); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_dir", DefaultBaseDir)
	v.SetDefault("radius", inspect.DefaultRadius)
	v.SetDefault("workers", DefaultWorkers)

	v.SetDefault("output.format", DefaultOutputFormat)
	v.SetDefault("output.template", "")

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "") // Empty means use DefaultHistoryPath
	v.SetDefault("history.retention_days", DefaultRetentionDays)

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.path", "") // Empty means use DefaultLogPath
	v.SetDefault("logging.console", "")
	v.SetDefault("logging.rotation.max_size", DefaultLogMaxSize)
	v.SetDefault("logging.rotation.max_age", DefaultLogMaxAge)
	v.SetDefault("logging.rotation.max_backups", DefaultLogMaxBackups)
	v.SetDefault("logging.rotation.compress", false)
	v.SetDefault("logging.components", map[string]string{
		"monitor": "info",
		"cli":     "info",
	})
}

// Validate checks values the monitor does not validate itself.
func (c *Config) Validate() error {
	if c.Radius < 0 {
		return fmt.Errorf("radius must not be negative, got %d", c.Radius)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.History.RetentionDays < 0 {
		return fmt.Errorf("history.retention_days must not be negative, got %d", c.History.RetentionDays)
	}
	if _, err := c.Logging.Rotation.maxSizeBytes(); err != nil {
		return err
	}
	return nil
}

// MonitorConfig returns the library configuration for c.
// Unset include, exclude and token lists keep the library defaults.
func (c *Config) MonitorConfig() monitor.Config {
	radius := c.Radius
	return monitor.Config{
		BaseDir:      c.BaseDir,
		Include:      emptyAsNil(c.Include),
		Exclude:      emptyAsNil(c.Exclude),
		IncludeMerge: c.IncludeMerge,
		ExcludeMerge: c.ExcludeMerge,
		Tokens:       emptyAsNil(c.Tokens),
		Radius:       &radius,
		Workers:      c.Workers,
	}
}

// LogConfig returns the logging configuration for c.
func (c *Config) LogConfig() (logging.Config, error) {
	maxSize, err := c.Logging.Rotation.maxSizeBytes()
	if err != nil {
		return logging.Config{}, err
	}
	path := c.Logging.Path
	if path == "" {
		path = DefaultLogPath()
	}
	return logging.Config{
		Level:        c.Logging.Level,
		Path:         path,
		ConsoleLevel: c.Logging.Console,
		Components:   c.Logging.Components,
		Rotation: logging.RotationConfig{
			MaxSize:    maxSize,
			MaxAge:     c.Logging.Rotation.MaxAge,
			MaxBackups: c.Logging.Rotation.MaxBackups,
			Compress:   c.Logging.Rotation.Compress,
		},
	}, nil
}

// HistoryPath returns the configured history path or the default.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return DefaultHistoryPath()
}

// Retention returns the history retention as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.History.RetentionDays) * 24 * time.Hour
}

func (r RotationConfig) maxSizeBytes() (int64, error) {
	if r.MaxSize == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(r.MaxSize)
	if err != nil {
		return 0, fmt.Errorf("invalid logging.rotation.max_size %q: %w", r.MaxSize, err)
	}
	return int64(n), nil
}

// emptyAsNil maps an empty list to nil so library defaults apply.
func emptyAsNil(list []string) []string {
	if len(list) == 0 {
		return nil
	}
	return list
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, AppName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", AppName), nil
}

// ConfigPath returns the default config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// WriteDefault writes a default config file if none exists and returns
// its path. An existing file is left untouched.
func WriteDefault() (string, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfigFile()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}
	return configPath, nil
}

func defaultConfigFile() string {
	return fmt.Sprintf(`# warden configuration

# Tree to monitor when no directory argument is given
base_dir: %s

# Rules are "kind|pattern" with kind f (file) or d (directory) and * as the
# only wildcard. Setting include or exclude replaces the built-in lists:
#
# include:%s
# exclude:%s
#
# The merge lists extend whichever list is in effect.
include_merge: []
exclude_merge: []

# Tokens reported in changed files (empty keeps the built-in list)
tokens: []

# Characters of context captured around each token
radius: %d

# Directory walk workers
workers: %d

output:
  # pretty, plain, json, jsonl, yaml, template, tsv, csv, markdown
  format: %s

history:
  enabled: true
  # Empty means use default: $XDG_DATA_HOME/warden/history
  path: ""
  retention_days: %d

logging:
  # Log level: debug, info, warn, error
  level: %s
  # Empty means use default: $XDG_STATE_HOME/warden/warden.log
  path: ""
  # Also log to stderr at this level (empty disables)
  console: ""
  rotation:
    max_size: %s
    max_age: %d       # days
    max_backups: %d
    compress: false
  components:
    monitor: info
    cli: info
`,
		DefaultBaseDir,
		yamlList(monitor.DefaultInclude),
		yamlList(monitor.DefaultExclude),
		inspect.DefaultRadius,
		DefaultWorkers,
		DefaultOutputFormat,
		DefaultRetentionDays,
		DefaultLogLevel,
		DefaultLogMaxSize,
		DefaultLogMaxAge,
		DefaultLogMaxBackups,
	)
}

// yamlList renders list as commented YAML sequence items.
func yamlList(list []string) string {
	var sb strings.Builder
	for _, item := range list {
		fmt.Fprintf(&sb, "\n#   - %q", item)
	}
	return sb.String()
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/warden/ for the history database.
func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// StateDir returns $XDG_STATE_HOME/warden/ for log and lock files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// DefaultHistoryPath returns the default history database path.
func DefaultHistoryPath() string {
	return filepath.Join(DataDir(), "history")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return logging.DefaultLogPath()
}
