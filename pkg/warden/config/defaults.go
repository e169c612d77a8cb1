// Package config provides configuration management for warden.
package config

// Default configuration values for warden.
const (
	// AppName names the config, state and data directories.
	AppName = "warden"

	// EnvPrefix prefixes environment overrides, e.g. WARDEN_RADIUS.
	EnvPrefix = "WARDEN"

	// DefaultBaseDir is the tree monitored when none is given.
	DefaultBaseDir = "."

	// DefaultOutputFormat is the check report format.
	DefaultOutputFormat = "pretty"

	// DefaultRetentionDays is how long check history is kept.
	DefaultRetentionDays = 90

	// DefaultWorkers is the number of walk workers.
	DefaultWorkers = 1

	// DefaultLogLevel is the file log level.
	DefaultLogLevel = "info"

	// DefaultLogMaxSize is the size at which the log file rotates.
	DefaultLogMaxSize = "10MB"

	// DefaultLogMaxAge is the number of days rotated logs are kept.
	DefaultLogMaxAge = 30

	// DefaultLogMaxBackups is the number of rotated logs kept.
	DefaultLogMaxBackups = 5
)
