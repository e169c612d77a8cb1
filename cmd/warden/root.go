package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jamesainslie/warden/pkg/warden/config"
	"github.com/jamesainslie/warden/pkg/warden/logging"
	"github.com/jamesainslie/warden/pkg/warden/monitor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// errChanged is returned by check when the tree differs from its baseline.
// main maps it to exit code 2 without printing it.
var errChanged = errors.New("tree differs from baseline")

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "warden",
		Short: "Detect changes to a directory tree",
		Long: `Warden records a baseline of a directory tree and reports files that were
created, modified or deleted since, flagging suspicious tokens in their content.

Examples:
  warden scan /var/www           # Record a baseline
  warden check /var/www          # Compare against the baseline
  warden check -o json .         # Machine readable report
  warden history /var/www        # Past check outcomes
  warden config show             # Show configuration`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initLogging,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logging.Close()
		},
	}
)

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/warden/config.yaml)")
	rootCmd.PersistentFlags().StringSlice("include", nil, "include rules replacing the defaults, e.g. f|*.php (repeatable)")
	rootCmd.PersistentFlags().StringSlice("exclude", nil, "exclude rules replacing the defaults, e.g. d|cache (repeatable)")
	rootCmd.PersistentFlags().StringSlice("include-merge", nil, "include rules added to the active list (repeatable)")
	rootCmd.PersistentFlags().StringSlice("exclude-merge", nil, "exclude rules added to the active list (repeatable)")
	rootCmd.PersistentFlags().StringSlice("token", nil, "tokens to flag in changed files, replacing the defaults (repeatable)")
	rootCmd.PersistentFlags().Int("radius", 0, "characters of context around each token")
	rootCmd.PersistentFlags().IntP("workers", "w", 0, "directory walk workers")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")

	// Bind flags to viper
	_ = viper.BindPFlag("include", rootCmd.PersistentFlags().Lookup("include"))
	_ = viper.BindPFlag("exclude", rootCmd.PersistentFlags().Lookup("exclude"))
	_ = viper.BindPFlag("include_merge", rootCmd.PersistentFlags().Lookup("include-merge"))
	_ = viper.BindPFlag("exclude_merge", rootCmd.PersistentFlags().Lookup("exclude-merge"))
	_ = viper.BindPFlag("tokens", rootCmd.PersistentFlags().Lookup("token"))
	_ = viper.BindPFlag("radius", rootCmd.PersistentFlags().Lookup("radius"))
	_ = viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// loadConfig reads the config file, environment and bound flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWith(viper.GetViper(), cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// initLogging starts file logging. A broken log setup is reported but
// never stops a command.
func initLogging(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		// Commands report configuration errors themselves.
		return nil
	}
	logCfg, err := cfg.LogConfig()
	if err != nil {
		return nil
	}
	if getVerbose() {
		logCfg.ConsoleLevel = "debug"
	}
	if err := logging.Init(logCfg); err != nil {
		printVerbose("logging disabled: %v", err)
	}
	return nil
}

// resolveRoot returns the absolute directory argument, or the configured
// base dir when none is given.
func resolveRoot(cfg *config.Config, args []string) (string, error) {
	dir := cfg.BaseDir
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	return abs, nil
}

// newMonitor builds a monitor for root.
func newMonitor(cfg *config.Config, root string, cb monitor.Callback) (*monitor.Monitor, error) {
	mcfg := cfg.MonitorConfig()
	mcfg.BaseDir = root
	mcfg.Callback = cb
	return monitor.New(mcfg)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
