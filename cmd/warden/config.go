package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/jamesainslie/warden/pkg/warden/config"
	"github.com/jamesainslie/warden/pkg/warden/monitor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage warden configuration settings.

Configuration is loaded from:
  1. $XDG_CONFIG_HOME/warden/config.yaml (if set)
  2. ~/.config/warden/config.yaml

Environment variables can override config file settings using the WARDEN_ prefix:
  WARDEN_RADIUS=60
  WARDEN_OUTPUT_FORMAT=json
  WARDEN_HISTORY_ENABLED=false`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration, including the resolved rule lists.`,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long: `Open the configuration file in your default editor.

The editor is determined by:
  1. $VISUAL environment variable
  2. $EDITOR environment variable
  3. Falls back to 'vi'

If the config file doesn't exist, a default one will be created first.`,
	RunE: runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Long:  `Create a default configuration file if one doesn't exist.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long:  `Display the path to the configuration file.`,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// runConfigShow displays the current configuration.
func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if configFile := viper.ConfigFileUsed(); configFile != "" {
		fmt.Printf("Config file: %s\n\n", configFile)
	} else {
		fmt.Println("Config file: (using defaults, no file found)")
		fmt.Println()
	}

	fmt.Print(formatConfig(cfg))

	// Rules as the monitor resolves them, implicit rules included
	m, err := newMonitor(cfg, cfg.BaseDir, nil)
	if err != nil {
		return err
	}
	fmt.Println("\nEffective Rules:")
	fmt.Println("----------------")
	fmt.Print(formatRules("include", m.IncludeRules()))
	fmt.Print(formatRules("exclude", m.ExcludeRules()))

	fmt.Println("\nEnvironment Overrides:")
	fmt.Println("----------------------")
	anyOverrides := false
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, config.EnvPrefix+"_") {
			fmt.Println(kv)
			anyOverrides = true
		}
	}
	if !anyOverrides {
		fmt.Println("(none)")
	}

	return nil
}

// formatConfig renders the scalar settings of cfg.
func formatConfig(cfg *config.Config) string {
	var sb strings.Builder
	sb.WriteString("Current Configuration:\n")
	sb.WriteString("----------------------\n")
	fmt.Fprintf(&sb, "base_dir:             %s\n", cfg.BaseDir)
	fmt.Fprintf(&sb, "include:              %v\n", cfg.Include)
	fmt.Fprintf(&sb, "exclude:              %v\n", cfg.Exclude)
	fmt.Fprintf(&sb, "include_merge:        %v\n", cfg.IncludeMerge)
	fmt.Fprintf(&sb, "exclude_merge:        %v\n", cfg.ExcludeMerge)
	fmt.Fprintf(&sb, "tokens:               %v\n", cfg.Tokens)
	fmt.Fprintf(&sb, "radius:               %d\n", cfg.Radius)
	fmt.Fprintf(&sb, "workers:              %d\n", cfg.Workers)
	fmt.Fprintf(&sb, "output.format:        %s\n", cfg.Output.Format)
	fmt.Fprintf(&sb, "history.enabled:      %t\n", cfg.History.Enabled)
	fmt.Fprintf(&sb, "history.path:         %s\n", cfg.HistoryPath())
	fmt.Fprintf(&sb, "history.retention:    %d days\n", cfg.History.RetentionDays)
	fmt.Fprintf(&sb, "logging.level:        %s\n", cfg.Logging.Level)
	fmt.Fprintf(&sb, "logging.path:         %s\n", logPath(cfg))
	return sb.String()
}

func logPath(cfg *config.Config) string {
	if cfg.Logging.Path != "" {
		return cfg.Logging.Path
	}
	return config.DefaultLogPath()
}

// formatRules renders one resolved rule list.
func formatRules(name string, rules []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:\n", name)
	for _, rule := range rules {
		marker := " "
		if monitor.IsImplicit(rule) {
			marker = "*"
		}
		fmt.Fprintf(&sb, "  %s %s\n", marker, rule)
	}
	return sb.String()
}

// runConfigEdit opens the config file in an editor.
func runConfigEdit(cmd *cobra.Command, args []string) error {
	configPath, err := config.WriteDefault()
	if err != nil {
		return err
	}

	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}

	printVerbose("Opening %s with %s", configPath, editor)

	editorCmd := exec.Command(editor, configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor command failed: %w", err)
	}
	return nil
}

// runConfigInit creates a default config file.
func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(configPath); err == nil {
		printInfo("Config file already exists: %s", configPath)
		printInfo("Use 'warden config edit' to modify it.")
		return nil
	}

	if _, err := config.WriteDefault(); err != nil {
		return err
	}

	printInfo("Created default config file: %s", configPath)
	return nil
}

// runConfigPath shows the config file path.
func runConfigPath(cmd *cobra.Command, args []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}

	fmt.Println(configPath)

	if _, err := os.Stat(configPath); err == nil {
		printVerbose("File exists")
	} else if os.IsNotExist(err) {
		printVerbose("File does not exist (will use defaults)")
	}
	return nil
}
