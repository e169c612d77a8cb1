package main

import (
	"fmt"
	"time"

	"github.com/jamesainslie/warden/pkg/warden/logging"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan [dir]",
	Short: "Record a baseline of a directory tree",
	Long: `Walk the tree and write its baseline manifest (fs_checksum) at the tree root,
replacing any previous baseline.

Only files matching the include rules and not matching the exclude rules are
recorded.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

// runScan writes a new baseline.
func runScan(cmd *cobra.Command, args []string) error {
	log := logging.Get("cli")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	root, err := resolveRoot(cfg, args)
	if err != nil {
		return err
	}
	m, err := newMonitor(cfg, root, nil)
	if err != nil {
		return err
	}

	printVerbose("include rules: %v", m.IncludeRules())
	printVerbose("exclude rules: %v", m.ExcludeRules())

	exists, err := m.Store().Exists()
	if err != nil {
		return err
	}
	if exists {
		printVerbose("replacing existing baseline %s", m.Store().Path())
	}

	start := time.Now()
	if err := m.Scan(cmd.Context()); err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	man, err := m.Store().Load()
	if err != nil {
		return err
	}
	log.Info("baseline written", "root", root, "files", man.Len())
	printInfo("Baseline written to %s (%d files in %s)",
		m.Store().Path(), man.Len(), time.Since(start).Round(time.Millisecond))
	return nil
}
