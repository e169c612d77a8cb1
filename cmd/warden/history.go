package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jamesainslie/warden/pkg/warden/config"
	"github.com/jamesainslie/warden/pkg/warden/history"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [dir]",
	Short: "View check history",
	Long: `View the outcomes of past checks, newest first.

With a directory argument only checks of that tree are listed; without one,
checks of every tree are listed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show details of a specific check",
	Long:  `Display the summary and changed paths of a check by its ID.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean up old history entries",
	Long:  `Remove history entries older than the retention period.`,
	RunE:  runHistoryClean,
}

var (
	historyLimit int
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// openHistory loads the configuration and opens the history store.
func openHistory() (*config.Config, *history.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

// runHistory lists recent checks.
func runHistory(cmd *cobra.Command, args []string) error {
	cfg, store, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	root := ""
	if len(args) > 0 {
		if root, err = resolveRoot(cfg, args); err != nil {
			return err
		}
	}

	entries, err := store.List(root, historyLimit)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		printInfo("No history entries found.")
		printInfo("Run 'warden check [dir]' to record one.")
		return nil
	}

	fmt.Print(formatHistoryList(entries))
	printInfo("\nShowing %d entries. Use --limit to see more.", len(entries))
	printInfo("Use 'warden history show <id>' for details on a specific entry.")
	return nil
}

// formatHistoryList renders entries as a fixed-width table.
func formatHistoryList(entries []history.Entry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n%-36s  %-16s  %-9s  %7s  %7s  %s\n", "ID", "TIME", "STATUS", "CHANGES", "WARN", "ROOT")
	sb.WriteString(strings.Repeat("-", 100))
	sb.WriteString("\n")

	for _, e := range entries {
		fmt.Fprintf(&sb, "%-36s  %-16s  %-9s  %7d  %7d  %s\n",
			e.ID,
			e.Time.Local().Format("2006-01-02 15:04"),
			statusLabel(e.Status),
			e.Changes(),
			e.Warnings,
			e.Root,
		)
	}
	sb.WriteString(strings.Repeat("-", 100))
	sb.WriteString("\n")
	return sb.String()
}

// runHistoryShow displays details of a specific check.
func runHistoryShow(cmd *cobra.Command, args []string) error {
	_, store, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	entry, err := store.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}

	fmt.Print(formatHistoryEntry(entry))
	return nil
}

// maxShownPaths caps the changed paths printed by history show.
const maxShownPaths = 50

// formatHistoryEntry renders the details of one entry.
func formatHistoryEntry(e *history.Entry) string {
	var sb strings.Builder
	sb.WriteString("\nCheck Details\n")
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "ID:        %s\n", e.ID)
	fmt.Fprintf(&sb, "Root:      %s\n", e.Root)
	fmt.Fprintf(&sb, "Time:      %s (%s)\n", e.Time.Local().Format("2006-01-02 15:04:05 MST"), humanize.Time(e.Time))
	fmt.Fprintf(&sb, "Duration:  %s\n", e.Duration.Round(time.Millisecond))
	fmt.Fprintf(&sb, "Status:    %s\n", statusLabel(e.Status))
	fmt.Fprintf(&sb, "Files:     %d\n", e.Files)
	fmt.Fprintf(&sb, "Created:   %d\n", e.Created)
	fmt.Fprintf(&sb, "Modified:  %d\n", e.Modified)
	fmt.Fprintf(&sb, "Deleted:   %d\n", e.Deleted)
	fmt.Fprintf(&sb, "Warnings:  %d\n", e.Warnings)

	if len(e.Changed) > 0 {
		sb.WriteString("\nChanged paths:\n")
		sb.WriteString(strings.Repeat("-", 60))
		sb.WriteString("\n")

		limit := min(len(e.Changed), maxShownPaths)
		for _, path := range e.Changed[:limit] {
			sb.WriteString("  " + path + "\n")
		}
		if len(e.Changed) > limit {
			fmt.Fprintf(&sb, "\n... and %d more paths\n", len(e.Changed)-limit)
		}
	}
	return sb.String()
}

// runHistoryClean removes old history entries.
func runHistoryClean(cmd *cobra.Command, args []string) error {
	cfg, store, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	retention := cfg.Retention()
	if retention <= 0 {
		retention = time.Duration(config.DefaultRetentionDays) * 24 * time.Hour
	}

	printInfo("Cleaning history entries older than %d days...", int(retention.Hours()/24))

	removed, err := store.Cleanup(retention)
	if err != nil {
		return err
	}

	printInfo("Removed %d entries.", removed)
	return nil
}

func statusLabel(ok bool) string {
	if ok {
		return "unchanged"
	}
	return "changed"
}
