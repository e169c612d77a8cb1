package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jamesainslie/warden/pkg/warden/config"
	"github.com/jamesainslie/warden/pkg/warden/history"
	"github.com/jamesainslie/warden/pkg/warden/logging"
	"github.com/jamesainslie/warden/pkg/warden/monitor"
	"github.com/jamesainslie/warden/pkg/warden/output"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var checkCmd = &cobra.Command{
	Use:   "check [dir]",
	Short: "Compare a directory tree against its baseline",
	Long: `Walk the tree and compare it against the baseline written by 'warden scan'.

Created and modified files are searched for suspicious tokens. The report is
written to stdout in the selected format.

Exit status is 0 when the tree is unchanged, 2 when it differs from the
baseline and 1 on error.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringP("output", "o", config.DefaultOutputFormat,
		fmt.Sprintf("output format (%v)", output.Available()))
	checkCmd.Flags().String("template", "", "Go template for -o template")
	checkCmd.Flags().Bool("no-history", false, "do not record this check in history")

	_ = viper.BindPFlag("output.format", checkCmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("output.template", checkCmd.Flags().Lookup("template"))

	rootCmd.AddCommand(checkCmd)
}

// runCheck compares the tree and renders the report from the monitor callback.
func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	formatter, err := newFormatter(cfg.Output)
	if err != nil {
		return err
	}
	noHistory, _ := cmd.Flags().GetBool("no-history")
	root, err := resolveRoot(cfg, args)
	if err != nil {
		return err
	}

	var m *monitor.Monitor
	start := time.Now()
	handler := &checkHandler{
		formatter: formatter,
		result:    func() *monitor.Result { return m.Last() },
		source:    root,
		started:   start,
	}
	if cfg.History.Enabled && !noHistory {
		handler.record = func(e history.Entry) error {
			return recordHistory(cfg, e)
		}
	}

	m, err = newMonitor(cfg, root, handler.handle)
	if err != nil {
		return err
	}

	out, err := m.Check(cmd.Context())
	if errors.Is(err, monitor.ErrMissingBaseline) {
		return fmt.Errorf("no baseline for %s, run 'warden scan' first", root)
	}
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}

	buf, ok := out.(*bytes.Buffer)
	if !ok {
		return fmt.Errorf("unexpected check output %T", out)
	}
	if _, err := os.Stdout.Write(buf.Bytes()); err != nil {
		return err
	}
	if handler.changed {
		return errChanged
	}
	return nil
}

// checkHandler turns a check outcome into a rendered report.
type checkHandler struct {
	formatter output.Formatter
	result    func() *monitor.Result
	record    func(history.Entry) error
	source    string
	started   time.Time
	changed   bool
}

// handle is the monitor callback. It returns the rendered report.
func (h *checkHandler) handle(status bool, diff *monitor.Diff) (any, error) {
	h.changed = !status

	res := h.result()
	if res == nil {
		res = &monitor.Result{Status: status, Diff: diff, Checked: time.Now()}
	}
	elapsed := time.Since(h.started)

	if h.record != nil {
		if err := h.record(history.FromResult(h.source, res, elapsed)); err != nil {
			// A failing store never hides the report.
			logging.Get("cli").Warn("failed to record history", "error", err)
			printVerbose("history not recorded: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := h.formatter.Format(&buf, output.NewReport(h.source, res, elapsed)); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return &buf, nil
}

// newFormatter returns the configured formatter.
func newFormatter(cfg config.OutputConfig) (output.Formatter, error) {
	if cfg.Format == "template" && cfg.Template != "" {
		return output.NewTemplateFormatter(cfg.Template), nil
	}
	return output.Get(cfg.Format)
}

// recordHistory appends e to the history store.
func recordHistory(cfg *config.Config, e history.Entry) error {
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	_, err = store.Record(e)
	return err
}
