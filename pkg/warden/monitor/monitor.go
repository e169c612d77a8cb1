package monitor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/jamesainslie/warden/pkg/warden/filter"
	"github.com/jamesainslie/warden/pkg/warden/inspect"
	"github.com/jamesainslie/warden/pkg/warden/logging"
	"github.com/jamesainslie/warden/pkg/warden/manifest"
	"github.com/jamesainslie/warden/pkg/warden/scanner"
)

// ErrMissingBaseline is returned by Compare and Check when no manifest
// has been written for the base dir.
var ErrMissingBaseline = errors.New("no baseline manifest, run a scan first")

// State is the lifecycle position of a Monitor.
type State int

// Monitor states.
const (
	Uninitialized State = iota
	Baseline
	Checked
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Baseline:
		return "baseline"
	case Checked:
		return "checked"
	default:
		return "unknown"
	}
}

// Monitor scans and checks one directory tree.
// Methods may be called from multiple goroutines; cross-process access to
// the same tree is serialized by the manifest store lock.
type Monitor struct {
	baseDir string
	root    string

	includeRules []string
	excludeRules []string
	include      *filter.Compiled
	exclude      *filter.Compiled

	workers   int
	callback  Callback
	inspector Inspector
	store     *manifest.Store
	logger    *logging.Logger
	now       func() time.Time

	mu    sync.Mutex
	state State
	last  *Result
}

// New validates cfg and builds a Monitor. Rules are resolved and compiled
// here, so later calls never fail on configuration.
func New(cfg Config, opts ...Option) (*Monitor, error) {
	if cfg.BaseDir == "" {
		return nil, &ConfigError{Field: "BaseDir", Reason: "is required"}
	}
	if cfg.Radius != nil && *cfg.Radius < 0 {
		return nil, &ConfigError{Field: "Radius", Reason: fmt.Sprintf("must not be negative, got %d", *cfg.Radius)}
	}
	if cfg.Workers < 0 {
		return nil, &ConfigError{Field: "Workers", Reason: fmt.Sprintf("must not be negative, got %d", cfg.Workers)}
	}

	baseDir, root, err := normalizeBaseDir(cfg.BaseDir)
	if err != nil {
		return nil, &ConfigError{Field: "BaseDir", Reason: "cannot be resolved", Err: err}
	}

	m := &Monitor{
		baseDir:      baseDir,
		root:         root,
		excludeRules: resolveRules(cfg.Exclude, DefaultExclude, cfg.ExcludeMerge, ImplicitExclude, ImplicitExcludeTemp),
		includeRules: resolveRules(cfg.Include, DefaultInclude, cfg.IncludeMerge, ImplicitInclude),
		workers:      cfg.Workers,
		callback:     cfg.Callback,
		now:          time.Now,
	}

	if m.exclude, err = compileRules("Exclude", m.excludeRules, filter.Exclude); err != nil {
		return nil, err
	}
	if m.include, err = compileRules("Include", m.includeRules, filter.Include); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.inspector == nil {
		var inspectOpts []inspect.Option
		if cfg.Tokens != nil {
			inspectOpts = append(inspectOpts, inspect.WithTokens(cfg.Tokens...))
		}
		if cfg.Radius != nil {
			inspectOpts = append(inspectOpts, inspect.WithRadius(*cfg.Radius))
		}
		m.inspector = inspect.New(inspectOpts...)
	}
	if m.store == nil {
		if m.store, err = manifest.NewStore(root); err != nil {
			return nil, &ConfigError{Field: "BaseDir", Reason: "cannot hold a manifest", Err: err}
		}
	}
	if m.logger == nil {
		m.logger = logging.Get("monitor")
	}
	m.logger = m.logger.With("root", m.root)

	return m, nil
}

// BaseDir returns the monitored root with one trailing separator.
func (m *Monitor) BaseDir() string {
	return m.baseDir
}

// IncludeRules returns the resolved include rules, implicit rule last.
func (m *Monitor) IncludeRules() []string {
	return append([]string(nil), m.includeRules...)
}

// ExcludeRules returns the resolved exclude rules, implicit rules last.
func (m *Monitor) ExcludeRules() []string {
	return append([]string(nil), m.excludeRules...)
}

// Store returns the manifest store.
func (m *Monitor) Store() *manifest.Store {
	return m.store
}

// State returns the current lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Last returns the result of the most recent successful Compare, or nil.
func (m *Monitor) Last() *Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func (m *Monitor) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Scan walks the tree and replaces the baseline manifest.
func (m *Monitor) Scan(ctx context.Context) error {
	start := m.now()
	m.logger.Info("scan started")

	var files int
	err := m.store.Exclusive(ctx, func() error {
		list, err := m.walk(ctx)
		if err != nil {
			return err
		}

		man, err := manifest.New(list, manifest.Rules{
			Exclude: m.ExcludeRules(),
			Include: m.IncludeRules(),
		})
		if err != nil {
			return fmt.Errorf("failed to build manifest: %w", err)
		}
		if err := m.store.Save(man); err != nil {
			return err
		}
		files = man.Len()
		return nil
	})
	if err != nil {
		m.logger.Error("scan failed", "error", err)
		return err
	}

	m.setState(Baseline)
	m.logger.Info("scan complete", "files", files, "duration", m.now().Sub(start))
	return nil
}

// Compare walks the tree and compares it against the baseline.
// When the checksums match, no file content is read.
func (m *Monitor) Compare(ctx context.Context) (*Result, error) {
	start := m.now()
	m.logger.Info("check started")

	var result *Result
	err := m.store.Shared(ctx, func() error {
		prior, err := m.store.Load()
		if errors.Is(err, manifest.ErrNotFound) {
			return fmt.Errorf("%s: %w", m.store.Path(), ErrMissingBaseline)
		}
		if err != nil {
			return err
		}

		current, err := m.walk(ctx)
		if err != nil {
			return err
		}
		sum, err := manifest.Checksum(current)
		if err != nil {
			return err
		}

		result = &Result{Checksum: sum, Files: len(current)}
		if sum == prior.Checksum {
			m.logger.Debug("checksum unchanged", "checksum", sum)
			result.Status = true
			result.Diff = EmptyDiff()
			return nil
		}

		diff, inspected, err := m.diff(ctx, prior.List, current)
		if err != nil {
			return err
		}
		result.Inspected = inspected
		result.Status = diff.Empty()
		result.Diff = diff
		if result.Status {
			result.Diff = EmptyDiff()
		}
		return nil
	})
	if err != nil {
		m.logger.Error("check failed", "error", err)
		return nil, err
	}

	result.Checked = m.now()
	m.mu.Lock()
	m.state = Checked
	m.last = result
	m.mu.Unlock()
	m.logger.Info("check complete",
		"status", result.Status,
		"created", len(result.Diff.Created),
		"modified", len(result.Diff.Modified),
		"deleted", len(result.Diff.Deleted),
		"warnings", result.Diff.Warnings(),
		"duration", result.Checked.Sub(start),
	)
	return result, nil
}

// Check runs Compare. With a callback configured it returns whatever the
// callback returns; otherwise it returns the *Result.
func (m *Monitor) Check(ctx context.Context) (any, error) {
	result, err := m.Compare(ctx)
	if err != nil {
		return nil, err
	}
	if m.callback != nil {
		return m.callback(result.Status, result.Diff)
	}
	return result, nil
}

// walk collects the current records of every accepted file.
func (m *Monitor) walk(ctx context.Context) (map[string]manifest.Record, error) {
	s := scanner.New(scanner.Options{
		Root:    m.root,
		Include: m.include,
		Exclude: m.exclude,
		Workers: m.workers,
	})
	records, err := s.Records(ctx)
	if err != nil {
		return nil, err
	}

	stats := s.Stats()
	m.logger.Debug("walk complete",
		"dirs", stats.DirsVisited,
		"files", stats.FilesYielded,
		"skipped", stats.Skipped,
	)
	return records, nil
}

// diff classifies every path and inspects created and modified files.
// It returns the number of files inspected.
func (m *Monitor) diff(ctx context.Context, old, current map[string]manifest.Record) (*Diff, int, error) {
	diff := EmptyDiff()
	inspected := 0

	for _, path := range sortedKeys(current) {
		if err := ctx.Err(); err != nil {
			return nil, inspected, err
		}

		rec := current[path]
		prev, existed := old[path]
		if existed && prev.Same(rec) {
			continue
		}

		warnings, err := m.inspect(path)
		if err != nil {
			return nil, inspected, err
		}
		inspected++

		if existed {
			prev.Path = path
			diff.Modified[path] = Modified{Old: prev, New: rec, Warnings: warnings}
		} else {
			diff.Created[path] = Created{New: rec, Warnings: warnings}
		}
	}

	for path, prev := range old {
		if _, ok := current[path]; !ok {
			prev.Path = path
			diff.Deleted[path] = Deleted{Old: prev}
		}
	}

	return diff, inspected, nil
}

func (m *Monitor) inspect(path string) ([]inspect.Warning, error) {
	warnings, err := m.inspector.InspectFile(filepath.Join(m.root, filepath.FromSlash(path)))
	if err != nil {
		return nil, fmt.Errorf("failed to inspect %s: %w", path, err)
	}
	for _, w := range warnings {
		m.logger.Warn("suspicious content", "path", path, "token", w.Token, "offset", w.Offset)
	}
	if warnings == nil {
		warnings = []inspect.Warning{}
	}
	return warnings, nil
}
