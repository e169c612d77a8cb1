// Package monitor records a baseline of a directory tree and compares the
// tree against it later. Files are classified as created, modified or
// deleted, and the content of every created or modified file is inspected
// for suspicious tokens.
//
//	m, err := monitor.New(monitor.Config{BaseDir: "/var/www"})
//	if err != nil {
//	    return err
//	}
//	if err := m.Scan(ctx); err != nil {
//	    return err
//	}
//	// later
//	res, err := m.Compare(ctx)
package monitor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jamesainslie/warden/pkg/warden/filter"
	"github.com/jamesainslie/warden/pkg/warden/inspect"
	"github.com/jamesainslie/warden/pkg/warden/logging"
	"github.com/jamesainslie/warden/pkg/warden/manifest"
)

// DefaultExclude is used when Config.Exclude is nil.
var DefaultExclude = []string{"d|.git", "d|.idea", "d|.buildpath", "d|.project", "d|.settings"}

// DefaultInclude is used when Config.Include is nil.
var DefaultInclude = []string{"f|*.php", "f|*.html", "f|.env", "f|.htaccess", "f|*.sh", "f|*.bat"}

// Rules appended to every resolved rule list.
const (
	// ImplicitExclude keeps the manifest out of its own baseline.
	ImplicitExclude = "f|" + manifest.FileName

	// ImplicitExcludeTemp keeps the leftovers of an interrupted manifest
	// write out of the baseline.
	ImplicitExcludeTemp = "f|" + manifest.TempPattern

	// ImplicitInclude lets the walk descend into every directory that is
	// not excluded.
	ImplicitInclude = "d|*"
)

// ErrInvalidConfig is the sentinel matched by every *ConfigError.
var ErrInvalidConfig = errors.New("invalid config")

// ConfigError reports a rejected Config field.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrInvalidConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Callback receives the outcome of Check. Its return values become the
// return values of Check.
type Callback func(status bool, diff *Diff) (any, error)

// Config configures a Monitor.
type Config struct {
	// BaseDir is the root of the monitored tree. Required.
	BaseDir string

	// Include replaces DefaultInclude when non-nil.
	Include []string

	// Exclude replaces DefaultExclude when non-nil.
	Exclude []string

	// IncludeMerge is appended to the include rules.
	IncludeMerge []string

	// ExcludeMerge is appended to the exclude rules.
	ExcludeMerge []string

	// Tokens replaces inspect.DefaultTokens when non-nil.
	Tokens []string

	// Radius replaces inspect.DefaultRadius when non-nil. Must not be negative.
	Radius *int

	// Callback, when set, receives the outcome of Check.
	Callback Callback

	// Workers is the number of walk workers. Zero means one.
	Workers int
}

// Inspector scans a file for suspicious content.
// *inspect.Inspector satisfies it.
type Inspector interface {
	InspectFile(path string) ([]inspect.Warning, error)
}

var _ Inspector = (*inspect.Inspector)(nil)

// Option customizes a Monitor beyond Config.
type Option func(*Monitor)

// WithInspector replaces the content inspector built from Config.Tokens
// and Config.Radius.
func WithInspector(i Inspector) Option {
	return func(m *Monitor) {
		m.inspector = i
	}
}

// WithStore replaces the manifest store for BaseDir.
func WithStore(s *manifest.Store) Option {
	return func(m *Monitor) {
		m.store = s
	}
}

// WithLogger sets the logger. The default is logging.Get("monitor").
func WithLogger(l *logging.Logger) Option {
	return func(m *Monitor) {
		m.logger = l
	}
}

// WithClock sets the time source used to stamp results.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// IsImplicit reports whether rule is appended by the monitor rather than
// configured.
func IsImplicit(rule string) bool {
	switch rule {
	case ImplicitExclude, ImplicitExcludeTemp, ImplicitInclude:
		return true
	}
	return false
}

// normalizeBaseDir returns the absolute cleaned base dir with exactly one
// trailing separator, and the same path without it.
func normalizeBaseDir(dir string) (withSep, root string, err error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", "", err
	}
	root = filepath.Clean(abs)
	withSep = strings.TrimRight(root, string(os.PathSeparator)) + string(os.PathSeparator)
	return withSep, root, nil
}

// resolveRules applies override-or-default, merge lists and the implicit
// rules, in that order.
func resolveRules(override, defaults, merge []string, implicit ...string) []string {
	base := defaults
	if override != nil {
		base = override
	}
	rules := make([]string, 0, len(base)+len(merge)+len(implicit))
	rules = append(rules, base...)
	rules = append(rules, merge...)
	return append(rules, implicit...)
}

// compileRules parses and compiles a resolved rule list.
func compileRules(field string, raw []string, mode filter.Mode) (*filter.Compiled, error) {
	rules, err := filter.ParseRules(raw)
	if err != nil {
		return nil, &ConfigError{Field: field, Reason: "bad rule", Err: err}
	}
	compiled, err := filter.Compile(rules, mode)
	if err != nil {
		return nil, &ConfigError{Field: field, Reason: "bad rule", Err: err}
	}
	return compiled, nil
}
