// Package output provides formatters for warden check reports in various
// output formats (pretty, plain, json, yaml, etc.).
//
// The package uses a registry pattern to allow registration of multiple
// formatter implementations that can be selected at runtime.
//
// Basic usage:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, output.NewReport(root, result, elapsed)); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(buf.String())
package output

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/jamesainslie/warden/pkg/warden/inspect"
	"github.com/jamesainslie/warden/pkg/warden/monitor"
)

// Change is one changed file in a report.
type Change struct {
	// Kind is created, modified or deleted.
	Kind string

	// Path is relative to the report source, slash separated.
	Path string

	// OldSize and OldModified describe the baseline record. Zero for created files.
	OldSize     int64
	OldModified time.Time

	// NewSize and NewModified describe the current file. Zero for deleted files.
	NewSize     int64
	NewModified time.Time

	// Warnings are the suspicious tokens found in the file content.
	Warnings []inspect.Warning
}

// Size returns the current size, or the baseline size for deleted files.
func (c Change) Size() int64 {
	if c.Kind == string(monitor.ChangeDeleted) {
		return c.OldSize
	}
	return c.NewSize
}

// Summary counts changes per bucket.
type Summary struct {
	Created  int `json:"created" yaml:"created"`
	Modified int `json:"modified" yaml:"modified"`
	Deleted  int `json:"deleted" yaml:"deleted"`
	Warnings int `json:"warnings" yaml:"warnings"`
}

// Report contains the complete output data for formatting.
type Report struct {
	// Source is the monitored root.
	Source string

	// Status is true when the tree matches the baseline.
	Status bool

	// Checked is when the comparison finished.
	Checked time.Time

	// Duration is how long the check took.
	Duration time.Duration

	// Files is the number of files currently tracked.
	Files int

	// Inspected is the number of files whose content was scanned.
	Inspected int

	// Checksum is the checksum of the current tree.
	Checksum string

	// Summary counts the changes.
	Summary Summary

	// Changes lists every changed file, sorted by path.
	Changes []Change
}

// NewReport builds a report for a check of source.
func NewReport(source string, res *monitor.Result, duration time.Duration) *Report {
	diff := res.Diff
	if diff == nil {
		diff = monitor.EmptyDiff()
	}
	r := &Report{
		Source:    source,
		Status:    res.Status,
		Checked:   res.Checked,
		Duration:  duration,
		Files:     res.Files,
		Inspected: res.Inspected,
		Checksum:  res.Checksum,
		Summary: Summary{
			Created:  len(diff.Created),
			Modified: len(diff.Modified),
			Deleted:  len(diff.Deleted),
			Warnings: diff.Warnings(),
		},
		Changes: []Change{},
	}

	for _, c := range diff.Changes() {
		change := Change{Kind: string(c.Kind), Path: c.Path, Warnings: c.Warnings}
		if c.Old != nil {
			change.OldSize = c.Old.Size
			change.OldModified = time.Unix(c.Old.Modified, 0)
		}
		if c.New != nil {
			change.NewSize = c.New.Size
			change.NewModified = time.Unix(c.New.Modified, 0)
		}
		r.Changes = append(r.Changes, change)
	}
	return r
}

// ByKind returns the changes of one kind, in path order.
func (r *Report) ByKind(kind monitor.ChangeKind) []Change {
	var out []Change
	for _, c := range r.Changes {
		if c.Kind == string(kind) {
			out = append(out, c)
		}
	}
	return out
}

// rowHeader is the column set shared by the tabular formatters.
var rowHeader = []string{"STATUS", "PATH", "SIZE", "WARNINGS"}

// row returns the tabular columns of a change.
func (c Change) row() []string {
	return []string{c.Kind, c.Path, strconv.FormatInt(c.Size(), 10), strconv.Itoa(len(c.Warnings))}
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted output to the buffer.
	// It returns an error if formatting fails.
	Format(w *bytes.Buffer, r *Report) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory to the registry.
// It will replace any existing formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
// It returns an error if the formatter is not found.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}
