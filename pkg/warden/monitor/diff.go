package monitor

import (
	"sort"
	"time"

	"github.com/jamesainslie/warden/pkg/warden/inspect"
	"github.com/jamesainslie/warden/pkg/warden/manifest"
)

// Created is a file present now but absent from the baseline.
type Created struct {
	New      manifest.Record   `json:"new" yaml:"new"`
	Warnings []inspect.Warning `json:"warnings" yaml:"warnings"`
}

// Modified is a file whose mtime or size differs from the baseline.
type Modified struct {
	Old      manifest.Record   `json:"old" yaml:"old"`
	New      manifest.Record   `json:"new" yaml:"new"`
	Warnings []inspect.Warning `json:"warnings" yaml:"warnings"`
}

// Deleted is a file present in the baseline but absent now.
type Deleted struct {
	Old manifest.Record `json:"old" yaml:"old"`
}

// Diff groups the changes between a baseline and the current tree.
// Every path appears in at most one bucket.
type Diff struct {
	Created  map[string]Created  `json:"created" yaml:"created"`
	Modified map[string]Modified `json:"modified" yaml:"modified"`
	Deleted  map[string]Deleted  `json:"deleted" yaml:"deleted"`
}

// EmptyDiff returns a diff with three empty, non-nil buckets.
func EmptyDiff() *Diff {
	return &Diff{
		Created:  map[string]Created{},
		Modified: map[string]Modified{},
		Deleted:  map[string]Deleted{},
	}
}

// Empty reports whether no bucket holds a change.
func (d *Diff) Empty() bool {
	return d.Len() == 0
}

// Len returns the total number of changed paths.
func (d *Diff) Len() int {
	return len(d.Created) + len(d.Modified) + len(d.Deleted)
}

// Warnings returns the number of warnings across created and modified files.
func (d *Diff) Warnings() int {
	n := 0
	for _, c := range d.Created {
		n += len(c.Warnings)
	}
	for _, m := range d.Modified {
		n += len(m.Warnings)
	}
	return n
}

// ChangeKind names the bucket a change belongs to.
type ChangeKind string

// Change kinds.
const (
	ChangeCreated  ChangeKind = "created"
	ChangeModified ChangeKind = "modified"
	ChangeDeleted  ChangeKind = "deleted"
)

// Change is one entry of a diff in flat form.
type Change struct {
	Kind     ChangeKind        `json:"kind" yaml:"kind"`
	Path     string            `json:"path" yaml:"path"`
	Old      *manifest.Record  `json:"old,omitempty" yaml:"old,omitempty"`
	New      *manifest.Record  `json:"new,omitempty" yaml:"new,omitempty"`
	Warnings []inspect.Warning `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Changes flattens the diff, sorted by path.
func (d *Diff) Changes() []Change {
	changes := make([]Change, 0, d.Len())
	for path, c := range d.Created {
		rec := c.New
		changes = append(changes, Change{Kind: ChangeCreated, Path: path, New: &rec, Warnings: c.Warnings})
	}
	for path, m := range d.Modified {
		oldRec, newRec := m.Old, m.New
		changes = append(changes, Change{Kind: ChangeModified, Path: path, Old: &oldRec, New: &newRec, Warnings: m.Warnings})
	}
	for path, del := range d.Deleted {
		rec := del.Old
		changes = append(changes, Change{Kind: ChangeDeleted, Path: path, Old: &rec})
	}
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Path < changes[j].Path
	})
	return changes
}

// Result is the outcome of a comparison.
type Result struct {
	// Status is true when the tree matches the baseline.
	Status bool `json:"status" yaml:"status"`

	// Diff is EmptyDiff() whenever Status is true.
	Diff *Diff `json:"diff" yaml:"diff"`

	// Checked is when the comparison finished.
	Checked time.Time `json:"checked" yaml:"checked"`

	// Checksum is the checksum of the current tree.
	Checksum string `json:"checksum" yaml:"checksum"`

	// Files is the number of files in the current tree.
	Files int `json:"files" yaml:"files"`

	// Inspected is the number of files whose content was scanned.
	Inspected int `json:"inspected" yaml:"inspected"`
}

// sortedKeys returns the keys of m in lexical order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
