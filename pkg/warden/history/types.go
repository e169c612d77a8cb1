// Package history keeps a log of check outcomes per monitored root in a
// Badger database. The core monitor never writes here; the CLI records
// one entry per check.
package history

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/jamesainslie/warden/pkg/warden/monitor"
)

// KeySeparator separates root from the time-ordered suffix in keys.
const KeySeparator = '\x00'

// indexPrefix marks the id lookup keys. Roots are absolute paths, so no
// entry key starts with a separator.
var indexPrefix = []byte{KeySeparator, 'i', 'd', KeySeparator}

// Entry is the summary of one check.
type Entry struct {
	ID       string
	Root     string
	Time     time.Time
	Duration time.Duration
	Status   bool
	Files    int
	Created  int
	Modified int
	Deleted  int
	Warnings int

	// Changed lists the changed paths, sorted.
	Changed []string
}

// FromResult summarizes a check of root.
func FromResult(root string, res *monitor.Result, duration time.Duration) Entry {
	e := Entry{
		Root:     root,
		Time:     res.Checked,
		Duration: duration,
		Status:   res.Status,
		Files:    res.Files,
		Created:  len(res.Diff.Created),
		Modified: len(res.Diff.Modified),
		Deleted:  len(res.Diff.Deleted),
		Warnings: res.Diff.Warnings(),
	}
	for _, c := range res.Diff.Changes() {
		e.Changed = append(e.Changed, c.Path)
	}
	return e
}

// Changes returns the total number of changed paths.
func (e *Entry) Changes() int {
	return e.Created + e.Modified + e.Deleted
}

// Encode serializes the entry to bytes using gob.
func (e *Entry) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes bytes into the entry using gob.
func (e *Entry) Decode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(e)
}

// MakeKey returns the key of an entry.
// Format: <root>\x00<unix-nano, zero padded>-<id>, so keys of one root sort
// by time.
func MakeKey(e *Entry) []byte {
	return []byte(fmt.Sprintf("%s%c%020d-%s", e.Root, KeySeparator, e.Time.UnixNano(), e.ID))
}

// MakeKeyPrefix returns the prefix shared by all entries of root.
func MakeKeyPrefix(root string) []byte {
	return []byte(root + string(KeySeparator))
}

func makeIndexKey(id string) []byte {
	return append(append([]byte{}, indexPrefix...), id...)
}
