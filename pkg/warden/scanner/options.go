// Package scanner walks a monitored directory tree and reports the files
// accepted by the include and exclude filters, together with the metadata
// recorded in a manifest.
package scanner

import (
	"github.com/jamesainslie/warden/pkg/warden/filter"
)

// DefaultWorkers is the default number of fastwalk workers.
// One worker keeps the traversal sequential.
const DefaultWorkers = 1

// Options configures the scanner behavior.
type Options struct {
	// Root is the directory to walk.
	Root string

	// Include decides which entries participate. Entries must match it.
	// A nil Include accepts everything.
	Include *filter.Compiled

	// Exclude removes entries. Entries must not match it.
	// A nil Exclude rejects nothing.
	Exclude *filter.Compiled

	// Workers is the number of concurrent fastwalk workers.
	Workers int
}

// Validate applies defaults for unset values.
func (o *Options) Validate() error {
	if o.Include == nil {
		o.Include = filter.MustCompile(nil, filter.Include)
	}
	if o.Exclude == nil {
		o.Exclude = filter.MustCompile(nil, filter.Exclude)
	}
	if o.Workers < 1 {
		o.Workers = DefaultWorkers
	}
	return nil
}
