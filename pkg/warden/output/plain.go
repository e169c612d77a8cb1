package output

import (
	"bytes"
	"strings"
	"text/tabwriter"
)

// PlainFormatter writes an aligned table without colors, suitable for
// piping to other tools.
type PlainFormatter struct{}

// Format writes a header line and one row per change.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	if _, err := tw.Write([]byte(strings.Join(rowHeader, "\t") + "\n")); err != nil {
		return err
	}

	for _, c := range r.Changes {
		if _, err := tw.Write([]byte(strings.Join(c.row(), "\t") + "\n")); err != nil {
			return err
		}
	}

	return tw.Flush()
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

var _ Formatter = (*PlainFormatter)(nil)
