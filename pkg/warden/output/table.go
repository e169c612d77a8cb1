package output

import (
	"bytes"
	"encoding/csv"
	"strings"
)

// TSVFormatter writes tab-separated rows.
type TSVFormatter struct{}

// Format writes a header and one tab-separated row per change.
func (f *TSVFormatter) Format(w *bytes.Buffer, r *Report) error {
	w.WriteString(strings.Join(rowHeader, "\t"))
	w.WriteByte('\n')

	for _, c := range r.Changes {
		w.WriteString(strings.Join(c.row(), "\t"))
		w.WriteByte('\n')
	}

	return nil
}

func init() {
	Register("tsv", func() Formatter {
		return &TSVFormatter{}
	})
}

var _ Formatter = (*TSVFormatter)(nil)

// CSVFormatter writes RFC 4180 rows.
type CSVFormatter struct{}

// Format writes a header and one CSV row per change.
func (f *CSVFormatter) Format(w *bytes.Buffer, r *Report) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(rowHeader); err != nil {
		return err
	}

	for _, c := range r.Changes {
		if err := writer.Write(c.row()); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func init() {
	Register("csv", func() Formatter {
		return &CSVFormatter{}
	})
}

var _ Formatter = (*CSVFormatter)(nil)

// MarkdownFormatter writes a GitHub-flavored markdown table.
type MarkdownFormatter struct{}

// Format writes the table header, separator and one row per change.
func (f *MarkdownFormatter) Format(w *bytes.Buffer, r *Report) error {
	w.WriteString("| " + strings.Join(rowHeader, " | ") + " |\n")

	seps := make([]string, len(rowHeader))
	for i := range seps {
		seps[i] = "---"
	}
	w.WriteString("|" + strings.Join(seps, "|") + "|\n")

	for _, c := range r.Changes {
		cols := c.row()
		for i := range cols {
			cols[i] = escapeMarkdownPipe(cols[i])
		}
		w.WriteString("| " + strings.Join(cols, " | ") + " |\n")
	}

	return nil
}

// escapeMarkdownPipe escapes pipe characters that would break table cells.
func escapeMarkdownPipe(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func init() {
	Register("markdown", func() Formatter {
		return &MarkdownFormatter{}
	})
}

var _ Formatter = (*MarkdownFormatter)(nil)
