package output

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/jamesainslie/warden/pkg/warden/inspect"
)

// document is the serialized form of a report shared by the json and yaml
// formatters.
type document struct {
	Source    string           `json:"source" yaml:"source"`
	Status    bool             `json:"status" yaml:"status"`
	Checked   *time.Time       `json:"checked,omitempty" yaml:"checked,omitempty"`
	Duration  string           `json:"duration" yaml:"duration"`
	Files     int              `json:"files" yaml:"files"`
	Inspected int              `json:"inspected" yaml:"inspected"`
	Checksum  string           `json:"checksum" yaml:"checksum"`
	Summary   Summary          `json:"summary" yaml:"summary"`
	Changes   []documentChange `json:"changes" yaml:"changes"`
}

type documentChange struct {
	Kind     string            `json:"kind" yaml:"kind"`
	Path     string            `json:"path" yaml:"path"`
	Old      *documentRecord   `json:"old,omitempty" yaml:"old,omitempty"`
	New      *documentRecord   `json:"new,omitempty" yaml:"new,omitempty"`
	Warnings []inspect.Warning `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

type documentRecord struct {
	Size     int64     `json:"size" yaml:"size"`
	Modified time.Time `json:"modified" yaml:"modified"`
}

func buildDocument(r *Report) document {
	doc := document{
		Source:    r.Source,
		Status:    r.Status,
		Duration:  r.Duration.String(),
		Files:     r.Files,
		Inspected: r.Inspected,
		Checksum:  r.Checksum,
		Summary:   r.Summary,
		Changes:   make([]documentChange, 0, len(r.Changes)),
	}
	if !r.Checked.IsZero() {
		checked := r.Checked
		doc.Checked = &checked
	}
	for _, c := range r.Changes {
		doc.Changes = append(doc.Changes, buildDocumentChange(c))
	}
	return doc
}

func buildDocumentChange(c Change) documentChange {
	dc := documentChange{Kind: c.Kind, Path: c.Path, Warnings: c.Warnings}
	if !c.OldModified.IsZero() {
		dc.Old = &documentRecord{Size: c.OldSize, Modified: c.OldModified}
	}
	if !c.NewModified.IsZero() {
		dc.New = &documentRecord{Size: c.NewSize, Modified: c.NewModified}
	}
	return dc
}

// JSONFormatter formats a report as indented JSON.
type JSONFormatter struct{}

// Format writes the report as a single JSON document.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(buildDocument(r))
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

var _ Formatter = (*JSONFormatter)(nil)

// JSONLFormatter writes one JSON object per changed file.
// An unchanged tree produces no output.
type JSONLFormatter struct{}

// Format writes each change on its own line.
func (f *JSONLFormatter) Format(w *bytes.Buffer, r *Report) error {
	for _, c := range r.Changes {
		data, err := json.Marshal(buildDocumentChange(c))
		if err != nil {
			return err
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	return nil
}

func init() {
	Register("jsonl", func() Formatter {
		return &JSONLFormatter{}
	})
}

var _ Formatter = (*JSONLFormatter)(nil)
