package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/warden/pkg/warden/monitor"
)

// PrettyFormatter formats a report with colors and styling using lipgloss.
type PrettyFormatter struct{}

var _ Formatter = (*PrettyFormatter)(nil)

func init() {
	Register("pretty", func() Formatter { return &PrettyFormatter{} })
}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Report) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")

	if r.Status {
		w.WriteString(MutedStyle.Render("  No changes since the baseline"))
		w.WriteString("\n")
	} else {
		for _, kind := range []monitor.ChangeKind{monitor.ChangeCreated, monitor.ChangeModified, monitor.ChangeDeleted} {
			w.WriteString(f.formatSection(kind, r.ByKind(kind)))
		}
	}

	w.WriteString(f.formatFooter(r))
	w.WriteString("\n")
	return nil
}

// formatHeader builds the header box with check metadata.
func (f *PrettyFormatter) formatHeader(r *Report) string {
	var lines []string

	lines = append(lines, fmt.Sprintf("%s %s", LabelStyle.Render("Source:"), ValueStyle.Render(r.Source)))

	status := SuccessStyle.Bold(true).Render("unchanged")
	if !r.Status {
		status = ErrorStyle.Bold(true).Render("changed")
	}
	info := []string{
		fmt.Sprintf("%s %s", LabelStyle.Render("Status:"), status),
		fmt.Sprintf("%s %s", LabelStyle.Render("Checked:"),
			ValueStyle.Render(fmt.Sprintf("%d files in %s", r.Files, formatDuration(r.Duration)))),
	}
	if !r.Checked.IsZero() {
		info = append(info, MutedStyle.Render(r.Checked.Format(time.DateTime)))
	}
	lines = append(lines, strings.Join(info, "  "))

	return HeaderBox.Render(strings.Join(lines, "\n"))
}

// formatSection renders one change bucket. Empty buckets render nothing.
func (f *PrettyFormatter) formatSection(kind monitor.ChangeKind, changes []Change) string {
	if len(changes) == 0 {
		return ""
	}
	ks := kindStyles[string(kind)]

	var sb strings.Builder
	title := fmt.Sprintf("%s (%d)", strings.ToUpper(string(kind[:1]))+string(kind[1:]), len(changes))
	sb.WriteString(TitleStyle.Render(title))
	sb.WriteString("\n")

	for _, c := range changes {
		size := humanize.IBytes(uint64(c.Size()))
		sb.WriteString(fmt.Sprintf("  %s %s %s\n",
			ks.style.Render(ks.marker), PathStyle.Render(c.Path), MutedStyle.Render(size)))
		for _, warn := range c.Warnings {
			sb.WriteString(fmt.Sprintf("      %s %s\n",
				WarningStyle.Render(fmt.Sprintf("! %s @%d", warn.Token, warn.Offset)),
				MutedStyle.Render(warn.Context)))
		}
	}
	return sb.String()
}

// formatFooter builds the footer box with summary counts.
func (f *PrettyFormatter) formatFooter(r *Report) string {
	s := r.Summary
	parts := []string{
		fmt.Sprintf("%s %s", LabelStyle.Render("Created:"), SuccessStyle.Render(fmt.Sprintf("%d", s.Created))),
		fmt.Sprintf("%s %s", LabelStyle.Render("Modified:"), WarningStyle.Render(fmt.Sprintf("%d", s.Modified))),
		fmt.Sprintf("%s %s", LabelStyle.Render("Deleted:"), ErrorStyle.Render(fmt.Sprintf("%d", s.Deleted))),
		fmt.Sprintf("%s %s", LabelStyle.Render("Warnings:"), WarningStyle.Render(fmt.Sprintf("%d", s.Warnings))),
		fmt.Sprintf("%s %s", LabelStyle.Render("Inspected:"), ValueStyle.Render(fmt.Sprintf("%d", r.Inspected))),
	}
	return FooterBox.Render(strings.Join(parts, "  "))
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
}
