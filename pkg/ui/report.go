package ui

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/arthur-debert/lodestone/pkg/download"
	"github.com/arthur-debert/lodestone/pkg/plan"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// RenderReport writes the end-of-run summary for a download report.
func RenderReport(w io.Writer, format Format, report *download.Report) error {
	if format == FormatJSON {
		return renderReportJSON(w, report)
	}

	styled := format == FormatTerminal
	failed := report.Failed()

	switch {
	case report.Cancelled:
		fmt.Fprintln(w, maybeStyle(styled, warnStyle, "Install cancelled; partial downloads kept for resumption."))
	case len(failed) == 0:
		fmt.Fprintln(w, maybeStyle(styled, successStyle, fmt.Sprintf("Done: %d artifact(s) installed.", len(report.Results))))
	default:
		fmt.Fprintln(w, maybeStyle(styled, errorStyle,
			fmt.Sprintf("Completed with %d failure(s) out of %d artifact(s):", len(failed), len(report.Results))))
		for _, res := range failed {
			fmt.Fprintf(w, "  %s  %s\n", res.Task.ID, maybeStyle(styled, dimStyle, res.Err.Error()))
		}
	}
	return nil
}

// RenderVerify writes a verification summary: what is valid on disk and
// what would need fetching.
func RenderVerify(w io.Writer, format Format, p *plan.Plan) error {
	if format == FormatJSON {
		return json.NewEncoder(w).Encode(map[string]interface{}{
			"version":   p.Version,
			"satisfied": len(p.Satisfied),
			"missing":   taskIDs(p),
		})
	}

	styled := format == FormatTerminal
	if len(p.Tasks) == 0 {
		fmt.Fprintln(w, maybeStyle(styled, successStyle,
			fmt.Sprintf("%s: all %d artifact(s) present and verified.", p.Version, len(p.Satisfied))))
		return nil
	}

	fmt.Fprintln(w, maybeStyle(styled, warnStyle,
		fmt.Sprintf("%s: %d artifact(s) verified, %d missing or invalid:", p.Version, len(p.Satisfied), len(p.Tasks))))
	for _, task := range p.Tasks {
		fmt.Fprintf(w, "  %s %s\n", task.ID, maybeStyle(styled, dimStyle, byteSize(task.Size)))
	}
	return nil
}

func renderReportJSON(w io.Writer, report *download.Report) error {
	type taskOut struct {
		ID       string `json:"id"`
		State    string `json:"state"`
		Attempts int    `json:"attempts"`
		Error    string `json:"error,omitempty"`
	}
	out := struct {
		Cancelled bool      `json:"cancelled"`
		Tasks     []taskOut `json:"tasks"`
	}{Cancelled: report.Cancelled}
	for _, res := range report.Results {
		entry := taskOut{ID: res.Task.ID, State: string(res.State), Attempts: res.Attempts}
		if res.Err != nil {
			entry.Error = res.Err.Error()
		}
		out.Tasks = append(out.Tasks, entry)
	}
	return json.NewEncoder(w).Encode(out)
}

func maybeStyle(styled bool, style lipgloss.Style, s string) string {
	if !styled {
		return s
	}
	return style.Render(s)
}

func taskIDs(p *plan.Plan) []string {
	ids := make([]string, 0, len(p.Tasks))
	for _, task := range p.Tasks {
		ids = append(ids, task.ID)
	}
	return ids
}

func byteSize(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("(%.1f GiB)", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("(%.1f MiB)", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("(%.1f KiB)", float64(n)/(1<<10))
	case n > 0:
		return fmt.Sprintf("(%d B)", n)
	default:
		return ""
	}
}
