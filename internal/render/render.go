// Package render draws the audit report as a colorized, interactive-
// terminal-aware table built on lipgloss.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/ind4skylivey/lockb-xray/internal/findings"
	"github.com/ind4skylivey/lockb-xray/internal/report"
)

var (
	highStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

// Write renders rep to w. Color is disabled automatically when the output
// profile reports no color support (piped output, CI, dumb terminals).
func Write(w io.Writer, rep report.Report) {
	plain := termenv.ColorProfile() == termenv.Ascii

	fmt.Fprintln(w, styleOrPlain(headerStyle, "lockb-xray audit", plain))
	fmt.Fprintf(w, "%d packages scanned, %d issue(s) found\n\n", rep.Summary.TotalPackages, rep.Summary.IssuesTotal)

	if len(rep.Issues) == 0 {
		fmt.Fprintln(w, styleOrPlain(dimStyle, "no findings", plain))
	} else {
		fmt.Fprintln(w, renderTable(rep.Issues, plain))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "high=%d warn=%d info=%d exit=%d\n",
		rep.Summary.HighCount, rep.Summary.WarnCount, rep.Summary.InfoCount, rep.Summary.ExitCode)

	if len(rep.Summary.ParserWarnings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, styleOrPlain(dimStyle, "parser warnings:", plain))
		for _, pw := range rep.Summary.ParserWarnings {
			fmt.Fprintf(w, "  %s\n", styleOrPlain(dimStyle, pw, plain))
		}
	}
}

func styleOrPlain(style lipgloss.Style, s string, plain bool) string {
	if plain {
		return s
	}
	return style.Render(s)
}

func renderTable(issues []findings.Issue, plain bool) string {
	cols := []string{"SEVERITY", "KIND", "PACKAGE", "VERSION", "DETAIL"}
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = len(c)
	}

	rows := make([][]string, 0, len(issues))
	for _, iss := range issues {
		row := []string{strings.ToUpper(iss.Severity.String()), iss.Kind, iss.Package, iss.Version, iss.Detail}
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
		rows = append(rows, row)
	}

	var b strings.Builder
	writeRow(&b, cols, widths, headerStyle, plain)
	for i, row := range rows {
		writeRow(&b, row, widths, severityStyle(issues[i].Severity), plain)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeRow(b *strings.Builder, cells []string, widths []int, style lipgloss.Style, plain bool) {
	padded := make([]string, len(cells))
	for i, cell := range cells {
		padded[i] = cell + strings.Repeat(" ", widths[i]-len(cell))
	}
	b.WriteString(styleOrPlain(style, strings.Join(padded, "  "), plain))
	b.WriteString("\n")
}

func severityStyle(s findings.Severity) lipgloss.Style {
	switch s {
	case findings.SeverityHigh:
		return highStyle
	case findings.SeverityWarn:
		return warnStyle
	default:
		return infoStyle
	}
}
