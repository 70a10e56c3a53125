package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/CarrieW-BorderX/tiktok-scraper/internal/report"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Bold(true).
			Padding(0, 2).
			MarginBottom(1)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33"))

	processingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)
)

// renderSummary formats the end-of-run report for the terminal.
func renderSummary(rep *report.RunReport, errLogPath string) string {
	if rep == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(infoStyle.Render(fmt.Sprintf("Run %s: %d rows (%d skipped), %s",
		rep.RunID, rep.Rows, rep.SkippedRows, rep.FinishedAt.Sub(rep.StartedAt).Round(time.Second))))
	b.WriteString("\n")

	b.WriteString(successStyle.Render(fmt.Sprintf("✅ Downloaded: %d", rep.Downloaded)))
	if rep.Skipped > 0 {
		b.WriteString(infoStyle.Render(fmt.Sprintf("  (already completed: %d)", rep.Skipped)))
	}
	b.WriteString("\n")

	if n := len(rep.ItemFailures); n > 0 {
		b.WriteString(errorStyle.Render(fmt.Sprintf("❌ Failed videos: %d", n)))
		b.WriteString("\n")
		for _, f := range rep.ItemFailures {
			fmt.Fprintf(&b, "  - [%s] %s: %s\n", f.AccountID, f.Identifier, f.Status)
		}
	}

	if n := len(rep.RowFailures); n > 0 {
		msg := fmt.Sprintf("❌ Failed accounts: %d", n)
		if errLogPath != "" {
			msg += fmt.Sprintf(" (see %s)", errLogPath)
		}
		b.WriteString(errorStyle.Render(msg))
		b.WriteString("\n")
		for _, f := range rep.RowFailures {
			fmt.Fprintf(&b, "  - %s (%s): %s\n", f.AccountID, f.Label, f.Error)
		}
	} else {
		b.WriteString(successStyle.Render("✅ All accounts processed."))
		b.WriteString("\n")
	}
	return b.String()
}
