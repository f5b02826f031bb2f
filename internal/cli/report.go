package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"mediaconv/internal/dispatch"
)

var (
	reportTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	reportOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	reportErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	reportMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func renderFinalReport(s dispatch.Summary, outputDirName string) string {
	var b strings.Builder
	b.WriteString("\n" + reportTitleStyle.Render("conversion summary") + "\n")

	okLine := kv("succeeded", fmt.Sprintf("%d/%d", len(s.Succeeded), s.Total))
	if len(s.Succeeded) == s.Total && s.Total > 0 {
		okLine = reportOKStyle.Render(okLine)
	}
	b.WriteString(okLine + "\n")

	failLine := kv("failed", fmt.Sprintf("%d", len(s.Failed)))
	if len(s.Failed) > 0 {
		failLine = reportErrorStyle.Render(failLine)
	}
	b.WriteString(failLine + "\n")
	if len(s.Cancelled) > 0 {
		b.WriteString(reportErrorStyle.Render(kv("not started", fmt.Sprintf("%d", len(s.Cancelled)))) + "\n")
	}

	b.WriteString(kv("total time", formatSeconds(s.ElapsedSeconds())) + "\n")
	if avg, ok := s.AverageSecondsPerSuccess(); ok {
		b.WriteString(kv("average per file", formatSeconds(avg)) + "\n")
	}
	if n := s.OutputBytes(); n > 0 {
		b.WriteString(kv("output size", formatBytesIEC(n)) + "\n")
	}
	b.WriteString(kv("output folder", outputDirName) + "\n")

	if len(s.Failed) > 0 {
		b.WriteString("\n" + reportErrorStyle.Render("failed files:") + "\n")
		for _, r := range s.Failed {
			b.WriteString("  - " + r.Filename + "\n")
			if msg := firstLine(r.Err); msg != "" {
				b.WriteString(reportMutedStyle.Render("      "+truncateRunes(msg, 120)) + "\n")
			}
		}
	}
	if len(s.Cancelled) > 0 {
		b.WriteString("\n" + reportMutedStyle.Render("not started (interrupted):") + "\n")
		for _, c := range s.Cancelled {
			b.WriteString("  - " + c.Filename() + "\n")
		}
	}
	return b.String()
}
