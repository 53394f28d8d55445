package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sleroq/nsx-to-markdown/internal/app/exporter"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Width(16).Foreground(lipgloss.Color("8"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func printSummary(w io.Writer, source string, stats exporter.Stats) {
	rows := []struct {
		label string
		value int
	}{
		{"notebooks", stats.Notebooks},
		{"notes", stats.Notes},
		{"attachments", stats.Attachments},
		{"encrypted", stats.Encrypted},
		{"skipped", stats.Skipped},
		{"dead links", stats.DeadLinks},
		{"missing links", stats.MissingLinks},
		{"invalid links", stats.InvalidLinks},
		{"relocated", stats.Relocated},
		{"left in place", stats.LeftInPlace},
	}
	lines := []string{titleStyle.Render(source)}
	for _, r := range rows {
		if r.value == 0 && r.label != "notes" {
			continue
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(r.label), fmt.Sprint(r.value)))
	}
	fmt.Fprintln(w, boxStyle.Render(strings.Join(lines, "\n")))
	for _, warning := range stats.Warnings {
		fmt.Fprintln(w, warnStyle.Render("! "+warning))
	}
}
