package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type SummaryRow struct {
	Label string
	Value string
	// Alert highlights the value, e.g. a non-zero failure count.
	Alert bool
}

// RenderSummary draws rows as a two-column table framed by rules.
func RenderSummary(title string, rows []SummaryRow) string {
	labelWidth := len(title)
	valueWidth := 0
	for _, row := range rows {
		labelWidth = max(labelWidth, len(row.Label))
		valueWidth = max(valueWidth, len(row.Value))
	}

	hline := strings.Repeat("-", labelWidth+valueWidth+3)
	lines := []string{}
	if title != "" {
		lines = append(lines, titleStyle.Render(title))
	}
	lines = append(lines, hline)

	for _, row := range rows {
		label := padRight(row.Label, labelWidth)
		value := padRight(row.Value, valueWidth)
		style := valueStyle
		if row.Alert {
			style = alertStyle
		}
		lines = append(lines, fmt.Sprintf("%s | %s", labelStyle.Render(label), style.Render(value)))
	}

	lines = append(lines, hline)
	return strings.Join(lines, "\n")
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

var (
	valueStyle = lipgloss.NewStyle().Foreground(ColorInk).Bold(true)
	alertStyle = lipgloss.NewStyle().Foreground(ColorDanger).Bold(true)
)
