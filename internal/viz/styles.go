// Package viz renders solve results for the terminal: styled summary
// panels and ascii trajectory plots.
package viz

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00ccff"))

	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444466")).
		Padding(0, 2)

	Subtle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666688"))

	StatusGood = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ff88"))

	StatusBad = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ff4444"))

	MetricLabel = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888899"))

	MetricValue = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ccff")).
			Bold(true)
)

// Summary renders a titled panel of label/value rows.
func Summary(title string, rows [][2]string) string {
	var b strings.Builder
	b.WriteString(Title.Render(title))
	b.WriteString("\n")
	width := 0
	for _, r := range rows {
		if len(r[0]) > width {
			width = len(r[0])
		}
	}
	for _, r := range rows {
		b.WriteString(fmt.Sprintf("%s  %s\n",
			MetricLabel.Render(fmt.Sprintf("%-*s", width, r[0])),
			MetricValue.Render(r[1])))
	}
	return Panel.Render(strings.TrimRight(b.String(), "\n"))
}
