package report

import "github.com/charmbracelet/lipgloss"

var (
	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444466")).
		Padding(0, 1)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00ffff"))

	Label = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888899"))

	Value = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#00ccff")).
		Bold(true)

	Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#ffffff")).
		Padding(0, 1)

	Cell = lipgloss.NewStyle().Padding(0, 1)

	Good    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88"))
	Warning = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffcc00"))
	Bad     = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444"))
)

// driftStyle colours a relative energy drift.
func driftStyle(drift float64) lipgloss.Style {
	switch {
	case drift < 1e-6:
		return Good
	case drift < 1e-2:
		return Warning
	default:
		return Bad
	}
}
