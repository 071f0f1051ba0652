package tui

import (
	"github.com/charmbracelet/lipgloss"

	"notebook-backend/internal/model"
)

var (
	Dim   = lipgloss.Color("#555555")
	White = lipgloss.Color("#FFFFFF")
	Red   = lipgloss.Color("#FF6B6B")

	themeColors = map[model.ColorTheme]lipgloss.Color{
		model.ColorBlue:   lipgloss.Color("#4F8EF7"),
		model.ColorGreen:  lipgloss.Color("#3DBE6B"),
		model.ColorPurple: lipgloss.Color("#9B6BF2"),
		model.ColorOrange: lipgloss.Color("#FFA500"),
		model.ColorPink:   lipgloss.Color("#F06BB4"),
		model.ColorCyan:   lipgloss.Color("#00CFCF"),
	}

	DeckTitleStyle = lipgloss.NewStyle().Foreground(Dim).Italic(true)
	PointStyle     = lipgloss.NewStyle().Foreground(White).PaddingLeft(2)
	StatusStyle    = lipgloss.NewStyle().Foreground(Dim)
	ControlsStyle  = lipgloss.NewStyle().Foreground(Dim).Italic(true)
	ErrorStyle     = lipgloss.NewStyle().Foreground(Red).Bold(true)
)

func themeColor(c model.ColorTheme) lipgloss.Color {
	if col, ok := themeColors[c]; ok {
		return col
	}
	return themeColors[model.ColorBlue]
}

func slideBox(c model.ColorTheme, width int) lipgloss.Style {
	s := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(themeColor(c)).
		Padding(1, 3)
	if width > 4 {
		s = s.Width(width - 4)
	}
	return s
}

func slideTitle(c model.ColorTheme) lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(themeColor(c)).MarginBottom(1)
}
