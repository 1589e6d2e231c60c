package main

import "github.com/charmbracelet/lipgloss"

// Status glyphs, so meaning does not rely on color alone.
const (
	glyphOK   = "✓"
	glyphWarn = "⚠"
	glyphFail = "✗"
)

var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorBlue   = lipgloss.Color("39")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	classStyle = lipgloss.NewStyle().
			Foreground(colorBlue)

	cellStyle = lipgloss.NewStyle()

	variantStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorYellow)

	okStyle   = lipgloss.NewStyle().Foreground(colorGreen)
	warnStyle = lipgloss.NewStyle().Foreground(colorYellow)
	failStyle = lipgloss.NewStyle().Bold(true).Foreground(colorRed)
	dimStyle  = lipgloss.NewStyle().Foreground(colorDim)
)

func okLine(msg string) string {
	return okStyle.Render(glyphOK) + " " + msg
}

func warnLine(msg string) string {
	return "  " + warnStyle.Render(glyphWarn) + " " + dimStyle.Render(msg)
}

func failLine(msg string) string {
	return failStyle.Render(glyphFail + " " + msg)
}
