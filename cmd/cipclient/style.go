package main

import "github.com/charmbracelet/lipgloss"

// Palette mirrors the muted blue/green/red scheme
// tonylturner-cipdip/internal/tui/theme.go uses for its full-screen TUI,
// scaled down to the handful of styles a line-oriented CLI needs.
var (
	styleHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7aa2f7"))
	styleOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a"))
	styleErr    = lipgloss.NewStyle().Foreground(lipgloss.Color("#f7768e"))
	styleDim    = lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89"))
)
