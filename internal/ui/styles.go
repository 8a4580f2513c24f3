package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/hpungsan/lsearch/internal/command"
)

// categoryColors gives every category a fixed hex color, shared by the
// terminal badges and the web pages.
var categoryColors = map[command.Category]string{
	command.Networking:  "#00d4ff",
	command.Security:    "#a855f7",
	command.Files:       "#00ff88",
	command.System:      "#fbbf24",
	command.Process:     "#ef4444",
	command.Text:        "#06b6d4",
	command.Permissions: "#f97316",
	command.Packages:    "#8b5cf6",
	command.Monitoring:  "#14b8a6",
	command.Disk:        "#64748b",
	command.Users:       "#ec4899",
	command.Scripting:   "#eab308",
}

// fallbackColor is used for categories without an entry.
const fallbackColor = "#6C7086"

var (
	// Name style for command names in listings
	Name = lipgloss.NewStyle().Bold(true)

	// Muted style for descriptions and hints
	Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
)

// CategoryColor returns the hex color of c.
func CategoryColor(c command.Category) string {
	if color, ok := categoryColors[c]; ok {
		return color
	}
	return fallbackColor
}

// Badge renders c as a colored label.
func Badge(c command.Category) string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(CategoryColor(c))).
		Bold(true).
		Render("[" + string(c) + "]")
}
