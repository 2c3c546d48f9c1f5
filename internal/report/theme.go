package report

import (
	"strings"

	catppuccin "github.com/catppuccin/go"
	"github.com/charmbracelet/lipgloss"
)

// Flavor returns the catppuccin flavor named by the theme option, mocha by default.
func Flavor(name string) catppuccin.Flavor {
	switch strings.ToLower(name) {
	case "latte":
		return catppuccin.Latte
	case "frappe", "frappé":
		return catppuccin.Frappe
	case "macchiato":
		return catppuccin.Macchiato
	default:
		return catppuccin.Mocha
	}
}

// Theme is the set of styles every renderer draws with.
type Theme struct {
	Title    lipgloss.Style
	Heading  lipgloss.Style
	Label    lipgloss.Style
	Value    lipgloss.Style
	Good     lipgloss.Style
	Bad      lipgloss.Style
	Warn     lipgloss.Style
	Muted    lipgloss.Style
	Bar      lipgloss.Style
	BarEmpty lipgloss.Style
	Box      lipgloss.Style

	// Dashboard chrome.
	Tab       lipgloss.Style
	TabActive lipgloss.Style
	Selected  lipgloss.Style
}

func color(c catppuccin.Color) lipgloss.Color {
	return lipgloss.Color(c.Hex)
}

// NewTheme builds the styles for a catppuccin flavor.
func NewTheme(flavor string) Theme {
	f := Flavor(flavor)
	return Theme{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(color(f.Mauve())),
		Heading:  lipgloss.NewStyle().Bold(true).Foreground(color(f.Lavender())),
		Label:    lipgloss.NewStyle().Foreground(color(f.Subtext0())),
		Value:    lipgloss.NewStyle().Foreground(color(f.Text())),
		Good:     lipgloss.NewStyle().Foreground(color(f.Green())),
		Bad:      lipgloss.NewStyle().Foreground(color(f.Red())),
		Warn:     lipgloss.NewStyle().Foreground(color(f.Yellow())),
		Muted:    lipgloss.NewStyle().Foreground(color(f.Overlay0())),
		Bar:      lipgloss.NewStyle().Foreground(color(f.Peach())),
		BarEmpty: lipgloss.NewStyle().Foreground(color(f.Surface1())),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(color(f.Surface2())).
			Padding(0, 1),
		Tab:       lipgloss.NewStyle().Foreground(color(f.Overlay1())).Padding(0, 2),
		TabActive: lipgloss.NewStyle().Bold(true).Foreground(color(f.Base())).Background(color(f.Mauve())).Padding(0, 2),
		Selected:  lipgloss.NewStyle().Bold(true).Background(color(f.Surface0())),
	}
}
