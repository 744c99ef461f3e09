package tui

import "github.com/charmbracelet/lipgloss"

// Catppuccin Mocha palette.
var (
	colorBase     = lipgloss.Color("#1E1E2E") // background
	colorSurface0 = lipgloss.Color("#313244") // card bg
	colorSurface1 = lipgloss.Color("#45475A") // lighter surface
	colorText     = lipgloss.Color("#CDD6F4") // primary text
	colorSubtext  = lipgloss.Color("#A6ADC8") // secondary text
	colorDim      = lipgloss.Color("#585B70") // muted, borders

	colorAccent   = lipgloss.Color("#CBA6F7") // mauve – primary accent
	colorBlue     = lipgloss.Color("#89B4FA") // section headers
	colorSapphire = lipgloss.Color("#74C7EC") // bars
	colorGreen    = lipgloss.Color("#A6E3A1") // asleep
	colorYellow   = lipgloss.Color("#F9E2AF") // core sleep
	colorRed      = lipgloss.Color("#F38BA8") // awake
	colorTeal     = lipgloss.Color("#94E2D5") // rem
	colorLavender = lipgloss.Color("#B4BEFE") // titles
	colorSky      = lipgloss.Color("#89DCEB") // deep sleep
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(colorLavender).
			Bold(true)

	headlineStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Bold(true)

	subtextStyle = lipgloss.NewStyle().
			Foreground(colorSubtext)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorSurface1).
			Padding(0, 1)

	periodActiveStyle = lipgloss.NewStyle().
				Foreground(colorBase).
				Background(colorAccent).
				Padding(0, 1)

	periodInactiveStyle = lipgloss.NewStyle().
				Foreground(colorSubtext).
				Background(colorSurface0).
				Padding(0, 1)

	barStyle = lipgloss.NewStyle().Foreground(colorSapphire)
)
