package watch

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/zulhijaya18/wa-service-api/internal/session"
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorPairing = lipgloss.Color("#7c3aed")
	ColorBrand   = lipgloss.Color("#25d366")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorBrand)
	dimStyle   = lipgloss.NewStyle().Foreground(ColorDimmed)
	errorStyle = lipgloss.NewStyle().Foreground(ColorDanger)
	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)
)

// StateColor returns the badge color for a session state.
func StateColor(s session.State) lipgloss.Color {
	switch s {
	case session.Ready:
		return ColorHealthy
	case session.Authenticated:
		return ColorBright
	case session.AwaitingPairing:
		return ColorPairing
	case session.AuthFailed, session.Disconnected:
		return ColorDanger
	default:
		return ColorWarning
	}
}
