// Package theme provides the Lip Gloss color palette and reusable styles
// for the rulerdash TUI. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Phase colors.
var (
	ColorSearching = lipgloss.Color("#2563eb")
	ColorIdle      = lipgloss.Color("#4b5563")
	ColorComplete  = lipgloss.Color("#16a34a")
	ColorFailed    = lipgloss.Color("#dc2626")
)

// Series colors.
var (
	ColorObjective = lipgloss.Color("#a855f7")
	ColorBound     = lipgloss.Color("#06b6d4")
	ColorGap       = lipgloss.Color("#d97706")
	ColorOrder     = lipgloss.Color("#22c55e")
	ColorMetric    = lipgloss.Color("#9ca3af")
)

// Gap thresholds.
var (
	ColorGapClosed = lipgloss.Color("#22c55e") // 0
	ColorGapNarrow = lipgloss.Color("#d97706") // <25%
	ColorGapWide   = lipgloss.Color("#dc2626")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorMark    = lipgloss.Color("#f59e0b")
)

// SeriesColor returns the color used to draw a history series.
func SeriesColor(name string) lipgloss.Color {
	switch name {
	case "objective":
		return ColorObjective
	case "bound":
		return ColorBound
	case "gap":
		return ColorGap
	case "order":
		return ColorOrder
	default:
		return ColorMetric
	}
}

// GapColor returns the color for a relative optimality gap.
func GapColor(gap float64) lipgloss.Color {
	switch {
	case gap <= 0:
		return ColorGapClosed
	case gap < 0.25:
		return ColorGapNarrow
	default:
		return ColorGapWide
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleLabel = lipgloss.NewStyle().
			Foreground(ColorDimmed).
			Width(14)

	StyleValue = lipgloss.NewStyle().
			Foreground(ColorBright)
)
