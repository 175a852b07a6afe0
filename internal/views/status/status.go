package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/ruler-racer/rulerdash/internal/session"
	"github.com/ruler-racer/rulerdash/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	URL          string
	Connected    bool
	Reconnecting bool
	Phase        session.Phase
	Elapsed      time.Duration
	Events       int
	Notice       string
	Width        int
}

// New creates a status bar model.
func New(url string) Model {
	return Model{URL: url}
}

// PhaseLabel renders the phase text, with the animated dots while
// searching.
func PhaseLabel(phase session.Phase, elapsed time.Duration) string {
	if phase != session.Searching {
		return phase.String()
	}
	return "Searching" + strings.Repeat(".", session.Dots(elapsed))
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	switch {
	case m.Connected:
		connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Connected")
	case m.Reconnecting:
		connStr = lipgloss.NewStyle().Foreground(theme.ColorWarning).Render("○ Reconnecting...")
	default:
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Disconnected")
	}

	phaseColor := theme.ColorIdle
	if m.Phase == session.Searching {
		phaseColor = theme.ColorSearching
	}
	// Fixed width so the bar does not jitter as the dots cycle.
	phaseStr := lipgloss.NewStyle().Foreground(phaseColor).Bold(true).Width(14).
		Render(PhaseLabel(m.Phase, m.Elapsed))

	parts := []string{
		connStr,
		phaseStr,
		fmt.Sprintf("%s elapsed", m.Elapsed.Round(100*time.Millisecond)),
		fmt.Sprintf("%d events", m.Events),
	}
	if m.URL != "" {
		parts = append(parts, theme.StyleDimmed.Render(m.URL))
	}
	if m.Notice != "" {
		parts = append(parts, lipgloss.NewStyle().Foreground(theme.ColorWarning).Render(m.Notice))
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(strings.Join(parts, sep))
}
