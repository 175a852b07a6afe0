// Package dashboard renders the session summary row, the metrics table and
// the per-series sparklines for the rulerdash TUI.
package dashboard

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/ruler-racer/rulerdash/internal/session"
	"github.com/ruler-racer/rulerdash/internal/theme"
	"github.com/ruler-racer/rulerdash/internal/views/ruler"
)

// Model holds what the dashboard last rendered from.
type Model struct {
	Width   int
	state   session.State
	history map[string][]session.Point
	t0, t1  time.Time
}

func New() Model {
	return Model{}
}

// SetView replaces the state, history snapshot and display window.
func (m *Model) SetView(st session.State, history map[string][]session.Point, t0, t1 time.Time) {
	m.state = st
	m.history = history
	m.t0, m.t1 = t0, t1
}

// View renders summary row, ruler, sparklines and metrics.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	label := "current"
	if m.state.BestSolution != nil {
		label = "best"
	}
	sections := []string{
		m.renderSummary(width),
		ruler.View(m.state.DisplaySolution(), label, width),
		m.renderSeries(width),
		m.renderMetrics(),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderSummary(width int) string {
	st := m.state
	cell := lipgloss.NewStyle().Padding(0, 1)

	order := "-"
	if st.CurrentOrder != nil {
		order = strconv.Itoa(*st.CurrentOrder)
	}
	bound := "-"
	if st.Bound != nil {
		bound = FormatValue(*st.Bound)
	}
	gapStr := cell.Foreground(theme.ColorDimmed).Render("Gap: -")
	if st.Gap != nil {
		gapStr = cell.Foreground(theme.GapColor(*st.Gap)).Render(fmt.Sprintf("Gap: %.1f%%", *st.Gap*100))
	}

	stats := []string{
		cell.Foreground(theme.ColorOrder).Render("Order: " + order),
		cell.Foreground(theme.ColorBound).Render("Bound: " + bound),
		gapStr,
		cell.Foreground(theme.ColorObjective).Render("Result: " + Result(st)),
	}
	content := strings.Join(stats, lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | "))

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

// Result describes the session's final answer: the accepted ruler length,
// the boolean outcome of the older protocol, or "-" while none arrived.
func Result(st session.State) string {
	switch {
	case st.Outcome != nil && *st.Outcome:
		return "solved"
	case st.Outcome != nil:
		return "no solution"
	case st.BestSolution != nil && len(st.BestSolution) > 0:
		return fmt.Sprintf("length %d", st.BestSolution[len(st.BestSolution)-1]-st.BestSolution[0])
	case st.BestSolution != nil:
		return "empty"
	default:
		return "-"
	}
}

// SeriesOrder lists the well-known series first, then metric series by
// name.
func SeriesOrder(names []string) []string {
	rank := map[string]int{
		session.SeriesObjective: 0,
		session.SeriesBound:     1,
		session.SeriesGap:       2,
		session.SeriesOrder:     3,
	}
	out := append([]string(nil), names...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, iok := rank[out[i]]
		rj, jok := rank[out[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return out[i] < out[j]
		}
	})
	return out
}

func (m Model) renderSeries(width int) string {
	header := theme.StyleHeader.Render("  History")
	names := make([]string, 0, len(m.history))
	for name, pts := range m.history {
		if len(pts) > 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, header, theme.StyleDimmed.Render("  no samples"))
	}

	const colName, colLast = 12, 12
	sparkW := width - colName - colLast - 6
	if sparkW < 10 {
		sparkW = 10
	}

	lines := []string{header}
	for _, name := range SeriesOrder(names) {
		pts := m.history[name]
		color := theme.SeriesColor(name)
		line := "  " +
			lipgloss.NewStyle().Width(colName).Foreground(color).Render(name) +
			lipgloss.NewStyle().Foreground(color).Render(Sparkline(pts, m.t0, m.t1, sparkW)) +
			" " +
			lipgloss.NewStyle().Width(colLast).Align(lipgloss.Right).Render(FormatValue(pts[len(pts)-1].Value))
		lines = append(lines, line)
	}
	lines = append(lines, theme.StyleDimmed.Render(fmt.Sprintf("  window %s → %s",
		m.t0.Format("15:04:05"), m.t1.Format("15:04:05"))))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) renderMetrics() string {
	if len(m.state.Metrics) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m.state.Metrics))
	for k := range m.state.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := []string{theme.StyleHeader.Render("  Metrics")}
	for _, k := range keys {
		lines = append(lines, "  "+theme.StyleLabel.Render(k)+theme.StyleValue.Render(FormatValue(m.state.Metrics[k])))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// FormatValue prints integers without a fraction and everything else with
// up to four significant decimals.
func FormatValue(v float64) string {
	if v == float64(int64(v)) && v < 1e15 && v > -1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', 4, 64)
}
