// Package ruler draws a Golomb ruler as a one-line strip of marks.
package ruler

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/ruler-racer/rulerdash/internal/theme"
)

const (
	glyphMark = '┃'
	glyphTick = '─'
)

// Strip returns the unstyled strip for marks in at most width cells. Marks
// are scaled onto the available cells when the ruler is longer than that;
// two marks landing in one cell are drawn once.
func Strip(marks []int, width int) string {
	if len(marks) == 0 || width <= 0 {
		return ""
	}
	origin := marks[0]
	length := marks[len(marks)-1] - origin
	cells := length + 1
	if cells > width {
		cells = width
	}

	row := []rune(strings.Repeat(string(glyphTick), cells))
	for _, m := range marks {
		col := 0
		if length > 0 {
			col = (m - origin) * (cells - 1) / length
		}
		if col >= 0 && col < cells {
			row[col] = glyphMark
		}
	}
	return string(row)
}

// View renders the strip with a caption. label is "best" or "current".
func View(marks []int, label string, width int) string {
	if len(marks) == 0 {
		return theme.StyleDimmed.Render("  no ruler yet")
	}
	inner := width - 4
	if inner < 10 {
		inner = 10
	}
	strip := lipgloss.NewStyle().Foreground(theme.ColorMark).Render(Strip(marks, inner))
	caption := theme.StyleDimmed.Render(fmt.Sprintf("%s: %d marks, length %d  %v",
		label, len(marks), marks[len(marks)-1]-marks[0], marks))
	return lipgloss.JoinVertical(lipgloss.Left, "  "+strip, "  "+caption)
}
