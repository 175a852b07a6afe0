package dashboard

import (
	"math"
	"strings"
	"time"

	"github.com/ruler-racer/rulerdash/internal/session"
)

var levels = []rune("▁▂▃▄▅▆▇█")

// Sparkline draws points over the window [t0, t1] in width cells. Each cell
// shows the last value that falls into it; cells after a value and before
// the next one repeat it. Cells before the first point are blank. Values
// are scaled between the window's minimum and maximum.
func Sparkline(points []session.Point, t0, t1 time.Time, width int) string {
	if width <= 0 {
		return ""
	}
	span := t1.Sub(t0)

	cells := make([]float64, width)
	set := make([]bool, width)
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		if p.Time.Before(t0) || p.Time.After(t1) || math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			continue
		}
		col := width - 1
		if span > 0 {
			col = int(float64(p.Time.Sub(t0)) / float64(span) * float64(width))
			if col >= width {
				col = width - 1
			}
		}
		cells[col] = p.Value
		set[col] = true
		lo = math.Min(lo, p.Value)
		hi = math.Max(hi, p.Value)
	}

	var b strings.Builder
	have := false
	var last float64
	for i := range cells {
		if set[i] {
			last, have = cells[i], true
		}
		if !have {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(level(last, lo, hi))
	}
	return b.String()
}

func level(v, lo, hi float64) rune {
	if hi <= lo {
		return levels[len(levels)/2]
	}
	idx := int((v-lo)/(hi-lo)*float64(len(levels)-1) + 0.5)
	return levels[idx]
}
