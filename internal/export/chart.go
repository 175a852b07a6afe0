// Package export renders session histories as PNG charts.
package export

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/ruler-racer/rulerdash/internal/session"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoData is returned when none of the requested series has a point
// inside the window.
var ErrNoData = errors.New("export: no data to chart")

// Series drawn on the secondary axis because they live on a 0..1 scale.
var secondary = map[string]bool{session.SeriesGap: true}

var palette = []drawing.Color{
	chart.ColorBlue,
	chart.ColorRed,
	chart.ColorGreen,
	chart.ColorOrange,
	chart.ColorCyan,
	chart.ColorAlternateGray,
}

type Options struct {
	Title  string
	Width  int
	Height int
	// Series restricts the chart to these names; empty draws every series.
	Series []string
}

// RenderPNG draws the history between t0 and t1 (normally the session
// display domain) and writes the PNG to w.
func RenderPNG(w io.Writer, history map[string][]session.Point, t0, t1 time.Time, opts Options) error {
	if !t1.After(t0) {
		t1 = t0.Add(time.Second)
	}
	names := opts.Series
	if len(names) == 0 {
		for name := range history {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	var series []chart.Series
	primary := newBounds()
	second := newBounds()
	for i, name := range names {
		xs, ys := window(history[name], t0, t1)
		if len(xs) == 0 {
			continue
		}
		// go-chart needs two X values per series.
		if len(xs) == 1 {
			xs = append(xs, xs[0].Add(time.Millisecond))
			ys = append(ys, ys[0])
		}

		col := palette[i%len(palette)]
		ts := chart.TimeSeries{
			Name:    name,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: col,
				StrokeWidth: 2,
				DotColor:    col,
				DotWidth:    2,
			},
		}
		if secondary[name] {
			ts.YAxis = chart.YAxisSecondary
			second.add(ys)
		} else {
			primary.add(ys)
		}
		series = append(series, ts)
	}
	if len(series) == 0 {
		return ErrNoData
	}

	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = 1024
	}
	if height <= 0 {
		height = 480
	}

	ch := chart.Chart{
		Title:      opts.Title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("15:04:05"),
			Range: &chart.ContinuousRange{
				Min: chart.TimeToFloat64(t0),
				Max: chart.TimeToFloat64(t1),
			},
		},
		YAxis:  chart.YAxis{Range: primary.rangeOr(0, 1)},
		Series: series,
	}
	if !second.empty() {
		ch.YAxisSecondary = chart.YAxis{Name: "gap", Range: second.rangeOr(0, 1)}
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("export: render: %w", err)
	}
	return nil
}

func window(points []session.Point, t0, t1 time.Time) ([]time.Time, []float64) {
	var xs []time.Time
	var ys []float64
	for _, p := range points {
		if p.Time.Before(t0) || p.Time.After(t1) {
			continue
		}
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			continue
		}
		xs = append(xs, p.Time)
		ys = append(ys, p.Value)
	}
	return xs, ys
}

type bounds struct {
	min, max float64
	n        int
}

func newBounds() *bounds {
	return &bounds{min: math.Inf(1), max: math.Inf(-1)}
}

func (b *bounds) add(vs []float64) {
	for _, v := range vs {
		b.min = math.Min(b.min, v)
		b.max = math.Max(b.max, v)
		b.n++
	}
}

func (b *bounds) empty() bool { return b.n == 0 }

// rangeOr pads the observed range by 5% and widens a flat range so the
// axis never collapses to zero height.
func (b *bounds) rangeOr(lo, hi float64) *chart.ContinuousRange {
	if b.empty() {
		return &chart.ContinuousRange{Min: lo, Max: hi}
	}
	min, max := b.min, b.max
	if min == max {
		pad := math.Max(math.Abs(min)*0.1, 1)
		return &chart.ContinuousRange{Min: min - pad, Max: max + pad}
	}
	pad := (max - min) * 0.05
	return &chart.ContinuousRange{Min: min - pad, Max: max + pad}
}
