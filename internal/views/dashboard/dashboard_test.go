package dashboard

import (
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ruler-racer/rulerdash/internal/session"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func at(sec float64, v float64) session.Point {
	return session.Point{Time: t0.Add(time.Duration(sec * float64(time.Second))), Value: v}
}

func TestSparkline(t *testing.T) {
	t1 := t0.Add(10 * time.Second)
	tests := []struct {
		name   string
		points []session.Point
		width  int
		want   string
	}{
		{"rising", []session.Point{at(0, 0), at(5, 5), at(10, 10)}, 3, "▁▅█"},
		{"carries forward", []session.Point{at(0, 0), at(9, 10)}, 5, "▁▁▁▁█"},
		{"blank before first", []session.Point{at(6, 1)}, 5, "   ▅▅"},
		{"outside window", []session.Point{at(-1, 100), at(20, 100)}, 4, "    "},
		{"nan skipped", []session.Point{at(0, math.NaN()), at(5, 2)}, 2, " ▅"},
		{"zero width", []session.Point{at(0, 1)}, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sparkline(tt.points, t0, t1, tt.width); got != tt.want {
				t.Errorf("Sparkline = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSparklineEmptyWindow(t *testing.T) {
	got := Sparkline([]session.Point{at(0, 3)}, t0, t0, 4)
	if got != "   ▅" {
		t.Errorf("zero-width window = %q", got)
	}
}

func TestSeriesOrder(t *testing.T) {
	got := SeriesOrder([]string{"nodes", "gap", "cpuLoad", "objective", "order", "bound"})
	want := []string{"objective", "bound", "gap", "order", "cpuLoad", "nodes"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SeriesOrder = %v, want %v", got, want)
	}
}

func TestResult(t *testing.T) {
	yes, no := true, false
	tests := []struct {
		st   session.State
		want string
	}{
		{session.State{}, "-"},
		{session.State{BestSolution: []int{0, 1, 4, 6}}, "length 6"},
		{session.State{BestSolution: []int{}}, "empty"},
		{session.State{Outcome: &yes}, "solved"},
		{session.State{Outcome: &no}, "no solution"},
	}
	for _, tt := range tests {
		if got := Result(tt.st); got != tt.want {
			t.Errorf("Result(%+v) = %q, want %q", tt.st, got, tt.want)
		}
	}
}

func TestFormatValue(t *testing.T) {
	tests := map[float64]string{
		11:      "11",
		0:       "0",
		0.25:    "0.25",
		1.23456: "1.235",
		-3:      "-3",
	}
	for v, want := range tests {
		if got := FormatValue(v); got != want {
			t.Errorf("FormatValue(%v) = %q, want %q", v, got, want)
		}
	}
}

func TestView(t *testing.T) {
	order := 5
	bound := 10.0
	gap := 2.0 / 12
	st := session.State{
		Phase:        session.Searching,
		CurrentOrder: &order,
		Bound:        &bound,
		Gap:          &gap,
		Intermediate: []int{0, 1, 3, 7, 12},
		Metrics:      map[string]float64{"nodes": 4096, "depth": 3},
	}
	hist := map[string][]session.Point{
		session.SeriesObjective: {at(1, 12)},
		session.SeriesBound:     {at(1, 10)},
		"nodes":                 {at(2, 4096)},
	}

	m := New()
	m.Width = 100
	m.SetView(st, hist, t0, t0.Add(5*time.Second))
	v := m.View()

	for _, want := range []string{
		"Order: 5", "Bound: 10", "Gap: 16.7%", "Result: -",
		"current: 5 marks, length 12",
		"objective", "bound", "nodes", "4096",
		"Metrics", "depth",
	} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if strings.Index(v, "objective") > strings.Index(v, "nodes") {
		t.Error("objective should be listed before metric series")
	}
}

func TestViewEmpty(t *testing.T) {
	m := New()
	v := m.View()
	for _, want := range []string{"Order: -", "no ruler yet", "no samples"} {
		if !strings.Contains(v, want) {
			t.Errorf("empty view missing %q", want)
		}
	}
}
