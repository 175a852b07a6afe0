package session

import "sort"

// History is the per-series append-only log derived by the reducer. It is
// not safe for concurrent use on its own; Reducer serialises access.
type History struct {
	series    map[string][]Point
	maxPoints int // 0 keeps everything
}

// NewHistory creates an empty history. maxPoints > 0 caps every series,
// dropping its oldest points first.
func NewHistory(maxPoints int) *History {
	if maxPoints < 0 {
		maxPoints = 0
	}
	return &History{
		series:    make(map[string][]Point),
		maxPoints: maxPoints,
	}
}

// Append adds p to the named series, creating it on first use. Points are
// kept in arrival order.
func (h *History) Append(name string, p Point) {
	s := append(h.series[name], p)
	if h.maxPoints > 0 && len(s) > h.maxPoints {
		s = s[len(s)-h.maxPoints:]
	}
	h.series[name] = s
}

// Apply performs an Effect: an optional reset followed by its samples.
func (h *History) Apply(eff Effect) {
	if eff.Reset {
		h.Reset()
	}
	for _, smp := range eff.Samples {
		h.Append(smp.Series, smp.Point)
	}
}

// Reset drops every series.
func (h *History) Reset() {
	h.series = make(map[string][]Point)
}

// SetMaxPoints changes the cap and trims existing series to it.
func (h *History) SetMaxPoints(n int) {
	if n < 0 {
		n = 0
	}
	h.maxPoints = n
	if n == 0 {
		return
	}
	for name, s := range h.series {
		if len(s) > n {
			h.series[name] = s[len(s)-n:]
		}
	}
}

// Series returns a copy of the named series. Unknown names yield an empty,
// non-nil slice.
func (h *History) Series(name string) []Point {
	s := h.series[name]
	out := make([]Point, len(s))
	copy(out, s)
	return out
}

// Len reports how many points the named series holds.
func (h *History) Len(name string) int {
	return len(h.series[name])
}

// Names returns the series names in sorted order.
func (h *History) Names() []string {
	names := make([]string, 0, len(h.series))
	for name := range h.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot deep-copies every series.
func (h *History) Snapshot() map[string][]Point {
	out := make(map[string][]Point, len(h.series))
	for name := range h.series {
		out[name] = h.Series(name)
	}
	return out
}
