package session

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/ruler-racer/rulerdash/internal/protocol"
)

// fakeClock hands out strictly increasing times so history ordering is
// observable.
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), step: 250 * time.Millisecond}
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func newTestReducer(opts ...Option) (*Reducer, *fakeClock) {
	clk := newFakeClock()
	n := 0
	opts = append([]Option{
		WithClock(clk.Now),
		WithIDGenerator(func() string {
			n++
			return "session-" + string(rune('0'+n))
		}),
	}, opts...)
	return NewReducer(opts...), clk
}

func bound(v float64) protocol.Event { return protocol.Event{Kind: protocol.ObjBound, Value: v} }

func values(points []Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}

func TestReduceIsPure(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	order := 4
	st := State{
		Phase:        Searching,
		StartTime:    &start,
		CurrentOrder: &order,
		Intermediate: []int{0, 1, 3},
		Metrics:      map[string]float64{"depth": 2},
	}
	before := st.Clone()

	ev := protocol.Event{Kind: protocol.NewSolution, Marks: []int{0, 1, 4, 6}}
	next, _ := Reduce(st, ev, start.Add(time.Second), DefaultPolicy())

	if !reflect.DeepEqual(st, before) {
		t.Errorf("Reduce mutated its input: %+v", st)
	}
	ev.Marks[3] = 99
	if next.Intermediate[3] != 6 {
		t.Error("Reduce aliased the event's mark slice")
	}

	next, _ = Reduce(next, protocol.Event{Kind: protocol.Periodic, Metrics: map[string]float64{"depth": 9}}, start, DefaultPolicy())
	if st.Metrics["depth"] != 2 {
		t.Error("Periodic mutated the previous metrics map")
	}
	if next.Metrics["depth"] != 9 {
		t.Errorf("metrics depth = %v, want 9", next.Metrics["depth"])
	}
}

func TestStartSearchResetsEverything(t *testing.T) {
	r, _ := newTestReducer()
	yes := true
	for _, ev := range []protocol.Event{
		{Kind: protocol.StartSearch},
		{Kind: protocol.NewOrder, Int: 5},
		bound(7),
		{Kind: protocol.Gap, Value: 0.4},
		{Kind: protocol.Periodic, Metrics: map[string]float64{"nodes": 10}},
		{Kind: protocol.NewSolution, Marks: []int{0, 1, 4, 9, 11}},
		{Kind: protocol.EndSearch},
		{Kind: protocol.Final, Marks: []int{0, 1, 4, 9, 11}},
		{Kind: protocol.Final, Outcome: &yes},
	} {
		r.Apply(ev)
	}
	if len(r.SeriesNames()) == 0 {
		t.Fatal("expected histories before reset")
	}

	eff := r.Apply(protocol.Event{Kind: protocol.StartSearch})
	if !eff.Reset {
		t.Error("StartSearch effect should request a reset")
	}

	st := r.Snapshot()
	if st.Phase != Searching {
		t.Errorf("phase = %v, want Searching", st.Phase)
	}
	if st.StartTime == nil || st.EndTime != nil {
		t.Errorf("want StartTime set and EndTime unset, got %v / %v", st.StartTime, st.EndTime)
	}
	if st.BestSolution != nil || st.Intermediate != nil || st.CurrentOrder != nil {
		t.Errorf("transient fields not reset: %+v", st)
	}
	if st.Bound != nil || st.Gap != nil || st.Outcome != nil || st.Metrics != nil {
		t.Errorf("derived fields not reset: %+v", st)
	}
	if names := r.SeriesNames(); len(names) != 0 {
		t.Errorf("histories not cleared: %v", names)
	}
	if st.SessionID != "session-2" {
		t.Errorf("SessionID = %q, want a fresh id", st.SessionID)
	}
}

func TestHistoriesAfterStartAreNotOlderThanStart(t *testing.T) {
	r, _ := newTestReducer()
	r.Apply(bound(1))
	r.Apply(protocol.Event{Kind: protocol.Periodic, Metrics: map[string]float64{"depth": 3}})
	r.Apply(protocol.Event{Kind: protocol.StartSearch})
	r.Apply(bound(2))
	r.Apply(protocol.Event{Kind: protocol.Gap, Value: 0.5})
	r.Apply(protocol.Event{Kind: protocol.NewSolution, Marks: []int{0, 1, 3}})
	r.Apply(protocol.Event{Kind: protocol.Periodic, Metrics: map[string]float64{"depth": 4, "nodes": 100}})

	st := r.Snapshot()
	for name, points := range r.History() {
		for _, p := range points {
			if p.Time.Before(*st.StartTime) {
				t.Errorf("series %s has point at %v before start %v", name, p.Time, *st.StartTime)
			}
		}
	}
	if got := values(r.Series(SeriesBound)); !reflect.DeepEqual(got, []float64{2}) {
		t.Errorf("bound history = %v, want [2]", got)
	}
}

func TestEndSearchWhenIdleOverwritesEndTime(t *testing.T) {
	r, _ := newTestReducer()
	r.Apply(protocol.Event{Kind: protocol.EndSearch})
	first := r.Snapshot()
	if first.Phase != Idle || first.EndTime == nil {
		t.Fatalf("want Idle with EndTime, got %+v", first)
	}

	r.Apply(protocol.Event{Kind: protocol.EndSearch})
	second := r.Snapshot()
	if second.Phase != Idle {
		t.Errorf("phase = %v, want Idle", second.Phase)
	}
	if !second.EndTime.After(*first.EndTime) {
		t.Errorf("EndTime not overwritten: %v then %v", first.EndTime, second.EndTime)
	}
}

func TestNewSolutionObjectiveIsLastMark(t *testing.T) {
	r, _ := newTestReducer()
	r.Apply(protocol.Event{Kind: protocol.NewSolution, Marks: []int{0, 3, 11}})

	obj := r.Series(SeriesObjective)
	if len(obj) != 1 || obj[0].Value != 11 {
		t.Errorf("objective history = %v, want one point of 11", obj)
	}
	if st := r.Snapshot(); !reflect.DeepEqual(st.Intermediate, []int{0, 3, 11}) {
		t.Errorf("intermediate = %v, want [0 3 11]", st.Intermediate)
	}
}

func TestPeriodicCreatesOneSeriesPerMetric(t *testing.T) {
	r, _ := newTestReducer()
	r.Apply(protocol.Event{Kind: protocol.Periodic, Metrics: map[string]float64{"cpuLoad": 0.5, "depth": 12}})

	for name, want := range map[string]float64{"cpuLoad": 0.5, "depth": 12} {
		s := r.Series(name)
		if len(s) != 1 {
			t.Errorf("series %s has %d points, want 1", name, len(s))
			continue
		}
		if s[0].Value != want {
			t.Errorf("series %s value = %v, want %v", name, s[0].Value, want)
		}
	}
	if got := r.SeriesNames(); !reflect.DeepEqual(got, []string{"cpuLoad", "depth"}) {
		t.Errorf("SeriesNames() = %v", got)
	}
}

func TestPeriodicPhasePolicy(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		want   Phase
	}{
		{"forces searching by default", DefaultPolicy(), Searching},
		{"keeps idle when disabled", Policy{PeriodicForcesSearching: false}, Idle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestReducer(WithPolicy(tt.policy))
			r.Apply(protocol.Event{Kind: protocol.StartSearch})
			r.Apply(protocol.Event{Kind: protocol.EndSearch})
			r.Apply(protocol.Event{Kind: protocol.Periodic, Metrics: map[string]float64{"nodes": 1}})

			st := r.Snapshot()
			if st.Phase != tt.want {
				t.Errorf("phase = %v, want %v", st.Phase, tt.want)
			}
			if st.Metrics["nodes"] != 1 {
				t.Error("metrics snapshot should update under either policy")
			}
		})
	}
}

func TestFinalForms(t *testing.T) {
	r, _ := newTestReducer()
	r.Apply(protocol.Event{Kind: protocol.Final, Marks: []int{0, 1, 4, 6}})
	if st := r.Snapshot(); !reflect.DeepEqual(st.BestSolution, []int{0, 1, 4, 6}) {
		t.Errorf("BestSolution = %v", st.BestSolution)
	}

	no := false
	r.Apply(protocol.Event{Kind: protocol.Final, Outcome: &no})
	st := r.Snapshot()
	if st.Outcome == nil || *st.Outcome {
		t.Errorf("Outcome = %v, want false", st.Outcome)
	}
	if !reflect.DeepEqual(st.BestSolution, []int{0, 1, 4, 6}) {
		t.Error("boolean Final must not touch BestSolution")
	}
}

func TestUnknownKindLeavesStateUnchanged(t *testing.T) {
	r, _ := newTestReducer()
	r.Apply(protocol.Event{Kind: protocol.StartSearch})
	r.Apply(bound(3))
	r.Apply(protocol.Event{Kind: protocol.Periodic, Metrics: map[string]float64{"depth": 1}})

	beforeState, beforeHist := r.View()
	beforeJSON, _ := json.Marshal(beforeState)

	eff := r.Apply(protocol.Event{Kind: "UnknownEvent", Value: 42})
	if eff.Reset || len(eff.Samples) != 0 {
		t.Errorf("unknown kind produced an effect: %+v", eff)
	}

	afterState, afterHist := r.View()
	afterJSON, _ := json.Marshal(afterState)
	if string(beforeJSON) != string(afterJSON) {
		t.Errorf("state changed:\n%s\n%s", beforeJSON, afterJSON)
	}
	if !reflect.DeepEqual(beforeHist, afterHist) {
		t.Error("history changed on unknown kind")
	}
}

func TestProgressBeforeStartIsApplied(t *testing.T) {
	r, _ := newTestReducer()
	r.Apply(protocol.Event{Kind: protocol.NewOrder, Int: 6})
	r.Apply(bound(4))

	st := r.Snapshot()
	if st.StartTime != nil {
		t.Error("degenerate session should have no StartTime")
	}
	if st.CurrentOrder == nil || *st.CurrentOrder != 6 {
		t.Errorf("CurrentOrder = %v, want 6", st.CurrentOrder)
	}
	if st.Phase != Idle {
		t.Errorf("phase = %v, want Idle", st.Phase)
	}
	if len(r.Series(SeriesOrder)) != 1 || len(r.Series(SeriesBound)) != 1 {
		t.Error("progress events before StartSearch should still be recorded")
	}
}

func TestEndToEndBoundScenario(t *testing.T) {
	r, _ := newTestReducer()
	r.Apply(protocol.Event{Kind: protocol.StartSearch})
	r.Apply(bound(10))
	r.Apply(bound(12))
	r.Apply(protocol.Event{Kind: protocol.EndSearch})

	b := r.Series(SeriesBound)
	if got := values(b); !reflect.DeepEqual(got, []float64{10, 12}) {
		t.Errorf("bound values = %v, want [10 12]", got)
	}
	for i := 1; i < len(b); i++ {
		if b[i].Time.Before(b[i-1].Time) {
			t.Error("bound timestamps not monotonic")
		}
	}

	st := r.Snapshot()
	if st.Phase != Idle || st.EndTime == nil {
		t.Errorf("want Idle with EndTime, got phase=%v end=%v", st.Phase, st.EndTime)
	}
	if st.Events != 4 {
		t.Errorf("Events = %d, want 4", st.Events)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	r, _ := newTestReducer()
	r.Apply(protocol.Event{Kind: protocol.NewSolution, Marks: []int{0, 1, 3}})
	r.Apply(protocol.Event{Kind: protocol.Periodic, Metrics: map[string]float64{"depth": 1}})

	st := r.Snapshot()
	st.Intermediate[0] = 100
	st.Metrics["depth"] = 100

	series := r.Series(SeriesObjective)
	series[0].Value = 100

	again := r.Snapshot()
	if again.Intermediate[0] != 0 || again.Metrics["depth"] != 1 {
		t.Error("Snapshot leaked internal state")
	}
	if r.Series(SeriesObjective)[0].Value != 3 {
		t.Error("Series leaked internal history")
	}
}

func TestPhaseJSON(t *testing.T) {
	data, err := json.Marshal(Searching)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"Searching"` {
		t.Errorf("Marshal(Searching) = %s", data)
	}
	var p Phase
	if err := json.Unmarshal([]byte(`"Searching"`), &p); err != nil || p != Searching {
		t.Errorf("Unmarshal = %v, %v", p, err)
	}
}

func TestPhaseJSONRejectsUnknownName(t *testing.T) {
	p := Searching
	if err := json.Unmarshal([]byte(`"Paused"`), &p); err == nil {
		t.Fatal("expected error for unknown phase name")
	}
	if p != Searching {
		t.Errorf("phase changed to %v on failed unmarshal", p)
	}

	var st State
	if err := json.Unmarshal([]byte(`{"phase":"searching","events":3}`), &st); err == nil {
		t.Error("expected error for state with unknown phase")
	}
}
