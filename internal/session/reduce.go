package session

import (
	"sort"
	"time"

	"github.com/ruler-racer/rulerdash/internal/protocol"
)

// Policy holds the reducer's configurable behaviours.
type Policy struct {
	// PeriodicForcesSearching makes any Periodic event set the phase to
	// Searching, even after EndSearch or before StartSearch. Solvers have
	// been seen to flush a last Periodic after their own end signal, so
	// turning this off keeps the phase Idle in that case.
	PeriodicForcesSearching bool
}

// DefaultPolicy matches the behaviour of the original dashboard.
func DefaultPolicy() Policy {
	return Policy{PeriodicForcesSearching: true}
}

// Point is one timestamped history value.
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Sample is a point destined for a named series.
type Sample struct {
	Series string
	Point
}

// Effect lists the history changes a transition derives. Reset means every
// series must be cleared before Samples are appended.
type Effect struct {
	Reset   bool
	Samples []Sample
}

// Reduce applies one event to st and returns the next state together with
// the history effect. It performs no I/O and never mutates st or ev: every
// pointer, slice and map in the result is freshly allocated where it
// changes.
//
// Events are applied regardless of phase. Progress events arriving before
// any StartSearch still update state, they simply belong to a session with
// no StartTime.
func Reduce(st State, ev protocol.Event, now time.Time, pol Policy) (State, Effect) {
	if !ev.Kind.Known() {
		return st, Effect{}
	}

	next := st
	next.Events++
	var eff Effect

	switch ev.Kind {
	case protocol.StartSearch:
		next = State{
			Phase:     Searching,
			StartTime: ptr(now),
			Events:    next.Events,
		}
		eff.Reset = true

	case protocol.NewOrder:
		next.CurrentOrder = ptr(ev.Int)
		eff.Samples = append(eff.Samples, sample(SeriesOrder, now, float64(ev.Int)))

	case protocol.ObjBound:
		next.Bound = ptr(ev.Value)
		eff.Samples = append(eff.Samples, sample(SeriesBound, now, ev.Value))

	case protocol.Gap:
		next.Gap = ptr(ev.Value)
		eff.Samples = append(eff.Samples, sample(SeriesGap, now, ev.Value))

	case protocol.Periodic:
		if pol.PeriodicForcesSearching {
			next.Phase = Searching
		}
		next.Metrics = make(map[string]float64, len(ev.Metrics))
		names := make([]string, 0, len(ev.Metrics))
		for k, v := range ev.Metrics {
			next.Metrics[k] = v
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			eff.Samples = append(eff.Samples, sample(k, now, ev.Metrics[k]))
		}

	case protocol.NewSolution:
		next.Intermediate = cloneInts(ev.Marks)
		if obj, ok := ev.Objective(); ok {
			eff.Samples = append(eff.Samples, sample(SeriesObjective, now, obj))
		}

	case protocol.EndSearch:
		next.Phase = Idle
		next.EndTime = ptr(now)

	case protocol.Final:
		if ev.Outcome != nil {
			next.Outcome = ptr(*ev.Outcome)
		} else {
			next.BestSolution = cloneInts(ev.Marks)
			if next.BestSolution == nil {
				next.BestSolution = []int{}
			}
		}
	}

	return next, eff
}

func sample(series string, t time.Time, v float64) Sample {
	return Sample{Series: series, Point: Point{Time: t, Value: v}}
}
