package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// Phase is the externally visible search activity indicator.
type Phase int

const (
	Idle Phase = iota
	Searching
)

var phaseNames = map[Phase]string{
	Idle:      "Idle",
	Searching: "Searching",
}

var phaseFromName = map[string]Phase{
	"Idle":      Idle,
	"Searching": Searching,
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return "unknown"
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, ok := phaseFromName[s]
	if !ok {
		return fmt.Errorf("session: unknown phase %q", s)
	}
	*p = v
	return nil
}

// Well-known history series. Periodic metrics add series named after the
// metric itself.
const (
	SeriesObjective = "objective"
	SeriesBound     = "bound"
	SeriesGap       = "gap"
	SeriesOrder     = "order"
)

// State is what the dashboard knows about the solver right now.
//
// Optional fields are pointers (or nil slices) so "unset" is distinct from
// a zero value. While Phase is Searching after a StartSearch, StartTime is
// set and EndTime is not.
type State struct {
	SessionID    string             `json:"sessionId,omitempty"`
	Phase        Phase              `json:"phase"`
	StartTime    *time.Time         `json:"startTime,omitempty"`
	EndTime      *time.Time         `json:"endTime,omitempty"`
	CurrentOrder *int               `json:"currentOrder,omitempty"`
	BestSolution []int              `json:"bestSolution,omitempty"`
	Intermediate []int              `json:"intermediateSolution,omitempty"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
	Bound        *float64           `json:"bound,omitempty"`
	Gap          *float64           `json:"gap,omitempty"`
	Outcome      *bool              `json:"outcome,omitempty"` // boolean Final revision
	Events       int                `json:"events"`
}

// Clone returns a deep copy of the State, duplicating pointer, slice and map
// fields so the copy can be mutated independently of the original.
func (s State) Clone() State {
	c := s
	c.StartTime = clonePtr(s.StartTime)
	c.EndTime = clonePtr(s.EndTime)
	c.CurrentOrder = clonePtr(s.CurrentOrder)
	c.Bound = clonePtr(s.Bound)
	c.Gap = clonePtr(s.Gap)
	c.Outcome = clonePtr(s.Outcome)
	c.BestSolution = cloneInts(s.BestSolution)
	c.Intermediate = cloneInts(s.Intermediate)
	if s.Metrics != nil {
		c.Metrics = make(map[string]float64, len(s.Metrics))
		for k, v := range s.Metrics {
			c.Metrics[k] = v
		}
	}
	return c
}

// DisplaySolution is the ruler worth drawing: the accepted solution once
// Final delivered one, otherwise the latest intermediate.
func (s State) DisplaySolution() []int {
	if s.BestSolution != nil {
		return s.BestSolution
	}
	return s.Intermediate
}

// Elapsed is the session's running time at now, or its total duration once
// it has ended. Zero when no session has started.
func (s State) Elapsed(now time.Time) time.Duration {
	if s.StartTime == nil {
		return 0
	}
	if s.Phase == Idle && s.EndTime != nil {
		return s.EndTime.Sub(*s.StartTime)
	}
	return now.Sub(*s.StartTime)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInts(s []int) []int {
	if s == nil {
		return nil
	}
	out := make([]int, len(s))
	copy(out, s)
	return out
}

func ptr[T any](v T) *T { return &v }
