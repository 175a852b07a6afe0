package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ruler-racer/rulerdash/internal/protocol"
)

// Reducer owns one connection's State and History. Apply is the single
// writer; readers get deep copies so nothing is shared with presentation
// code.
type Reducer struct {
	mu      sync.RWMutex
	state   State
	history *History
	policy  Policy
	now     func() time.Time
	newID   func() string
}

// Option configures a Reducer.
type Option func(*Reducer)

// WithClock overrides the wall clock used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(r *Reducer) { r.now = now }
}

// WithPolicy sets the initial reducer policy.
func WithPolicy(p Policy) Option {
	return func(r *Reducer) { r.policy = p }
}

// WithHistoryLimit caps every history series at n points (0 = unbounded).
func WithHistoryLimit(n int) Option {
	return func(r *Reducer) { r.history.SetMaxPoints(n) }
}

// WithIDGenerator overrides how session IDs are minted on StartSearch.
func WithIDGenerator(fn func() string) Option {
	return func(r *Reducer) { r.newID = fn }
}

// NewReducer creates a reducer in the initial Idle state.
func NewReducer(opts ...Option) *Reducer {
	r := &Reducer{
		history: NewHistory(0),
		policy:  DefaultPolicy(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply stamps ev with the current time, reduces it into the state and
// applies the derived history effect. It never blocks on I/O.
func (r *Reducer) Apply(ev protocol.Event) Effect {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, eff := Reduce(r.state, ev, r.now(), r.policy)
	if eff.Reset {
		next.SessionID = r.newID()
	}
	r.state = next
	r.history.Apply(eff)
	return eff
}

// Snapshot returns a deep copy of the current state.
func (r *Reducer) Snapshot() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Clone()
}

// Series returns a copy of one history series, empty for unknown names.
func (r *Reducer) Series(name string) []Point {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.history.Series(name)
}

// SeriesNames lists the series recorded in the current session.
func (r *Reducer) SeriesNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.history.Names()
}

// History deep-copies every series.
func (r *Reducer) History() map[string][]Point {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.history.Snapshot()
}

// View returns state and history taken under the same lock, for consumers
// that need the two to agree (archive, export).
func (r *Reducer) View() (State, map[string][]Point) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Clone(), r.history.Snapshot()
}

// Domain computes the display window of the current state at now.
func (r *Reducer) Domain(now time.Time, fallback time.Duration) (time.Time, time.Time) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Domain(r.state, now, fallback)
}

// Policy returns the active policy.
func (r *Reducer) Policy() Policy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.policy
}

// SetPolicy swaps the policy for subsequent events.
func (r *Reducer) SetPolicy(p Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policy = p
}

// SetHistoryLimit changes the per-series cap, trimming existing series.
func (r *Reducer) SetHistoryLimit(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history.SetMaxPoints(n)
}
