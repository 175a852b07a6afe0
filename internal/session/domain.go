package session

import "time"

// DefaultDomainFallback is how far back the display window reaches before
// any session has started, so charts have something to render.
const DefaultDomainFallback = 100 * time.Second

// dotInterval is the tick of the animated "Searching..." indicator.
const dotInterval = 100 * time.Millisecond

// Domain computes the display time window [t0, t1] for st at now.
//
//	t0 = StartTime, or now-fallback when no session has started
//	t1 = now while Searching, else EndTime if set, else now
//
// t1 advances while searching, so callers recompute on every read.
func Domain(st State, now time.Time, fallback time.Duration) (t0, t1 time.Time) {
	if fallback <= 0 {
		fallback = DefaultDomainFallback
	}
	if st.StartTime != nil {
		t0 = *st.StartTime
	} else {
		t0 = now.Add(-fallback)
	}
	switch {
	case st.Phase == Searching:
		t1 = now
	case st.EndTime != nil:
		t1 = *st.EndTime
	default:
		t1 = now
	}
	return t0, t1
}

// Dots returns how many dots to draw after "Searching" for a given elapsed
// wall-clock time: one more every 100ms, wrapping at five.
func Dots(elapsed time.Duration) int {
	if elapsed < 0 {
		elapsed = -elapsed
	}
	return int((elapsed / dotInterval) % 5)
}
