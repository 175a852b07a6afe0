// Package protocol defines the solver event wire protocol: the closed set of
// event kinds, the typed Event value, and the decoders and encoders for the
// canonical JSON envelope and the legacy colon-delimited frames.
package protocol

import (
	"errors"
	"fmt"
)

// Kind identifies a solver progress event. The set is closed; anything else
// on the wire is reported as an unknown kind.
type Kind string

const (
	StartSearch Kind = "StartSearch"
	NewOrder    Kind = "NewOrder"
	ObjBound    Kind = "ObjBound"
	Periodic    Kind = "Periodic"
	Gap         Kind = "Gap"
	NewSolution Kind = "NewSolution"
	EndSearch   Kind = "EndSearch"
	Final       Kind = "Final"
)

// Kinds lists every known kind in protocol order.
var Kinds = []Kind{StartSearch, NewOrder, ObjBound, Periodic, Gap, NewSolution, EndSearch, Final}

var knownKinds = map[Kind]bool{
	StartSearch: true,
	NewOrder:    true,
	ObjBound:    true,
	Periodic:    true,
	Gap:         true,
	NewSolution: true,
	EndSearch:   true,
	Final:       true,
}

// Known reports whether k belongs to the closed kind set.
func (k Kind) Known() bool { return knownKinds[k] }

func (k Kind) String() string { return string(k) }

// Revision names a wire protocol revision.
type Revision string

const (
	// RevisionJSON is the canonical {"name","data"} envelope (revision 2).
	RevisionJSON Revision = "json"
	// RevisionLegacy is the "Name:data" text frame (revision 1).
	RevisionLegacy Revision = "legacy"
	// RevisionAuto sniffs each frame and picks one of the above.
	RevisionAuto Revision = "auto"
)

// Event is one decoded solver event. Which payload field is meaningful
// depends on Kind:
//
//	NewOrder    Int
//	ObjBound    Value
//	Gap         Value
//	Periodic    Metrics
//	NewSolution Marks (non-empty, objective is the last mark)
//	Final       Marks, or Outcome for the boolean form
type Event struct {
	Kind    Kind
	Int     int
	Value   float64
	Marks   []int
	Metrics map[string]float64
	Outcome *bool
}

// Objective returns the last mark of a solution event.
func (e Event) Objective() (float64, bool) {
	if len(e.Marks) == 0 {
		return 0, false
	}
	return float64(e.Marks[len(e.Marks)-1]), true
}

func (e Event) String() string {
	switch e.Kind {
	case NewOrder:
		return fmt.Sprintf("%s(%d)", e.Kind, e.Int)
	case ObjBound, Gap:
		return fmt.Sprintf("%s(%g)", e.Kind, e.Value)
	case Periodic:
		return fmt.Sprintf("%s(%d metrics)", e.Kind, len(e.Metrics))
	case NewSolution:
		return fmt.Sprintf("%s(%v)", e.Kind, e.Marks)
	case Final:
		if e.Outcome != nil {
			return fmt.Sprintf("%s(%t)", e.Kind, *e.Outcome)
		}
		return fmt.Sprintf("%s(%v)", e.Kind, e.Marks)
	default:
		return string(e.Kind)
	}
}

var (
	// ErrUnknownKind marks frames whose name is outside the kind set. They
	// are ignored by consumers, not treated as failures.
	ErrUnknownKind = errors.New("protocol: unknown event kind")
	// ErrMalformed marks frames that failed structural decoding.
	ErrMalformed = errors.New("protocol: malformed event")
)

// UnknownKindError carries the unrecognised event name.
type UnknownKindError struct {
	Name string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("protocol: unknown event kind %q", e.Name)
}

func (e *UnknownKindError) Is(target error) bool { return target == ErrUnknownKind }

// DecodeError reports a frame that could not be turned into an Event.
type DecodeError struct {
	Kind   Kind // empty when the envelope itself was unreadable
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "protocol: decode"
	if e.Kind != "" {
		msg += " " + string(e.Kind)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrMalformed }

func malformed(kind Kind, reason string, err error) error {
	return &DecodeError{Kind: kind, Reason: reason, Err: err}
}
