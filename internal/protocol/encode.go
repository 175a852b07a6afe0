package protocol

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Encoder renders an Event as one wire frame. The development solver uses it
// to speak either protocol revision.
type Encoder interface {
	Encode(ev Event) ([]byte, error)
}

// NewEncoder returns the encoder for a revision. Auto is not an output
// format, so it falls back to the canonical JSON envelope.
func NewEncoder(rev Revision) Encoder {
	if rev == RevisionLegacy {
		return LegacyEncoder{}
	}
	return JSONEncoder{}
}

// JSONEncoder writes the canonical envelope.
type JSONEncoder struct{}

type outEnvelope struct {
	Name string `json:"name"`
	Data any    `json:"data"`
}

func (JSONEncoder) Encode(ev Event) ([]byte, error) {
	if !ev.Kind.Known() {
		return nil, &UnknownKindError{Name: string(ev.Kind)}
	}
	return json.Marshal(outEnvelope{Name: string(ev.Kind), Data: payload(ev)})
}

func payload(ev Event) any {
	switch ev.Kind {
	case NewOrder:
		return ev.Int
	case ObjBound, Gap:
		return ev.Value
	case Periodic:
		if ev.Metrics == nil {
			return map[string]float64{}
		}
		return ev.Metrics
	case NewSolution:
		return ev.Marks
	case Final:
		if ev.Outcome != nil {
			return *ev.Outcome
		}
		if ev.Marks == nil {
			return []int{}
		}
		return ev.Marks
	default:
		return nil
	}
}

// LegacyEncoder writes revision 1 "Name:data" frames.
type LegacyEncoder struct{}

func (LegacyEncoder) Encode(ev Event) ([]byte, error) {
	if !ev.Kind.Known() {
		return nil, &UnknownKindError{Name: string(ev.Kind)}
	}
	var data string
	switch ev.Kind {
	case NewOrder:
		data = strconv.Itoa(ev.Int)
	case ObjBound, Gap:
		data = strconv.FormatFloat(ev.Value, 'g', -1, 64)
	case Periodic:
		keys := make([]string, 0, len(ev.Metrics))
		for k := range ev.Metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+strconv.FormatFloat(ev.Metrics[k], 'g', -1, 64))
		}
		data = strings.Join(pairs, ",")
	case NewSolution:
		data = joinMarks(ev.Marks)
	case Final:
		if ev.Outcome != nil {
			data = strconv.FormatBool(*ev.Outcome)
		} else {
			data = joinMarks(ev.Marks)
		}
	}
	return []byte(fmt.Sprintf("%s:%s", ev.Kind, data)), nil
}

func joinMarks(marks []int) string {
	parts := make([]string, len(marks))
	for i, m := range marks {
		parts[i] = strconv.Itoa(m)
	}
	return strings.Join(parts, ",")
}
