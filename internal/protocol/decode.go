package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Decoder turns one raw websocket frame into an Event.
//
// Decode returns an error matching ErrUnknownKind for frames naming a kind
// outside the closed set, and an error matching ErrMalformed (a *DecodeError)
// when the frame cannot be decoded.
type Decoder interface {
	Decode(raw []byte) (Event, error)
}

// NewDecoder returns the decoder for a protocol revision. An empty revision
// selects the canonical JSON envelope.
func NewDecoder(rev Revision) (Decoder, error) {
	switch rev {
	case RevisionJSON, "":
		return JSONDecoder{}, nil
	case RevisionLegacy:
		return LegacyDecoder{}, nil
	case RevisionAuto:
		return AutoDecoder{}, nil
	default:
		return nil, fmt.Errorf("protocol: unsupported revision %q", rev)
	}
}

// envelope is the canonical wire form.
type envelope struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

// JSONDecoder decodes the canonical {"name": ..., "data": ...} envelope.
type JSONDecoder struct{}

func (JSONDecoder) Decode(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, malformed("", "invalid envelope", err)
	}
	if env.Name == "" {
		return Event{}, malformed("", "missing event name", nil)
	}
	kind := Kind(env.Name)
	if !kind.Known() {
		return Event{}, &UnknownKindError{Name: env.Name}
	}

	ev := Event{Kind: kind}
	data := bytes.TrimSpace(env.Data)
	switch kind {
	case StartSearch, EndSearch:
		// Payload carries nothing the reducer uses.
	case NewOrder:
		if err := unmarshalRequired(data, &ev.Int); err != nil {
			return Event{}, malformed(kind, "expected integer", err)
		}
	case ObjBound, Gap:
		if err := unmarshalRequired(data, &ev.Value); err != nil {
			return Event{}, malformed(kind, "expected number", err)
		}
	case Periodic:
		metrics, err := decodeMetricsJSON(data)
		if err != nil {
			return Event{}, malformed(kind, "expected metric map", err)
		}
		ev.Metrics = metrics
	case NewSolution:
		if err := unmarshalRequired(data, &ev.Marks); err != nil {
			return Event{}, malformed(kind, "expected mark sequence", err)
		}
		if len(ev.Marks) == 0 {
			return Event{}, malformed(kind, "empty mark sequence", nil)
		}
	case Final:
		if err := decodeFinalJSON(data, &ev); err != nil {
			return Event{}, malformed(kind, "expected mark sequence or boolean", err)
		}
	}
	return ev, nil
}

func unmarshalRequired(data []byte, v any) error {
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("missing data")
	}
	return json.Unmarshal(data, v)
}

// decodeMetricsJSON reads a name to number map. A null value is rejected
// rather than read as zero.
func decodeMetricsJSON(data []byte) (map[string]float64, error) {
	var raw map[string]*float64
	if err := unmarshalRequired(data, &raw); err != nil {
		return nil, err
	}
	metrics := make(map[string]float64, len(raw))
	for name, v := range raw {
		if v == nil {
			return nil, fmt.Errorf("metric %q: not a number", name)
		}
		metrics[name] = *v
	}
	return metrics, nil
}

// decodeFinalJSON accepts both revisions of the Final payload: an accepted
// solution as a mark array, or a boolean outcome flag.
func decodeFinalJSON(data []byte, ev *Event) error {
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("missing data")
	}
	switch data[0] {
	case '[':
		var marks []int
		if err := json.Unmarshal(data, &marks); err != nil {
			return err
		}
		if marks == nil {
			marks = []int{}
		}
		ev.Marks = marks
		return nil
	case 't', 'f':
		var ok bool
		if err := json.Unmarshal(data, &ok); err != nil {
			return err
		}
		ev.Outcome = &ok
		return nil
	default:
		return fmt.Errorf("unexpected payload %.32q", data)
	}
}

// AutoDecoder picks the JSON decoder for frames that look like an object
// and the legacy decoder otherwise.
type AutoDecoder struct{}

func (AutoDecoder) Decode(raw []byte) (Event, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return JSONDecoder{}.Decode(trimmed)
	}
	return LegacyDecoder{}.Decode(trimmed)
}
