package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// LegacyDecoder decodes revision 1 frames of the form "Name:data". The data
// part is always text and is parsed according to the kind:
//
//	NewOrder:7
//	ObjBound:34.5
//	Gap:0.25
//	NewSolution:0,1,4,9,11
//	Periodic:nodes=1200,depth=6
//	Final:0,1,4,9,11   or   Final:true
//	StartSearch        or   StartSearch:
type LegacyDecoder struct{}

func (LegacyDecoder) Decode(raw []byte) (Event, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return Event{}, malformed("", "empty frame", nil)
	}
	name, data, _ := strings.Cut(text, ":")
	name = strings.TrimSpace(name)
	data = strings.TrimSpace(data)
	if name == "" {
		return Event{}, malformed("", "missing event name", nil)
	}
	kind := Kind(name)
	if !kind.Known() {
		return Event{}, &UnknownKindError{Name: name}
	}

	ev := Event{Kind: kind}
	switch kind {
	case StartSearch, EndSearch:
	case NewOrder:
		n, err := strconv.Atoi(data)
		if err != nil {
			return Event{}, malformed(kind, "expected integer", err)
		}
		ev.Int = n
	case ObjBound, Gap:
		v, err := strconv.ParseFloat(data, 64)
		if err != nil {
			return Event{}, malformed(kind, "expected number", err)
		}
		ev.Value = v
	case Periodic:
		m, err := parseMetrics(data)
		if err != nil {
			return Event{}, malformed(kind, "expected metric pairs", err)
		}
		ev.Metrics = m
	case NewSolution:
		marks, err := parseMarks(data)
		if err != nil {
			return Event{}, malformed(kind, "expected mark sequence", err)
		}
		if len(marks) == 0 {
			return Event{}, malformed(kind, "empty mark sequence", nil)
		}
		ev.Marks = marks
	case Final:
		switch strings.ToLower(data) {
		case "true", "false":
			ok := strings.EqualFold(data, "true")
			ev.Outcome = &ok
		default:
			marks, err := parseMarks(data)
			if err != nil {
				return Event{}, malformed(kind, "expected mark sequence or boolean", err)
			}
			ev.Marks = marks
		}
	}
	return ev, nil
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
}

// parseMarks reads "0,1,4" or "[0, 1, 4]" or "0 1 4".
func parseMarks(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	fields := splitList(s)
	marks := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("mark %q: %w", f, err)
		}
		marks = append(marks, n)
	}
	return marks, nil
}

// parseMetrics reads "k=v,k=v". A JSON object is accepted too since some
// legacy solvers forwarded their metric map verbatim.
func parseMetrics(s string) (map[string]float64, error) {
	if strings.HasPrefix(s, "{") {
		m := map[string]float64{}
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			return nil, err
		}
		return m, nil
	}
	m := make(map[string]float64)
	for _, f := range splitList(s) {
		k, v, ok := strings.Cut(f, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("metric %q: want name=value", f)
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("metric %q: %w", k, err)
		}
		m[k] = n
	}
	return m, nil
}
