// Package ingest turns raw solver messages into reducer transitions and
// fans the results out to side-effect sinks.
package ingest

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ruler-racer/rulerdash/internal/metrics"
	"github.com/ruler-racer/rulerdash/internal/protocol"
	"github.com/ruler-racer/rulerdash/internal/session"
	"golang.org/x/time/rate"
)

// Outcome classifies what Handle did with one message.
type Outcome int

const (
	Applied Outcome = iota
	Ignored         // unknown event name
	Dropped         // malformed payload
)

var outcomeNames = map[Outcome]string{
	Applied: "applied",
	Ignored: "ignored",
	Dropped: "dropped",
}

func (o Outcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return "unknown"
}

// Result reports one Handle call.
type Result struct {
	Outcome Outcome
	Event   protocol.Event
	Effect  session.Effect
	Err     error
}

// SampleSink receives history samples after they are applied. Enqueue must
// not block.
type SampleSink interface {
	Enqueue(sessionID string, samples []session.Sample)
}

// Archiver receives a finished session. Save must not block.
type Archiver interface {
	Save(st session.State, history map[string][]session.Point)
}

// Pipeline owns the decode/apply path for one connection. Handle is not
// safe for concurrent use: messages must be handed over one at a time in
// delivery order.
type Pipeline struct {
	decoder protocol.Decoder
	reducer *session.Reducer
	metrics *metrics.Metrics
	logger  *slog.Logger

	limiter    *rate.Limiter
	suppressMu sync.Mutex
	suppressed int

	sinks     []SampleSink
	archivers []Archiver
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithDecodeLogLimit throttles malformed-message warnings to r per second
// with the given burst. Suppressed warnings are still counted.
func WithDecodeLogLimit(r rate.Limit, burst int) Option {
	return func(p *Pipeline) { p.limiter = rate.NewLimiter(r, burst) }
}

func WithSampleSink(s SampleSink) Option {
	return func(p *Pipeline) { p.sinks = append(p.sinks, s) }
}

func WithArchiver(a Archiver) Option {
	return func(p *Pipeline) { p.archivers = append(p.archivers, a) }
}

// New builds a pipeline feeding reducer.
func New(dec protocol.Decoder, reducer *session.Reducer, opts ...Option) *Pipeline {
	p := &Pipeline{
		decoder: dec,
		reducer: reducer,
		logger:  slog.Default(),
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Reducer exposes the state owner for read-side consumers.
func (p *Pipeline) Reducer() *session.Reducer { return p.reducer }

// SetPolicy swaps the reducer policy, e.g. after a config reload.
func (p *Pipeline) SetPolicy(pol session.Policy) { p.reducer.SetPolicy(pol) }

// Handle decodes and applies one raw message. Unknown event names are
// ignored; malformed payloads are dropped and logged. Neither changes the
// state, and neither is fatal to the stream.
func (p *Pipeline) Handle(raw []byte) Result {
	ev, err := p.decoder.Decode(raw)
	if err != nil {
		return p.reject(raw, err)
	}

	eff := p.reducer.Apply(ev)
	p.metrics.RecordEvent(string(ev.Kind))
	if eff.Reset {
		p.metrics.RecordSessionStart()
	}
	for _, s := range eff.Samples {
		p.metrics.RecordSample(s.Series)
	}

	if len(eff.Samples) > 0 || ev.Kind == protocol.EndSearch || ev.Kind == protocol.Final || eff.Reset {
		p.fanOut(ev, eff)
	} else {
		p.metrics.SetSearching(p.reducer.Snapshot().Phase == session.Searching)
	}

	return Result{Outcome: Applied, Event: ev, Effect: eff}
}

func (p *Pipeline) fanOut(ev protocol.Event, eff session.Effect) {
	st, hist := p.reducer.View()
	p.metrics.SetSearching(st.Phase == session.Searching)

	if len(eff.Samples) > 0 {
		for _, s := range p.sinks {
			s.Enqueue(st.SessionID, eff.Samples)
		}
	}

	if (ev.Kind == protocol.EndSearch || ev.Kind == protocol.Final) && st.SessionID != "" {
		for _, a := range p.archivers {
			a.Save(st, hist)
		}
	}
}

func (p *Pipeline) reject(raw []byte, err error) Result {
	var unknown *protocol.UnknownKindError
	if errors.As(err, &unknown) {
		p.metrics.RecordIgnored()
		p.logger.Debug("ignoring unknown event", "name", unknown.Name)
		return Result{Outcome: Ignored, Err: err}
	}

	var kind string
	var de *protocol.DecodeError
	if errors.As(err, &de) {
		kind = string(de.Kind)
	}
	p.metrics.RecordDecodeError(kind)

	if p.limiter.Allow() {
		p.suppressMu.Lock()
		n := p.suppressed
		p.suppressed = 0
		p.suppressMu.Unlock()
		p.logger.Warn("dropping malformed message",
			"kind", kind, "error", err, "bytes", len(raw), "suppressed", n)
	} else {
		p.suppressMu.Lock()
		p.suppressed++
		p.suppressMu.Unlock()
	}
	return Result{Outcome: Dropped, Err: err}
}
