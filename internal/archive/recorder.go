package archive

import (
	"context"
	"log/slog"
	"time"

	"github.com/ruler-racer/rulerdash/internal/metrics"
	"github.com/ruler-racer/rulerdash/internal/session"
)

// Recorder persists finished sessions from a queue so the ingest path
// never waits on disk.
type Recorder struct {
	store   *Store
	queue   chan Record
	now     func() time.Time
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewRecorder(store *Store, buffer int, m *metrics.Metrics, logger *slog.Logger) *Recorder {
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:   store,
		queue:   make(chan Record, buffer),
		now:     time.Now,
		metrics: m,
		logger:  logger,
	}
}

// Save implements ingest.Archiver. The inputs are expected to be copies
// already (Reducer.View).
func (r *Recorder) Save(st session.State, history map[string][]session.Point) {
	rec := Record{ID: st.SessionID, State: st, History: history, ArchivedAt: r.now()}
	select {
	case r.queue <- rec:
	default:
		r.metrics.RecordSinkDrop("archive")
		r.logger.Warn("archive queue full, session not saved", "session", st.SessionID)
	}
}

// Run drains the queue into the store until ctx is done.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case rec := <-r.queue:
					r.put(rec)
				default:
					return nil
				}
			}
		case rec := <-r.queue:
			r.put(rec)
		}
	}
}

func (r *Recorder) put(rec Record) {
	if err := r.store.Put(rec); err != nil {
		r.logger.Warn("archive write failed", "session", rec.ID, "error", err)
		return
	}
	r.logger.Debug("session archived", "session", rec.ID)
}
