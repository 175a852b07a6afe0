// Package sink mirrors history samples into InfluxDB off the reduction path.
package sink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/ruler-racer/rulerdash/internal/config"
	"github.com/ruler-racer/rulerdash/internal/metrics"
	"github.com/ruler-racer/rulerdash/internal/session"
)

const (
	defaultBuffer = 1024
	maxBatch      = 256
	writeTimeout  = 5 * time.Second
)

// PointWriter is the part of api.WriteAPIBlocking the writer needs.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

type batch struct {
	sessionID string
	samples   []session.Sample
}

// InfluxWriter queues samples and writes them from one goroutine. A full
// queue drops the batch and counts it; the reducer is never held up by
// InfluxDB.
type InfluxWriter struct {
	api         PointWriter
	measurement string
	queue       chan batch
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewInfluxWriter wraps api. buffer is the queue length in batches.
func NewInfluxWriter(api PointWriter, measurement string, buffer int, m *metrics.Metrics, logger *slog.Logger) *InfluxWriter {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InfluxWriter{
		api:         api,
		measurement: measurement,
		queue:       make(chan batch, buffer),
		metrics:     m,
		logger:      logger,
	}
}

// Open connects to the InfluxDB described by cfg and returns a writer plus
// a close function for the underlying client.
func Open(ctx context.Context, cfg config.InfluxConfig, m *metrics.Metrics, logger *slog.Logger) (*InfluxWriter, func(), error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	hctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if _, err := client.Health(hctx); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("influx %s: %w", cfg.URL, err)
	}
	w := NewInfluxWriter(client.WriteAPIBlocking(cfg.Org, cfg.Bucket), cfg.Measurement, cfg.Buffer, m, logger)
	return w, client.Close, nil
}

// Enqueue implements ingest.SampleSink.
func (w *InfluxWriter) Enqueue(sessionID string, samples []session.Sample) {
	if len(samples) == 0 {
		return
	}
	cp := make([]session.Sample, len(samples))
	copy(cp, samples)
	select {
	case w.queue <- batch{sessionID: sessionID, samples: cp}:
	default:
		w.metrics.RecordSinkDrop("influx")
	}
}

// Run writes queued samples until ctx is done, then flushes what is left.
func (w *InfluxWriter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.flush()
			return nil
		case b := <-w.queue:
			points := w.points(b)
			// Coalesce whatever else is already waiting.
			for len(points) < maxBatch {
				select {
				case more := <-w.queue:
					points = append(points, w.points(more)...)
					continue
				default:
				}
				break
			}
			w.write(ctx, points)
		}
	}
}

func (w *InfluxWriter) flush() {
	var points []*write.Point
	for {
		select {
		case b := <-w.queue:
			points = append(points, w.points(b)...)
		default:
			if len(points) > 0 {
				w.write(context.Background(), points)
			}
			return
		}
	}
}

func (w *InfluxWriter) write(ctx context.Context, points []*write.Point) {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := w.api.WritePoint(wctx, points...); err != nil {
		w.logger.Warn("influx write failed", "points", len(points), "error", err)
	}
}

func (w *InfluxWriter) points(b batch) []*write.Point {
	out := make([]*write.Point, 0, len(b.samples))
	for _, s := range b.samples {
		tags := map[string]string{"series": s.Series}
		if b.sessionID != "" {
			tags["session"] = b.sessionID
		}
		out = append(out, influxdb2.NewPoint(
			w.measurement,
			tags,
			map[string]interface{}{"value": s.Value},
			s.Time,
		))
	}
	return out
}
