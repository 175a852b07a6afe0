package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/ruler-racer/rulerdash/internal/archive"
	"github.com/ruler-racer/rulerdash/internal/config"
	"github.com/ruler-racer/rulerdash/internal/ingest"
	"github.com/ruler-racer/rulerdash/internal/logging"
	"github.com/ruler-racer/rulerdash/internal/metrics"
	"github.com/ruler-racer/rulerdash/internal/protocol"
	"github.com/ruler-racer/rulerdash/internal/session"
	"github.com/ruler-racer/rulerdash/internal/sink"
	"golang.org/x/sync/errgroup"
)

// runtime bundles what every subcommand needs: config, logger, metrics.
type runtime struct {
	cfg      *config.Config
	log      *logging.Logger
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

// loadRuntime reads the config and sets up logging. quiet keeps logs off
// the terminal (the TUI owns it); they then always go to a file.
func loadRuntime(service string, quiet bool) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	dir := cfg.Logging.Dir
	if quiet && dir == "" {
		dir = filepath.Join(os.TempDir(), "rulerdash")
	}
	lg := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Logging.Level),
		Dir:     dir,
		Service: service,
		JSON:    cfg.Logging.JSON,
		Quiet:   quiet,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &runtime{
		cfg:      cfg,
		log:      lg,
		logger:   lg.Slog(),
		registry: reg,
		metrics:  metrics.New(reg),
	}, nil
}

func (rt *runtime) Close() error {
	return rt.log.Close()
}

func (rt *runtime) policy(cfg *config.Config) session.Policy {
	return session.Policy{PeriodicForcesSearching: cfg.Session.PeriodicForcesSearching}
}

// newPipeline builds the decode/apply path and starts the optional sinks on
// g. An unreachable InfluxDB only disables that sink; an archive that
// cannot be opened is an error.
func (rt *runtime) newPipeline(ctx context.Context, g *errgroup.Group) (*ingest.Pipeline, error) {
	dec, err := protocol.NewDecoder(protocol.Revision(rt.cfg.Solver.Protocol))
	if err != nil {
		return nil, err
	}
	reducer := session.NewReducer(
		session.WithPolicy(rt.policy(rt.cfg)),
		session.WithHistoryLimit(rt.cfg.Session.HistoryMaxPoints),
	)
	opts := []ingest.Option{
		ingest.WithMetrics(rt.metrics),
		ingest.WithLogger(rt.logger),
	}

	if rt.cfg.Influx.Enabled {
		w, closeFn, err := sink.Open(ctx, rt.cfg.Influx, rt.metrics, rt.logger)
		if err != nil {
			rt.logger.Warn("influx sink disabled", "error", err)
		} else {
			opts = append(opts, ingest.WithSampleSink(w))
			g.Go(func() error {
				defer closeFn()
				return w.Run(ctx)
			})
			rt.logger.Info("mirroring history to influx", "url", rt.cfg.Influx.URL, "bucket", rt.cfg.Influx.Bucket)
		}
	}

	if rt.cfg.Archive.Enabled {
		store, err := archive.Open(archive.Options{Path: rt.cfg.Archive.Path, Logger: rt.logger})
		if err != nil {
			return nil, err
		}
		rec := archive.NewRecorder(store, 0, rt.metrics, rt.logger)
		opts = append(opts, ingest.WithArchiver(rec))
		g.Go(func() error {
			defer store.Close()
			return rec.Run(ctx)
		})
		rt.logger.Info("archiving sessions", "path", rt.cfg.Archive.Path)
	}

	return ingest.New(dec, reducer, opts...), nil
}

// applyReload pushes the reloadable parts of a new config into the live
// pipeline.
func (rt *runtime) applyReload(p *ingest.Pipeline, next *config.Config) {
	p.SetPolicy(rt.policy(next))
	p.Reducer().SetHistoryLimit(next.Session.HistoryMaxPoints)
	rt.logger.Info("config reloaded",
		"periodic_forces_searching", next.Session.PeriodicForcesSearching,
		"history_max_points", next.Session.HistoryMaxPoints)
}

func openArchive(rt *runtime) (*archive.Store, error) {
	if rt.cfg.Archive.Path == "" {
		return nil, fmt.Errorf("archive.path is not set")
	}
	return archive.Open(archive.Options{Path: rt.cfg.Archive.Path, Logger: rt.logger})
}
