package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ruler-racer/rulerdash/internal/client"
	"github.com/ruler-racer/rulerdash/internal/logging"
	"github.com/ruler-racer/rulerdash/internal/protocol"
	"github.com/ruler-racer/rulerdash/internal/solver"
)

func main() {
	host := flag.String("host", "127.0.0.1", "Listen address")
	port := flag.Int("port", 8090, "Listen port")
	proto := flag.String("protocol", "json", "Wire revision to emit (json or legacy)")
	interval := flag.Duration("interval", time.Second, "Periodic event interval")
	maxClients := flag.Int("max-clients", 16, "Maximum concurrent dashboards (0 = unlimited)")
	noHost := flag.Bool("no-host-metrics", false, "Leave cpu/memory readings out of Periodic events")
	level := flag.String("log-level", "info", "Log level")
	logDir := flag.String("log-dir", "", "Also write JSON logs to this directory")
	flag.Parse()

	lg := logging.New(logging.Config{
		Level:   logging.ParseLevel(*level),
		Dir:     *logDir,
		Service: "ruler-solverd",
	})
	defer lg.Close()
	logger := lg.Slog()

	rev := protocol.Revision(*proto)
	if rev != protocol.RevisionJSON && rev != protocol.RevisionLegacy {
		fmt.Fprintf(os.Stderr, "unsupported protocol %q\n", *proto)
		os.Exit(2)
	}

	var sampler solver.Sampler = solver.HostSampler{}
	if *noHost {
		sampler = solver.NopSampler{}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	server := solver.NewServer(ctx, solver.ServerConfig{
		Encoder:    protocol.NewEncoder(rev),
		Sampler:    sampler,
		Interval:   *interval,
		MaxClients: *maxClients,
		Defaults:   client.SolveDefaults{Timeout: client.DefaultSolveTimeout, Order: client.DefaultSolveOrder},
		Logger:     logger,
	})

	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	logger.Info("starting solver", "protocol", rev, "interval", *interval)
	if err := solver.ListenAndServe(ctx, *host, *port, mux, logger); err != nil {
		logger.Error("server error", "error", err)
		lg.Close()
		os.Exit(1)
	}
	server.Runner().Wait()
	logger.Info("shut down")
}
