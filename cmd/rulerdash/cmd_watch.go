package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/ruler-racer/rulerdash/internal/api"
	"github.com/ruler-racer/rulerdash/internal/app"
	"github.com/ruler-racer/rulerdash/internal/client"
	"github.com/ruler-racer/rulerdash/internal/config"
	"github.com/ruler-racer/rulerdash/internal/ingest"
	"github.com/ruler-racer/rulerdash/internal/views/dashboard"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	watchHeadless  bool
	watchURL       string
	watchReconnect bool

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Follow the solver stream in the terminal UI (or headless)",
		RunE:  runWatch,
	}
)

// errStreamEnded stops the other watch goroutines once a non-reconnecting
// stream is over.
var errStreamEnded = errors.New("solver stream ended")

func init() {
	watchCmd.Flags().BoolVar(&watchHeadless, "headless", false, "Run without the terminal UI (logs to stderr)")
	watchCmd.Flags().StringVar(&watchURL, "url", "", "Override solver.url")
	watchCmd.Flags().BoolVar(&watchReconnect, "reconnect", false, "Override solver.reconnect")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime("rulerdash", !watchHeadless)
	if err != nil {
		return err
	}
	defer rt.Close()

	if watchURL != "" {
		rt.cfg.Solver.URL = watchURL
	}
	if cmd.Flags().Changed("reconnect") {
		rt.cfg.Solver.Reconnect = watchReconnect
	}

	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	pipeline, err := rt.newPipeline(gctx, g)
	if err != nil {
		cancel()
		g.Wait()
		return err
	}

	httpClient := client.NewHTTPClient(rt.cfg.HTTPBase())
	defaults := client.SolveDefaults{Timeout: rt.cfg.Solve.DefaultTimeout, Order: rt.cfg.Solve.DefaultOrder}
	opts := client.Options{Logger: rt.logger}
	policy := client.ReconnectPolicy{Enabled: rt.cfg.Solver.Reconnect, MaxDelay: rt.cfg.Solver.ReconnectMaxDelay}

	var connected atomic.Bool
	setConnected := func(up bool) {
		connected.Store(up)
		rt.metrics.SetConnected(up)
	}

	if rt.cfg.API.Enabled {
		gin.SetMode(gin.ReleaseMode)
		router := api.NewRouter(api.NewHandlers(api.Config{
			Reducer:        pipeline.Reducer(),
			Solver:         httpClient,
			SolveDefaults:  defaults,
			DomainFallback: rt.cfg.Session.DomainFallback,
			Gatherer:       rt.registry,
			Connected:      connected.Load,
			Logger:         rt.logger,
		}))
		g.Go(func() error {
			return api.Serve(gctx, rt.cfg.API.Addr, router, rt.logger)
		})
	}

	g.Go(func() error {
		err := config.Watch(gctx, configPath, rt.logger, func(next *config.Config) {
			rt.applyReload(pipeline, next)
		})
		if err != nil {
			rt.logger.Warn("config hot reload unavailable", "path", configPath, "error", err)
		}
		return nil
	})

	if watchHeadless {
		g.Go(func() error {
			return streamHeadless(gctx, rt, pipeline, opts, policy, setConnected)
		})
	} else {
		ws := client.NewWSClient(rt.cfg.Solver.URL, opts, policy)
		model := app.New(ws, httpClient, pipeline, app.Options{
			URL:            rt.cfg.Solver.URL,
			Defaults:       defaults,
			DomainFallback: rt.cfg.Session.DomainFallback,
			OnConnection:   setConnected,
		})
		prog := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(gctx))
		g.Go(func() error {
			defer cancel()
			defer ws.Close()
			_, err := prog.Run()
			if errors.Is(err, tea.ErrProgramKilled) {
				return nil
			}
			return err
		})
	}

	err = g.Wait()
	if errors.Is(err, errStreamEnded) {
		err = nil
	}
	if watchHeadless {
		printSummary(cmd, pipeline)
	}
	return err
}

func streamHeadless(ctx context.Context, rt *runtime, p *ingest.Pipeline, opts client.Options, policy client.ReconnectPolicy, setConnected func(bool)) error {
	rt.logger.Info("following solver", "url", rt.cfg.Solver.URL, "protocol", rt.cfg.Solver.Protocol, "reconnect", policy.Enabled)
	onState := func(up bool, err error) {
		setConnected(up)
		if up {
			rt.logger.Info("solver connected")
		} else if err != nil {
			rt.logger.Warn("solver connection lost", "error", err)
		}
	}
	handle := func(raw []byte) {
		res := p.Handle(raw)
		if res.Outcome == ingest.Applied {
			rt.logger.Debug("event", "kind", res.Event.Kind, "samples", len(res.Effect.Samples))
		}
	}

	if err := client.Stream(ctx, rt.cfg.Solver.URL, opts, policy, onState, handle); err != nil {
		return fmt.Errorf("solver stream: %w", err)
	}
	if ctx.Err() != nil {
		return nil
	}
	return errStreamEnded
}

func printSummary(cmd *cobra.Command, p *ingest.Pipeline) {
	st := p.Reducer().Snapshot()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "phase:   %s\n", st.Phase)
	fmt.Fprintf(out, "events:  %d\n", st.Events)
	if st.CurrentOrder != nil {
		fmt.Fprintf(out, "order:   %d\n", *st.CurrentOrder)
	}
	fmt.Fprintf(out, "result:  %s\n", dashboard.Result(st))
	if sol := st.DisplaySolution(); len(sol) > 0 {
		fmt.Fprintf(out, "ruler:   %v\n", sol)
	}
}
