package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ruler-racer/rulerdash/internal/client"
	"github.com/ruler-racer/rulerdash/internal/export"
	"github.com/ruler-racer/rulerdash/internal/ingest"
	"github.com/ruler-racer/rulerdash/internal/protocol"
	"github.com/ruler-racer/rulerdash/internal/session"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// finalGrace is how long recording waits for Final after EndSearch.
const finalGrace = 2 * time.Second

var (
	exportOut     string
	exportSession string
	exportSeries  []string
	exportWidth   int
	exportHeight  int
	exportSolve   bool
	exportMaxWait time.Duration

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Render a session's history as a PNG chart",
		Long: `Without --session, records the next session from the live stream until
Final arrives (or shortly after EndSearch) and charts it. With --session,
charts an archived session; an unambiguous ID prefix is enough.`,
		RunE: runExport,
	}
)

func init() {
	f := exportCmd.Flags()
	f.StringVarP(&exportOut, "out", "o", "session.png", "Output PNG file")
	f.StringVar(&exportSession, "session", "", "Archived session ID (or prefix)")
	f.StringSliceVar(&exportSeries, "series", nil, "Series to draw (default: all)")
	f.IntVar(&exportWidth, "width", 0, "Image width in pixels")
	f.IntVar(&exportHeight, "height", 0, "Image height in pixels")
	f.BoolVar(&exportSolve, "solve", false, "Trigger a search once connected")
	f.StringVar(&solveTimeout, "timeout", "", "With --solve: search timeout in seconds")
	f.StringVar(&solveOrder, "order", "", "With --solve: number of marks")
	f.DurationVar(&exportMaxWait, "max-wait", 0, "Give up recording after this long (0 = no limit)")
}

func runExport(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime("rulerdash", false)
	if err != nil {
		return err
	}
	defer rt.Close()

	opts := export.Options{Width: exportWidth, Height: exportHeight, Series: exportSeries}

	var (
		st   session.State
		hist map[string][]session.Point
		now  time.Time
	)
	if exportSession != "" {
		store, err := openArchive(rt)
		if err != nil {
			return err
		}
		rec, err := store.Resolve(exportSession)
		store.Close()
		if err != nil {
			return err
		}
		st, hist, now = rec.State, rec.History, rec.ArchivedAt
	} else {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if exportMaxWait > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, exportMaxWait)
			defer cancel()
		}

		// Sinks run until recording is over.
		ctx, done := context.WithCancel(ctx)
		defer done()
		g, gctx := errgroup.WithContext(ctx)
		p, err := rt.newPipeline(gctx, g)
		if err != nil {
			done()
			g.Wait()
			return err
		}
		var onConnect func() error
		if exportSolve {
			onConnect = func() error {
				_, err := requestSolve(gctx, rt, solveTimeout, solveOrder)
				return err
			}
		}
		g.Go(func() error {
			defer done()
			return recordSession(gctx, rt.cfg.Solver.URL, client.Options{Logger: rt.logger}, p, onConnect)
		})
		if err := g.Wait(); err != nil {
			return err
		}
		st, hist = p.Reducer().View()
		now = time.Now()
	}

	f, err := os.Create(exportOut)
	if err != nil {
		return err
	}
	if err := export.RenderSession(f, st, hist, now, rt.cfg.Session.DomainFallback, opts); err != nil {
		f.Close()
		os.Remove(exportOut)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %s\n", exportOut, export.Title(st))
	return nil
}

// recordSession feeds the stream into p until one session is complete: a
// Final event, EndSearch plus a short grace period, the stream closing, or
// ctx ending. onConnect, if set, runs once after the connection is up.
func recordSession(ctx context.Context, url string, opts client.Options, p *ingest.Pipeline, onConnect func() error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		once       sync.Once
		connectErr error
		grace      *time.Timer
	)
	defer func() {
		if grace != nil {
			grace.Stop()
		}
	}()

	onState := func(up bool, _ error) {
		if !up || onConnect == nil {
			return
		}
		once.Do(func() {
			if connectErr = onConnect(); connectErr != nil {
				cancel()
			}
		})
	}
	handle := func(raw []byte) {
		res := p.Handle(raw)
		if res.Outcome != ingest.Applied {
			return
		}
		switch res.Event.Kind {
		case protocol.Final:
			cancel()
		case protocol.EndSearch:
			if grace == nil {
				grace = time.AfterFunc(finalGrace, cancel)
			}
		}
	}

	err := client.Stream(ctx, url, opts, client.ReconnectPolicy{}, onState, handle)
	if connectErr != nil {
		return connectErr
	}
	return err
}
