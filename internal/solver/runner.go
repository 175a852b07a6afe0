package solver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ruler-racer/rulerdash/internal/protocol"
)

// MaxOrder caps requested rulers; beyond it a search would not finish in
// any reasonable timeout.
const MaxOrder = 16

var (
	ErrBusy         = errors.New("solver: a search is already running")
	ErrInvalidOrder = fmt.Errorf("solver: order must be between 2 and %d", MaxOrder)
)

// EmitFunc publishes one event. It must be safe for concurrent use.
type EmitFunc func(protocol.Event)

// Runner executes at most one search at a time and narrates it as events:
// StartSearch, NewOrder, NewSolution/ObjBound/Gap as the search proceeds,
// Periodic every interval, then EndSearch and Final.
type Runner struct {
	emit     EmitFunc
	sampler  Sampler
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

func NewRunner(emit EmitFunc, sampler Sampler, interval time.Duration, logger *slog.Logger) *Runner {
	if sampler == nil {
		sampler = NopSampler{}
	}
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{emit: emit, sampler: sampler, interval: interval, logger: logger}
}

// Running reports whether a search is in progress.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Start launches a search for an order-mark ruler bounded by timeout. It
// returns immediately; ErrBusy if one is already running.
func (r *Runner) Start(ctx context.Context, order int, timeout time.Duration) error {
	if order < 2 || order > MaxOrder {
		return ErrInvalidOrder
	}
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrBusy
	}
	r.running = true
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	go func() {
		defer func() {
			r.mu.Lock()
			r.running = false
			r.mu.Unlock()
			close(done)
		}()
		r.run(ctx, order, timeout)
	}()
	return nil
}

// Wait blocks until the current search (if any) finishes.
func (r *Runner) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (r *Runner) run(parent context.Context, order int, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	started := time.Now()
	r.logger.Info("search started", "order", order, "timeout", timeout)
	r.emit(protocol.Event{Kind: protocol.StartSearch})
	r.emit(protocol.Event{Kind: protocol.NewOrder, Int: order})

	var stats Stats
	tickCtx, stopTicks := context.WithCancel(ctx)
	var ticks sync.WaitGroup
	ticks.Add(1)
	go func() {
		defer ticks.Done()
		r.periodic(tickCtx, &stats)
	}()

	res := Search(ctx, order, eventProgress{emit: r.emit}, &stats)

	stopTicks()
	ticks.Wait()

	r.emit(protocol.Event{Kind: protocol.EndSearch})
	r.emit(protocol.Event{Kind: protocol.Final, Marks: res.Marks})
	r.logger.Info("search finished",
		"order", order, "marks", res.Marks, "optimal", res.Optimal,
		"nodes", stats.Nodes.Load(), "elapsed", time.Since(started).Round(time.Millisecond))
}

func (r *Runner) periodic(ctx context.Context, stats *Stats) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := map[string]float64{
				"nodes": float64(stats.Nodes.Load()),
				"depth": float64(stats.Depth.Load()),
			}
			for k, v := range r.sampler.Sample(ctx) {
				m[k] = v
			}
			r.emit(protocol.Event{Kind: protocol.Periodic, Metrics: m})
		}
	}
}

// eventProgress narrates search milestones as protocol events.
type eventProgress struct {
	emit EmitFunc
}

func (p eventProgress) Solution(marks []int) {
	cp := make([]int, len(marks))
	copy(cp, marks)
	p.emit(protocol.Event{Kind: protocol.NewSolution, Marks: cp})
}

func (p eventProgress) Bound(lb, ub int) {
	p.emit(protocol.Event{Kind: protocol.ObjBound, Value: float64(lb)})
	gap := 0.0
	if ub > 0 {
		gap = float64(ub-lb) / float64(ub)
	}
	p.emit(protocol.Event{Kind: protocol.Gap, Value: gap})
}
