// Package api serves the live session over HTTP for scripts and other
// dashboards.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ruler-racer/rulerdash/internal/client"
	"github.com/ruler-racer/rulerdash/internal/session"
)

// Solver fires the outbound search trigger.
type Solver interface {
	Solve(ctx context.Context, p client.SolveParams) error
}

type Config struct {
	Reducer        *session.Reducer
	Solver         Solver
	SolveDefaults  client.SolveDefaults
	DomainFallback time.Duration
	Gatherer       prometheus.Gatherer
	// Connected reports the solver link state; nil means unknown.
	Connected func() bool
	Now       func() time.Time
	Logger    *slog.Logger
}

type Handlers struct {
	cfg Config
}

func NewHandlers(cfg Config) *Handlers {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handlers{cfg: cfg}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Connected *bool  `json:"connected,omitempty"`
}

// StateResponse is the session state plus values derived at request time.
type StateResponse struct {
	session.State
	Solution  []int    `json:"solution,omitempty"`
	ElapsedMS int64    `json:"elapsedMs"`
	Dots      int      `json:"dots"`
	Policy    Policy   `json:"policy"`
	Objective *float64 `json:"objective,omitempty"`
}

type Policy struct {
	PeriodicForcesSearching bool `json:"periodicForcesSearching"`
}

type SeriesResponse struct {
	Series string          `json:"series"`
	Points []session.Point `json:"points"`
}

type DomainResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// RegisterRoutes attaches every endpoint to r.
func RegisterRoutes(r gin.IRouter, h *Handlers) {
	r.GET("/healthz", h.HandleHealth)
	r.GET("/api/state", h.HandleState)
	r.GET("/api/history", h.HandleHistoryNames)
	r.GET("/api/history/:series", h.HandleSeries)
	r.GET("/api/domain", h.HandleDomain)
	r.POST("/api/solve", h.HandleSolve)
	if h.cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.cfg.Gatherer, promhttp.HandlerOpts{})))
	}
}

// NewRouter builds a gin engine with recovery and the API routes.
func NewRouter(h *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	RegisterRoutes(router, h)
	return router
}

func (h *Handlers) HandleHealth(c *gin.Context) {
	resp := HealthResponse{Status: "ok"}
	if h.cfg.Connected != nil {
		up := h.cfg.Connected()
		resp.Connected = &up
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) HandleState(c *gin.Context) {
	now := h.cfg.Now()
	st := h.cfg.Reducer.Snapshot()
	resp := StateResponse{
		State:     st,
		Solution:  st.DisplaySolution(),
		ElapsedMS: st.Elapsed(now).Milliseconds(),
		Policy:    Policy{PeriodicForcesSearching: h.cfg.Reducer.Policy().PeriodicForcesSearching},
	}
	if st.Phase == session.Searching {
		resp.Dots = session.Dots(st.Elapsed(now))
	}
	if obj := h.cfg.Reducer.Series(session.SeriesObjective); len(obj) > 0 {
		v := obj[len(obj)-1].Value
		resp.Objective = &v
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) HandleHistoryNames(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"series": h.cfg.Reducer.SeriesNames()})
}

// HandleSeries returns the full ordered series; unknown names yield an
// empty list rather than 404 so pollers need no special case.
func (h *Handlers) HandleSeries(c *gin.Context) {
	name := c.Param("series")
	c.JSON(http.StatusOK, SeriesResponse{Series: name, Points: h.cfg.Reducer.Series(name)})
}

func (h *Handlers) HandleDomain(c *gin.Context) {
	t0, t1 := h.cfg.Reducer.Domain(h.cfg.Now(), h.cfg.DomainFallback)
	c.JSON(http.StatusOK, DomainResponse{Start: t0, End: t1})
}

// HandleSolve forwards the trigger. Parameters that are not positive
// integers fall back to the configured defaults.
func (h *Handlers) HandleSolve(c *gin.Context) {
	if h.cfg.Solver == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "no solver configured"})
		return
	}
	p := h.cfg.SolveDefaults.Parse(c.Query("timeout"), c.Query("order"))
	if err := h.cfg.Solver.Solve(c.Request.Context(), p); err != nil {
		h.cfg.Logger.Warn("solve trigger failed", "timeout", p.Timeout, "order", p.Order, "error", err)
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, p)
}

// Serve runs handler on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		if logger != nil {
			logger.Info("status api listening", "addr", addr)
		}
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
