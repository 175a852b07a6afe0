package solver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ruler-racer/rulerdash/internal/client"
	"github.com/ruler-racer/rulerdash/internal/protocol"
)

// Server exposes the solver: /ws streams events, /solve starts a search.
type Server struct {
	broadcaster *Broadcaster
	runner      *Runner
	encoder     protocol.Encoder
	defaults    client.SolveDefaults
	logger      *slog.Logger
	// ctx bounds searches started over HTTP; request contexts end too soon.
	ctx context.Context
}

type ServerConfig struct {
	Encoder    protocol.Encoder
	Sampler    Sampler
	Interval   time.Duration
	MaxClients int
	Defaults   client.SolveDefaults
	Logger     *slog.Logger
}

// NewServer wires a broadcaster and runner together. Searches run under
// ctx.
func NewServer(ctx context.Context, cfg ServerConfig) *Server {
	if cfg.Encoder == nil {
		cfg.Encoder = protocol.JSONEncoder{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{
		broadcaster: NewBroadcaster(cfg.MaxClients, cfg.Logger),
		encoder:     cfg.Encoder,
		defaults:    cfg.Defaults,
		logger:      cfg.Logger,
		ctx:         ctx,
	}
	s.runner = NewRunner(s.Emit, cfg.Sampler, cfg.Interval, cfg.Logger)
	return s
}

func (s *Server) Broadcaster() *Broadcaster { return s.broadcaster }

func (s *Server) Runner() *Runner { return s.runner }

// Emit encodes ev and broadcasts it. A StartSearch starts a new replay
// journal.
func (s *Server) Emit(ev protocol.Event) {
	data, err := s.encoder.Encode(ev)
	if err != nil {
		s.logger.Error("encode event", "kind", ev.Kind, "error", err)
		return
	}
	if ev.Kind == protocol.StartSearch {
		s.broadcaster.ResetJournal()
	}
	s.broadcaster.Broadcast(data)
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/solve", s.handleSolve)
	mux.HandleFunc("/healthz", s.handleHealth)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade error", "error", err)
		return
	}

	c, err := s.broadcaster.AddClient(conn)
	if err != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()))
		conn.Close()
		return
	}
	s.logger.Info("dashboard connected", "remote", r.RemoteAddr)

	go func() {
		defer func() {
			s.broadcaster.RemoveClient(c)
			s.logger.Info("dashboard disconnected", "remote", r.RemoteAddr)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// handleSolve accepts GET (the dashboard trigger) and POST.
func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	p := s.defaults.Parse(q.Get("timeout"), q.Get("order"))

	err := s.runner.Start(s.ctx, p.Order, time.Duration(p.Timeout)*time.Second)
	switch {
	case errors.Is(err, ErrBusy):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, ErrInvalidOrder):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(p)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"searching": s.runner.Running(),
		"clients":   s.broadcaster.ClientCount(),
	})
}

// ListenAndServe serves mux on host:port until ctx is done.
func ListenAndServe(ctx context.Context, host string, port int, mux *http.ServeMux, logger *slog.Logger) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() {
		logger.Info("solver listening", "addr", addr)
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
