package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Solver.URL != "ws://localhost:8080/ws" {
		t.Errorf("Solver.URL = %q", cfg.Solver.URL)
	}
	if !cfg.Session.PeriodicForcesSearching {
		t.Error("PeriodicForcesSearching should default to true")
	}
	if cfg.Session.DomainFallback != 100*time.Second {
		t.Errorf("DomainFallback = %v, want 100s", cfg.Session.DomainFallback)
	}
	if cfg.Solve.DefaultTimeout != 30 || cfg.Solve.DefaultOrder != 5 {
		t.Errorf("solve defaults = %+v, want 30/5", cfg.Solve)
	}
	if cfg.Solver.Reconnect {
		t.Error("reconnect should be opt-in")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yaml := `
solver:
  url: "ws://solver.lan:9000/ws"
  protocol: legacy
  reconnect: true
  reconnect_max_delay: 10s
session:
  periodic_forces_searching: false
  history_max_points: 500
api:
  enabled: true
  addr: "0.0.0.0:9999"
influx:
  bucket: rulers
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Solver.URL != "ws://solver.lan:9000/ws" {
		t.Errorf("Solver.URL = %q", cfg.Solver.URL)
	}
	if cfg.Solver.Protocol != "legacy" {
		t.Errorf("Solver.Protocol = %q", cfg.Solver.Protocol)
	}
	if !cfg.Solver.Reconnect || cfg.Solver.ReconnectMaxDelay != 10*time.Second {
		t.Errorf("reconnect = %v/%v", cfg.Solver.Reconnect, cfg.Solver.ReconnectMaxDelay)
	}
	if cfg.Session.PeriodicForcesSearching {
		t.Error("PeriodicForcesSearching should be false")
	}
	if cfg.Session.HistoryMaxPoints != 500 {
		t.Errorf("HistoryMaxPoints = %d", cfg.Session.HistoryMaxPoints)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Session.DomainFallback != 100*time.Second {
		t.Errorf("DomainFallback = %v", cfg.Session.DomainFallback)
	}
	if cfg.Influx.Bucket != "rulers" || cfg.Influx.Measurement != "solver_history" {
		t.Errorf("influx = %+v", cfg.Influx)
	}
	if !cfg.API.Enabled || cfg.API.Addr != "0.0.0.0:9999" {
		t.Errorf("api = %+v", cfg.API)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"bad protocol":     "solver:\n  protocol: protobuf\n",
		"negative cap":     "session:\n  history_max_points: -1\n",
		"zero timeout":     "solve:\n  default_timeout: 0\n",
		"order too small":  "solve:\n  default_order: 1\n",
		"bad level":        "logging:\n  level: loud\n",
		"api without addr": "api:\n  enabled: true\n  addr: \"\"\n",
		"archive no path":  "archive:\n  enabled: true\n  path: \"\"\n",
		"not yaml":         "solver: [\n",
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			p := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(p, []byte(body), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(p); err == nil {
				t.Error("Load() succeeded, want error")
			}
		})
	}
}

func TestHTTPBase(t *testing.T) {
	tests := []struct {
		ws, explicit, want string
	}{
		{"ws://127.0.0.1:8080/ws", "", "http://127.0.0.1:8080"},
		{"wss://solver.example.com/ws", "", "https://solver.example.com"},
		{"ws://127.0.0.1:8080/ws", "http://other:1234/", "http://other:1234"},
	}
	for _, tt := range tests {
		cfg := defaultConfig()
		cfg.Solver.URL = tt.ws
		cfg.Solver.HTTPURL = tt.explicit
		if got := cfg.HTTPBase(); got != tt.want {
			t.Errorf("HTTPBase(%q, %q) = %q, want %q", tt.ws, tt.explicit, got, tt.want)
		}
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte("session:\n  history_max_points: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	go Watch(ctx, p, nil, func(c *Config) { got <- c })

	// Give the watcher time to register before editing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(p, []byte("session:\n  history_max_points: 42\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-got:
		if c.Session.HistoryMaxPoints != 42 {
			t.Errorf("reloaded HistoryMaxPoints = %d, want 42", c.Session.HistoryMaxPoints)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("config change not delivered")
	}
}
