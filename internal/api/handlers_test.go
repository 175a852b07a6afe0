package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/ruler-racer/rulerdash/internal/client"
	"github.com/ruler-racer/rulerdash/internal/metrics"
	"github.com/ruler-racer/rulerdash/internal/protocol"
	"github.com/ruler-racer/rulerdash/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSolver struct {
	got []client.SolveParams
	err error
}

func (f *fakeSolver) Solve(_ context.Context, p client.SolveParams) error {
	f.got = append(f.got, p)
	return f.err
}

var base = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func setupTestRouter(t *testing.T, solver Solver) (*gin.Engine, *session.Reducer, *time.Time) {
	t.Helper()
	now := base
	reducer := session.NewReducer(
		session.WithClock(func() time.Time { return now }),
		session.WithIDGenerator(func() string { return "sess-1" }),
	)
	reg := prometheus.NewRegistry()
	metrics.New(reg).RecordEvent("StartSearch")

	h := NewHandlers(Config{
		Reducer:       reducer,
		Solver:        solver,
		SolveDefaults: client.SolveDefaults{Timeout: 30, Order: 5},
		Gatherer:      reg,
		Connected:     func() bool { return true },
		Now:           func() time.Time { return now },
	})
	return NewRouter(h), reducer, &now
}

func do(t *testing.T, r http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req, _ := http.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	r, _, _ := setupTestRouter(t, nil)
	w := do(t, r, "GET", "/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.Connected == nil || !*resp.Connected {
		t.Errorf("health = %+v", resp)
	}
}

func TestHandleState(t *testing.T) {
	r, reducer, now := setupTestRouter(t, nil)
	reducer.Apply(protocol.Event{Kind: protocol.StartSearch})
	reducer.Apply(protocol.Event{Kind: protocol.NewSolution, Marks: []int{0, 1, 4, 6}})
	*now = base.Add(1250 * time.Millisecond)

	w := do(t, r, "GET", "/api/state")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		SessionID string  `json:"sessionId"`
		Phase     string  `json:"phase"`
		Solution  []int   `json:"solution"`
		ElapsedMS int64   `json:"elapsedMs"`
		Dots      int     `json:"dots"`
		Objective float64 `json:"objective"`
		Policy    Policy  `json:"policy"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.SessionID != "sess-1" || resp.Phase != "Searching" {
		t.Errorf("state = %+v", resp)
	}
	if len(resp.Solution) != 4 || resp.Objective != 6 {
		t.Errorf("solution = %v objective = %v", resp.Solution, resp.Objective)
	}
	if resp.ElapsedMS != 1250 || resp.Dots != 2 {
		t.Errorf("elapsed = %d dots = %d", resp.ElapsedMS, resp.Dots)
	}
	if !resp.Policy.PeriodicForcesSearching {
		t.Error("policy not reported")
	}
}

func TestHandleSeries(t *testing.T) {
	r, reducer, _ := setupTestRouter(t, nil)
	reducer.Apply(protocol.Event{Kind: protocol.StartSearch})
	reducer.Apply(protocol.Event{Kind: protocol.ObjBound, Value: 6})
	reducer.Apply(protocol.Event{Kind: protocol.ObjBound, Value: 7})

	w := do(t, r, "GET", "/api/history/bound")
	var resp SeriesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Series != "bound" || len(resp.Points) != 2 || resp.Points[1].Value != 7 {
		t.Errorf("series = %+v", resp)
	}

	w = do(t, r, "GET", "/api/history/unknown")
	if w.Code != http.StatusOK {
		t.Fatalf("unknown series status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"points":[]`) {
		t.Errorf("unknown series body = %s", w.Body.String())
	}

	w = do(t, r, "GET", "/api/history")
	if !strings.Contains(w.Body.String(), `"series":["bound"]`) {
		t.Errorf("names body = %s", w.Body.String())
	}
}

func TestHandleDomain(t *testing.T) {
	r, _, _ := setupTestRouter(t, nil)
	w := do(t, r, "GET", "/api/domain")
	var resp DomainResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Start.Equal(base.Add(-100*time.Second)) || !resp.End.Equal(base) {
		t.Errorf("domain = %+v", resp)
	}
}

func TestHandleSolve(t *testing.T) {
	tests := []struct {
		query string
		want  client.SolveParams
	}{
		{"?timeout=60&order=7", client.SolveParams{Timeout: 60, Order: 7}},
		{"", client.SolveParams{Timeout: 30, Order: 5}},
		{"?timeout=abc&order=-2", client.SolveParams{Timeout: 30, Order: 5}},
	}
	for _, tt := range tests {
		solver := &fakeSolver{}
		r, _, _ := setupTestRouter(t, solver)
		w := do(t, r, "POST", "/api/solve"+tt.query)
		if w.Code != http.StatusAccepted {
			t.Errorf("%q: status = %d", tt.query, w.Code)
			continue
		}
		if len(solver.got) != 1 || solver.got[0] != tt.want {
			t.Errorf("%q: solver got %+v, want %+v", tt.query, solver.got, tt.want)
		}
	}
}

func TestHandleSolveFailures(t *testing.T) {
	r, _, _ := setupTestRouter(t, &fakeSolver{err: errors.New("connection refused")})
	if w := do(t, r, "POST", "/api/solve"); w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}

	r, _, _ = setupTestRouter(t, nil)
	if w := do(t, r, "POST", "/api/solve"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r, _, _ := setupTestRouter(t, nil)
	w := do(t, r, "GET", "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `rulerdash_ingest_events_total{kind="StartSearch"} 1`) {
		t.Errorf("metrics body missing counter:\n%s", w.Body.String())
	}
}
