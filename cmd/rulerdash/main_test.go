package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ruler-racer/rulerdash/internal/archive"
	"github.com/ruler-racer/rulerdash/internal/client"
	"github.com/ruler-racer/rulerdash/internal/ingest"
	"github.com/ruler-racer/rulerdash/internal/protocol"
	"github.com/ruler-racer/rulerdash/internal/session"
	"github.com/ruler-racer/rulerdash/internal/solver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startSolver(t *testing.T) (httpURL, wsURL string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	s := solver.NewServer(ctx, solver.ServerConfig{Interval: time.Hour})
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	t.Cleanup(s.Runner().Wait)
	return srv.URL, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestRecordSessionStopsAtFinal(t *testing.T) {
	httpURL, wsURL := startSolver(t)
	p := ingest.New(protocol.JSONDecoder{}, session.NewReducer())

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	solve := func() error {
		return client.NewHTTPClient(httpURL).Solve(ctx, client.SolveParams{Timeout: 5, Order: 4})
	}
	require.NoError(t, recordSession(ctx, wsURL, client.Options{}, p, solve))
	require.NoError(t, ctx.Err(), "recording should end at Final, not at the deadline")

	st := p.Reducer().Snapshot()
	assert.Equal(t, session.Idle, st.Phase)
	assert.Equal(t, []int{0, 1, 4, 6}, st.BestSolution)
	assert.NotEmpty(t, p.Reducer().Series(session.SeriesBound))
}

func TestRecordSessionReportsSolveFailure(t *testing.T) {
	_, wsURL := startSolver(t)
	p := ingest.New(protocol.JSONDecoder{}, session.NewReducer())

	refused := func() error {
		return client.NewHTTPClient("http://127.0.0.1:1").Solve(context.Background(), client.SolveParams{Timeout: 1, Order: 4})
	}
	err := recordSession(context.Background(), wsURL, client.Options{}, p, refused)
	assert.Error(t, err)
}

func TestWriteArchiveList(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeArchiveList(&buf, nil))
	assert.Contains(t, buf.String(), "no archived sessions")

	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(1500 * time.Millisecond)
	order := 5
	recs := []archive.Record{{
		ID: "0123456789abcdef",
		State: session.State{
			SessionID:    "0123456789abcdef",
			Phase:        session.Idle,
			StartTime:    &start,
			EndTime:      &end,
			CurrentOrder: &order,
			BestSolution: []int{0, 1, 4, 9, 11},
			Events:       12,
		},
		ArchivedAt: end,
	}}

	buf.Reset()
	require.NoError(t, writeArchiveList(&buf, recs))
	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "0123456789")
	assert.Contains(t, out, "length 11")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "12")
}
