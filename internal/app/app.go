package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ruler-racer/rulerdash/internal/client"
	"github.com/ruler-racer/rulerdash/internal/ingest"
	"github.com/ruler-racer/rulerdash/internal/protocol"
	"github.com/ruler-racer/rulerdash/internal/session"
	"github.com/ruler-racer/rulerdash/internal/theme"
	"github.com/ruler-racer/rulerdash/internal/views/dashboard"
	"github.com/ruler-racer/rulerdash/internal/views/debug"
	"github.com/ruler-racer/rulerdash/internal/views/status"
)

// Values the inputs start with.
const (
	initialTimeout = "15"
	initialOrder   = "5"
)

// tickInterval drives the elapsed clock and the dots.
const tickInterval = 100 * time.Millisecond

const solveRequestTimeout = 10 * time.Second

var errNoSolver = errors.New("no solver HTTP endpoint configured")

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDebug
)

const (
	inputTimeout = iota
	inputOrder
	inputCount
)

// SolveResultMsg reports the outcome of a solve request.
type SolveResultMsg struct {
	Params client.SolveParams
	Err    error
}

type tickMsg time.Time

// Options tune the root model.
type Options struct {
	URL            string
	Defaults       client.SolveDefaults
	DomainFallback time.Duration
	Now            func() time.Time
	// OnConnection observes link changes, e.g. for a metrics gauge.
	OnConnection func(connected bool)
}

// Model is the root Bubble Tea model. All state changes go through the
// ingest pipeline, one message per Update, in delivery order.
type Model struct {
	ws       *client.WSClient
	http     *client.HTTPClient
	pipeline *ingest.Pipeline
	ctx      context.Context
	cancel   context.CancelFunc

	keys     KeyMap
	defaults client.SolveDefaults
	fallback time.Duration
	now      func() time.Time
	onConn   func(bool)
	width    int
	height   int

	inputs  []textinput.Model
	focus   int // index into inputs, -1 when none is focused
	overlay Overlay

	statusBar status.Model
	dashboard dashboard.Model
	debugLog  debug.Model

	connected bool
}

// New creates the root model. ws and http may be nil, which disables the
// stream and the solve trigger respectively.
func New(ws *client.WSClient, http *client.HTTPClient, pipeline *ingest.Pipeline, opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())
	if pipeline == nil {
		pipeline = ingest.New(protocol.AutoDecoder{}, session.NewReducer())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.OnConnection == nil {
		opts.OnConnection = func(bool) {}
	}
	if opts.Defaults.Timeout <= 0 {
		opts.Defaults.Timeout = client.DefaultSolveTimeout
	}
	if opts.Defaults.Order <= 0 {
		opts.Defaults.Order = client.DefaultSolveOrder
	}

	m := Model{
		ws:        ws,
		http:      http,
		pipeline:  pipeline,
		ctx:       ctx,
		cancel:    cancel,
		keys:      DefaultKeyMap(),
		defaults:  opts.Defaults,
		fallback:  opts.DomainFallback,
		now:       opts.Now,
		onConn:    opts.OnConnection,
		inputs:    newInputs(),
		focus:     -1,
		statusBar: status.New(opts.URL),
		dashboard: dashboard.New(),
		debugLog:  debug.New(),
	}
	m.refresh()
	return m
}

func newInputs() []textinput.Model {
	inputs := make([]textinput.Model, inputCount)
	for i := range inputs {
		ti := textinput.New()
		ti.CharLimit = 5
		ti.Width = 6
		switch i {
		case inputTimeout:
			ti.Prompt = "Timeout (s): "
			ti.SetValue(initialTimeout)
		case inputOrder:
			ti.Prompt = "Order: "
			ti.SetValue(initialOrder)
		}
		inputs[i] = ti
	}
	return inputs
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts the WebSocket connection and the clock.
func (m Model) Init() tea.Cmd {
	if m.ws == nil {
		return tick()
	}
	return tea.Batch(m.ws.Listen(m.ctx), tick())
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.dashboard.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.refresh()
		return m, tick()

	case client.WSConnectedMsg:
		m.connected = true
		m.statusBar.Connected = true
		m.statusBar.Reconnecting = false
		m.onConn(true)
		m.debugLog.Add(debug.KindConn, "connected to "+msg.URL)
		return m, m.readNext()

	case client.WSDisconnectedMsg:
		m.connected = false
		m.statusBar.Connected = false
		m.statusBar.Reconnecting = msg.Retrying
		m.onConn(false)
		if msg.Err != nil {
			m.debugLog.Add(debug.KindError, "connection: "+msg.Err.Error())
		} else {
			m.debugLog.Add(debug.KindConn, "stream closed")
		}
		if msg.Retrying && m.ws != nil {
			return m, m.ws.Listen(m.ctx)
		}
		return m, nil

	case client.WSMessageMsg:
		res := m.pipeline.Handle(msg.Data)
		switch res.Outcome {
		case ingest.Ignored:
			m.debugLog.Add(debug.KindIgnored, res.Err.Error())
		case ingest.Dropped:
			m.debugLog.Add(debug.KindDropped, res.Err.Error())
		}
		m.refresh()
		return m, m.readNext()

	case SolveResultMsg:
		if msg.Err != nil {
			m.statusBar.Notice = "solve failed"
			m.debugLog.Add(debug.KindError, "solve: "+msg.Err.Error())
		} else {
			m.statusBar.Notice = ""
			m.debugLog.Add(debug.KindSolve,
				fmt.Sprintf("requested order=%d timeout=%ds", msg.Params.Order, msg.Params.Timeout))
		}
		return m, nil
	}

	return m, nil
}

func (m Model) readNext() tea.Cmd {
	if m.ws == nil {
		return nil
	}
	return m.ws.ReadLoop(m.ctx)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Debug):
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Up):
			m.debugLog.ScrollUp(1)
		case key.Matches(msg, m.keys.Down):
			m.debugLog.ScrollDown(1)
		case msg.String() == "ctrl+c":
			m.cancel()
			return m, tea.Quit
		}
		return m, nil
	}

	if m.focus >= 0 {
		return m.handleInputKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Solve), key.Matches(msg, m.keys.Enter):
		return m, m.solve()

	case key.Matches(msg, m.keys.Tab):
		cmd := m.focusInput(inputTimeout)
		return m, cmd

	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
		return m, nil
	}

	return m, nil
}

// handleInputKey routes keys while a timeout/order input has focus.
func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Escape):
		m.blurInputs()
		return m, nil

	case key.Matches(msg, m.keys.Tab):
		next := m.focus + 1
		if next >= len(m.inputs) {
			m.blurInputs()
			return m, nil
		}
		cmd := m.focusInput(next)
		return m, cmd

	case key.Matches(msg, m.keys.Enter):
		m.blurInputs()
		return m, m.solve()
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *Model) focusInput(i int) tea.Cmd {
	m.blurInputs()
	m.focus = i
	return m.inputs[i].Focus()
}

func (m *Model) blurInputs() {
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
	m.focus = -1
}

// SolveParams are the parameters the next solve request will carry.
// Unparseable or non-positive input falls back to the defaults.
func (m Model) SolveParams() client.SolveParams {
	return m.defaults.Parse(m.inputs[inputTimeout].Value(), m.inputs[inputOrder].Value())
}

func (m Model) solve() tea.Cmd {
	p := m.SolveParams()
	h := m.http
	parent := m.ctx
	return func() tea.Msg {
		if h == nil {
			return SolveResultMsg{Params: p, Err: errNoSolver}
		}
		ctx, cancel := context.WithTimeout(parent, solveRequestTimeout)
		defer cancel()
		return SolveResultMsg{Params: p, Err: h.Solve(ctx, p)}
	}
}

// refresh recomputes everything derived from the reducer and the clock.
func (m *Model) refresh() {
	now := m.now()
	st, hist := m.pipeline.Reducer().View()
	t0, t1 := session.Domain(st, now, m.fallback)

	m.statusBar.Phase = st.Phase
	m.statusBar.Elapsed = st.Elapsed(now)
	m.statusBar.Events = st.Events
	m.dashboard.SetView(st, hist, t0, t1)
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}
	if m.overlay == OverlayDebug {
		return m.debugLog.View(m.width, m.height)
	}

	sections := []string{
		m.statusBar.View(),
		m.renderInputs(),
		m.dashboard.View(),
		theme.StyleDimmed.Render("  s:solve  tab:edit inputs  d:message log  q:quit"),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderInputs() string {
	parts := make([]string, len(m.inputs))
	for i, in := range m.inputs {
		parts[i] = in.View()
	}
	return "  " + lipgloss.JoinHorizontal(lipgloss.Top, parts[0], "   ", parts[1])
}
