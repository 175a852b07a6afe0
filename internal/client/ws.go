package client

import (
	"context"
	"errors"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// WSClient adapts a solver stream to Bubble Tea commands. Each Listen
// produces a fresh Conn; ReadLoop yields one message per command so the
// model's Update applies events one by one, in order.
type WSClient struct {
	url    string
	opts   Options
	policy ReconnectPolicy

	mu    sync.Mutex
	conn  *Conn
	delay time.Duration
}

// NewWSClient creates a client that connects to the given WebSocket URL.
func NewWSClient(url string, opts Options, policy ReconnectPolicy) *WSClient {
	return &WSClient{url: url, opts: opts.withDefaults(), policy: policy}
}

// --- Bubble Tea messages ---

// WSConnectedMsg is sent when the WebSocket connects.
type WSConnectedMsg struct{ URL string }

// WSDisconnectedMsg is sent when the connection drops or cannot be opened.
// Retrying reports whether Listen should be issued again.
type WSDisconnectedMsg struct {
	Err      error
	Retrying bool
}

// WSMessageMsg carries one raw solver message.
type WSMessageMsg struct{ Data []byte }

// Listen returns a command that dials the solver. Under the reconnect
// policy it waits out the current backoff first and keeps trying until ctx
// ends; otherwise a failed dial is reported once.
func (c *WSClient) Listen(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		for {
			c.mu.Lock()
			delay := c.delay
			c.mu.Unlock()
			if delay > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(delay):
				}
			}

			conn, err := Dial(ctx, c.url, c.opts)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				if !c.policy.Enabled {
					return WSDisconnectedMsg{Err: err}
				}
				c.bumpDelay()
				c.opts.Logger.Info("ws dial failed", "url", c.url, "error", err)
				continue
			}

			c.mu.Lock()
			if c.conn != nil {
				c.conn.Close()
			}
			c.conn = conn
			c.delay = 0
			c.mu.Unlock()
			return WSConnectedMsg{URL: c.url}
		}
	}
}

// ReadLoop returns a command that yields the next message of the active
// connection. Issue it again after each WSMessageMsg.
func (c *WSClient) ReadLoop(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return WSDisconnectedMsg{Err: ErrClosed}
		}

		data, err := conn.Next(ctx)
		if err == nil {
			return WSMessageMsg{Data: data}
		}
		if ctx.Err() != nil {
			return nil
		}

		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.Close()

		if errors.Is(err, ErrClosed) {
			err = nil
		}
		retry := c.policy.Enabled
		if retry {
			c.bumpDelay()
		}
		return WSDisconnectedMsg{Err: err, Retrying: retry}
	}
}

// Close drops the active connection, if any.
func (c *WSClient) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Connected reports whether a connection is held.
func (c *WSClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *WSClient) bumpDelay() {
	c.mu.Lock()
	c.delay = c.policy.Backoff(c.delay)
	c.mu.Unlock()
}
