// Package client connects the dashboard to a solver: a websocket event
// stream (Conn, Stream, WSClient) and the HTTP solve trigger (HTTPClient).
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
	writeTimeout       = 10 * time.Second
	pongTimeout        = 60 * time.Second
	pingInterval       = 30 * time.Second
)

// ErrClosed is returned by Next once Close has been requested.
var ErrClosed = errors.New("connection closed")

// Options tune a connection. The zero value is usable.
type Options struct {
	Header       http.Header
	Dialer       *websocket.Dialer
	PingInterval time.Duration
	PongTimeout  time.Duration
	Logger       *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
	if o.PingInterval <= 0 {
		o.PingInterval = pingInterval
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = pongTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

type frame struct {
	data []byte
	err  error
}

// Conn is one live solver stream. Messages are handed out by Next strictly
// in the order the socket delivered them. A Conn is never reused: once it
// fails or is closed, dial a new one.
type Conn struct {
	ws     *websocket.Conn
	url    string
	opts   Options
	frames chan frame
	done   chan struct{}

	closeOnce sync.Once
	writeMu   sync.Mutex
}

// Dial opens a websocket to url and starts its reader and keepalive.
func Dial(ctx context.Context, url string, opts Options) (*Conn, error) {
	opts = opts.withDefaults()
	ws, resp, err := opts.Dialer.DialContext(ctx, url, opts.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Conn{
		ws:     ws,
		url:    url,
		opts:   opts,
		frames: make(chan frame),
		done:   make(chan struct{}),
	}

	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(opts.PongTimeout))
	})
	ws.SetReadDeadline(time.Now().Add(opts.PongTimeout))

	go c.readLoop()
	go c.pingLoop()
	return c, nil
}

// URL is the address the connection was dialed with.
func (c *Conn) URL() string { return c.url }

// Next blocks until the next message arrives, ctx is done, or the
// connection fails or is closed. After Close it always returns ErrClosed,
// including for a message that was in flight when Close was called.
func (c *Conn) Next(ctx context.Context) ([]byte, error) {
	select {
	case <-c.done:
		return nil, ErrClosed
	default:
	}

	select {
	case <-c.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case f, ok := <-c.frames:
		if !ok {
			return nil, ErrClosed
		}
		// A close that raced the read wins.
		select {
		case <-c.done:
			return nil, ErrClosed
		default:
		}
		return f.data, f.err
	}
}

// Close stops delivery and releases the socket. Safe to call repeatedly
// and from any goroutine.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		c.ws.SetWriteDeadline(time.Now().Add(time.Second))
		c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) readLoop() {
	defer close(c.frames)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = ErrClosed
			} else {
				err = fmt.Errorf("read %s: %w", c.url, err)
			}
			select {
			case c.frames <- frame{err: err}:
			case <-c.done:
			}
			return
		}
		select {
		case c.frames <- frame{data: data}:
		case <-c.done:
			return
		}
	}
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := c.ws.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				c.opts.Logger.Debug("ping failed", "url", c.url, "error", err)
				return
			}
		}
	}
}

// Pump hands every message of conn to handle, one at a time and in order,
// until ctx is cancelled, the connection is closed or a read fails. handle
// runs on the calling goroutine and must not retain data. Cancellation and
// Close return nil; a read failure is returned.
func Pump(ctx context.Context, conn *Conn, handle func([]byte)) error {
	for {
		data, err := conn.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		handle(data)
	}
}
