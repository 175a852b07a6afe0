package client

import (
	"context"
	"time"
)

// ReconnectPolicy controls what Stream does when a connection drops.
type ReconnectPolicy struct {
	Enabled  bool
	MaxDelay time.Duration
}

// Backoff doubles delay up to the policy cap.
func (p ReconnectPolicy) Backoff(delay time.Duration) time.Duration {
	max := p.MaxDelay
	if max <= 0 {
		max = reconnectMaxDelay
	}
	if delay <= 0 {
		return reconnectBaseDelay
	}
	return min(delay*2, max)
}

// StateFunc observes connection transitions. err is nil on connect and on
// a clean shutdown.
type StateFunc func(connected bool, err error)

// Stream dials url and pumps messages into handle. Without reconnect the
// first disconnect (or failed dial) ends the stream and its error is
// returned. With reconnect it redials with exponential backoff until ctx is
// done. Each connection is a fresh Conn; nothing carries over between them.
func Stream(ctx context.Context, url string, opts Options, policy ReconnectPolicy, onState StateFunc, handle func([]byte)) error {
	opts = opts.withDefaults()
	if onState == nil {
		onState = func(bool, error) {}
	}

	var delay time.Duration
	for {
		conn, err := Dial(ctx, url, opts)
		if err == nil {
			delay = 0
			onState(true, nil)
			err = Pump(ctx, conn, handle)
			conn.Close()
			onState(false, err)
		}
		if ctx.Err() != nil {
			return nil
		}
		if !policy.Enabled {
			if err != nil {
				opts.Logger.Warn("solver stream ended", "url", url, "error", err)
			}
			return err
		}

		delay = policy.Backoff(delay)
		opts.Logger.Info("solver disconnected, retrying", "url", url, "error", err, "retry_in", delay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}
