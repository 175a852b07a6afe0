package solver

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// ErrTooManyConnections is returned by AddClient when the broadcaster is
// at its connection limit.
var ErrTooManyConnections = errors.New("too many websocket connections")

// journalCap bounds the replay buffer for one search.
const journalCap = 10_000

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

func newSubscriber(conn *websocket.Conn) *subscriber {
	c := &subscriber{
		conn: conn,
		send: make(chan []byte, 256),
	}
	go c.writePump()
	return c
}

func (c *subscriber) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *subscriber) close() {
	close(c.send)
}

// Broadcaster fans encoded events out to every connected dashboard. It
// keeps the frames of the current search so a dashboard that connects
// mid-search is replayed up to date.
type Broadcaster struct {
	mu         sync.RWMutex
	clients    map[*subscriber]bool
	maxClients int
	journal    [][]byte
	logger     *slog.Logger
}

// NewBroadcaster creates a broadcaster. maxClients <= 0 means unlimited.
func NewBroadcaster(maxClients int, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		clients:    make(map[*subscriber]bool),
		maxClients: maxClients,
		logger:     logger,
	}
}

// AddClient registers conn and queues the current search's frames to it.
func (b *Broadcaster) AddClient(conn *websocket.Conn) (*subscriber, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.maxClients > 0 && len(b.clients) >= b.maxClients {
		return nil, ErrTooManyConnections
	}

	c := newSubscriber(conn)
	b.clients[c] = true
	for _, data := range b.journal {
		select {
		case c.send <- data:
		default:
			// Replay longer than the queue; the live stream continues.
			b.logger.Warn("journal replay truncated")
			return c, nil
		}
	}
	return c, nil
}

func (b *Broadcaster) RemoveClient(c *subscriber) {
	b.mu.Lock()
	b.removeLocked(c)
	b.mu.Unlock()
}

func (b *Broadcaster) removeLocked(c *subscriber) {
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
}

// ResetJournal forgets the frames of the previous search.
func (b *Broadcaster) ResetJournal() {
	b.mu.Lock()
	b.journal = nil
	b.mu.Unlock()
}

// Broadcast sends data to every client. Clients whose queue is full are
// disconnected rather than allowed to stall the solver.
func (b *Broadcaster) Broadcast(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.journal) < journalCap {
		b.journal = append(b.journal, data)
	}
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			b.logger.Warn("ws client too slow, disconnecting")
			b.removeLocked(c)
		}
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
