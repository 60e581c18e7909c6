// Package ws serves the family chat over websockets.
package ws

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongDelay  = 90 * time.Second
	pingPeriod = (pongDelay * 8) / 10
	// maxFrameSize bounds inbound chat payloads.
	maxFrameSize = 64 << 10
)

var (
	// ErrClosed is returned by Send after the connection has gone away.
	ErrClosed = errors.New("connection closed")
	// ErrSlowConsumer is returned when the send queue is full; the connection is closed.
	ErrSlowConsumer = errors.New("send queue full")
)

// Client is one websocket peer. Writes go through a bounded queue drained by writePump.
type Client struct {
	id     string
	socket *websocket.Conn
	send   chan []byte
	logger *log.Logger

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

func newClient(id string, socket *websocket.Conn, buffer int, logger *log.Logger) *Client {
	if buffer <= 0 {
		buffer = 32
	}
	return &Client{
		id:     id,
		socket: socket,
		send:   make(chan []byte, buffer),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// ID identifies the connection inside the registry.
func (c *Client) ID() string { return c.id }

// Closed reports whether the connection has been shut down.
func (c *Client) Closed() bool { return c.closed.Load() }

// Send queues frame without blocking.
func (c *Client) Send(frame []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		c.logger.Warn("dropping slow websocket peer", "conn", c.id)
		c.Close()
		return ErrSlowConsumer
	}
}

// Close stops the write pump and closes the socket. It is safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		_ = c.socket.Close()
	})
}

// writePump owns every write to the socket, including pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug("websocket write failed", "conn", c.id, "err", err)
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.socket.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				// Expected when the other end goes away.
				c.logger.Debug("failed to write ping", "conn", c.id, "err", err)
				c.Close()
				return
			}
		}
	}
}
