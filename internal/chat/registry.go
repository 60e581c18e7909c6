// Package chat tracks live family chat connections and relays messages between them.
package chat

import (
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/juju/errors"

	"example.com/shareactivities/internal/logging"
)

// Conn is one live client connection. Send must not block; implementations queue or fail.
type Conn interface {
	ID() string
	Send(frame []byte) error
	Closed() bool
}

// BroadcastResult counts what happened to each connection during one broadcast.
type BroadcastResult struct {
	Delivered int
	Skipped   int
	Failed    int
}

// Registry maps room ids to their open connections. A room exists only while it has members.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]Conn
	logger *log.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the registry logger.
func WithRegistryLogger(logger *log.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry constructs an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		rooms:  make(map[string]map[string]Conn),
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Join adds conn to roomID. Room existence is not checked.
func (r *Registry) Join(conn Conn, roomID string) error {
	if roomID == "" {
		return errors.NotValidf("empty room id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	bucket, ok := r.rooms[roomID]
	if !ok {
		bucket = make(map[string]Conn)
		r.rooms[roomID] = bucket
	}
	if _, exists := bucket[conn.ID()]; !exists {
		connectionsGauge.Inc()
	}
	bucket[conn.ID()] = conn
	r.logger.Debug("connection joined", "conn", conn.ID(), "room", roomID, "size", len(bucket))
	return nil
}

// Leave removes conn from every room it appears in. It is idempotent.
func (r *Registry) Leave(conn Conn) {
	r.remove(conn.ID())
}

func (r *Registry) remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for roomID, bucket := range r.rooms {
		if _, ok := bucket[connID]; !ok {
			continue
		}
		delete(bucket, connID)
		connectionsGauge.Dec()
		if len(bucket) == 0 {
			delete(r.rooms, roomID)
		}
		r.logger.Debug("connection left", "conn", connID, "room", roomID)
	}
}

// Broadcast sends frame to every open connection in roomID. A closed or failing connection
// does not affect delivery to the others; closed ones are dropped from the room.
func (r *Registry) Broadcast(roomID string, frame []byte) BroadcastResult {
	r.mu.RLock()
	bucket := r.rooms[roomID]
	targets := make([]Conn, 0, len(bucket))
	for _, c := range bucket {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	var result BroadcastResult
	for _, c := range targets {
		if c.Closed() {
			result.Skipped++
			r.remove(c.ID())
			continue
		}
		if err := c.Send(frame); err != nil {
			result.Failed++
			r.logger.Warn("broadcast send failed", "conn", c.ID(), "room", roomID, "err", err)
			continue
		}
		result.Delivered++
	}
	recordBroadcast(result)
	return result
}

// Rooms lists the rooms that currently have connections.
func (r *Registry) Rooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Size returns the number of connections in roomID.
func (r *Registry) Size(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}
