// Package realtime fans new comments out to the live connections viewing a post.
package realtime

import (
	"errors"
	"io"
	"sort"
	"sync"
)

// MaxRoomLength bounds post ids accepted as room names.
const MaxRoomLength = 64

var (
	// ErrDetached is returned when joining with a connection that is not attached,
	// including one that has already been dropped.
	ErrDetached = errors.New("connection is not attached")
	// ErrInvalidRoom is returned for empty or oversized post ids.
	ErrInvalidRoom = errors.New("invalid post id")
)

// Subscriber is a live connection handle. Implementations must be comparable
// (pointer types) and Deliver must not block.
type Subscriber interface {
	Deliver(ev Event) bool
}

// Stats is a point-in-time view of the registry.
type Stats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
}

// Registry maps post ids to the connections subscribed to them.
// Every mutation runs under one lock so a drop can never interleave with a join.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[Subscriber]struct{}
	conns map[Subscriber]map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: map[string]map[Subscriber]struct{}{},
		conns: map[Subscriber]map[string]struct{}{},
	}
}

// Attach registers a new connection. Call it once, before the connection's first Join.
func (r *Registry) Attach(s Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[s]; ok {
		return
	}
	r.conns[s] = map[string]struct{}{}
	r.updateGaugesLocked()
}

// Join subscribes s to postID. Joining twice is the same as joining once.
func (r *Registry) Join(s Subscriber, postID string) error {
	if postID == "" || len(postID) > MaxRoomLength {
		return ErrInvalidRoom
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	joined, ok := r.conns[s]
	if !ok {
		return ErrDetached
	}
	room := r.rooms[postID]
	if room == nil {
		room = map[Subscriber]struct{}{}
		r.rooms[postID] = room
	}
	room[s] = struct{}{}
	joined[postID] = struct{}{}
	r.updateGaugesLocked()
	return nil
}

// Leave unsubscribes s from postID. Leaving a room that was never joined is a no-op.
func (r *Registry) Leave(s Subscriber, postID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if joined, ok := r.conns[s]; ok {
		delete(joined, postID)
	}
	r.removeLocked(s, postID)
	r.updateGaugesLocked()
}

// Drop detaches s and removes it from every room. It returns the rooms s was in.
func (r *Registry) Drop(s Subscriber) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined, ok := r.conns[s]
	if !ok {
		return nil
	}
	left := make([]string, 0, len(joined))
	for postID := range joined {
		r.removeLocked(s, postID)
		left = append(left, postID)
	}
	delete(r.conns, s)
	r.updateGaugesLocked()
	sort.Strings(left)
	return left
}

func (r *Registry) removeLocked(s Subscriber, postID string) {
	room, ok := r.rooms[postID]
	if !ok {
		return
	}
	delete(room, s)
	if len(room) == 0 {
		delete(r.rooms, postID)
	}
}

// Subscribers returns a snapshot of the connections subscribed to postID.
func (r *Registry) Subscribers(postID string) []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[postID]
	out := make([]Subscriber, 0, len(room))
	for s := range room {
		out = append(out, s)
	}
	return out
}

// IsSubscribed reports whether s is currently in postID's room.
func (r *Registry) IsSubscribed(s Subscriber, postID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[postID][s]
	return ok
}

// Rooms returns the post ids s is subscribed to, sorted.
func (r *Registry) Rooms(s Subscriber) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.conns[s]))
	for postID := range r.conns[s] {
		out = append(out, postID)
	}
	sort.Strings(out)
	return out
}

// Stats reports attached connections and non-empty rooms.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{Connections: len(r.conns), Rooms: len(r.rooms)}
}

// CloseAll closes every attached connection that supports it. Each connection
// drops itself from the registry as its read loop exits.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	closers := make([]io.Closer, 0, len(r.conns))
	for s := range r.conns {
		if c, ok := s.(io.Closer); ok {
			closers = append(closers, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range closers {
		_ = c.Close()
	}
}

func (r *Registry) updateGaugesLocked() {
	connectionsGauge.Set(float64(len(r.conns)))
	roomsGauge.Set(float64(len(r.rooms)))
}
