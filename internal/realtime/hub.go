package realtime

import (
	"sort"
	"sync"

	"github.com/suvankar11223/chatzi-sub000/internal/metrics"
)

// Conn is the part of a socket connection the hub needs. socketio.Conn
// satisfies it.
type Conn interface {
	ID() string
	Emit(event string, v ...interface{})
}

type client struct {
	conn   Conn
	userID string
	rooms  map[string]struct{}
}

// Hub owns every live connection: which user it belongs to and which rooms
// it is in. All mutations go through one lock so a half-registered
// connection is never visible. Emits happen after the lock is released.
//
// presenceMu orders online/offline transitions: it is held from the state
// change until its broadcast has gone out, so observers see them in the
// order they happened.
type Hub struct {
	presenceMu sync.Mutex

	mu    sync.RWMutex
	conns map[string]*client
	users map[string]map[string]*client
	rooms map[string]map[string]*client
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]*client),
		users: make(map[string]map[string]*client),
		rooms: make(map[string]map[string]*client),
	}
}

// UserOf returns the user bound to a connection.
func (h *Hub) UserOf(connID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[connID]
	if !ok {
		return "", false
	}
	return c.userID, true
}

// Join adds a connection to a room. It reports false when the connection is
// unknown. Joining twice is a no-op.
func (h *Hub) Join(connID, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.conns[connID]
	if !ok {
		return false
	}
	h.joinLocked(c, room)
	return true
}

// JoinUser adds every live connection of userID to room and returns how many
// connections that covered.
func (h *Hub) JoinUser(userID, room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.users[userID] {
		h.joinLocked(c, room)
		n++
	}
	return n
}

func (h *Hub) joinLocked(c *client, room string) {
	if _, ok := c.rooms[room]; ok {
		return
	}
	c.rooms[room] = struct{}{}
	members := h.rooms[room]
	if members == nil {
		members = make(map[string]*client)
		h.rooms[room] = members
	}
	members[c.conn.ID()] = c
}

func (h *Hub) Leave(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.conns[connID]; ok {
		h.leaveLocked(c, room)
	}
}

func (h *Hub) leaveLocked(c *client, room string) {
	delete(c.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, c.conn.ID())
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) InRoom(connID, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[connID]
	if !ok {
		return false
	}
	_, in := c.rooms[room]
	return in
}

// Rooms lists the rooms a connection is in, sorted.
func (h *Hub) Rooms(connID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[connID]
	if !ok {
		return nil
	}
	rooms := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		rooms = append(rooms, r)
	}
	sort.Strings(rooms)
	return rooms
}

// RoomSize is the number of connections currently in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// EmitToUser sends to every live connection of userID.
func (h *Hub) EmitToUser(userID, event string, payload interface{}) int {
	h.mu.RLock()
	targets := make([]Conn, 0, len(h.users[userID]))
	for _, c := range h.users[userID] {
		targets = append(targets, c.conn)
	}
	h.mu.RUnlock()

	emit(targets, event, payload)
	return len(targets)
}

// BroadcastToRoom sends to every connection in room, skipping the
// connections of exceptUserID when it is non-empty.
func (h *Hub) BroadcastToRoom(room, event string, payload interface{}, exceptUserID string) int {
	h.mu.RLock()
	targets := make([]Conn, 0, len(h.rooms[room]))
	for _, c := range h.rooms[room] {
		if exceptUserID != "" && c.userID == exceptUserID {
			continue
		}
		targets = append(targets, c.conn)
	}
	h.mu.RUnlock()

	emit(targets, event, payload)
	return len(targets)
}

// broadcastAll sends to every connection not owned by exceptUserID.
func (h *Hub) broadcastAll(event string, payload interface{}, exceptUserID string) int {
	h.mu.RLock()
	targets := make([]Conn, 0, len(h.conns))
	for _, c := range h.conns {
		if c.userID == exceptUserID {
			continue
		}
		targets = append(targets, c.conn)
	}
	h.mu.RUnlock()

	emit(targets, event, payload)
	return len(targets)
}

func emit(targets []Conn, event string, payload interface{}) {
	for _, conn := range targets {
		conn.Emit(event, payload)
	}
}

func (h *Hub) updateGauges() {
	metrics.ConnectionsActive.Set(float64(len(h.conns)))
	metrics.UsersOnline.Set(float64(len(h.users)))
}
