package realtime

import (
	"sort"
)

const (
	EventUserStatusChanged = "userStatusChanged"
	EventOnlineUsers       = "onlineUsers"

	StatusOnline  = "online"
	StatusOffline = "offline"
)

// StatusChange is the payload of userStatusChanged.
type StatusChange struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

// Register binds conn to userID. It returns
// true when this is the user's first live connection, in which case every
// other connected user is told the user came online.
func (h *Hub) Register(userID string, conn Conn) bool {
	h.presenceMu.Lock()
	defer h.presenceMu.Unlock()

	h.mu.Lock()
	if old, ok := h.conns[conn.ID()]; ok {
		h.removeLocked(old)
	}
	c := &client{conn: conn, userID: userID, rooms: make(map[string]struct{})}
	h.conns[conn.ID()] = c

	set := h.users[userID]
	first := len(set) == 0
	if set == nil {
		set = make(map[string]*client)
		h.users[userID] = set
	}
	set[conn.ID()] = c
	h.updateGauges()
	h.mu.Unlock()

	if first {
		h.broadcastAll(EventUserStatusChanged, StatusChange{UserID: userID, Status: StatusOnline}, userID)
	}
	return first
}

// Unregister drops a connection from the registry and every room. When it
// was the user's last connection the user is announced offline.
func (h *Hub) Unregister(connID string) (userID string, last bool) {
	h.presenceMu.Lock()
	defer h.presenceMu.Unlock()

	h.mu.Lock()
	c, ok := h.conns[connID]
	if !ok {
		h.mu.Unlock()
		return "", false
	}
	last = h.removeLocked(c)
	h.updateGauges()
	h.mu.Unlock()

	if last {
		h.broadcastAll(EventUserStatusChanged, StatusChange{UserID: c.userID, Status: StatusOffline}, c.userID)
	}
	return c.userID, last
}

func (h *Hub) removeLocked(c *client) bool {
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	delete(h.conns, c.conn.ID())

	set := h.users[c.userID]
	delete(set, c.conn.ID())
	if len(set) == 0 {
		delete(h.users, c.userID)
		return true
	}
	return false
}

// ListOnline returns the ids of users with at least one live connection.
func (h *Hub) ListOnline() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.users))
	for id := range h.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *Hub) IsOnline(userID string) bool {
	return h.ConnectionCount(userID) > 0
}

func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}
