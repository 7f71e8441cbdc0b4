// Package realtimetest provides an in-memory connection for exercising the
// hub without a socket.io server.
package realtimetest

import "sync"

type Emitted struct {
	Event   string
	Payload interface{}
}

// Conn records every event emitted to it.
type Conn struct {
	id string

	mu     sync.Mutex
	events []Emitted
}

func NewConn(id string) *Conn {
	return &Conn{id: id}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Emit(event string, v ...interface{}) {
	var payload interface{}
	if len(v) > 0 {
		payload = v[0]
	}
	c.mu.Lock()
	c.events = append(c.events, Emitted{Event: event, Payload: payload})
	c.mu.Unlock()
}

// Events returns the payloads emitted under event, in order.
func (c *Conn) Events(event string) []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []interface{}
	for _, e := range c.events {
		if e.Event == event {
			out = append(out, e.Payload)
		}
	}
	return out
}

// Count is len(Events(event)).
func (c *Conn) Count(event string) int {
	return len(c.Events(event))
}

func (c *Conn) Reset() {
	c.mu.Lock()
	c.events = nil
	c.mu.Unlock()
}
