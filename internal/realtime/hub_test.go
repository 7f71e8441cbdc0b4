package realtime_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/suvankar11223/chatzi-sub000/internal/realtime"
	"github.com/suvankar11223/chatzi-sub000/internal/realtime/realtimetest"
)

func TestBroadcastToRoomSkipsExcludedUser(t *testing.T) {
	hub := realtime.NewHub()
	a1, a2 := realtimetest.NewConn("a1"), realtimetest.NewConn("a2")
	b1 := realtimetest.NewConn("b1")
	hub.Register("alice", a1)
	hub.Register("alice", a2)
	hub.Register("bob", b1)

	assert.Equal(t, 2, hub.JoinUser("alice", "room"))
	assert.True(t, hub.Join("b1", "room"))

	assert.Equal(t, 3, hub.BroadcastToRoom("room", "ping", 1, ""))
	assert.Equal(t, 1, hub.BroadcastToRoom("room", "typing", 2, "alice"))

	assert.Equal(t, 1, a1.Count("ping"))
	assert.Equal(t, 1, a2.Count("ping"))
	assert.Equal(t, 1, b1.Count("ping"))
	assert.Equal(t, 0, a1.Count("typing"))
	assert.Equal(t, 1, b1.Count("typing"))
}

func TestJoinIsIdempotent(t *testing.T) {
	hub := realtime.NewHub()
	c := realtimetest.NewConn("c1")
	hub.Register("alice", c)

	assert.True(t, hub.Join("c1", "room"))
	assert.True(t, hub.Join("c1", "room"))
	assert.Equal(t, 1, hub.RoomSize("room"))

	hub.BroadcastToRoom("room", "msg", nil, "")
	assert.Equal(t, 1, c.Count("msg"))
}

func TestJoinUnknownConnection(t *testing.T) {
	hub := realtime.NewHub()
	assert.False(t, hub.Join("ghost", "room"))
	assert.Equal(t, 0, hub.RoomSize("room"))
}

func TestUnregisterLeavesRooms(t *testing.T) {
	hub := realtime.NewHub()
	hub.Register("alice", realtimetest.NewConn("c1"))
	hub.Join("c1", "r1")
	hub.Join("c1", "r2")
	assert.Equal(t, []string{"r1", "r2"}, hub.Rooms("c1"))

	hub.Unregister("c1")
	assert.Equal(t, 0, hub.RoomSize("r1"))
	assert.Equal(t, 0, hub.RoomSize("r2"))
	assert.Nil(t, hub.Rooms("c1"))
	assert.False(t, hub.InRoom("c1", "r1"))
}

func TestEmitToUserReachesEveryDevice(t *testing.T) {
	hub := realtime.NewHub()
	a1, a2 := realtimetest.NewConn("a1"), realtimetest.NewConn("a2")
	hub.Register("alice", a1)
	hub.Register("alice", a2)

	assert.Equal(t, 2, hub.EmitToUser("alice", "incomingCall", "x"))
	assert.Equal(t, 0, hub.EmitToUser("bob", "incomingCall", "x"))
	assert.Equal(t, []interface{}{"x"}, a1.Events("incomingCall"))
	assert.Equal(t, []interface{}{"x"}, a2.Events("incomingCall"))
}
