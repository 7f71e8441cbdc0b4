package services

import (
	"sync"
)

// Server -> client events emitted by the services.
const (
	EventNewConversation     = "newConversation"
	EventConversationUpdated = "conversationUpdated"
	EventNewMessage          = "newMessage"
	EventUserTyping          = "userTyping"
	EventMessageRead         = "messageRead"
	EventIncomingCall        = "incomingCall"
	EventCallAnswered        = "callAnswered"
	EventCallDeclined        = "callDeclined"
	EventCallEnded           = "callEnded"
	EventCallHandled         = "callHandled"
)

// Fanout delivers events to live connections. realtime.Hub implements it.
type Fanout interface {
	EmitToUser(userID, event string, payload interface{}) int
	BroadcastToRoom(room, event string, payload interface{}, exceptUserID string) int
}

// Presence reports live connection counts. realtime.Hub implements it.
type Presence interface {
	ConnectionCount(userID string) int
}

// RoomJoiner puts live connections into a conversation room.
// realtime.Membership implements it.
type RoomJoiner interface {
	JoinParticipants(conversationID string, userIDs []string) int
}

// keyedMutex serializes work per key (conversation or call id) while
// letting unrelated keys proceed in parallel.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock blocks until key is free and returns the matching unlock.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.mu.Lock()
	return func() {
		m.mu.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
