package realtime

import (
	"context"

	apperrors "github.com/suvankar11223/chatzi-sub000/pkg/errors"
)

// ConversationLister answers membership questions from persisted state.
type ConversationLister interface {
	ConversationIDsForUser(ctx context.Context, userID string) ([]string, error)
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
}

// Membership decides which rooms a connection belongs to. Room state in the
// hub is a cache of persisted participant lists and is rebuilt from them.
type Membership struct {
	hub    *Hub
	lister ConversationLister
}

func NewMembership(hub *Hub, lister ConversationLister) *Membership {
	return &Membership{hub: hub, lister: lister}
}

// Sweep joins a connection to its user's personal room and to one room per
// conversation the user participates in. Safe to repeat.
func (m *Membership) Sweep(ctx context.Context, connID, userID string) ([]string, error) {
	if !m.hub.Join(connID, userID) {
		return nil, apperrors.NotFound("connection not registered")
	}

	ids, err := m.lister.ConversationIDsForUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load conversations")
	}
	for _, id := range ids {
		m.hub.Join(connID, id)
	}
	return m.hub.Rooms(connID), nil
}

// JoinConversation joins one room after checking the user participates.
func (m *Membership) JoinConversation(ctx context.Context, connID, userID, conversationID string) error {
	ok, err := m.lister.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return apperrors.Wrap(err, "failed to check membership")
	}
	if !ok {
		return apperrors.Forbidden("not a participant of this conversation")
	}
	m.hub.Join(connID, conversationID)
	return nil
}

// JoinParticipants puts every live connection of each user into the
// conversation room. Used right after a conversation is created so members
// receive messages without rejoining.
func (m *Membership) JoinParticipants(conversationID string, userIDs []string) int {
	n := 0
	for _, uid := range userIDs {
		n += m.hub.JoinUser(uid, conversationID)
	}
	return n
}
