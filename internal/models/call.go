package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CallKind string

const (
	CallVoice CallKind = "voice"
	CallVideo CallKind = "video"
)

func (k CallKind) Valid() bool {
	return k == CallVoice || k == CallVideo
}

// CallStatus is the persisted outcome. It only moves forward:
// missed -> completed or missed -> declined.
type CallStatus string

const (
	CallMissed    CallStatus = "missed"
	CallDeclined  CallStatus = "declined"
	CallCompleted CallStatus = "completed"
)

type Call struct {
	ID             string     `gorm:"primaryKey;type:text" json:"id"`
	CallerID       string     `gorm:"type:text;not null;index" json:"callerId"`
	ReceiverID     string     `gorm:"type:text;not null;index" json:"receiverId"`
	ConversationID *string    `gorm:"type:text;index" json:"conversationId,omitempty"`
	Kind           CallKind   `gorm:"type:text;not null" json:"callType"`
	Status         CallStatus `gorm:"type:text;not null;default:'missed'" json:"status"`
	SessionID      string     `gorm:"type:text;not null;index" json:"sessionId"`
	StartedAt      *time.Time `json:"startedAt"`
	EndedAt        *time.Time `json:"endedAt"`
	Duration       int        `gorm:"not null;default:0" json:"duration"`
	CreatedAt      time.Time  `gorm:"index" json:"createdAt"`

	Caller   User `gorm:"foreignKey:CallerID" json:"caller"`
	Receiver User `gorm:"foreignKey:ReceiverID" json:"receiver"`
}

func (c *Call) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}

// Participant reports whether userID is the caller or the receiver.
func (c *Call) Participant(userID string) bool {
	return c.CallerID == userID || c.ReceiverID == userID
}

// Peer returns the other side of the call.
func (c *Call) Peer(userID string) string {
	if c.CallerID == userID {
		return c.ReceiverID
	}
	return c.CallerID
}

// All lists every model owned by this service, in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Conversation{},
		&ConversationParticipant{},
		&Message{},
		&Call{},
	}
}
