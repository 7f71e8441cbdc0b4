package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Message is immutable after creation except for ReadBy.
// Seq is assigned per conversation and defines delivery order.
type Message struct {
	ID             string `gorm:"primaryKey;type:text" json:"id"`
	ConversationID string `gorm:"type:text;not null;uniqueIndex:idx_message_conversation_seq,priority:1" json:"conversationId"`
	Seq            int64  `gorm:"not null;uniqueIndex:idx_message_conversation_seq,priority:2" json:"seq"`
	SenderID       string `gorm:"type:text;not null;index" json:"senderId"`
	Content        string `gorm:"type:text" json:"content"`
	Attachment     string `gorm:"type:text" json:"attachment,omitempty"`

	// Idempotency Key (client-generated temp id for optimistic echo reconciliation)
	ClientMessageID *string `gorm:"type:text;index" json:"clientMessageId,omitempty"`

	ReadBy    datatypes.JSONSlice[string] `json:"readBy"`
	CreatedAt time.Time                   `gorm:"index" json:"createdAt"`

	Sender User `gorm:"foreignKey:SenderID" json:"sender"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.ReadBy == nil {
		m.ReadBy = datatypes.JSONSlice[string]{}
	}
	return
}
