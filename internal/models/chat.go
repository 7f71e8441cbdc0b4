package models

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ConversationType string

const (
	ConversationDirect ConversationType = "direct"
	ConversationGroup  ConversationType = "group"
)

func (t ConversationType) Valid() bool {
	return t == ConversationDirect || t == ConversationGroup
}

// Conversation is a direct (exactly two participants) or group thread.
// DirectKey is only set for direct conversations; its unique index is what
// keeps a pair of users from ending up with two direct threads.
type Conversation struct {
	ID        string           `gorm:"primaryKey;type:text" json:"id"`
	Type      ConversationType `gorm:"type:text;not null;index" json:"type"`
	Name      string           `gorm:"type:text" json:"name,omitempty"`
	Avatar    string           `gorm:"type:text" json:"avatar,omitempty"`
	OwnerID   *string          `gorm:"type:text" json:"ownerId,omitempty"`
	DirectKey *string          `gorm:"type:text;uniqueIndex" json:"-"`

	LastMessageID *string    `gorm:"type:text" json:"lastMessageId"`
	LastMessageAt *time.Time `gorm:"index" json:"lastMessageAt"`
	LastMessage   *Message   `gorm:"foreignKey:LastMessageID" json:"lastMessage,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"participants"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}

// ParticipantIDs returns the user ids of the loaded participants.
func (c *Conversation) ParticipantIDs() []string {
	ids := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

// ConversationParticipant tracks who is in a conversation and how many
// messages they have not read yet.
type ConversationParticipant struct {
	ConversationID string    `gorm:"primaryKey;type:text" json:"conversationId"`
	UserID         string    `gorm:"primaryKey;type:text;index" json:"userId"`
	UnreadCount    int       `gorm:"not null;default:0" json:"unreadCount"`
	JoinedAt       time.Time `json:"joinedAt"`

	User User `gorm:"foreignKey:UserID" json:"user"`
}

// DirectKey builds the order-independent key for a pair of users.
func DirectKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, ":")
}
