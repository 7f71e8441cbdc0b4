package services

import (
	"context"

	"github.com/suvankar11223/chatzi-sub000/internal/models"
	"gorm.io/gorm"
)

// Participants answers membership queries straight from the store.
type Participants struct {
	db *gorm.DB
}

func NewParticipants(db *gorm.DB) *Participants {
	return &Participants{db: db}
}

func (p *Participants) ConversationIDsForUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := p.db.WithContext(ctx).
		Model(&models.ConversationParticipant{}).
		Where("user_id = ?", userID).
		Pluck("conversation_id", &ids).Error
	return ids, err
}

func (p *Participants) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	return count > 0, err
}

func (p *Participants) UserIDs(ctx context.Context, conversationID string) ([]string, error) {
	var ids []string
	err := p.db.WithContext(ctx).
		Model(&models.ConversationParticipant{}).
		Where("conversation_id = ?", conversationID).
		Order("user_id").
		Pluck("user_id", &ids).Error
	return ids, err
}

// countUsers returns how many of ids exist in the user directory.
func countUsers(ctx context.Context, db *gorm.DB, ids []string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&models.User{}).Where("id IN ?", ids).Count(&count).Error
	return count, err
}
