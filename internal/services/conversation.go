package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/suvankar11223/chatzi-sub000/internal/models"
	apperrors "github.com/suvankar11223/chatzi-sub000/pkg/errors"
	"github.com/suvankar11223/chatzi-sub000/pkg/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateConversationInput mirrors the newConversation payload.
// Participants may or may not include the creator.
type CreateConversationInput struct {
	Type         models.ConversationType
	Participants []string
	Name         string
	Avatar       string
}

// Directory creates and looks up conversations.
type Directory struct {
	db           *gorm.DB
	participants *Participants
	fanout       Fanout
	rooms        RoomJoiner
	allowedHosts []string
	locks        *keyedMutex
}

func NewDirectory(db *gorm.DB, participants *Participants, fanout Fanout, rooms RoomJoiner, allowedHosts []string) *Directory {
	return &Directory{
		db:           db,
		participants: participants,
		fanout:       fanout,
		rooms:        rooms,
		allowedHosts: allowedHosts,
		locks:        newKeyedMutex(),
	}
}

// Create dispatches on the conversation type, then joins every participant's
// live connections to the room and pushes the populated conversation to each
// participant individually.
func (d *Directory) Create(ctx context.Context, creatorID string, in CreateConversationInput) (*models.Conversation, error) {
	var (
		conv *models.Conversation
		err  error
	)

	switch in.Type {
	case models.ConversationDirect:
		others := uniqueIDs(in.Participants, creatorID)
		if len(others) != 1 {
			return nil, apperrors.BadRequest("a direct conversation needs exactly one other participant")
		}
		conv, _, err = d.GetOrCreateDirect(ctx, creatorID, others[0])
	case models.ConversationGroup:
		conv, err = d.CreateGroup(ctx, creatorID, in.Participants, in.Name, in.Avatar)
	default:
		return nil, apperrors.BadRequest("type must be one of: direct group")
	}
	if err != nil {
		return nil, err
	}

	d.announce(conv)
	return conv, nil
}

// GetOrCreateDirect returns the direct conversation between a and b,
// creating it when it does not exist yet. The bool reports creation.
func (d *Directory) GetOrCreateDirect(ctx context.Context, a, b string) (*models.Conversation, bool, error) {
	if a == "" || b == "" {
		return nil, false, apperrors.BadRequest("participant id is required")
	}
	if a == b {
		return nil, false, apperrors.BadRequest("cannot start a direct conversation with yourself")
	}
	if err := d.requireUsers(ctx, []string{a, b}); err != nil {
		return nil, false, err
	}

	key := models.DirectKey(a, b)
	unlock := d.locks.Lock(key)
	defer unlock()

	if conv, err := d.findDirect(ctx, key); err == nil {
		return conv, false, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, apperrors.Wrap(err, "failed to look up conversation")
	}

	created := false
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv := models.Conversation{Type: models.ConversationDirect, DirectKey: &key}
		res := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "direct_key"}}, DoNothing: true}).
			Create(&conv)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Another process won the race; its row is read below.
			return nil
		}
		created = true
		return addParticipants(tx, conv.ID, []string{a, b})
	})
	if err != nil {
		return nil, false, apperrors.Wrap(err, "failed to create conversation")
	}

	conv, err := d.findDirect(ctx, key)
	if err != nil {
		return nil, false, apperrors.Wrap(err, "failed to load conversation")
	}
	return conv, created, nil
}

// CreateGroup always creates a new conversation. The creator is recorded as
// owner and added to the participants. Groups need a name and at least two
// distinct participants.
func (d *Directory) CreateGroup(ctx context.Context, creatorID string, participantIDs []string, name, avatar string) (*models.Conversation, error) {
	if creatorID == "" {
		return nil, apperrors.BadRequest("creator id is required")
	}
	for _, id := range participantIDs {
		if strings.TrimSpace(id) == "" {
			return nil, apperrors.BadRequest("participant id is required")
		}
	}

	name = utils.SanitizeName(name)
	if name == "" {
		return nil, apperrors.BadRequest("group name is required")
	}
	if err := d.checkAvatar(avatar); err != nil {
		return nil, err
	}

	ids := append([]string{creatorID}, uniqueIDs(participantIDs, creatorID)...)
	if len(ids) < 2 {
		return nil, apperrors.BadRequest("a group needs at least 2 participants")
	}
	if err := d.requireUsers(ctx, ids); err != nil {
		return nil, err
	}

	owner := creatorID
	conv := models.Conversation{
		Type:    models.ConversationGroup,
		Name:    name,
		Avatar:  strings.TrimSpace(avatar),
		OwnerID: &owner,
	}
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&conv).Error; err != nil {
			return err
		}
		return addParticipants(tx, conv.ID, ids)
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create group")
	}

	return d.load(ctx, conv.ID)
}

// UpdateGroup renames a group or changes its avatar. Any participant may do
// so; the room is told about the change.
func (d *Directory) UpdateGroup(ctx context.Context, requesterID, conversationID string, name, avatar *string) (*models.Conversation, error) {
	conv, err := d.Get(ctx, requesterID, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.Type != models.ConversationGroup {
		return nil, apperrors.BadRequest("only group conversations can be updated")
	}

	updates := map[string]interface{}{}
	if name != nil {
		n := utils.SanitizeName(*name)
		if n == "" {
			return nil, apperrors.BadRequest("group name is required")
		}
		updates["name"] = n
	}
	if avatar != nil {
		if err := d.checkAvatar(*avatar); err != nil {
			return nil, err
		}
		updates["avatar"] = strings.TrimSpace(*avatar)
	}
	if len(updates) == 0 {
		return conv, nil
	}
	updates["updated_at"] = time.Now()

	if err := d.db.WithContext(ctx).Model(&models.Conversation{}).Where("id = ?", conv.ID).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(err, "failed to update conversation")
	}

	conv, err = d.load(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	d.fanout.BroadcastToRoom(conv.ID, EventConversationUpdated, conv, "")
	return conv, nil
}

// Get returns a populated conversation the requester participates in.
func (d *Directory) Get(ctx context.Context, requesterID, conversationID string) (*models.Conversation, error) {
	conv, err := d.load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	for _, p := range conv.Participants {
		if p.UserID == requesterID {
			return conv, nil
		}
	}
	return nil, apperrors.Forbidden("not a participant of this conversation")
}

// ListForUser returns the user's conversations, most recently active first.
func (d *Directory) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	ids, err := d.participants.ConversationIDsForUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list conversations")
	}
	convs := []models.Conversation{}
	if len(ids) == 0 {
		return convs, nil
	}

	err = d.populated(ctx).
		Where("id IN ?", ids).
		Order("COALESCE(last_message_at, created_at) DESC").
		Find(&convs).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list conversations")
	}
	return convs, nil
}

func (d *Directory) announce(conv *models.Conversation) {
	ids := conv.ParticipantIDs()
	if d.rooms != nil {
		d.rooms.JoinParticipants(conv.ID, ids)
	}
	for _, uid := range ids {
		d.fanout.EmitToUser(uid, EventNewConversation, conv)
	}
}

func (d *Directory) populated(ctx context.Context) *gorm.DB {
	return d.db.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB { return db.Order("joined_at, user_id") }).
		Preload("Participants.User").
		Preload("LastMessage").
		Preload("LastMessage.Sender")
}

func (d *Directory) load(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := d.populated(ctx).First(&conv, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("conversation not found")
		}
		return nil, apperrors.Wrap(err, "failed to load conversation")
	}
	return &conv, nil
}

func (d *Directory) findDirect(ctx context.Context, key string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := d.populated(ctx).First(&conv, "direct_key = ?", key).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (d *Directory) requireUsers(ctx context.Context, ids []string) error {
	n, err := countUsers(ctx, d.db, ids)
	if err != nil {
		return apperrors.Wrap(err, "failed to look up participants")
	}
	if n != int64(len(ids)) {
		return apperrors.BadRequest("unknown participant")
	}
	return nil
}

func (d *Directory) checkAvatar(avatar string) error {
	if strings.TrimSpace(avatar) == "" {
		return nil
	}
	if err := utils.ValidateAttachmentURL(avatar, d.allowedHosts); err != nil {
		return apperrors.BadRequest(err.Error())
	}
	return nil
}

func addParticipants(tx *gorm.DB, conversationID string, userIDs []string) error {
	now := time.Now()
	rows := make([]models.ConversationParticipant, 0, len(userIDs))
	for _, uid := range userIDs {
		rows = append(rows, models.ConversationParticipant{
			ConversationID: conversationID,
			UserID:         uid,
			JoinedAt:       now,
		})
	}
	return tx.Omit(clause.Associations).Create(&rows).Error
}

// uniqueIDs trims, drops empties and duplicates, and removes exclude.
func uniqueIDs(ids []string, exclude string) []string {
	seen := map[string]struct{}{exclude: {}}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
