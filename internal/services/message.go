package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/suvankar11223/chatzi-sub000/internal/metrics"
	"github.com/suvankar11223/chatzi-sub000/internal/models"
	apperrors "github.com/suvankar11223/chatzi-sub000/pkg/errors"
	"github.com/suvankar11223/chatzi-sub000/pkg/logger"
	"github.com/suvankar11223/chatzi-sub000/pkg/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
	seqRetries      = 3
)

type SendInput struct {
	ConversationID  string
	SenderID        string
	Content         string
	Attachment      string
	ClientMessageID string
}

type FetchOptions struct {
	Limit     int
	BeforeSeq int64
}

// Pipeline validates, persists and fans out chat messages.
// Within one conversation, persistence order and broadcast order match.
type Pipeline struct {
	db           *gorm.DB
	participants *Participants
	fanout       Fanout
	allowedHosts []string
	locks        *keyedMutex
	now          func() time.Time
}

func NewPipeline(db *gorm.DB, participants *Participants, fanout Fanout, allowedHosts []string) *Pipeline {
	return &Pipeline{
		db:           db,
		participants: participants,
		fanout:       fanout,
		allowedHosts: allowedHosts,
		locks:        newKeyedMutex(),
		now:          time.Now,
	}
}

// Send persists a message and broadcasts it to the conversation room. The
// last-message pointer and unread counters are updated afterwards on a
// best-effort basis; failures there are logged and never reach the sender.
func (p *Pipeline) Send(ctx context.Context, in SendInput) (*models.Message, error) {
	if in.ConversationID == "" {
		return nil, apperrors.BadRequest("conversationId is required")
	}
	content, err := utils.SanitizeMessageContent(in.Content)
	if err != nil {
		return nil, apperrors.BadRequest(err.Error())
	}
	attachment := strings.TrimSpace(in.Attachment)
	if attachment != "" {
		if err := utils.ValidateAttachmentURL(attachment, p.allowedHosts); err != nil {
			return nil, apperrors.BadRequest(err.Error())
		}
	}
	if content == "" && attachment == "" {
		return nil, apperrors.BadRequest("message must have content or an attachment")
	}

	if err := p.authorize(ctx, in.ConversationID, in.SenderID); err != nil {
		return nil, err
	}

	unlock := p.locks.Lock(in.ConversationID)
	defer unlock()

	msg := &models.Message{
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Content:        content,
		Attachment:     attachment,
		CreatedAt:      p.now(),
	}
	if cid := strings.TrimSpace(in.ClientMessageID); cid != "" {
		msg.ClientMessageID = &cid
	}

	if err := p.insert(ctx, msg); err != nil {
		return nil, apperrors.Wrap(err, "failed to send message")
	}

	if err := p.db.WithContext(ctx).First(&msg.Sender, "id = ?", in.SenderID).Error; err != nil {
		logger.Warn().Err(err).Str("message_id", msg.ID).Msg("failed to resolve sender for broadcast")
	}

	p.fanout.BroadcastToRoom(in.ConversationID, EventNewMessage, msg, "")
	metrics.MessagesSent.Inc()

	p.touchConversation(ctx, msg)
	return msg, nil
}

// insert assigns the next sequence number and creates the row. The unique
// (conversation_id, seq) index catches writers in other processes.
func (p *Pipeline) insert(ctx context.Context, msg *models.Message) error {
	var err error
	for attempt := 0; attempt < seqRetries; attempt++ {
		var last int64
		err = p.db.WithContext(ctx).
			Model(&models.Message{}).
			Where("conversation_id = ?", msg.ConversationID).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&last).Error
		if err != nil {
			return err
		}

		msg.ID = ""
		msg.Seq = last + 1
		err = p.db.WithContext(ctx).Omit(clause.Associations).Create(msg).Error
		if err == nil || !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
	}
	return err
}

func (p *Pipeline) touchConversation(ctx context.Context, msg *models.Message) {
	ctx = context.WithoutCancel(ctx)
	err := p.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", msg.ConversationID).
		Updates(map[string]interface{}{
			"last_message_id": msg.ID,
			"last_message_at": msg.CreatedAt,
			"updated_at":      msg.CreatedAt,
		}).Error
	if err != nil {
		metrics.SecondaryWriteFailures.WithLabelValues("last_message").Inc()
		logger.Warn().Err(err).Str("conversation_id", msg.ConversationID).Msg("failed to update last message")
	}

	err = p.db.WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id <> ?", msg.ConversationID, msg.SenderID).
		UpdateColumn("unread_count", gorm.Expr("unread_count + 1")).Error
	if err != nil {
		metrics.SecondaryWriteFailures.WithLabelValues("unread_increment").Inc()
		logger.Warn().Err(err).Str("conversation_id", msg.ConversationID).Msg("failed to increment unread counters")
	}
}

// Fetch returns a page of messages, newest first.
func (p *Pipeline) Fetch(ctx context.Context, conversationID, requesterID string, opts FetchOptions) ([]models.Message, error) {
	if conversationID == "" {
		return nil, apperrors.BadRequest("conversationId is required")
	}
	if err := p.authorize(ctx, conversationID, requesterID); err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	q := p.db.WithContext(ctx).
		Preload("Sender").
		Where("conversation_id = ?", conversationID)
	if opts.BeforeSeq > 0 {
		q = q.Where("seq < ?", opts.BeforeSeq)
	}

	msgs := []models.Message{}
	if err := q.Order("seq DESC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, apperrors.Wrap(err, "failed to fetch messages")
	}
	return msgs, nil
}

func (p *Pipeline) authorize(ctx context.Context, conversationID, userID string) error {
	ok, err := p.participants.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return apperrors.Wrap(err, "failed to check membership")
	}
	if !ok {
		return apperrors.Forbidden("not a participant of this conversation")
	}
	return nil
}
