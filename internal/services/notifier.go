package services

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/suvankar11223/chatzi-sub000/internal/metrics"
	"github.com/suvankar11223/chatzi-sub000/internal/models"
	apperrors "github.com/suvankar11223/chatzi-sub000/pkg/errors"
	"github.com/suvankar11223/chatzi-sub000/pkg/logger"
	"gorm.io/gorm"
)

const (
	// Minimum interval between typing=true events per user per conversation.
	typingThrottle = 3 * time.Second
	// Clients drop the indicator on their own after this.
	typingExpiry = 4 * time.Second
	typingSweep  = time.Minute
)

type TypingEvent struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	IsTyping       bool   `json:"isTyping"`
	ExpiresAt      int64  `json:"expiresAt,omitempty"`
}

type ReadEvent struct {
	ConversationID string    `json:"conversationId"`
	MessageID      string    `json:"messageId"`
	UserID         string    `json:"userId"`
	ReadAt         time.Time `json:"readAt"`
}

// Notifier fans out transient UI state. Nothing it sends is persisted,
// apart from resetting the reader's unread counter.
type Notifier struct {
	db     *gorm.DB
	fanout Fanout
	now    func() time.Time

	mu         sync.Mutex
	lastTyping map[string]time.Time
	lastSweep  time.Time
}

func NewNotifier(db *gorm.DB, fanout Fanout) *Notifier {
	return &Notifier{
		db:         db,
		fanout:     fanout,
		now:        time.Now,
		lastTyping: make(map[string]time.Time),
	}
}

// Typing tells the rest of the room that userID started or stopped typing.
// The sender's own connections are skipped. It reports whether anything was
// sent; repeated typing=true events inside the throttle window are dropped.
func (n *Notifier) Typing(userID, conversationID string, isTyping bool) bool {
	key := userID + "|" + conversationID
	now := n.now()

	n.mu.Lock()
	n.sweepLocked(now)
	if isTyping {
		if last, ok := n.lastTyping[key]; ok && now.Sub(last) < typingThrottle {
			n.mu.Unlock()
			return false
		}
		n.lastTyping[key] = now
	} else {
		delete(n.lastTyping, key)
	}
	n.mu.Unlock()

	ev := TypingEvent{ConversationID: conversationID, UserID: userID, IsTyping: isTyping}
	if isTyping {
		ev.ExpiresAt = now.Add(typingExpiry).Unix()
	}
	n.fanout.BroadcastToRoom(conversationID, EventUserTyping, ev, userID)
	return true
}

// sweepLocked forgets throttle windows that have already closed, so users
// who disconnect mid-typing do not leave entries behind.
func (n *Notifier) sweepLocked(now time.Time) {
	if now.Sub(n.lastSweep) < typingSweep {
		return
	}
	for key, last := range n.lastTyping {
		if now.Sub(last) >= typingThrottle {
			delete(n.lastTyping, key)
		}
	}
	n.lastSweep = now
}

// MarkRead acknowledges a read marker to the whole room, sender included,
// then records the reader on the message and clears their unread counter.
func (n *Notifier) MarkRead(ctx context.Context, userID, conversationID, messageID string) error {
	var msg models.Message
	err := n.db.WithContext(ctx).
		Select("id", "conversation_id", "read_by").
		First(&msg, "id = ? AND conversation_id = ?", messageID, conversationID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("message not found in this conversation")
		}
		return apperrors.Wrap(err, "failed to look up message")
	}

	n.fanout.BroadcastToRoom(conversationID, EventMessageRead, ReadEvent{
		ConversationID: conversationID,
		MessageID:      messageID,
		UserID:         userID,
		ReadAt:         n.now(),
	}, "")

	ctx = context.WithoutCancel(ctx)
	if !slices.Contains(msg.ReadBy, userID) {
		err = n.db.WithContext(ctx).Model(&models.Message{}).
			Where("id = ?", msg.ID).
			Update("read_by", append(msg.ReadBy, userID)).Error
		if err != nil {
			metrics.SecondaryWriteFailures.WithLabelValues("read_by").Inc()
			logger.Warn().Err(err).Str("message_id", msg.ID).Msg("failed to record reader")
		}
	}

	err = n.db.WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		UpdateColumn("unread_count", 0).Error
	if err != nil {
		metrics.SecondaryWriteFailures.WithLabelValues("unread_reset").Inc()
		logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("failed to reset unread counter")
	}
	return nil
}
