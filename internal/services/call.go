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
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CallPhase is the UI-facing state of a call. It is derived from the
// persisted record and never stored.
type CallPhase string

const (
	PhaseRinging CallPhase = "ringing"
	PhaseActive  CallPhase = "active"
	PhaseEnded   CallPhase = "ended"
)

// PhaseOf derives the phase from a call record.
func PhaseOf(c *models.Call) CallPhase {
	switch {
	case c.EndedAt != nil, c.Status == models.CallDeclined:
		return PhaseEnded
	case c.Status == models.CallCompleted:
		return PhaseActive
	default:
		return PhaseRinging
	}
}

type InitiateInput struct {
	CallerID       string
	ReceiverID     string
	Kind           models.CallKind
	ConversationID string
	SessionID      string
}

// CallView is a call plus its derived phase.
type CallView struct {
	*models.Call
	Phase CallPhase `json:"phase"`
}

func viewOf(c *models.Call) CallView {
	return CallView{Call: c, Phase: PhaseOf(c)}
}

// InitiateResult is returned to the caller. Token lets the caller join the
// media session.
type InitiateResult struct {
	Call  CallView `json:"call"`
	Token string   `json:"token,omitempty"`
}

type IncomingCall struct {
	Call      CallView           `json:"call"`
	Caller    models.UserSummary `json:"caller"`
	SessionID string             `json:"sessionId"`
	Token     string             `json:"token"`
}

type CallSignal struct {
	CallID    string            `json:"callId"`
	SessionID string            `json:"sessionId"`
	Status    models.CallStatus `json:"status"`
	Phase     CallPhase         `json:"phase"`
	Duration  int               `json:"duration"`
	By        string            `json:"by"`
}

func signalOf(c *models.Call, by string) CallSignal {
	return CallSignal{
		CallID:    c.ID,
		SessionID: c.SessionID,
		Status:    c.Status,
		Phase:     PhaseOf(c),
		Duration:  c.Duration,
		By:        by,
	}
}

// CallService runs the call lifecycle: initiate -> ring -> answer/decline
// -> end. Every notification targets all live connections of a user.
type CallService struct {
	db           *gorm.DB
	participants *Participants
	fanout       Fanout
	presence     Presence
	issuer       TokenIssuer
	ttl          time.Duration
	locks        *keyedMutex
	now          func() time.Time
}

func NewCallService(db *gorm.DB, participants *Participants, fanout Fanout, presence Presence, issuer TokenIssuer, ttl time.Duration) *CallService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CallService{
		db:           db,
		participants: participants,
		fanout:       fanout,
		presence:     presence,
		issuer:       issuer,
		ttl:          ttl,
		locks:        newKeyedMutex(),
		now:          time.Now,
	}
}

// Initiate issues transport credentials, records the call and rings every
// device of the receiver. Credentials are issued before anything is
// persisted, so an unconfigured transport leaves no record behind.
//
// When the receiver has no live connection the call is recorded as missed,
// closed immediately, and returned together with an Unavailable error.
func (s *CallService) Initiate(ctx context.Context, in InitiateInput) (*InitiateResult, error) {
	in.SessionID = strings.TrimSpace(in.SessionID)
	switch {
	case in.ReceiverID == "":
		return nil, apperrors.BadRequest("receiverId is required")
	case !in.Kind.Valid():
		return nil, apperrors.BadRequest("callType must be one of: voice video")
	case in.SessionID == "":
		return nil, apperrors.BadRequest("sessionId is required")
	case in.ReceiverID == in.CallerID:
		return nil, apperrors.BadRequest("cannot call yourself")
	}

	var caller, receiver models.User
	if err := s.db.WithContext(ctx).First(&receiver, "id = ?", in.ReceiverID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.BadRequest("unknown receiver")
		}
		return nil, apperrors.Wrap(err, "failed to look up receiver")
	}
	if err := s.db.WithContext(ctx).First(&caller, "id = ?", in.CallerID).Error; err != nil {
		return nil, apperrors.Wrap(err, "failed to look up caller")
	}

	var conversationID *string
	if in.ConversationID != "" {
		for _, uid := range []string{in.CallerID, in.ReceiverID} {
			ok, err := s.participants.IsParticipant(ctx, in.ConversationID, uid)
			if err != nil {
				return nil, apperrors.Wrap(err, "failed to check membership")
			}
			if !ok {
				return nil, apperrors.Forbidden("both parties must belong to the conversation")
			}
		}
		id := in.ConversationID
		conversationID = &id
	}

	receiverToken, err := s.issuer.Issue(in.ReceiverID, in.SessionID, s.ttl)
	if err != nil {
		return nil, unavailable(err)
	}
	callerToken, err := s.issuer.Issue(in.CallerID, in.SessionID, s.ttl)
	if err != nil {
		return nil, unavailable(err)
	}

	call := &models.Call{
		CallerID:       in.CallerID,
		ReceiverID:     in.ReceiverID,
		ConversationID: conversationID,
		Kind:           in.Kind,
		Status:         models.CallMissed,
		SessionID:      in.SessionID,
		CreatedAt:      s.now(),
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(call).Error; err != nil {
		return nil, apperrors.Wrap(err, "failed to record call")
	}
	call.Caller = caller
	call.Receiver = receiver

	delivered := 0
	if s.presence.ConnectionCount(in.ReceiverID) > 0 {
		delivered = s.fanout.EmitToUser(in.ReceiverID, EventIncomingCall, IncomingCall{
			Call:      viewOf(call),
			Caller:    caller.Summary(),
			SessionID: call.SessionID,
			Token:     receiverToken,
		})
	}

	if delivered == 0 {
		s.closeUnreachable(ctx, call)
		metrics.CallTransitions.WithLabelValues("unreachable").Inc()
		return &InitiateResult{Call: viewOf(call)}, apperrors.Unavailable("receiver is offline")
	}

	metrics.CallTransitions.WithLabelValues("initiate").Inc()
	return &InitiateResult{Call: viewOf(call), Token: callerToken}, nil
}

// closeUnreachable stamps endedAt on a call nobody could receive. Status
// stays missed.
func (s *CallService) closeUnreachable(ctx context.Context, call *models.Call) {
	now := s.now()
	err := s.db.WithContext(context.WithoutCancel(ctx)).Model(&models.Call{}).
		Where("id = ? AND ended_at IS NULL", call.ID).
		Updates(map[string]interface{}{"ended_at": now, "duration": 0}).Error
	if err != nil {
		logger.Warn().Err(err).Str("call_id", call.ID).Msg("failed to close unreachable call")
		return
	}
	call.EndedAt = &now
}

// Answer moves a ringing call to completed and tells the caller's devices
// which session to join.
func (s *CallService) Answer(ctx context.Context, userID, callID string) (*CallView, error) {
	unlock := s.locks.Lock(callID)
	defer unlock()

	call, err := s.ringingFor(ctx, userID, callID, "answer")
	if err != nil {
		return nil, err
	}

	now := s.now()
	res := s.db.WithContext(ctx).Model(&models.Call{}).
		Where("id = ? AND status = ? AND started_at IS NULL AND ended_at IS NULL", call.ID, models.CallMissed).
		Updates(map[string]interface{}{"status": models.CallCompleted, "started_at": now})
	if res.Error != nil {
		return nil, apperrors.Wrap(res.Error, "failed to answer call")
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.Conflict("call is no longer ringing")
	}
	call.Status = models.CallCompleted
	call.StartedAt = &now

	sig := signalOf(call, userID)
	s.fanout.EmitToUser(call.CallerID, EventCallAnswered, sig)
	s.fanout.EmitToUser(call.ReceiverID, EventCallHandled, sig)
	metrics.CallTransitions.WithLabelValues("answer").Inc()

	v := viewOf(call)
	return &v, nil
}

// Decline rejects a ringing call. Terminal.
func (s *CallService) Decline(ctx context.Context, userID, callID string) (*CallView, error) {
	unlock := s.locks.Lock(callID)
	defer unlock()

	call, err := s.ringingFor(ctx, userID, callID, "decline")
	if err != nil {
		return nil, err
	}

	res := s.db.WithContext(ctx).Model(&models.Call{}).
		Where("id = ? AND status = ? AND started_at IS NULL AND ended_at IS NULL", call.ID, models.CallMissed).
		Update("status", models.CallDeclined)
	if res.Error != nil {
		return nil, apperrors.Wrap(res.Error, "failed to decline call")
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.Conflict("call is no longer ringing")
	}
	call.Status = models.CallDeclined

	sig := signalOf(call, userID)
	s.fanout.EmitToUser(call.CallerID, EventCallDeclined, sig)
	s.fanout.EmitToUser(call.ReceiverID, EventCallHandled, sig)
	metrics.CallTransitions.WithLabelValues("decline").Inc()

	v := viewOf(call)
	return &v, nil
}

// End closes a call from either side. Duration counts from the answer; a
// call that was never answered ends with duration 0 and keeps its status.
func (s *CallService) End(ctx context.Context, userID, callID string) (*CallView, error) {
	unlock := s.locks.Lock(callID)
	defer unlock()

	call, err := s.find(ctx, callID)
	if err != nil {
		return nil, err
	}
	if !call.Participant(userID) {
		return nil, apperrors.Forbidden("not a participant of this call")
	}
	if PhaseOf(call) == PhaseEnded {
		return nil, apperrors.Conflict("call already ended")
	}

	now := s.now()
	duration := 0
	if call.StartedAt != nil {
		duration = int(now.Sub(*call.StartedAt) / time.Second)
		if duration < 0 {
			duration = 0
		}
	}

	res := s.db.WithContext(ctx).Model(&models.Call{}).
		Where("id = ? AND ended_at IS NULL", call.ID).
		Updates(map[string]interface{}{"ended_at": now, "duration": duration})
	if res.Error != nil {
		return nil, apperrors.Wrap(res.Error, "failed to end call")
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.Conflict("call already ended")
	}
	call.EndedAt = &now
	call.Duration = duration

	s.fanout.EmitToUser(call.Peer(userID), EventCallEnded, signalOf(call, userID))
	metrics.CallTransitions.WithLabelValues("end").Inc()

	v := viewOf(call)
	return &v, nil
}

// History lists calls the user took part in, newest first.
func (s *CallService) History(ctx context.Context, userID string, limit int) ([]models.Call, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	calls := []models.Call{}
	err := s.db.WithContext(ctx).
		Preload("Caller").
		Preload("Receiver").
		Where("caller_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&calls).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load call history")
	}
	return calls, nil
}

func (s *CallService) ringingFor(ctx context.Context, userID, callID, action string) (*models.Call, error) {
	call, err := s.find(ctx, callID)
	if err != nil {
		return nil, err
	}
	if call.ReceiverID != userID {
		if call.CallerID == userID {
			return nil, apperrors.Forbidden("only the receiver can " + action + " a call")
		}
		return nil, apperrors.Forbidden("not a participant of this call")
	}
	if PhaseOf(call) != PhaseRinging {
		return nil, apperrors.Conflict("call is no longer ringing")
	}
	return call, nil
}

func (s *CallService) find(ctx context.Context, callID string) (*models.Call, error) {
	if callID == "" {
		return nil, apperrors.BadRequest("callId is required")
	}
	var call models.Call
	if err := s.db.WithContext(ctx).First(&call, "id = ?", callID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("call not found")
		}
		return nil, apperrors.Wrap(err, "failed to load call")
	}
	return &call, nil
}

func unavailable(err error) error {
	if errors.Is(err, ErrTransportUnconfigured) {
		return &apperrors.AppError{Code: apperrors.ErrUnavailable.Code, Message: "calling is not available: " + err.Error(), Err: err}
	}
	return &apperrors.AppError{Code: apperrors.ErrUnavailable.Code, Message: "failed to issue call credentials", Err: err}
}
