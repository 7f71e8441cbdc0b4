package realtime

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/suvankar11223/chatzi-sub000/pkg/errors"
	"github.com/suvankar11223/chatzi-sub000/pkg/logger"
)

// Client -> server events.
const (
	EventJoinConversation    = "joinConversation"
	EventRejoinConversations = "rejoinConversations"
	EventNewConversation     = "newConversation"
	EventUpdateConversation  = "updateConversation"
	EventNewMessage          = "newMessage"
	EventGetMessages         = "getMessages"
	EventGetOnlineUsers      = "getOnlineUsers"
	EventTyping              = "typing"
	EventMarkRead            = "markRead"
	EventInitiateCall        = "initiateCall"
	EventAnswerCall          = "answerCall"
	EventDeclineCall         = "declineCall"
	EventEndCall             = "endCall"
)

type JoinConversationRequest struct {
	ConversationID string `json:"conversationId" validate:"required"`
}

type NewConversationRequest struct {
	Type         string   `json:"type" validate:"required,oneof=direct group"`
	Participants []string `json:"participants" validate:"required,min=1,dive,required"`
	Name         string   `json:"name" validate:"max=120"`
	Avatar       string   `json:"avatar" validate:"omitempty,url"`
}

type UpdateConversationRequest struct {
	ConversationID string  `json:"conversationId" validate:"required"`
	Name           *string `json:"name" validate:"omitempty,max=120"`
	Avatar         *string `json:"avatar" validate:"omitempty,url"`
}

type NewMessageRequest struct {
	ConversationID  string `json:"conversationId" validate:"required"`
	Content         string `json:"content"`
	Attachment      string `json:"attachment" validate:"omitempty,url"`
	ClientMessageID string `json:"clientMessageId" validate:"max=64"`
}

type GetMessagesRequest struct {
	ConversationID string `json:"conversationId" validate:"required"`
	Limit          int    `json:"limit" validate:"min=0,max=200"`
	BeforeSeq      int64  `json:"beforeSeq" validate:"min=0"`
}

type TypingRequest struct {
	ConversationID string `json:"conversationId" validate:"required"`
	IsTyping       bool   `json:"isTyping"`
}

type MarkReadRequest struct {
	ConversationID string `json:"conversationId" validate:"required"`
	MessageID      string `json:"messageId" validate:"required"`
}

type InitiateCallRequest struct {
	ReceiverID     string `json:"receiverId" validate:"required"`
	CallType       string `json:"callType" validate:"required,oneof=voice video"`
	ConversationID string `json:"conversationId"`
	SessionID      string `json:"sessionId" validate:"required,max=128"`
}

type CallActionRequest struct {
	CallID string `json:"callId" validate:"required"`
}

// Ack is the reply to every request/response style event.
type Ack struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(data interface{}) Ack {
	return Ack{Success: true, Data: data}
}

// Fail turns an error into a failed ack. Internal causes are logged here
// and never sent to the client.
func Fail(err error) Ack {
	appErr := apperrors.From(err)
	if appErr.Code >= http.StatusInternalServerError && appErr.Code != http.StatusServiceUnavailable {
		logger.Error().Err(err).Msg(appErr.Message)
	}
	return Ack{Success: false, Message: appErr.Message}
}

// FailWith is Fail plus a data field, for failures that still carry a
// result (an offline receiver still has a call record).
func FailWith(err error, data interface{}) Ack {
	ack := Fail(err)
	ack.Data = data
	return ack
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks a payload against its tags and returns a 400 AppError
// describing the first problem.
func Validate(payload interface{}) error {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return apperrors.BadRequest(describe(verrs[0]))
	}
	return apperrors.BadRequest("invalid payload")
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
