package handlers

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/suvankar11223/chatzi-sub000/internal/metrics"
	"github.com/suvankar11223/chatzi-sub000/internal/models"
	"github.com/suvankar11223/chatzi-sub000/internal/realtime"
	"github.com/suvankar11223/chatzi-sub000/internal/services"
	apperrors "github.com/suvankar11223/chatzi-sub000/pkg/errors"
	"github.com/suvankar11223/chatzi-sub000/pkg/logger"
)

const eventTimeout = 10 * time.Second

// EventLimiter throttles chatty client events per user.
type EventLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// SocketHandler binds socket.io events to the realtime core. Every
// collaborator is injected; there is no package level state.
type SocketHandler struct {
	Hub       *realtime.Hub
	Gate      *realtime.Gate
	Rooms     *realtime.Membership
	Directory *services.Directory
	Messages  *services.Pipeline
	Calls     *services.CallService
	Notifier  *services.Notifier
	Limiter   EventLimiter
}

// InitSocketServer builds the socket.io server and registers every event.
func InitSocketServer(h *SocketHandler, checkOrigin func(r *http.Request) bool) *socketio.Server {
	server := socketio.NewServer(&engineio.Options{
		Transports: []transport.Transport{
			&websocket.Transport{CheckOrigin: checkOrigin},
			&polling.Transport{CheckOrigin: checkOrigin},
		},
	})

	server.OnConnect("/", func(s socketio.Conn) error {
		s.SetContext(nil)
		sess, err := h.Connect(s, s.URL(), s.RemoteHeader())
		if err != nil {
			return err
		}
		s.SetContext(sess)
		return nil
	})

	server.OnEvent("/", realtime.EventJoinConversation, func(s socketio.Conn, req realtime.JoinConversationRequest) realtime.Ack {
		return h.handle(s, realtime.EventJoinConversation, func(ctx context.Context, sess *realtime.Session) realtime.Ack {
			return h.JoinConversation(ctx, sess, req)
		})
	})

	server.OnEvent("/", realtime.EventRejoinConversations, func(s socketio.Conn) realtime.Ack {
		return h.handle(s, realtime.EventRejoinConversations, h.Rejoin)
	})

	server.OnEvent("/", realtime.EventNewConversation, func(s socketio.Conn, req realtime.NewConversationRequest) realtime.Ack {
		return h.handle(s, realtime.EventNewConversation, func(ctx context.Context, sess *realtime.Session) realtime.Ack {
			return h.NewConversation(ctx, sess, req)
		})
	})

	server.OnEvent("/", realtime.EventUpdateConversation, func(s socketio.Conn, req realtime.UpdateConversationRequest) realtime.Ack {
		return h.handle(s, realtime.EventUpdateConversation, func(ctx context.Context, sess *realtime.Session) realtime.Ack {
			return h.UpdateConversation(ctx, sess, req)
		})
	})

	server.OnEvent("/", realtime.EventNewMessage, func(s socketio.Conn, req realtime.NewMessageRequest) realtime.Ack {
		return h.handle(s, realtime.EventNewMessage, func(ctx context.Context, sess *realtime.Session) realtime.Ack {
			return h.NewMessage(ctx, sess, req)
		})
	})

	server.OnEvent("/", realtime.EventGetMessages, func(s socketio.Conn, req realtime.GetMessagesRequest) realtime.Ack {
		return h.handle(s, realtime.EventGetMessages, func(ctx context.Context, sess *realtime.Session) realtime.Ack {
			return h.GetMessages(ctx, sess, req)
		})
	})

	server.OnEvent("/", realtime.EventGetOnlineUsers, func(s socketio.Conn) realtime.Ack {
		return h.handle(s, realtime.EventGetOnlineUsers, func(ctx context.Context, sess *realtime.Session) realtime.Ack {
			return realtime.OK(h.Hub.ListOnline())
		})
	})

	server.OnEvent("/", realtime.EventTyping, func(s socketio.Conn, req realtime.TypingRequest) {
		h.handle(s, realtime.EventTyping, func(ctx context.Context, sess *realtime.Session) realtime.Ack {
			return h.Typing(sess, req)
		})
	})

	server.OnEvent("/", realtime.EventMarkRead, func(s socketio.Conn, req realtime.MarkReadRequest) {
		h.handle(s, realtime.EventMarkRead, func(ctx context.Context, sess *realtime.Session) realtime.Ack {
			return h.MarkRead(ctx, sess, req)
		})
	})

	server.OnEvent("/", realtime.EventInitiateCall, func(s socketio.Conn, req realtime.InitiateCallRequest) realtime.Ack {
		return h.handle(s, realtime.EventInitiateCall, func(ctx context.Context, sess *realtime.Session) realtime.Ack {
			return h.InitiateCall(ctx, sess, req)
		})
	})

	server.OnEvent("/", realtime.EventAnswerCall, func(s socketio.Conn, req realtime.CallActionRequest) realtime.Ack {
		return h.handle(s, realtime.EventAnswerCall, func(ctx context.Context, sess *realtime.Session) realtime.Ack {
			return h.CallAction(ctx, sess, realtime.EventAnswerCall, req)
		})
	})

	server.OnEvent("/", realtime.EventDeclineCall, func(s socketio.Conn, req realtime.CallActionRequest) realtime.Ack {
		return h.handle(s, realtime.EventDeclineCall, func(ctx context.Context, sess *realtime.Session) realtime.Ack {
			return h.CallAction(ctx, sess, realtime.EventDeclineCall, req)
		})
	})

	server.OnEvent("/", realtime.EventEndCall, func(s socketio.Conn, req realtime.CallActionRequest) realtime.Ack {
		return h.handle(s, realtime.EventEndCall, func(ctx context.Context, sess *realtime.Session) realtime.Ack {
			return h.CallAction(ctx, sess, realtime.EventEndCall, req)
		})
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		h.Disconnect(s.ID(), reason)
	})

	server.OnError("/", func(s socketio.Conn, e error) {
		if s == nil {
			logger.Warn().Err(e).Msg("socket error")
			return
		}
		logger.Warn().Err(e).Str("conn_id", s.ID()).Msg("socket error")
	})

	return server
}

// SocketRoute wraps the socket.io server as a gin handler.
func SocketRoute(server *socketio.Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		server.ServeHTTP(c.Writer, c.Request)
	}
}

// Connect authenticates a handshake, registers the connection and joins its
// rooms. A returned error refuses the connection.
func (h *SocketHandler) Connect(conn realtime.Conn, u url.URL, header http.Header) (*realtime.Session, error) {
	sess, err := h.Gate.Authenticate(conn.ID(), u, header)
	if err != nil {
		metrics.ConnectionsRejected.WithLabelValues(err.Error()).Inc()
		logger.Warn().Str("conn_id", conn.ID()).Err(err).Msg("socket connection rejected")
		return nil, err
	}

	h.Hub.Register(sess.UserID, conn)

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	rooms, err := h.Rooms.Sweep(ctx, conn.ID(), sess.UserID)
	if err != nil {
		// The connection stays up; the client can ask to rejoin.
		logger.Error().Err(err).Str("conn_id", conn.ID()).Str("user_id", sess.UserID).Msg("room sweep failed")
	}

	conn.Emit(realtime.EventOnlineUsers, h.Hub.ListOnline())
	logger.Info().Str("conn_id", conn.ID()).Str("user_id", sess.UserID).Int("rooms", len(rooms)).Msg("socket authenticated")
	return sess, nil
}

func (h *SocketHandler) Disconnect(connID, reason string) {
	userID, last := h.Hub.Unregister(connID)
	if userID == "" {
		return
	}
	logger.Info().Str("conn_id", connID).Str("user_id", userID).Bool("offline", last).Str("reason", reason).Msg("socket closed")
}

func (h *SocketHandler) JoinConversation(ctx context.Context, sess *realtime.Session, req realtime.JoinConversationRequest) realtime.Ack {
	if err := realtime.Validate(req); err != nil {
		return realtime.Fail(err)
	}
	if err := h.Rooms.JoinConversation(ctx, sess.ConnID, sess.UserID, req.ConversationID); err != nil {
		return realtime.Fail(err)
	}
	return realtime.OK(gin.H{"conversationId": req.ConversationID})
}

func (h *SocketHandler) Rejoin(ctx context.Context, sess *realtime.Session) realtime.Ack {
	rooms, err := h.Rooms.Sweep(ctx, sess.ConnID, sess.UserID)
	if err != nil {
		return realtime.Fail(err)
	}
	return realtime.OK(gin.H{"rooms": rooms})
}

func (h *SocketHandler) NewConversation(ctx context.Context, sess *realtime.Session, req realtime.NewConversationRequest) realtime.Ack {
	if err := realtime.Validate(req); err != nil {
		return realtime.Fail(err)
	}
	conv, err := h.Directory.Create(ctx, sess.UserID, services.CreateConversationInput{
		Type:         models.ConversationType(req.Type),
		Participants: req.Participants,
		Name:         req.Name,
		Avatar:       req.Avatar,
	})
	if err != nil {
		return realtime.Fail(err)
	}
	return realtime.OK(conv)
}

func (h *SocketHandler) UpdateConversation(ctx context.Context, sess *realtime.Session, req realtime.UpdateConversationRequest) realtime.Ack {
	if err := realtime.Validate(req); err != nil {
		return realtime.Fail(err)
	}
	conv, err := h.Directory.UpdateGroup(ctx, sess.UserID, req.ConversationID, req.Name, req.Avatar)
	if err != nil {
		return realtime.Fail(err)
	}
	return realtime.OK(conv)
}

func (h *SocketHandler) NewMessage(ctx context.Context, sess *realtime.Session, req realtime.NewMessageRequest) realtime.Ack {
	if err := realtime.Validate(req); err != nil {
		return realtime.Fail(err)
	}
	if h.Limiter != nil {
		ok, err := h.Limiter.Allow(ctx, "messages:"+sess.UserID)
		if err != nil {
			// Limiter outages never block chat.
			logger.Warn().Err(err).Str("user_id", sess.UserID).Msg("rate limiter unavailable")
		} else if !ok {
			return realtime.Fail(apperrors.TooManyRequests("sending too fast, slow down"))
		}
	}

	msg, err := h.Messages.Send(ctx, services.SendInput{
		ConversationID:  req.ConversationID,
		SenderID:        sess.UserID,
		Content:         req.Content,
		Attachment:      req.Attachment,
		ClientMessageID: req.ClientMessageID,
	})
	if err != nil {
		return realtime.Fail(err)
	}
	return realtime.OK(msg)
}

func (h *SocketHandler) GetMessages(ctx context.Context, sess *realtime.Session, req realtime.GetMessagesRequest) realtime.Ack {
	if err := realtime.Validate(req); err != nil {
		return realtime.Fail(err)
	}
	msgs, err := h.Messages.Fetch(ctx, req.ConversationID, sess.UserID, services.FetchOptions{
		Limit:     req.Limit,
		BeforeSeq: req.BeforeSeq,
	})
	if err != nil {
		return realtime.Fail(err)
	}
	return realtime.OK(msgs)
}

// Typing and MarkRead only need room membership, which the hub already
// knows, so they skip the store.
func (h *SocketHandler) Typing(sess *realtime.Session, req realtime.TypingRequest) realtime.Ack {
	if err := realtime.Validate(req); err != nil {
		return realtime.Fail(err)
	}
	if !h.Hub.InRoom(sess.ConnID, req.ConversationID) {
		return realtime.Fail(apperrors.Forbidden("not a participant of this conversation"))
	}
	h.Notifier.Typing(sess.UserID, req.ConversationID, req.IsTyping)
	return realtime.OK(nil)
}

func (h *SocketHandler) MarkRead(ctx context.Context, sess *realtime.Session, req realtime.MarkReadRequest) realtime.Ack {
	if err := realtime.Validate(req); err != nil {
		return realtime.Fail(err)
	}
	if !h.Hub.InRoom(sess.ConnID, req.ConversationID) {
		return realtime.Fail(apperrors.Forbidden("not a participant of this conversation"))
	}
	if err := h.Notifier.MarkRead(ctx, sess.UserID, req.ConversationID, req.MessageID); err != nil {
		return realtime.Fail(err)
	}
	return realtime.OK(nil)
}

func (h *SocketHandler) InitiateCall(ctx context.Context, sess *realtime.Session, req realtime.InitiateCallRequest) realtime.Ack {
	if err := realtime.Validate(req); err != nil {
		return realtime.Fail(err)
	}
	res, err := h.Calls.Initiate(ctx, services.InitiateInput{
		CallerID:       sess.UserID,
		ReceiverID:     req.ReceiverID,
		Kind:           models.CallKind(req.CallType),
		ConversationID: req.ConversationID,
		SessionID:      req.SessionID,
	})
	if err != nil {
		if res != nil {
			return realtime.FailWith(err, res)
		}
		return realtime.Fail(err)
	}
	return realtime.OK(res)
}

func (h *SocketHandler) CallAction(ctx context.Context, sess *realtime.Session, event string, req realtime.CallActionRequest) realtime.Ack {
	if err := realtime.Validate(req); err != nil {
		return realtime.Fail(err)
	}

	var (
		view *services.CallView
		err  error
	)
	switch event {
	case realtime.EventAnswerCall:
		view, err = h.Calls.Answer(ctx, sess.UserID, req.CallID)
	case realtime.EventDeclineCall:
		view, err = h.Calls.Decline(ctx, sess.UserID, req.CallID)
	case realtime.EventEndCall:
		view, err = h.Calls.End(ctx, sess.UserID, req.CallID)
	default:
		return realtime.Fail(apperrors.BadRequest("unknown call action"))
	}
	if err != nil {
		return realtime.Fail(err)
	}
	return realtime.OK(view)
}

// handle resolves the session, bounds the handler with a timeout and logs
// failures. Internal errors are logged with their cause; clients only see
// the message.
func (h *SocketHandler) handle(s socketio.Conn, event string, fn func(context.Context, *realtime.Session) realtime.Ack) realtime.Ack {
	sess, ok := s.Context().(*realtime.Session)
	if !ok || sess == nil {
		metrics.EventsHandled.WithLabelValues(event, "unauthenticated").Inc()
		return realtime.Fail(apperrors.Unauthorized("authentication required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	ack := fn(ctx, sess)
	outcome := "ok"
	if !ack.Success {
		outcome = "error"
		logger.Debug().Str("event", event).Str("conn_id", sess.ConnID).Str("user_id", sess.UserID).Str("reason", ack.Message).Msg("socket event failed")
	}
	metrics.EventsHandled.WithLabelValues(event, outcome).Inc()
	return ack
}
