package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/suvankar11223/chatzi-sub000/internal/middleware"
	"github.com/suvankar11223/chatzi-sub000/internal/models"
	"github.com/suvankar11223/chatzi-sub000/internal/realtime"
	"github.com/suvankar11223/chatzi-sub000/internal/services"
	"github.com/suvankar11223/chatzi-sub000/pkg/errors"
	"github.com/suvankar11223/chatzi-sub000/pkg/utils"
)

// ChatHandler is the HTTP face of the conversation directory and message
// pipeline. Writes go through the same services as socket events, so they
// fan out to live connections too.
type ChatHandler struct {
	Directory *services.Directory
	Messages  *services.Pipeline
}

func (h *ChatHandler) CreateConversation(c *gin.Context) {
	var req realtime.NewConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}
	if err := realtime.Validate(req); err != nil {
		respondError(c, err)
		return
	}

	conv, err := h.Directory.Create(c.Request.Context(), middleware.MustUserID(c), services.CreateConversationInput{
		Type:         models.ConversationType(req.Type),
		Participants: req.Participants,
		Name:         req.Name,
		Avatar:       req.Avatar,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, conv)
}

func (h *ChatHandler) ListConversations(c *gin.Context) {
	convs, err := h.Directory.ListForUser(c.Request.Context(), middleware.MustUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, convs)
}

func (h *ChatHandler) GetConversation(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	conv, err := h.Directory.Get(c.Request.Context(), middleware.MustUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, conv)
}

type updateConversationReq struct {
	Name   *string `json:"name"`
	Avatar *string `json:"avatar"`
}

func (h *ChatHandler) UpdateConversation(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	var req updateConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	conv, err := h.Directory.UpdateGroup(c.Request.Context(), middleware.MustUserID(c), id, req.Name, req.Avatar)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, conv)
}

// GetMessages pages backwards through a conversation. Pass before=<seq> to
// fetch older messages.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	before, _ := strconv.ParseInt(c.Query("before"), 10, 64)

	msgs, err := h.Messages.Fetch(c.Request.Context(), id, middleware.MustUserID(c), services.FetchOptions{
		Limit:     limit,
		BeforeSeq: before,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, msgs)
}

type sendMessageReq struct {
	Content         string `json:"content"`
	Attachment      string `json:"attachment"`
	ClientMessageID string `json:"clientMessageId"`
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	msg, err := h.Messages.Send(c.Request.Context(), services.SendInput{
		ConversationID:  id,
		SenderID:        middleware.MustUserID(c),
		Content:         req.Content,
		Attachment:      req.Attachment,
		ClientMessageID: req.ClientMessageID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, msg)
}

// conversationID reads the :id path parameter. Ids are UUIDs, so anything
// else cannot exist.
func conversationID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if !utils.IsUUID(id) {
		respondError(c, errors.NotFound("conversation not found"))
		return "", false
	}
	return id, true
}
