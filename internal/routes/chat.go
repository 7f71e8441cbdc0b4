package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/suvankar11223/chatzi-sub000/internal/handlers"
)

func RegisterChatRoutes(r gin.IRouter, h *handlers.ChatHandler) {
	conversations := r.Group("/conversations")
	{
		conversations.POST("", h.CreateConversation)
		conversations.GET("", h.ListConversations)
		conversations.GET("/:id", h.GetConversation)
		conversations.PATCH("/:id", h.UpdateConversation)
		conversations.GET("/:id/messages", h.GetMessages)
		conversations.POST("/:id/messages", h.SendMessage)
	}
}
