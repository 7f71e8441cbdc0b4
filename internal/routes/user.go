package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/suvankar11223/chatzi-sub000/internal/handlers"
)

func RegisterUserRoutes(r gin.IRouter, h *handlers.UserHandler) {
	users := r.Group("/users")
	{
		users.GET("/me", h.GetProfile)
		users.PATCH("/me", h.UpdateProfile)
		users.GET("/contacts", h.GetContacts)
		users.GET("/online", h.GetOnlineUsers)
	}
}
