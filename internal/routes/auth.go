package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/suvankar11223/chatzi-sub000/internal/handlers"
)

func RegisterAuthRoutes(r gin.IRouter, h *handlers.AuthHandler) {
	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
}
