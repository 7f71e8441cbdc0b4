package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/suvankar11223/chatzi-sub000/internal/handlers"
)

func RegisterCallRoutes(r gin.IRouter, h *handlers.CallHandler) {
	r.GET("/calls", h.GetCallHistory)
}
