package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/suvankar11223/chatzi-sub000/internal/handlers"
	"github.com/suvankar11223/chatzi-sub000/internal/middleware"
)

func RegisterUploadRoutes(r gin.IRouter, h *handlers.UploadHandler) {
	upload := r.Group("/upload")
	upload.Use(middleware.UploadRateLimit())
	{
		upload.POST("/avatar", h.UploadAvatar)
		upload.POST("/attachment", h.UploadAttachment)
	}
}
