package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suvankar11223/chatzi-sub000/pkg/errors"
	"github.com/suvankar11223/chatzi-sub000/pkg/logger"
)

// respondError writes an AppError as JSON. Causes of internal errors are
// logged, not returned.
func respondError(c *gin.Context, err error) {
	appErr := errors.From(err)
	if appErr.Code >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg(appErr.Message)
	}
	c.JSON(appErr.Code, gin.H{"success": false, "error": appErr.Message})
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func badBody(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
}
