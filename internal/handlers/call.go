package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/suvankar11223/chatzi-sub000/internal/middleware"
	"github.com/suvankar11223/chatzi-sub000/internal/services"
)

type CallHandler struct {
	Calls *services.CallService
}

// GetCallHistory returns the caller's most recent calls, newest first.
func (h *CallHandler) GetCallHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	calls, err := h.Calls.History(c.Request.Context(), middleware.MustUserID(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, calls)
}
