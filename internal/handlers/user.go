package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/suvankar11223/chatzi-sub000/internal/middleware"
	"github.com/suvankar11223/chatzi-sub000/internal/realtime"
	"github.com/suvankar11223/chatzi-sub000/internal/services"
)

type UserHandler struct {
	Users *services.Users
	Hub   *realtime.Hub
}

func (h *UserHandler) GetProfile(c *gin.Context) {
	user, err := h.Users.Get(c.Request.Context(), middleware.MustUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, user)
}

type updateProfileReq struct {
	Name   *string `json:"name"`
	Avatar *string `json:"avatar"`
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	user, err := h.Users.UpdateProfile(c.Request.Context(), middleware.MustUserID(c), req.Name, req.Avatar)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, user)
}

type contact struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
	Online bool   `json:"online"`
}

// GetContacts lists other users with their current presence.
func (h *UserHandler) GetContacts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	users, err := h.Users.Contacts(c.Request.Context(), middleware.MustUserID(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	contacts := make([]contact, 0, len(users))
	for _, u := range users {
		contacts = append(contacts, contact{
			ID:     u.ID,
			Name:   u.Name,
			Email:  u.Email,
			Avatar: u.Avatar,
			Online: h.Hub.IsOnline(u.ID),
		})
	}
	respondOK(c, http.StatusOK, contacts)
}

func (h *UserHandler) GetOnlineUsers(c *gin.Context) {
	respondOK(c, http.StatusOK, h.Hub.ListOnline())
}
