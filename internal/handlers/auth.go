package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suvankar11223/chatzi-sub000/internal/services"
	"github.com/suvankar11223/chatzi-sub000/pkg/errors"
)

// TokenIssuer signs access tokens for the socket handshake and HTTP API.
type TokenIssuer interface {
	GenerateToken(userID, email, name string) (string, error)
}

type AuthHandler struct {
	Users  *services.Users
	Tokens TokenIssuer
}

type registerReq struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	user, err := h.Users.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.Tokens.GenerateToken(user.ID, user.Email, user.Name)
	if err != nil {
		respondError(c, errors.Wrap(err, "Failed to issue token"))
		return
	}

	respondOK(c, http.StatusCreated, gin.H{"accessToken": token, "user": user})
}

type loginReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	user, err := h.Users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.Tokens.GenerateToken(user.ID, user.Email, user.Name)
	if err != nil {
		respondError(c, errors.Wrap(err, "Failed to issue token"))
		return
	}

	respondOK(c, http.StatusOK, gin.H{"accessToken": token, "user": user})
}
