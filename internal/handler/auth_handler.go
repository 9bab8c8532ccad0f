package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/toeic-session/internal/middleware"
	"github.com/stemsi/toeic-session/internal/response"
	"github.com/stemsi/toeic-session/internal/service"
)

// AuthHandler exposes the identity carried by a bearer token.
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Me godoc
// GET /api/v1/auth/me, GET /api/v1/admin/me
// Returns the identity of the current token.
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"user_id":    claims.UserID,
		"email":      claims.Email,
		"token_type": claims.TokenType,
		"expires_at": claims.ExpiresAt,
	})
}

// Logout godoc
// POST /api/v1/auth/logout
// Revokes the current token.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.authService.RevokeToken(c.Request.Context(), claims.ID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Logged out"})
}
