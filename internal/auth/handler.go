package auth

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sync-hire/backend/pkg/response"
)

// AdminTokenRequest is the body for POST /auth/admin-token.
type AdminTokenRequest struct {
	APIKey string `json:"api_key" binding:"required"`
	Name   string `json:"name" binding:"required"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	jwt      *JWTService
	adminKey string
	logger   *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(jwtService *JWTService, adminAPIKey string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{jwt: jwtService, adminKey: adminAPIKey, logger: logger}
}

// AdminToken handles POST /auth/admin-token. Recruiters exchange the shared
// API key for an admin JWT.
func (h *Handler) AdminToken(c *gin.Context) {
	var req AdminTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if h.adminKey == "" || subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(h.adminKey)) != 1 {
		response.Unauthorized(c, "invalid api key")
		return
	}
	token, err := h.jwt.GenerateAdmin(req.Name)
	if err != nil {
		h.logger.Error("admin token generation failed", zap.Error(err))
		response.Internal(c, "failed to issue token")
		return
	}
	response.OK(c, gin.H{"token": token})
}
