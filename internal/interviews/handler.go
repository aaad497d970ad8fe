package interviews

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sync-hire/backend/config"
	"github.com/sync-hire/backend/internal/auth"
	"github.com/sync-hire/backend/internal/media"
	"github.com/sync-hire/backend/internal/middleware"
	"github.com/sync-hire/backend/internal/models"
	"github.com/sync-hire/backend/internal/progress"
	"github.com/sync-hire/backend/pkg/response"
	"github.com/sync-hire/backend/pkg/utils"
)

// CreateRequest is the body for POST /interviews.
type CreateRequest struct {
	CandidateName string            `json:"candidate_name" binding:"required"`
	JobTitle      string            `json:"job_title" binding:"required"`
	Questions     []QuestionRequest `json:"questions" binding:"required,min=1,dive"`
}

// QuestionRequest is one planned question in a create request.
type QuestionRequest struct {
	ID       string `json:"id" binding:"required"`
	Text     string `json:"text" binding:"required"`
	Category string `json:"category"`
	Duration int    `json:"duration"`
}

// JoinRequest is the body for POST /interviews/:id/join.
type JoinRequest struct {
	InviteCode string `json:"invite_code" binding:"required"`
}

// Handler handles interview HTTP endpoints.
type Handler struct {
	repo   *Repository
	jwt    *auth.JWTService
	media  config.MediaConfig
	logger *zap.Logger
}

// NewHandler creates an interview handler.
func NewHandler(repo *Repository, jwtService *auth.JWTService, media config.MediaConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, jwt: jwtService, media: media, logger: logger}
}

// Create handles POST /interviews (admin only). The generated invite code is
// returned exactly once; only its hash is stored.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	questions := make([]progress.Question, 0, len(req.Questions))
	for _, q := range req.Questions {
		questions = append(questions, progress.Question{
			ID:       q.ID,
			Text:     q.Text,
			Category: q.Category,
			Duration: q.Duration,
		})
	}

	code, err := generateInviteCode()
	if err != nil {
		response.Internal(c, "failed to generate invite code")
		return
	}
	hash, err := utils.HashInviteCode(code)
	if err != nil {
		response.Internal(c, "failed to hash invite code")
		return
	}

	iv := &models.Interview{
		CandidateName: req.CandidateName,
		JobTitle:      req.JobTitle,
		Questions:     questions,
	}
	if err := h.repo.Create(c.Request.Context(), iv, hash); err != nil {
		h.logger.Error("create interview failed", zap.Error(err))
		response.Internal(c, "failed to create interview")
		return
	}
	iv.Status = models.InterviewStatusScheduled

	response.Created(c, gin.H{
		"interview":   iv,
		"invite_code": code,
	})
}

// GetByID handles GET /interviews/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid interview id")
		return
	}
	iv, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "interview not found")
		return
	}
	response.OK(c, iv)
}

// List handles GET /interviews (admin only).
func (h *Handler) List(c *gin.Context) {
	var status *string
	if s := c.Query("status"); s != "" {
		status = &s
	}
	list, err := h.repo.List(c.Request.Context(), status)
	if err != nil {
		h.logger.Error("list interviews failed", zap.Error(err))
		response.Internal(c, "failed to list interviews")
		return
	}
	response.OK(c, list)
}

// Join handles POST /interviews/:id/join. It exchanges a valid invite code
// for a candidate token scoped to this interview.
func (h *Handler) Join(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid interview id")
		return
	}
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	iv, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "interview not found")
		return
	}
	if iv.Status == models.InterviewStatusCompleted {
		response.Conflict(c, "interview already completed")
		return
	}

	hash, err := h.repo.InviteCodeHash(c.Request.Context(), id)
	if err != nil || !utils.CheckInviteCode(req.InviteCode, hash) {
		response.Unauthorized(c, "invalid invite code")
		return
	}

	token, err := h.jwt.GenerateCandidate(id, iv.CandidateName)
	if err != nil {
		response.Internal(c, "failed to issue token")
		return
	}
	response.OK(c, gin.H{
		"token":     token,
		"interview": iv,
	})
}

// MediaToken handles GET /interviews/:id/media-token. It issues a room token
// letting the caller join the interview call as a publisher.
func (h *Handler) MediaToken(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid interview id")
		return
	}
	name := c.GetString(middleware.ContextUserName)
	userID := "candidate-" + id.String()

	token, err := media.GenerateRoomToken(h.media.AppID, h.media.ServerSecret, id.String(), userID, true, h.media.TokenValidSec)
	if err != nil {
		h.logger.Error("media token generation failed", zap.Error(err))
		response.Internal(c, "failed to generate media token")
		return
	}
	response.OK(c, gin.H{
		"token":        token,
		"room_id":      id.String(),
		"user_id":      userID,
		"display_name": name,
	})
}

// generateInviteCode returns a random 12-hex-character invite code.
func generateInviteCode() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
