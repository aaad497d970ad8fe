package sessions

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sync-hire/backend/internal/engine"
	"github.com/sync-hire/backend/pkg/response"
)

// Handler handles session lifecycle HTTP endpoints.
type Handler struct {
	manager *Manager
	logger  *zap.Logger
}

// NewHandler creates a session handler.
func NewHandler(manager *Manager, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{manager: manager, logger: logger}
}

// Start handles POST /interviews/:id/session/start.
func (h *Handler) Start(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid interview id")
		return
	}
	if err := h.manager.Start(c.Request.Context(), id); err != nil {
		var serr *engine.SessionError
		if errors.As(err, &serr) {
			response.ServiceUnavailable(c, string(serr.Kind))
			return
		}
		h.logger.Error("session start failed", zap.String("interview_id", id.String()), zap.Error(err))
		response.Internal(c, "failed to start session")
		return
	}
	snap, _ := h.manager.Snapshot(id)
	response.OK(c, snap)
}

// Reset handles POST /interviews/:id/session/reset.
func (h *Handler) Reset(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid interview id")
		return
	}
	if err := h.manager.Reset(id); err != nil {
		response.NotFound(c, "no live session for interview")
		return
	}
	snap, _ := h.manager.Snapshot(id)
	response.OK(c, snap)
}

// Get handles GET /interviews/:id/session.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid interview id")
		return
	}
	snap, err := h.manager.Snapshot(id)
	if err != nil {
		response.NotFound(c, "no live session for interview")
		return
	}
	response.OK(c, snap)
}
