package agent

import (
	"crypto/subtle"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sync-hire/backend/pkg/queue"
	"github.com/sync-hire/backend/pkg/response"
)

// CompletionPayload is the body the agent service posts when it finishes an
// interview.
type CompletionPayload struct {
	CallID          string  `json:"call_id"`
	DurationMinutes float64 `json:"duration_minutes"`
	CompletedAt     string  `json:"completed_at"`
	Status          string  `json:"status"`
}

// WebhookHandler receives completion callbacks from the agent service.
type WebhookHandler struct {
	queue  *queue.Queue
	secret string
	logger *zap.Logger
}

// NewWebhookHandler creates an agent webhook handler. An empty secret
// disables signature checking (dev only).
func NewWebhookHandler(q *queue.Queue, secret string, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{queue: q, secret: secret, logger: logger}
}

// InterviewComplete handles POST /webhooks/interview-complete. Validated jobs
// are enqueued; persistence happens in the worker so a slow database never
// blocks the agent's callback.
func (h *WebhookHandler) InterviewComplete(c *gin.Context) {
	if h.secret != "" {
		got := c.GetHeader("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			response.Unauthorized(c, "invalid webhook secret")
			return
		}
	}

	var body CompletionPayload
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	interviewID, err := uuid.Parse(body.CallID)
	if err != nil {
		response.BadRequest(c, "invalid call_id")
		return
	}

	completedAt := time.Now()
	if body.CompletedAt != "" {
		if t, err := time.Parse(time.RFC3339, body.CompletedAt); err == nil {
			completedAt = t
		}
	}

	err = h.queue.EnqueueCompletion(c.Request.Context(), queue.CompletionPayload{
		InterviewID:     interviewID,
		CallID:          body.CallID,
		DurationMinutes: body.DurationMinutes,
		CompletedAt:     completedAt,
	})
	if err != nil {
		h.logger.Error("enqueue completion failed", zap.String("call_id", body.CallID), zap.Error(err))
		response.Internal(c, "failed to enqueue completion")
		return
	}
	response.OK(c, gin.H{"accepted": true})
}
