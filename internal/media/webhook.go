package media

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sync-hire/backend/pkg/response"
)

// EventPayload is the body the provider posts to /webhooks/media-events.
// Exactly one of Participants/Caption/Custom is set depending on Type.
type EventPayload struct {
	CallID       string         `json:"call_id"`
	Type         EventType      `json:"type"`
	Participants []Participant  `json:"participants,omitempty"`
	Caption      *Caption       `json:"caption,omitempty"`
	Custom       *CustomMessage `json:"custom,omitempty"`
}

// WebhookHandler receives provider event webhooks and routes them to the
// owning session.
type WebhookHandler struct {
	router *Router
	logger *zap.Logger
}

// NewWebhookHandler creates a media event webhook handler.
func NewWebhookHandler(router *Router, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{router: router, logger: logger}
}

// HandleEvent handles POST /webhooks/media-events. Unknown event types are
// acknowledged and dropped so a provider schema change never breaks delivery
// of the types we do consume.
func (h *WebhookHandler) HandleEvent(c *gin.Context) {
	var body EventPayload
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if body.CallID == "" {
		response.BadRequest(c, "call_id required")
		return
	}

	switch body.Type {
	case EventParticipants:
		h.router.Dispatch(body.CallID, Event{Type: EventParticipants, Participants: body.Participants})
	case EventCaption:
		if body.Caption == nil {
			response.BadRequest(c, "caption payload required")
			return
		}
		h.router.Dispatch(body.CallID, Event{Type: EventCaption, Caption: body.Caption})
	case EventCustom:
		if body.Custom == nil {
			response.BadRequest(c, "custom payload required")
			return
		}
		h.router.Dispatch(body.CallID, Event{Type: EventCustom, Custom: body.Custom})
	case EventCallEnded:
		h.router.Dispatch(body.CallID, Event{Type: EventCallEnded})
	default:
		h.logger.Debug("unknown media event type", zap.String("type", string(body.Type)), zap.String("call_id", body.CallID))
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
