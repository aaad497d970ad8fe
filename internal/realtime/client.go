package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sync-hire/backend/internal/auth"
	"github.com/sync-hire/backend/internal/engine"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SessionControl drives the interview session from WebSocket commands.
// Satisfied by sessions.Manager.
type SessionControl interface {
	Start(ctx context.Context, interviewID uuid.UUID) error
	Reset(interviewID uuid.UUID) error
	Snapshot(interviewID uuid.UUID) (engine.Snapshot, error)
}

// Client represents a single WebSocket connection watching an interview.
type Client struct {
	ID          string
	InterviewID uuid.UUID
	Role        string
	Name        string
	hub         *Hub
	control     SessionControl
	conn        *websocket.Conn
	send        chan WSMessage
	logger      *zap.Logger
}

// ServeWs handles the WebSocket upgrade and runs the client loop. Candidate
// tokens must be scoped to the interview they connect to.
func ServeWs(hub *Hub, control SessionControl, jwtService *auth.JWTService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		interviewIDStr := c.Query("interview_id")
		token := c.Query("token")
		if interviewIDStr == "" || token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "interview_id and token required"})
			return
		}
		interviewID, err := uuid.Parse(interviewIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid interview_id"})
			return
		}
		claims, err := jwtService.Validate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if claims.Role != auth.RoleAdmin && claims.InterviewID != interviewID {
			c.JSON(http.StatusForbidden, gin.H{"error": "token not valid for this interview"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:          uuid.New().String(),
			InterviewID: interviewID,
			Role:        claims.Role,
			Name:        claims.Name,
			hub:         hub,
			control:     control,
			conn:        conn,
			send:        make(chan WSMessage, 256),
			logger:      logger,
		}
		hub.Register(client)
		go client.writePump()
		client.sendSnapshot()
		client.readPump()
	}
}

// sendSnapshot pushes the current session state to this client only, so a
// freshly connected UI does not wait for the next change.
func (c *Client) sendSnapshot() {
	snap, err := c.control.Snapshot(c.InterviewID)
	if err != nil {
		return
	}
	c.hub.SendToClient(c.InterviewID, c.ID, EventSessionState, snap)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		switch msg.Event {
		case "start_session":
			if err := c.control.Start(context.Background(), c.InterviewID); err != nil {
				c.hub.SendToClient(c.InterviewID, c.ID, "session_error", map[string]string{
					"message": err.Error(),
				})
			}
		case "reset_session":
			_ = c.control.Reset(c.InterviewID)
		case "get_snapshot":
			c.sendSnapshot()
		default:
			// ignore
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
