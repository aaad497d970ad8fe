package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Client talks to the provider's room-control REST API and hands out
// sessions whose event feed is backed by the webhook Router.
type Client struct {
	baseURL string
	http    *http.Client
	router  *Router
	logger  *zap.Logger
}

// NewClient creates a provider client. All room-control calls go to baseURL.
func NewClient(baseURL string, router *Router, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		router:  router,
		logger:  logger,
	}
}

// Preflight asks the provider whether the call can be observed before the
// session machine leaves Idle. A rejection here surfaces as a permission
// failure without ever joining the room.
func (c *Client) Preflight(ctx context.Context, callID string) error {
	return c.post(ctx, callID, "preflight", nil)
}

// Session returns a session for the given call. The engine joins it as a
// server-side observer; events for the call start flowing once Join succeeds.
func (c *Client) Session(callID string) Session {
	return &httpSession{client: c, callID: callID}
}

type httpSession struct {
	client *Client
	callID string
	events <-chan Event
}

func (s *httpSession) Join(ctx context.Context) error {
	// Attach before the join call so no event between join and subscribe is lost.
	s.events = s.client.router.Attach(s.callID)
	if err := s.client.post(ctx, s.callID, "join", nil); err != nil {
		s.client.router.Detach(s.callID, s.events)
		return err
	}
	return nil
}

// Leave detaches only this session's own channel. A replacement session for
// the same call may already be attached by the time a delayed leave resolves.
func (s *httpSession) Leave(ctx context.Context) error {
	err := s.client.post(ctx, s.callID, "leave", nil)
	s.client.router.Detach(s.callID, s.events)
	return err
}

func (s *httpSession) EnableMicrophone(ctx context.Context) error {
	return s.client.post(ctx, s.callID, "microphone", map[string]bool{"enabled": true})
}

func (s *httpSession) EnableCamera(ctx context.Context) error {
	return s.client.post(ctx, s.callID, "camera", map[string]bool{"enabled": true})
}

func (s *httpSession) StartLiveCaptioning(ctx context.Context, language string) error {
	return s.client.post(ctx, s.callID, "captions/start", map[string]string{"language": language})
}

func (s *httpSession) Events() <-chan Event {
	return s.events
}

func (c *Client) post(ctx context.Context, callID, action string, payload interface{}) error {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return fmt.Errorf("marshal %s payload: %w", action, err)
		}
	}
	url := fmt.Sprintf("%s/rooms/%s/%s", c.baseURL, callID, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("provider %s: %w", action, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("provider %s: status %d", action, resp.StatusCode)
	}
	return nil
}
