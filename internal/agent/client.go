// Package agent invites the AI interviewer service into interview calls and
// guarantees at-most-once invitation per call.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrServiceUnavailable marks network failures and non-2xx replies from the
// agent service. Callers may retry; failed invitations are never cached.
var ErrServiceUnavailable = errors.New("agent service unavailable")

// Question is one interview question in the agent's wire format.
type Question struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Type     string `json:"type"`
	Duration int    `json:"duration"`
}

// JoinRequest is the body of POST /join-interview.
type JoinRequest struct {
	CallID        string     `json:"callId"`
	Questions     []Question `json:"questions"`
	CandidateName string     `json:"candidateName"`
	JobTitle      string     `json:"jobTitle"`
}

// JoinResult is the agent's acknowledgement, including the feature set the
// agent will run with (e.g. whether a video avatar joins the call).
type JoinResult struct {
	Invited            bool `json:"invited"`
	VideoAvatarEnabled bool `json:"video_avatar_enabled"`
}

type joinResponse struct {
	Success            bool   `json:"success"`
	Error              string `json:"error"`
	VideoAvatarEnabled bool   `json:"videoAvatarEnabled"`
}

// Client is an HTTP client for the AI interviewer agent service.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates an agent service client.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// JoinInterview asks the agent service to join the call. The agent schedules
// the interview in the background and acknowledges immediately.
func (c *Client) JoinInterview(ctx context.Context, req JoinRequest) (*JoinResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal join request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/join-interview", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build join request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrServiceUnavailable, resp.StatusCode)
	}

	var out joinResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrServiceUnavailable, err)
	}
	if !out.Success {
		return nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, out.Error)
	}

	c.logger.Info("agent invited to call", zap.String("call_id", req.CallID), zap.Bool("video_avatar", out.VideoAvatarEnabled))
	return &JoinResult{Invited: true, VideoAvatarEnabled: out.VideoAvatarEnabled}, nil
}
