// Package engine owns the live interview session: the lifecycle state
// machine, agent invitation, and the event loop that feeds the transcript
// reconciler and progress tracker.
package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sync-hire/backend/internal/agent"
	"github.com/sync-hire/backend/internal/media"
	"github.com/sync-hire/backend/internal/progress"
	"github.com/sync-hire/backend/internal/transcript"
)

// State is the session lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateActive     State = "active"
	StateEnded      State = "ended"
	StateError      State = "error"
)

// Custom message types consumed from the agent over the room's data channel.
const (
	customTranscript = "transcript"
	customProgress   = "progress"
)

// Inviter ensures the AI agent is invited into a call at most once.
// Satisfied by agent.Registry.
type Inviter interface {
	EnsureInvited(ctx context.Context, req agent.JoinRequest) (*agent.JoinResult, error)
}

// SessionFactory returns a media session for a call. Satisfied by
// media.Client.Session.
type SessionFactory func(callID string) media.Session

// Config describes one interview session.
type Config struct {
	CallID          string
	CandidateName   string
	JobTitle        string
	Questions       []progress.Question
	CaptionLanguage string
	// LeaveDebounce absorbs transient reconnects before the sole remote
	// participant leaving ends the session. Defaults to 500ms.
	LeaveDebounce time.Duration
	// Preflight verifies camera/mic availability before the state machine
	// leaves Idle; nil skips the check.
	Preflight func(ctx context.Context) error
}

// ErrorInfo is the user-displayable failure carried in a snapshot.
type ErrorInfo struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Snapshot is the engine state exposed to the UI layer.
type Snapshot struct {
	CallID               string               `json:"call_id"`
	State                State                `json:"state"`
	Error                *ErrorInfo           `json:"error,omitempty"`
	Transcript           []transcript.Message `json:"transcript"`
	CurrentQuestionIndex int                  `json:"current_question_index"`
	CompletedStages      []string             `json:"completed_stages"`
	ElapsedSeconds       int                  `json:"elapsed_seconds"`
	VideoAvatarEnabled   bool                 `json:"video_avatar_enabled"`
}

// Controller is the session lifecycle state machine. All transitions and
// event effects run on one goroutine, so the relative ordering of effects
// from a single event is deterministic. Public methods enqueue commands onto
// that loop; Snapshot reads a consistent copy.
type Controller struct {
	cfg      Config
	inviter  Inviter
	sessions SessionFactory
	logger   *zap.Logger

	mu       sync.RWMutex
	state    State
	cause    *SessionError
	log      *transcript.Log
	prog     *progress.Tracker
	elapsed  int
	features *agent.JoinResult

	// Owned by the run loop.
	gen         int // bumped by reset; in-flight connects carrying an older gen are cancelled
	session     media.Session
	events      <-chan media.Event
	remoteCount int
	leaveTimer  *time.Timer

	commands chan func()
	quit     chan struct{}
	stopOnce sync.Once
	onChange func(Snapshot)

	// postMu orders command submission against Close: a command accepted
	// under the read lock is guaranteed to run, in the loop or in the
	// shutdown drain.
	postMu sync.RWMutex
	closed bool
}

// NewController creates a session controller in Idle and starts its event
// loop. Call Close when the session is discarded.
func NewController(cfg Config, inviter Inviter, sessions SessionFactory, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LeaveDebounce <= 0 {
		cfg.LeaveDebounce = 500 * time.Millisecond
	}
	c := &Controller{
		cfg:      cfg,
		inviter:  inviter,
		sessions: sessions,
		logger:   logger.With(zap.String("call_id", cfg.CallID)),
		state:    StateIdle,
		log:      transcript.NewLog(transcript.RoleAgent),
		prog:     progress.NewTracker(cfg.Questions),
		commands: make(chan func(), 64),
		quit:     make(chan struct{}),
	}
	go c.run()
	return c
}

// SetOnChange registers a callback invoked with a fresh snapshot after every
// state-affecting event. Called from the engine loop; keep it fast.
func (c *Controller) SetOnChange(fn func(Snapshot)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Start begins connecting. Valid only from Idle; invoking it again while
// Connecting or later is a no-op, so duplicate UI actions cannot produce two
// joins or two invitations. A failed preflight surfaces immediately and the
// state machine never leaves Idle.
func (c *Controller) Start(ctx context.Context) error {
	if c.cfg.Preflight != nil {
		if err := c.cfg.Preflight(ctx); err != nil {
			return &SessionError{Kind: FailurePermissionDenied, Err: err}
		}
	}
	c.post(func() {
		if c.stateLocked() != StateIdle {
			c.logger.Debug("start ignored", zap.String("state", string(c.stateLocked())))
			return
		}
		c.setState(StateConnecting, nil)
		gen := c.gen
		go c.connect(gen)
	})
	return nil
}

// Reset clears all session-local data (transcript, progress, caption
// trackers, elapsed timer) and returns to Idle from any state. The agent
// invitation record for the call is deliberately kept: the dedup guarantee
// is call-scoped, not controller-scoped. A join still in flight is released
// as soon as it resolves.
func (c *Controller) Reset() {
	c.post(func() {
		c.gen++
		c.stopLeaveTimer()
		if c.session != nil {
			c.leaveAsync(c.session)
			c.session = nil
		}
		c.events = nil
		c.remoteCount = 0

		c.mu.Lock()
		c.state = StateIdle
		c.cause = nil
		c.elapsed = 0
		c.features = nil
		c.log.Reset()
		c.prog.Reset()
		c.mu.Unlock()
		c.notify()
	})
}

// Close stops the event loop and releases a joined media session, including
// one whose join is still in flight. The controller must not be used
// afterwards.
func (c *Controller) Close() {
	c.stopOnce.Do(func() {
		c.postMu.Lock()
		c.closed = true
		c.postMu.Unlock()
		close(c.quit)
	})
}

// Snapshot returns a consistent copy of the engine state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := Snapshot{
		CallID:               c.cfg.CallID,
		State:                c.state,
		Transcript:           c.log.Messages(),
		CurrentQuestionIndex: c.prog.Current(),
		CompletedStages:      c.prog.CompletedStages(),
		ElapsedSeconds:       c.elapsed,
	}
	if c.cause != nil {
		snap.Error = &ErrorInfo{Kind: c.cause.Kind, Message: c.cause.Error()}
	}
	if c.features != nil {
		snap.VideoAvatarEnabled = c.features.VideoAvatarEnabled
	}
	return snap
}

// run serializes commands, provider events and the elapsed ticker.
func (c *Controller) run() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-c.quit:
			c.shutdown()
			return
		case cmd := <-c.commands:
			cmd()
		case ev, ok := <-c.events:
			if !ok {
				c.events = nil
				continue
			}
			c.handleEvent(ev)
		case <-ticker.C:
			if c.stateLocked() == StateActive {
				c.mu.Lock()
				c.elapsed++
				c.mu.Unlock()
				c.notify()
			}
		}
	}
}

// shutdown releases the live session and runs the commands accepted before
// Close. A join that resolved concurrently with Close lands here, sees the
// bumped generation and leaves its session.
func (c *Controller) shutdown() {
	c.stopLeaveTimer()
	c.gen++
	if c.session != nil {
		c.leaveAsync(c.session)
		c.session = nil
	}
	c.events = nil
	for {
		select {
		case cmd := <-c.commands:
			cmd()
		default:
			return
		}
	}
}

// connect runs the two suspension points of Connecting off the loop, then
// posts the outcome back. gen detects a reset that happened mid-flight.
func (c *Controller) connect(gen int) {
	ctx := context.Background()

	res, err := c.inviter.EnsureInvited(ctx, c.joinRequest())
	if err != nil {
		c.post(func() { c.failConnect(gen, FailureAgentUnavailable, err) })
		return
	}

	sess := c.sessions(c.cfg.CallID)
	if err := sess.Join(ctx); err != nil {
		c.post(func() { c.failConnect(gen, FailureMediaJoin, err) })
		return
	}

	// Devices and captioning are best effort: the session proceeds without
	// them, so failures are only logged.
	if err := sess.EnableMicrophone(ctx); err != nil {
		c.logger.Warn("enable microphone failed", zap.Error(err))
	}
	if err := sess.EnableCamera(ctx); err != nil {
		c.logger.Warn("enable camera failed", zap.Error(err))
	}
	if err := sess.StartLiveCaptioning(ctx, c.cfg.CaptionLanguage); err != nil {
		c.logger.Warn("start live captioning failed",
			zap.String("kind", string(FailureTranscriptionStart)), zap.Error(err))
	}

	delivered := c.post(func() {
		if c.gen != gen || c.stateLocked() != StateConnecting {
			// Reset or unmount happened while the join was in flight; the
			// session must never be exposed as active.
			c.leaveAsync(sess)
			return
		}
		c.session = sess
		c.events = sess.Events()
		c.mu.Lock()
		c.features = res
		c.mu.Unlock()
		c.setState(StateActive, nil)
		c.logger.Info("session active", zap.Bool("video_avatar", res.VideoAvatarEnabled))
	})
	if !delivered {
		// The controller was closed while the join was in flight; never
		// leave a joined session dangling.
		c.leaveAsync(sess)
	}
}

func (c *Controller) failConnect(gen int, kind FailureKind, err error) {
	if c.gen != gen || c.stateLocked() != StateConnecting {
		return
	}
	c.setState(StateError, &SessionError{Kind: kind, Err: err})
	c.logger.Warn("connect failed", zap.String("kind", string(kind)), zap.Error(err))
}

func (c *Controller) handleEvent(ev media.Event) {
	switch ev.Type {
	case media.EventCaption:
		if ev.Caption == nil {
			return
		}
		c.mu.Lock()
		c.log.AddCaption(ev.Caption.SpeakerID, ev.Caption.DisplayName, ev.Caption.TurnMarker, ev.Caption.Text)
		c.mu.Unlock()
		c.notify()
	case media.EventCustom:
		if ev.Custom != nil {
			c.handleCustom(ev.Custom)
		}
	case media.EventParticipants:
		c.handleParticipants(ev.Participants)
	case media.EventCallEnded:
		c.end("call ended by provider")
	}
}

// handleCustom applies a structured agent message. Malformed payloads are
// dropped; a bad message must never take down the event loop.
func (c *Controller) handleCustom(msg *media.CustomMessage) {
	switch msg.Type {
	case customTranscript:
		var body struct {
			Speaker string `json:"speaker"`
			Text    string `json:"text"`
		}
		if err := json.Unmarshal(msg.Payload, &body); err != nil {
			c.logger.Debug("malformed transcript message dropped", zap.Error(err))
			return
		}
		role := transcript.Role(body.Speaker)
		if role != transcript.RoleAgent && role != transcript.RoleHuman {
			c.logger.Debug("transcript message with unknown speaker dropped", zap.String("speaker", body.Speaker))
			return
		}
		c.mu.Lock()
		c.log.AddStructured(role, body.Text)
		c.mu.Unlock()
		c.notify()
	case customProgress:
		var body struct {
			QuestionIndex *int   `json:"questionIndex"`
			Category      string `json:"category"`
		}
		if err := json.Unmarshal(msg.Payload, &body); err != nil || body.QuestionIndex == nil {
			c.logger.Debug("malformed progress message dropped", zap.Error(err))
			return
		}
		c.mu.Lock()
		c.prog.Apply(*body.QuestionIndex)
		c.mu.Unlock()
		c.notify()
	default:
		// Unknown custom message types are not ours to interpret.
	}
}

// handleParticipants arms the debounced session end when the last remote
// participant drops, and disarms it when one returns (transient reconnect).
func (c *Controller) handleParticipants(list []media.Participant) {
	remote := 0
	for _, p := range list {
		if !p.Local {
			remote++
		}
	}
	prev := c.remoteCount
	c.remoteCount = remote

	if c.stateLocked() != StateActive {
		return
	}
	if remote == 0 && prev > 0 {
		c.stopLeaveTimer()
		gen := c.gen
		c.leaveTimer = time.AfterFunc(c.cfg.LeaveDebounce, func() {
			c.post(func() {
				if c.gen == gen && c.stateLocked() == StateActive && c.remoteCount == 0 {
					c.end("remote participant left")
				}
			})
		})
	} else if remote > 0 {
		c.stopLeaveTimer()
	}
}

// end transitions Active to Ended and releases the media session. Ended is a
// graceful terminal state, distinct from Error; only Reset leaves it.
func (c *Controller) end(reason string) {
	if c.stateLocked() != StateActive {
		return
	}
	c.stopLeaveTimer()
	if c.session != nil {
		c.leaveAsync(c.session)
		c.session = nil
	}
	c.events = nil
	c.setState(StateEnded, nil)
	c.logger.Info("session ended", zap.String("reason", reason))
}

func (c *Controller) joinRequest() agent.JoinRequest {
	questions := make([]agent.Question, 0, len(c.cfg.Questions))
	for _, q := range c.cfg.Questions {
		questions = append(questions, agent.Question{
			ID:       q.ID,
			Text:     q.Text,
			Type:     q.Category,
			Duration: q.Duration,
		})
	}
	return agent.JoinRequest{
		CallID:        c.cfg.CallID,
		Questions:     questions,
		CandidateName: c.cfg.CandidateName,
		JobTitle:      c.cfg.JobTitle,
	}
}

func (c *Controller) leaveAsync(sess media.Session) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sess.Leave(ctx); err != nil {
			c.logger.Warn("leave media session failed", zap.Error(err))
		}
	}()
}

func (c *Controller) stopLeaveTimer() {
	if c.leaveTimer != nil {
		c.leaveTimer.Stop()
		c.leaveTimer = nil
	}
}

// post places fn on the loop. It reports false once the controller is closed
// (or, pathologically, when the command buffer is full); a caller holding a
// resource must release it itself in that case.
func (c *Controller) post(fn func()) bool {
	c.postMu.RLock()
	defer c.postMu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.commands <- fn:
		return true
	default:
		c.logger.Warn("command buffer full, dropping")
		return false
	}
}

func (c *Controller) stateLocked() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) setState(s State, cause *SessionError) {
	c.mu.Lock()
	c.state = s
	c.cause = cause
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) notify() {
	c.mu.RLock()
	fn := c.onChange
	c.mu.RUnlock()
	if fn != nil {
		fn(c.Snapshot())
	}
}
