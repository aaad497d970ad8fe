package sessions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sync-hire/backend/internal/engine"
	"github.com/sync-hire/backend/internal/models"
)

// ErrNotFound is returned when no live session exists for an interview.
var ErrNotFound = errors.New("session not found")

// InterviewSource loads and updates interview records. Satisfied by
// interviews.Repository.
type InterviewSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Interview, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

// Notifier receives a snapshot after every session state change. Satisfied by
// the realtime hub.
type Notifier interface {
	BroadcastSnapshot(interviewID string, snap engine.Snapshot)
}

// Manager owns the live session controllers, one per interview. Controllers
// are created lazily on first use and survive resets; Shutdown tears them all
// down.
type Manager struct {
	repo     InterviewSource
	inviter  engine.Inviter
	sessions engine.SessionFactory
	language string
	debounce  time.Duration
	notifier  Notifier
	preflight func(ctx context.Context, callID string) error
	logger    *zap.Logger

	mu          sync.Mutex
	controllers map[uuid.UUID]*engine.Controller
}

// NewManager creates a session manager.
func NewManager(repo InterviewSource, inviter engine.Inviter, sessions engine.SessionFactory, captionLanguage string, leaveDebounce time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		repo:        repo,
		inviter:     inviter,
		sessions:    sessions,
		language:    captionLanguage,
		debounce:    leaveDebounce,
		logger:      logger,
		controllers: make(map[uuid.UUID]*engine.Controller),
	}
}

// SetNotifier registers the snapshot broadcast target. Must be called before
// the first session is created.
func (m *Manager) SetNotifier(n Notifier) {
	m.notifier = n
}

// SetPreflight registers a provider capability check that runs before a
// session leaves Idle. A failing check reports a permission failure without
// touching the room. Must be called before the first session is created.
func (m *Manager) SetPreflight(fn func(ctx context.Context, callID string) error) {
	m.preflight = fn
}

// Ensure returns the controller for an interview, creating it from the
// persisted interview record if needed.
func (m *Manager) Ensure(ctx context.Context, interviewID uuid.UUID) (*engine.Controller, error) {
	m.mu.Lock()
	if ctrl, ok := m.controllers[interviewID]; ok {
		m.mu.Unlock()
		return ctrl, nil
	}
	m.mu.Unlock()

	iv, err := m.repo.GetByID(ctx, interviewID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Lost the race; another request created it while we loaded the record.
	if ctrl, ok := m.controllers[interviewID]; ok {
		return ctrl, nil
	}
	ctrl := m.newController(iv)
	m.controllers[interviewID] = ctrl
	return ctrl, nil
}

// Get returns the controller for an interview if one is live.
func (m *Manager) Get(interviewID uuid.UUID) (*engine.Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctrl, ok := m.controllers[interviewID]
	return ctrl, ok
}

// Snapshot returns the current session state for an interview.
func (m *Manager) Snapshot(interviewID uuid.UUID) (engine.Snapshot, error) {
	ctrl, ok := m.Get(interviewID)
	if !ok {
		return engine.Snapshot{}, ErrNotFound
	}
	return ctrl.Snapshot(), nil
}

// Start brings the interview session up, creating the controller on first
// call. Repeated calls while connecting or active are no-ops.
func (m *Manager) Start(ctx context.Context, interviewID uuid.UUID) error {
	ctrl, err := m.Ensure(ctx, interviewID)
	if err != nil {
		return err
	}
	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	if uerr := m.repo.UpdateStatus(ctx, interviewID, models.InterviewStatusInProgress); uerr != nil {
		m.logger.Warn("status update failed", zap.String("interview_id", interviewID.String()), zap.Error(uerr))
	}
	return nil
}

// Reset returns the interview session to Idle, discarding transcript and
// progress. The agent invitation record survives.
func (m *Manager) Reset(interviewID uuid.UUID) error {
	ctrl, ok := m.Get(interviewID)
	if !ok {
		return ErrNotFound
	}
	ctrl.Reset()
	return nil
}

// Shutdown closes every live controller.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ctrl := range m.controllers {
		ctrl.Close()
		delete(m.controllers, id)
	}
}

func (m *Manager) newController(iv *models.Interview) *engine.Controller {
	id := iv.ID
	callID := iv.CallID()
	var preflight func(ctx context.Context) error
	if m.preflight != nil {
		preflight = func(ctx context.Context) error {
			return m.preflight(ctx, callID)
		}
	}
	ctrl := engine.NewController(engine.Config{
		CallID:          callID,
		CandidateName:   iv.CandidateName,
		JobTitle:        iv.JobTitle,
		Questions:       iv.Questions,
		CaptionLanguage: m.language,
		LeaveDebounce:   m.debounce,
		Preflight:       preflight,
	}, m.inviter, m.sessions, m.logger)
	ctrl.SetOnChange(func(snap engine.Snapshot) {
		if m.notifier != nil {
			m.notifier.BroadcastSnapshot(id.String(), snap)
		}
	})
	return ctrl
}
