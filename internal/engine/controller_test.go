package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sync-hire/backend/internal/agent"
	"github.com/sync-hire/backend/internal/media"
	"github.com/sync-hire/backend/internal/progress"
)

type fakeSession struct {
	joins     int32
	leaves    int32
	joinErr   error
	joinGate  chan struct{} // when non-nil, Join blocks until closed
	events    chan media.Event
	capErr    error
	capStarts int32
}

func newFakeSession() *fakeSession {
	return &fakeSession{events: make(chan media.Event, 64)}
}

func (s *fakeSession) Join(ctx context.Context) error {
	if s.joinGate != nil {
		<-s.joinGate
	}
	if s.joinErr != nil {
		return s.joinErr
	}
	atomic.AddInt32(&s.joins, 1)
	return nil
}

func (s *fakeSession) Leave(ctx context.Context) error {
	atomic.AddInt32(&s.leaves, 1)
	return nil
}

func (s *fakeSession) EnableMicrophone(ctx context.Context) error { return nil }
func (s *fakeSession) EnableCamera(ctx context.Context) error     { return nil }

func (s *fakeSession) StartLiveCaptioning(ctx context.Context, language string) error {
	atomic.AddInt32(&s.capStarts, 1)
	return s.capErr
}

func (s *fakeSession) Events() <-chan media.Event { return s.events }

type fakeInviter struct {
	calls int32
	err   error
}

func (f *fakeInviter) EnsureInvited(ctx context.Context, req agent.JoinRequest) (*agent.JoinResult, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return &agent.JoinResult{Invited: true, VideoAvatarEnabled: true}, nil
}

func testConfig() Config {
	return Config{
		CallID:        "call-1",
		CandidateName: "Jane",
		JobTitle:      "Backend Engineer",
		Questions: []progress.Question{
			{ID: "q1", Text: "Intro", Category: "background"},
			{ID: "q2", Text: "Deep dive", Category: "technical"},
		},
		CaptionLanguage: "en-US",
		LeaveDebounce:   20 * time.Millisecond,
	}
}

func waitForState(t *testing.T, c *Controller, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return c.Snapshot().State == want },
		2*time.Second, 5*time.Millisecond, "expected state %s", want)
}

func TestStart_ReachesActive(t *testing.T) {
	sess := newFakeSession()
	inv := &fakeInviter{}
	c := NewController(testConfig(), inv, func(string) media.Session { return sess }, nil)
	defer c.Close()

	require.NoError(t, c.Start(context.Background()))
	waitForState(t, c, StateActive)

	snap := c.Snapshot()
	require.True(t, snap.VideoAvatarEnabled)
	require.Nil(t, snap.Error)
	require.EqualValues(t, 1, atomic.LoadInt32(&inv.calls))
	require.EqualValues(t, 1, atomic.LoadInt32(&sess.joins))
	require.EqualValues(t, 1, atomic.LoadInt32(&sess.capStarts))
}

func TestStart_ReentrantCallsAreNoOps(t *testing.T) {
	sess := newFakeSession()
	inv := &fakeInviter{}
	c := NewController(testConfig(), inv, func(string) media.Session { return sess }, nil)
	defer c.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Start(context.Background()))
	}
	waitForState(t, c, StateActive)
	// Give any spurious second connect a chance to run before asserting.
	time.Sleep(50 * time.Millisecond)

	require.EqualValues(t, 1, atomic.LoadInt32(&inv.calls))
	require.EqualValues(t, 1, atomic.LoadInt32(&sess.joins))
}

func TestStart_AgentUnavailable(t *testing.T) {
	sess := newFakeSession()
	inv := &fakeInviter{err: agent.ErrServiceUnavailable}
	c := NewController(testConfig(), inv, func(string) media.Session { return sess }, nil)
	defer c.Close()

	require.NoError(t, c.Start(context.Background()))
	waitForState(t, c, StateError)

	snap := c.Snapshot()
	require.NotNil(t, snap.Error)
	require.Equal(t, FailureAgentUnavailable, snap.Error.Kind)
	require.Zero(t, atomic.LoadInt32(&sess.joins), "join must not run after a failed invitation")
}

func TestStart_MediaJoinFailure(t *testing.T) {
	sess := newFakeSession()
	sess.joinErr = errors.New("room full")
	c := NewController(testConfig(), &fakeInviter{}, func(string) media.Session { return sess }, nil)
	defer c.Close()

	require.NoError(t, c.Start(context.Background()))
	waitForState(t, c, StateError)
	require.Equal(t, FailureMediaJoin, c.Snapshot().Error.Kind)
}

func TestStart_PreflightBlocksBeforeIdleIsLeft(t *testing.T) {
	cfg := testConfig()
	cfg.Preflight = func(ctx context.Context) error { return errors.New("camera unavailable") }
	inv := &fakeInviter{}
	c := NewController(cfg, inv, func(string) media.Session { return newFakeSession() }, nil)
	defer c.Close()

	err := c.Start(context.Background())
	var serr *SessionError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, FailurePermissionDenied, serr.Kind)
	require.Equal(t, StateIdle, c.Snapshot().State)
	require.Zero(t, atomic.LoadInt32(&inv.calls))
}

func TestStart_CaptioningFailureIsNonFatal(t *testing.T) {
	sess := newFakeSession()
	sess.capErr = errors.New("captions unsupported")
	c := NewController(testConfig(), &fakeInviter{}, func(string) media.Session { return sess }, nil)
	defer c.Close()

	require.NoError(t, c.Start(context.Background()))
	waitForState(t, c, StateActive)
	require.Nil(t, c.Snapshot().Error)
}

func TestCallEnded_TransitionsToEnded(t *testing.T) {
	sess := newFakeSession()
	c := NewController(testConfig(), &fakeInviter{}, func(string) media.Session { return sess }, nil)
	defer c.Close()

	require.NoError(t, c.Start(context.Background()))
	waitForState(t, c, StateActive)

	sess.events <- media.Event{Type: media.EventCallEnded}
	waitForState(t, c, StateEnded)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&sess.leaves) == 1 },
		time.Second, 5*time.Millisecond)
}

func TestParticipantLeave_DebouncedEnd(t *testing.T) {
	sess := newFakeSession()
	c := NewController(testConfig(), &fakeInviter{}, func(string) media.Session { return sess }, nil)
	defer c.Close()

	require.NoError(t, c.Start(context.Background()))
	waitForState(t, c, StateActive)

	local := media.Participant{ID: "observer", Local: true}
	agentP := media.Participant{ID: "agent-1", DisplayName: "AI Interviewer"}
	sess.events <- media.Event{Type: media.EventParticipants, Participants: []media.Participant{local, agentP}}
	sess.events <- media.Event{Type: media.EventParticipants, Participants: []media.Participant{local}}

	waitForState(t, c, StateEnded)
}

func TestParticipantLeave_ReconnectWithinDebounceKeepsSessionActive(t *testing.T) {
	sess := newFakeSession()
	c := NewController(testConfig(), &fakeInviter{}, func(string) media.Session { return sess }, nil)
	defer c.Close()

	require.NoError(t, c.Start(context.Background()))
	waitForState(t, c, StateActive)

	local := media.Participant{ID: "observer", Local: true}
	agentP := media.Participant{ID: "agent-1", DisplayName: "AI Interviewer"}
	sess.events <- media.Event{Type: media.EventParticipants, Participants: []media.Participant{local, agentP}}
	sess.events <- media.Event{Type: media.EventParticipants, Participants: []media.Participant{local}}
	sess.events <- media.Event{Type: media.EventParticipants, Participants: []media.Participant{local, agentP}}

	time.Sleep(60 * time.Millisecond) // well past the 20ms debounce
	require.Equal(t, StateActive, c.Snapshot().State)
}

func TestReset_DuringInFlightJoinReleasesSession(t *testing.T) {
	sess := newFakeSession()
	sess.joinGate = make(chan struct{})
	c := NewController(testConfig(), &fakeInviter{}, func(string) media.Session { return sess }, nil)
	defer c.Close()

	require.NoError(t, c.Start(context.Background()))
	waitForState(t, c, StateConnecting)

	c.Reset()
	waitForState(t, c, StateIdle)

	close(sess.joinGate) // the join now resolves after the reset
	require.Eventually(t, func() bool { return atomic.LoadInt32(&sess.leaves) == 1 },
		time.Second, 5*time.Millisecond, "resolved join must be released, not exposed")
	require.Equal(t, StateIdle, c.Snapshot().State)
}

func TestClose_LeavesActiveSession(t *testing.T) {
	sess := newFakeSession()
	c := NewController(testConfig(), &fakeInviter{}, func(string) media.Session { return sess }, nil)

	require.NoError(t, c.Start(context.Background()))
	waitForState(t, c, StateActive)

	c.Close()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&sess.leaves) == 1 },
		time.Second, 5*time.Millisecond, "closing must leave the joined session")
}

func TestClose_DuringInFlightJoinReleasesSession(t *testing.T) {
	sess := newFakeSession()
	sess.joinGate = make(chan struct{})
	c := NewController(testConfig(), &fakeInviter{}, func(string) media.Session { return sess }, nil)

	require.NoError(t, c.Start(context.Background()))
	waitForState(t, c, StateConnecting)

	c.Close()
	close(sess.joinGate) // the join now resolves after the close

	require.Eventually(t, func() bool { return atomic.LoadInt32(&sess.leaves) == 1 },
		time.Second, 5*time.Millisecond, "a join resolving after close must still be released")
}

func TestReset_ClearsSessionLocalState(t *testing.T) {
	sess := newFakeSession()
	c := NewController(testConfig(), &fakeInviter{}, func(string) media.Session { return sess }, nil)
	defer c.Close()

	require.NoError(t, c.Start(context.Background()))
	waitForState(t, c, StateActive)

	sess.events <- media.Event{Type: media.EventCaption, Caption: &media.Caption{
		SpeakerID: "u1", DisplayName: "Jane", TurnMarker: "t1", Text: "hello",
	}}
	sess.events <- media.Event{Type: media.EventCustom, Custom: &media.CustomMessage{
		Type: "progress", Payload: json.RawMessage(`{"questionIndex":1,"category":"background"}`),
	}}
	require.Eventually(t, func() bool { return len(c.Snapshot().Transcript) == 1 },
		time.Second, 5*time.Millisecond)

	c.Reset()
	waitForState(t, c, StateIdle)

	snap := c.Snapshot()
	require.Empty(t, snap.Transcript)
	require.Zero(t, snap.CurrentQuestionIndex)
	require.Empty(t, snap.CompletedStages)
	require.Zero(t, snap.ElapsedSeconds)
}

func TestCustomMessages_FeedTranscriptAndProgress(t *testing.T) {
	sess := newFakeSession()
	c := NewController(testConfig(), &fakeInviter{}, func(string) media.Session { return sess }, nil)
	defer c.Close()

	require.NoError(t, c.Start(context.Background()))
	waitForState(t, c, StateActive)

	sess.events <- media.Event{Type: media.EventCustom, Custom: &media.CustomMessage{
		Type: "transcript", Payload: json.RawMessage(`{"speaker":"agent","text":"Tell me about yourself."}`),
	}}
	sess.events <- media.Event{Type: media.EventCaption, Caption: &media.Caption{
		SpeakerID: "u1", DisplayName: "Jane", TurnMarker: "t1", Text: "I am a backend engineer",
	}}
	sess.events <- media.Event{Type: media.EventCustom, Custom: &media.CustomMessage{
		Type: "progress", Payload: json.RawMessage(`{"questionIndex":1,"category":"background"}`),
	}}

	require.Eventually(t, func() bool {
		snap := c.Snapshot()
		return len(snap.Transcript) == 2 && snap.CurrentQuestionIndex == 1
	}, time.Second, 5*time.Millisecond)

	snap := c.Snapshot()
	require.Equal(t, "Tell me about yourself.", snap.Transcript[0].Text)
	require.Equal(t, "I am a backend engineer", snap.Transcript[1].Text)
	require.Equal(t, []string{"background"}, snap.CompletedStages)
}

func TestCustomMessages_MalformedPayloadsAreDropped(t *testing.T) {
	sess := newFakeSession()
	c := NewController(testConfig(), &fakeInviter{}, func(string) media.Session { return sess }, nil)
	defer c.Close()

	require.NoError(t, c.Start(context.Background()))
	waitForState(t, c, StateActive)

	sess.events <- media.Event{Type: media.EventCustom, Custom: &media.CustomMessage{
		Type: "transcript", Payload: json.RawMessage(`{not json`),
	}}
	sess.events <- media.Event{Type: media.EventCustom, Custom: &media.CustomMessage{
		Type: "transcript", Payload: json.RawMessage(`{"speaker":"narrator","text":"hm"}`),
	}}
	sess.events <- media.Event{Type: media.EventCustom, Custom: &media.CustomMessage{
		Type: "progress", Payload: json.RawMessage(`{"category":"background"}`),
	}}
	sess.events <- media.Event{Type: media.EventCustom, Custom: &media.CustomMessage{
		Type: "confetti", Payload: json.RawMessage(`{}`),
	}}
	// A valid message afterwards proves the loop survived.
	sess.events <- media.Event{Type: media.EventCustom, Custom: &media.CustomMessage{
		Type: "transcript", Payload: json.RawMessage(`{"speaker":"agent","text":"Still here."}`),
	}}

	require.Eventually(t, func() bool { return len(c.Snapshot().Transcript) == 1 },
		time.Second, 5*time.Millisecond)
	require.Equal(t, "Still here.", c.Snapshot().Transcript[0].Text)
	require.Zero(t, c.Snapshot().CurrentQuestionIndex)
}

func TestAgentCaptions_DiscardedWhileStructuredFeedOwnsAgentRole(t *testing.T) {
	sess := newFakeSession()
	c := NewController(testConfig(), &fakeInviter{}, func(string) media.Session { return sess }, nil)
	defer c.Close()

	require.NoError(t, c.Start(context.Background()))
	waitForState(t, c, StateActive)

	sess.events <- media.Event{Type: media.EventCaption, Caption: &media.Caption{
		SpeakerID: "agent-1", DisplayName: "AI Interviewer", TurnMarker: "t1", Text: "tell me about",
	}}
	sess.events <- media.Event{Type: media.EventCustom, Custom: &media.CustomMessage{
		Type: "transcript", Payload: json.RawMessage(`{"speaker":"agent","text":"Tell me about yourself."}`),
	}}

	require.Eventually(t, func() bool { return len(c.Snapshot().Transcript) == 1 },
		time.Second, 5*time.Millisecond)
	require.Equal(t, "Tell me about yourself.", c.Snapshot().Transcript[0].Text)
}

func TestResetThenStart_IssuesFreshJoinButReusesInvitation(t *testing.T) {
	sess := newFakeSession()
	inv := &fakeInviter{}
	reg := agent.NewRegistry(func(ctx context.Context, req agent.JoinRequest) (*agent.JoinResult, error) {
		return inv.EnsureInvited(ctx, req)
	}, nil)
	c := NewController(testConfig(), reg, func(string) media.Session { return sess }, nil)
	defer c.Close()

	require.NoError(t, c.Start(context.Background()))
	waitForState(t, c, StateActive)
	c.Reset()
	waitForState(t, c, StateIdle)
	require.NoError(t, c.Start(context.Background()))
	waitForState(t, c, StateActive)

	// The invitation is call-scoped: reset does not clear it.
	require.EqualValues(t, 1, atomic.LoadInt32(&inv.calls))
	require.EqualValues(t, 2, atomic.LoadInt32(&sess.joins))
}
