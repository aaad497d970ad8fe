package engine

import "fmt"

// FailureKind classifies session failures for the UI.
type FailureKind string

const (
	// FailurePermissionDenied: camera/mic unavailable before join. Blocks
	// Start before the state machine leaves Idle.
	FailurePermissionDenied FailureKind = "permission_denied"
	// FailureAgentUnavailable: the agent invitation call failed. Retryable.
	FailureAgentUnavailable FailureKind = "agent_service_unavailable"
	// FailureMediaJoin: the provider join call failed. Retryable.
	FailureMediaJoin FailureKind = "media_session_join_failure"
	// FailureTranscriptionStart: live captioning could not start. Non-fatal;
	// the session proceeds without captions for the affected role.
	FailureTranscriptionStart FailureKind = "transcription_start_failure"
)

// SessionError is a typed, user-displayable session failure.
type SessionError struct {
	Kind FailureKind
	Err  error
}

func (e *SessionError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}
