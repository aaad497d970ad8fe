// Package media is the boundary to the hosted real-time media provider. The
// provider owns audio/video transport, room membership and closed-caption
// generation; this package only issues thin control calls and relays the
// provider's event feed to the session engine.
package media

import (
	"context"
	"encoding/json"
)

// EventType discriminates provider session events.
type EventType string

const (
	EventParticipants EventType = "participants_changed"
	EventCaption      EventType = "caption"
	EventCustom       EventType = "custom_message"
	EventCallEnded    EventType = "call_ended"
)

// Participant is one member of the interview room.
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Local       bool   `json:"local"`
}

// Caption is one live-transcription event for a single utterance. The same
// turn marker may be redelivered with growing or corrected text.
type Caption struct {
	SpeakerID   string `json:"speaker_id"`
	DisplayName string `json:"display_name"`
	TurnMarker  string `json:"turn_marker"`
	Text        string `json:"text"`
}

// CustomMessage is an arbitrary app message sent over the room's data
// channel (the agent's structured transcript and progress events arrive
// this way).
type CustomMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Event is the union of session events delivered by the provider. Type
// selects which field is set.
type Event struct {
	Type         EventType
	Participants []Participant
	Caption      *Caption
	Custom       *CustomMessage
}

// Session is one connection to a provider-hosted interview room. Control
// calls are pass-through HTTP requests; events arrive on the channel for the
// lifetime of the session.
type Session interface {
	Join(ctx context.Context) error
	Leave(ctx context.Context) error
	EnableMicrophone(ctx context.Context) error
	EnableCamera(ctx context.Context) error
	StartLiveCaptioning(ctx context.Context, language string) error
	Events() <-chan Event
}
