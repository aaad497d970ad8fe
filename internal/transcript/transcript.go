// Package transcript reconciles the two speech feeds of a live interview --
// the agent's structured transcript messages and the media provider's caption
// stream -- into one ordered, speaker-turn-aware transcript.
package transcript

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a transcript message.
type Role string

const (
	RoleAgent Role = "agent"
	RoleHuman Role = "human"
)

// Message is one reconciled speaker turn. Text grows monotonically except
// when a refinement of the same open caption turn replaces it with a longer
// revision.
type Message struct {
	ID        uuid.UUID `json:"id"`
	SpeakerID string    `json:"speaker_id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// segment tracks the most recent caption utterance seen for one speaker.
// At most one open segment per speaker; superseded when a new turn marker
// arrives for that speaker.
type segment struct {
	turnMarker string
	lastText   string
}

// Classifier maps a provider participant to a speaker role.
type Classifier func(speakerID, displayName string) Role

// Log reconciles caption events and structured speech fragments into an
// ordered message list. Captions for any role listed as structured-sourced
// are discarded outright, so each role has exactly one authoritative feed.
//
// Log is not safe for concurrent use; the session controller serializes all
// access through its event loop.
type Log struct {
	structured map[Role]bool
	classify   Classifier
	segments   map[string]segment
	messages   []Message
}

// NewLog creates a transcript log. structuredRoles lists the roles whose text
// arrives via the structured channel (their captions are ignored).
func NewLog(structuredRoles ...Role) *Log {
	l := &Log{
		structured: make(map[Role]bool),
		classify:   ClassifySpeaker,
		segments:   make(map[string]segment),
	}
	for _, r := range structuredRoles {
		l.structured[r] = true
	}
	return l
}

// SetClassifier overrides the participant classification heuristic.
func (l *Log) SetClassifier(fn Classifier) {
	if fn != nil {
		l.classify = fn
	}
}

// AddCaption merges one caption event into the log.
//
// The same logical utterance may be redelivered with growing or corrected
// text, and ordering across speakers is not guaranteed; the merge depends
// only on arrival order, the turn marker and speaker adjacency, never on
// wall-clock timestamps.
func (l *Log) AddCaption(speakerID, displayName, turnMarker, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	role := l.classify(speakerID, displayName)
	if l.structured[role] {
		return
	}

	seg, open := l.segments[speakerID]
	if open && seg.lastText == text {
		return // exact redelivery
	}
	isNewTurn := !open || seg.turnMarker != turnMarker

	if last := l.last(); last != nil && last.SpeakerID == speakerID {
		if isNewTurn {
			// Same speaker started a new utterance while still holding the
			// floor: extend the ongoing turn.
			last.Text += " " + text
		} else if len(text) >= len(last.Text) {
			last.Text = text
		}
		// A shorter revision of the open turn is stale; leave the message as is.
	} else {
		l.messages = append(l.messages, Message{
			ID:        uuid.New(),
			SpeakerID: speakerID,
			Role:      role,
			Text:      text,
			CreatedAt: time.Now(),
		})
	}

	l.segments[speakerID] = segment{turnMarker: turnMarker, lastText: text}
}

// AddStructured merges one structured-channel fragment into the log.
// Fragments are final on delivery; adjacency is decided by role.
//
// The role becomes structured-sourced from the first fragment on: each role
// has exactly one authoritative feed, so captions for it are discarded from
// then on. Without that hand-off a caption arriving after a structured
// fragment for the same role would open a second consecutive message with
// that role.
func (l *Log) AddStructured(role Role, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	l.structured[role] = true
	if last := l.last(); last != nil && last.Role == role {
		last.Text += " " + text
		return
	}
	l.messages = append(l.messages, Message{
		ID:        uuid.New(),
		SpeakerID: string(role),
		Role:      role,
		Text:      text,
		CreatedAt: time.Now(),
	})
}

// Messages returns a copy of the reconciled transcript in turn order.
func (l *Log) Messages() []Message {
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len returns the number of messages in the log.
func (l *Log) Len() int {
	return len(l.messages)
}

// Reset discards all messages and open caption segments. The structured-role
// configuration and classifier survive.
func (l *Log) Reset() {
	l.segments = make(map[string]segment)
	l.messages = nil
}

func (l *Log) last() *Message {
	if len(l.messages) == 0 {
		return nil
	}
	return &l.messages[len(l.messages)-1]
}
