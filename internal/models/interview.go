package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sync-hire/backend/internal/progress"
)

// Interview status values.
const (
	InterviewStatusScheduled  = "scheduled"
	InterviewStatusInProgress = "in_progress"
	InterviewStatusCompleted  = "completed"
)

// Interview represents one interview attempt: the candidate, the role, and
// the ordered question plan. The interview ID doubles as the media call ID.
type Interview struct {
	ID              uuid.UUID           `json:"id"`
	CandidateName   string              `json:"candidate_name"`
	JobTitle        string              `json:"job_title"`
	Questions       []progress.Question `json:"questions"`
	Status          string              `json:"status"`
	DurationMinutes *float64            `json:"duration_minutes,omitempty"`
	CompletedAt     *time.Time          `json:"completed_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// CallID returns the media-provider call identifier for this interview.
func (i *Interview) CallID() string {
	return i.ID.String()
}
