// Package progress tracks interview-stage progress from the agent's
// out-of-band progress events.
package progress

// Question is one planned interview question with its stage category.
type Question struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Category string `json:"category"`
	Duration int    `json:"duration"` // suggested answer time in seconds
}

// Tracker holds the current question index over an ordered question list.
// Completed stages are always derived from the index, never stored.
//
// Tracker is not safe for concurrent use; the session controller serializes
// all access through its event loop.
type Tracker struct {
	questions []Question
	current   int
}

// NewTracker creates a tracker over the interview's ordered question list.
func NewTracker(questions []Question) *Tracker {
	return &Tracker{questions: questions}
}

// Apply sets the current question index. Last write wins: the wire format
// offers no ordering guarantee, so no monotonicity check is performed.
// Negative indexes are clamped to zero.
func (t *Tracker) Apply(questionIndex int) {
	if questionIndex < 0 {
		questionIndex = 0
	}
	t.current = questionIndex
}

// Current returns the current question index.
func (t *Tracker) Current() int {
	return t.current
}

// CompletedStages returns the distinct stage categories of all questions
// before the current index, in first-occurrence order. Recomputed on every
// call.
func (t *Tracker) CompletedStages() []string {
	seen := make(map[string]bool)
	var stages []string
	for i := 0; i < t.current && i < len(t.questions); i++ {
		cat := t.questions[i].Category
		if cat == "" || seen[cat] {
			continue
		}
		seen[cat] = true
		stages = append(stages, cat)
	}
	return stages
}

// Questions returns the ordered question list.
func (t *Tracker) Questions() []Question {
	return t.questions
}

// Reset returns the tracker to the first question.
func (t *Tracker) Reset() {
	t.current = 0
}
