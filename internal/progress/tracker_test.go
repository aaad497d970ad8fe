package progress

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func fourQuestions() []Question {
	return []Question{
		{ID: "q1", Text: "Intro", Category: "background"},
		{ID: "q2", Text: "Project deep dive", Category: "technical"},
		{ID: "q3", Text: "Debugging story", Category: "technical"},
		{ID: "q4", Text: "Team conflict", Category: "behavioral"},
	}
}

func TestCompletedStages_DerivedFromIndex(t *testing.T) {
	tr := NewTracker(fourQuestions())
	tr.Apply(2)

	require.Equal(t, 2, tr.Current())
	require.Equal(t, []string{"background", "technical"}, tr.CompletedStages())
}

func TestCompletedStages_DeduplicatesCategories(t *testing.T) {
	tr := NewTracker(fourQuestions())
	tr.Apply(3)

	// q2 and q3 share "technical"; it appears once.
	require.Equal(t, []string{"background", "technical"}, tr.CompletedStages())
}

func TestApply_LastWriteWins(t *testing.T) {
	tr := NewTracker(fourQuestions())
	tr.Apply(3)
	tr.Apply(1) // out-of-order delivery; no monotonicity check

	require.Equal(t, 1, tr.Current())
	require.Equal(t, []string{"background"}, tr.CompletedStages())
}

func TestApply_ClampsNegative(t *testing.T) {
	tr := NewTracker(fourQuestions())
	tr.Apply(-5)

	require.Equal(t, 0, tr.Current())
	require.Empty(t, tr.CompletedStages())
}

func TestApply_IndexBeyondListIsSafe(t *testing.T) {
	tr := NewTracker(fourQuestions())
	tr.Apply(99)

	require.Equal(t, []string{"background", "technical", "behavioral"}, tr.CompletedStages())
}

func TestReset(t *testing.T) {
	tr := NewTracker(fourQuestions())
	tr.Apply(3)
	tr.Reset()

	require.Equal(t, 0, tr.Current())
	require.Empty(t, tr.CompletedStages())
}
