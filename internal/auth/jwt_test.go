package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCandidateToken_RoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret-test-secret", 1)
	interviewID := uuid.New()

	token, err := svc.GenerateCandidate(interviewID, "Jane Doe")
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	require.Equal(t, interviewID, claims.InterviewID)
	require.Equal(t, "Jane Doe", claims.Name)
	require.Equal(t, RoleCandidate, claims.Role)
}

func TestAdminToken_HasNoInterviewScope(t *testing.T) {
	svc := NewJWTService("test-secret-test-secret", 1)

	token, err := svc.GenerateAdmin("ops")
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	require.Equal(t, uuid.Nil, claims.InterviewID)
	require.Equal(t, RoleAdmin, claims.Role)
}

func TestValidate_WrongSecretRejected(t *testing.T) {
	svc := NewJWTService("secret-one", 1)
	other := NewJWTService("secret-two", 1)

	token, err := svc.GenerateAdmin("ops")
	require.NoError(t, err)

	_, err = other.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_GarbageRejected(t *testing.T) {
	svc := NewJWTService("test-secret", 1)
	_, err := svc.Validate("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}
