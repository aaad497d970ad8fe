// Package auth issues and validates the JWTs that gate the interview API:
// candidate tokens scoped to one interview, and admin tokens for recruiters.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// Roles carried in token claims.
const (
	RoleAdmin     = "admin"
	RoleCandidate = "candidate"
)

// Claims holds JWT claims. For candidate tokens InterviewID scopes the token
// to one interview; admin tokens leave it zero.
type Claims struct {
	InterviewID uuid.UUID `json:"interview_id,omitempty"`
	Name        string    `json:"name"`
	Role        string    `json:"role"`
	jwt.RegisteredClaims
}

// JWTService handles token generation and validation.
type JWTService struct {
	secret      []byte
	expireHours int
}

// NewJWTService creates a JWT service.
func NewJWTService(secret string, expireHours int) *JWTService {
	return &JWTService{
		secret:      []byte(secret),
		expireHours: expireHours,
	}
}

// GenerateCandidate creates a token letting one candidate access one interview.
func (s *JWTService) GenerateCandidate(interviewID uuid.UUID, name string) (string, error) {
	return s.generate(Claims{InterviewID: interviewID, Name: name, Role: RoleCandidate})
}

// GenerateAdmin creates an admin token.
func (s *JWTService) GenerateAdmin(name string) (string, error) {
	return s.generate(Claims{Name: name, Role: RoleAdmin})
}

func (s *JWTService) generate(claims Claims) (string, error) {
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(s.expireHours) * time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ID:        uuid.New().String(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate parses and validates a JWT, returning claims or error.
func (s *JWTService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
