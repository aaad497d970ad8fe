package utils

import (
	"golang.org/x/crypto/bcrypt"
)

// HashInviteCode hashes a candidate invite code using bcrypt before it is
// stored. Plaintext codes exist only in the invitation email.
func HashInviteCode(code string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckInviteCode compares a plaintext invite code with its stored hash.
func CheckInviteCode(plain, hashed string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	return err == nil
}
