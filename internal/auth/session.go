package auth

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateSessionToken creates a cryptographically secure random session token
func GenerateSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
