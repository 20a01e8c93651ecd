package broadcast

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// maxAuthAttempts is how many bad signatures a connection may send
const maxAuthAttempts = 3

// authChallenge is the first frame the relay sends
type authChallenge struct {
	Event     string `json:"event"`
	Challenge string `json:"challenge"`
}

// authResponse is the member's answer to a challenge
type authResponse struct {
	Method    string `json:"method"`
	Signature string `json:"signature"`
}

// authResult closes the handshake
type authResult struct {
	Event   string `json:"event"`
	Success bool   `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
}

// originAuth proves that a member knows the origin secret
type originAuth struct {
	secret string
}

func newOriginAuth(secret string) *originAuth {
	return &originAuth{secret: secret}
}

// challenge returns 32 random bytes hex encoded
func (a *originAuth) challenge() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate challenge: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// verify checks an HMAC-SHA256 signature of challenge
func (a *originAuth) verify(challenge, signature string) bool {
	expected := Sign(a.secret, challenge)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// Sign computes the signature a member sends for challenge
func Sign(secret, challenge string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(challenge))
	return hex.EncodeToString(h.Sum(nil))
}
