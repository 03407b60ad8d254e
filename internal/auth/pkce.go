package auth

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/oauth2"
)

const (
	// CodeVerifierLength is the length of the PKCE code verifier.
	// RFC 7636 allows 43-128 characters.
	CodeVerifierLength = 64

	// StateLength is the length of the state nonce round-tripped through the redirect.
	StateLength = 16

	unreserved = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// GenerateCodeVerifier returns a random verifier of [CodeVerifierLength] characters from A-Z, a-z and 0-9.
func GenerateCodeVerifier() (string, error) {
	return randomString(CodeVerifierLength)
}

// GenerateCodeChallenge derives the S256 challenge: base64url(sha256(verifier)) without padding.
func GenerateCodeChallenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// GenerateState returns a random CSRF nonce of the given length, never shorter than [StateLength].
func GenerateState(length int) (string, error) {
	if length < StateLength {
		length = StateLength
	}
	return randomString(length)
}

// randomString draws from crypto/rand with rejection sampling so every character is equally likely.
func randomString(length int) (string, error) {
	const limit = 256 - 256%len(unreserved)

	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, unreserved[int(b)%len(unreserved)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}
