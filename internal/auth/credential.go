package auth

import (
	"fmt"
	"strconv"
	"time"
)

// Storage keys. Values are strings; token_expiration is epoch milliseconds.
const (
	KeyCodeVerifier    = "code_verifier"
	KeyAuthState       = "auth_state"
	KeyAccessToken     = "access_token"
	KeyRefreshToken    = "refresh_token"
	KeyTokenExpiration = "token_expiration"
)

// AllKeys lists every key the manager writes.
var AllKeys = []string{KeyCodeVerifier, KeyAuthState, KeyAccessToken, KeyRefreshToken, KeyTokenExpiration}

// Credential is the current token set. The zero value is an unauthenticated session.
type Credential struct {
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// HasAccessToken reports whether an access token is present, regardless of expiry.
func (c Credential) HasAccessToken() bool { return c.AccessToken != "" }

// HasRefreshToken reports whether the credential can be refreshed.
func (c Credential) HasRefreshToken() bool { return c.RefreshToken != "" }

// PendingAuthorization is the verifier and state persisted between [Manager.Login] and [Manager.HandleCallback].
type PendingAuthorization struct {
	CodeVerifier string
	State        string
}

func loadCredential(s Store) (Credential, error) {
	var c Credential

	access, _, err := s.Get(KeyAccessToken)
	if err != nil {
		return c, fmt.Errorf("failed to read %s: %w", KeyAccessToken, err)
	}
	refresh, _, err := s.Get(KeyRefreshToken)
	if err != nil {
		return c, fmt.Errorf("failed to read %s: %w", KeyRefreshToken, err)
	}
	expiration, ok, err := s.Get(KeyTokenExpiration)
	if err != nil {
		return c, fmt.Errorf("failed to read %s: %w", KeyTokenExpiration, err)
	}

	c.AccessToken = access
	c.RefreshToken = refresh
	if ok {
		// A malformed expiration leaves ExpiresAt zero, which reads as expired.
		if ms, err := strconv.ParseInt(expiration, 10, 64); err == nil {
			c.ExpiresAt = time.UnixMilli(ms)
		}
	}
	return c, nil
}

func saveCredential(s Store, c Credential) error {
	if c.AccessToken == "" {
		return s.Delete(KeyAccessToken, KeyRefreshToken, KeyTokenExpiration)
	}

	if err := s.Set(KeyAccessToken, c.AccessToken); err != nil {
		return fmt.Errorf("failed to write %s: %w", KeyAccessToken, err)
	}
	if err := s.Set(KeyTokenExpiration, strconv.FormatInt(c.ExpiresAt.UnixMilli(), 10)); err != nil {
		return fmt.Errorf("failed to write %s: %w", KeyTokenExpiration, err)
	}
	if c.RefreshToken == "" {
		return s.Delete(KeyRefreshToken)
	}
	if err := s.Set(KeyRefreshToken, c.RefreshToken); err != nil {
		return fmt.Errorf("failed to write %s: %w", KeyRefreshToken, err)
	}
	return nil
}

func savePending(s Store, p PendingAuthorization) error {
	if err := s.Set(KeyCodeVerifier, p.CodeVerifier); err != nil {
		return fmt.Errorf("failed to write %s: %w", KeyCodeVerifier, err)
	}
	if err := s.Set(KeyAuthState, p.State); err != nil {
		return fmt.Errorf("failed to write %s: %w", KeyAuthState, err)
	}
	return nil
}

// takePending reads and removes the pending authorization. Both keys are deleted even when one is missing.
func takePending(s Store) (PendingAuthorization, error) {
	var p PendingAuthorization

	verifier, _, verr := s.Get(KeyCodeVerifier)
	state, _, serr := s.Get(KeyAuthState)
	if err := s.Delete(KeyCodeVerifier, KeyAuthState); err != nil {
		return p, fmt.Errorf("failed to clear pending authorization: %w", err)
	}
	if verr != nil {
		return p, fmt.Errorf("failed to read %s: %w", KeyCodeVerifier, verr)
	}
	if serr != nil {
		return p, fmt.Errorf("failed to read %s: %w", KeyAuthState, serr)
	}

	p.CodeVerifier = verifier
	p.State = state
	return p, nil
}
