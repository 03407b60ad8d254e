package auth

import (
	"errors"
	"fmt"

	"github.com/desertthunder/spotrcpt/internal/shared"
)

// ErrNavigation is returned by [Manager.Login] alongside a usable URL when the browser could not be opened.
var ErrNavigation = errors.New("failed to open authorization page")

// UpstreamError is returned by an [Exchanger] when the token endpoint answers with a non-2xx status.
type UpstreamError struct {
	Status      int
	Code        string // OAuth2 "error" field
	Description string // OAuth2 "error_description" field
	Body        []byte
}

func (e *UpstreamError) Error() string {
	if e.Code != "" {
		if e.Description != "" {
			return fmt.Sprintf("token endpoint returned %d: %s (%s)", e.Status, e.Code, e.Description)
		}
		return fmt.Sprintf("token endpoint returned %d: %s", e.Status, e.Code)
	}
	return fmt.Sprintf("token endpoint returned %d: %s", e.Status, string(e.Body))
}

// TokenExchangeError reports a failed authorization-code exchange, including a denied authorization.
type TokenExchangeError struct {
	Status      int
	Code        string
	Description string
	Body        []byte
	Err         error
}

func (e *TokenExchangeError) Error() string {
	return "token exchange failed: " + describe(e.Code, e.Description, e.Err)
}

func (e *TokenExchangeError) Unwrap() []error {
	return compact(shared.ErrAuthFailed, e.Err)
}

// TokenRefreshError reports a failed refresh. When Status is non-zero the upstream rejected the refresh token and
// the credential has been cleared; the user must log in again.
type TokenRefreshError struct {
	Status      int
	Code        string
	Description string
	Body        []byte
	Err         error
}

func (e *TokenRefreshError) Error() string {
	return "token refresh failed: " + describe(e.Code, e.Description, e.Err)
}

func (e *TokenRefreshError) Unwrap() []error {
	return compact(shared.ErrRefreshFailed, e.Err)
}

// APIRequestError is returned by [Manager.CallAPI] once the retry budget is exhausted.
type APIRequestError struct {
	Endpoint string
	Status   int
	Body     []byte
	Err      error
}

func (e *APIRequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("API request to %s failed: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("API request to %s failed with status %d: %s", e.Endpoint, e.Status, string(e.Body))
}

func (e *APIRequestError) Unwrap() []error {
	return compact(shared.ErrAPIRequest, e.Err)
}

func newTokenExchangeError(err error) *TokenExchangeError {
	var up *UpstreamError
	if errors.As(err, &up) {
		return &TokenExchangeError{Status: up.Status, Code: up.Code, Description: up.Description, Body: up.Body, Err: err}
	}
	return &TokenExchangeError{Err: err}
}

func newTokenRefreshError(err error) *TokenRefreshError {
	var up *UpstreamError
	if errors.As(err, &up) {
		return &TokenRefreshError{Status: up.Status, Code: up.Code, Description: up.Description, Body: up.Body, Err: err}
	}
	return &TokenRefreshError{Err: err}
}

func describe(code, description string, err error) string {
	switch {
	case err != nil:
		return err.Error()
	case code != "" && description != "":
		return code + ": " + description
	case code != "":
		return code
	case description != "":
		return description
	}
	return "unknown error"
}

func compact(errs ...error) []error {
	out := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}
