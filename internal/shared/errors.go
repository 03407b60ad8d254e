package shared

import "fmt"

// Sentinel errors wrapped with fmt.Errorf("%w: ...") throughout; test with errors.Is.
var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed            = fmt.Errorf("authentication failed")
	ErrNotAuthenticated      = fmt.Errorf("not authenticated")
	ErrStateMismatch         = fmt.Errorf("state mismatch, possible CSRF attack")
	ErrRefreshFailed         = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken        = fmt.Errorf("no refresh token available")
	ErrAuthenticationExpired = fmt.Errorf("authentication expired")
	ErrTimeout               = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrReceiptNotFound    = fmt.Errorf("receipt not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
