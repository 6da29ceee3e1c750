package shared

import "errors"

// Sentinel errors shared across packages. Wrap with fmt.Errorf("%w: ...") and match with errors.Is.
var (
	// Configuration errors
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrMissingCredentials = errors.New("missing credentials")

	// Authentication errors
	ErrAuthFailed       = errors.New("authentication failed")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrTokenExpired     = errors.New("access token expired")
	ErrTimeout          = errors.New("operation timed out")

	// API and service errors
	ErrAPIRequest         = errors.New("API request failed")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrPlaylistNotFound   = errors.New("playlist not found")
	ErrTooManyIDs         = errors.New("too many ids in one request")

	// Input validation errors
	ErrInvalidArgument = errors.New("invalid argument")
	ErrMissingArgument = errors.New("missing required argument")
)
