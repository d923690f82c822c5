// Package apperr defines the tagged failures returned by the auth and passkey services.
// Handlers translate them to transport errors with Tag and Message; the wrapped cause is never
// exposed to clients.
package apperr

import "errors"

// Stable tags surfaced to clients.
const (
	TagInvalidCredentials = "INVALID_CREDENTIALS"
	TagInvalidToken       = "INVALID_TOKEN"
	TagSessionNotFound    = "SESSION_NOT_FOUND"
	TagChallengeNotFound  = "CHALLENGE_NOT_FOUND"
	TagReplayDetected     = "REPLAY_DETECTED"
	TagVerificationFailed = "VERIFICATION_FAILED"
	TagLimitExceeded      = "LIMIT_EXCEEDED"
	TagNoCredentials      = "NO_CREDENTIALS"
	TagAlreadyExists      = "ALREADY_EXISTS"
	TagInvalidArgument    = "INVALID_ARGUMENT"
	TagPermissionDenied   = "PERMISSION_DENIED"
	TagStorage            = "STORAGE_ERROR"
	TagInternal           = "INTERNAL"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrSessionNotFound    = errors.New("session not found")
	ErrChallengeNotFound  = errors.New("challenge not found or expired")
	ErrReplayDetected     = errors.New("authenticator replay detected")
	ErrVerificationFailed = errors.New("webauthn verification failed")
	ErrLimitExceeded      = errors.New("passkey limit exceeded")
	ErrNoCredentials      = errors.New("no passkey credentials")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrPermissionDenied   = errors.New("permission denied")
	// ErrStorage marks a single-row write that affected zero or several rows.
	ErrStorage = errors.New("storage integrity violation")
)

type entry struct {
	err     error
	tag     string
	message string
}

var table = []entry{
	{ErrInvalidCredentials, TagInvalidCredentials, "invalid credentials"},
	{ErrInvalidToken, TagInvalidToken, "invalid or expired token"},
	{ErrSessionNotFound, TagSessionNotFound, "session not found"},
	{ErrChallengeNotFound, TagChallengeNotFound, "challenge not found or expired; start again"},
	{ErrReplayDetected, TagReplayDetected, "authentication rejected"},
	{ErrVerificationFailed, TagVerificationFailed, "verification failed"},
	{ErrLimitExceeded, TagLimitExceeded, "maximum number of passkeys reached"},
	{ErrNoCredentials, TagNoCredentials, "no passkeys registered"},
	{ErrAlreadyExists, TagAlreadyExists, "already registered"},
	{ErrInvalidArgument, TagInvalidArgument, "invalid request"},
	{ErrPermissionDenied, TagPermissionDenied, "permission denied"},
	{ErrStorage, TagStorage, "temporary error; please try again"},
}

// Tag returns the stable tag for err, or TagInternal when err is not one of the sentinels.
func Tag(err error) string {
	for _, e := range table {
		if errors.Is(err, e.err) {
			return e.tag
		}
	}
	return TagInternal
}

// Message returns the generic client-facing message for err.
func Message(err error) string {
	for _, e := range table {
		if errors.Is(err, e.err) {
			return e.message
		}
	}
	return "temporary error; please try again"
}

// Known reports whether err wraps one of the tagged sentinels.
func Known(err error) bool {
	return Tag(err) != TagInternal
}
