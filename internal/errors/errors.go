package errors

import (
	"errors"
	"fmt"
)

// Common error types for the hub gateway
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserBlocked        = errors.New("user is blocked")
	ErrUserNotFound       = errors.New("user not found")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")

	// Token errors
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Client errors
	ErrInvalidClient      = errors.New("invalid client")
	ErrInvalidScope       = errors.New("invalid scope")
	ErrInvalidRedirectURI = errors.New("invalid redirect URI")

	// Authorization errors
	ErrInvalidGrant    = errors.New("invalid grant")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrAccessDenied    = errors.New("access denied")
	ErrConsentNotFound = errors.New("consent request not found")
	ErrConsentExpired  = errors.New("consent request expired")

	// Backend errors
	ErrSpawnFailed        = errors.New("spawn failed")
	ErrSpawnTimeout       = fmt.Errorf("%w: timeout waiting for server", ErrSpawnFailed)
	ErrSpawnCancelled     = fmt.Errorf("%w: spawn cancelled", ErrSpawnFailed)
	ErrServerNotRunning   = errors.New("server not running")
	ErrGatewayUnreachable = errors.New("backend unreachable")

	// General errors
	ErrNotFound = errors.New("not found")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers need a single errors import
func New(text string) error {
	return errors.New(text)
}
