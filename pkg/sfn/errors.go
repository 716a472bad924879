package sfn

import (
	"errors"
	"fmt"
	"net"

	"github.com/aws/smithy-go"
)

// AuthError marks a profile whose credentials are missing, invalid or
// expired. The profile's results are omitted; sibling profiles continue.
type AuthError struct {
	Profile string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("profile %q: credentials invalid or expired: %v", e.Profile, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// PermissionError marks a profile that authenticated but was denied access
// to a listing operation. Same isolation policy as AuthError.
type PermissionError struct {
	Profile string
	Err     error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("profile %q: access denied: %v", e.Profile, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// RateLimitError marks a single state machine whose execution listing
// exhausted its throttling retries. Its row is rendered as partial; other
// machines are unaffected.
type RateLimitError struct {
	MachineARN string
	Err        error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("state machine %s: rate limit retries exhausted: %v", e.MachineARN, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// isThrottle reports whether err is a provider throttling response.
func isThrottle(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	switch apiErr.ErrorCode() {
	case "ThrottlingException", "Throttling", "TooManyRequestsException", "RequestLimitExceeded":
		return true
	}

	return false
}

// isAuthFailure reports whether err means the profile's credentials cannot
// be used at all.
func isAuthFailure(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ExpiredToken", "ExpiredTokenException", "InvalidClientTokenId",
			"UnrecognizedClientException", "SignatureDoesNotMatch", "AuthFailure":
			return true
		}
	}

	return false
}

// isAccessDenied reports whether err is an authorization (not
// authentication) failure.
func isAccessDenied(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "AccessDeniedException", "UnauthorizedOperation":
			return true
		}
	}

	return false
}

// isTransient reports whether err is worth retrying: throttling or a
// transient network failure. Auth and permission errors are never retried.
func isTransient(err error) bool {
	if isThrottle(err) {
		return true
	}

	if isAuthFailure(err) || isAccessDenied(err) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError

	return errors.As(err, &opErr)
}
