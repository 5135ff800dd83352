package members

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidAuthorizationRequest = "invalid_authorization_request"
	TextCodeTokenExpired                = "authorization_token_expired"
	TextCodeTokenMalformed              = "authorization_token_malformed"
	TextCodeDuplicateAccount            = "duplicate_account"
	TextCodeTransitionalInvalid         = "transitional_payload_invalid"
	TextCodeTransitionalExpired         = "transitional_payload_expired"
)

// ErrInvalidCode is returned when a verification code fails the shape check.
var ErrInvalidCode = errors.New("Invalid code", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidAuthorizationRequest).
	WithCode(errors.CodeBadRequest)

// ErrNoMetaCode is returned when no verification token matches the code.
var ErrNoMetaCode = errors.New("No meta code", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidAuthorizationRequest).
	WithCode(errors.CodeBadRequest)

// ErrNoAccount is returned when a verification token points at a missing account.
var ErrNoAccount = errors.New("No account", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidAuthorizationRequest).
	WithCode(errors.CodeBadRequest)

// ErrTokenExpired is returned when an authorization cookie token is past its window.
var ErrTokenExpired = errors.New("authorization token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned when an authorization cookie token fails to decode.
var ErrTokenMalformed = errors.New("authorization token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrDuplicateAccount is returned when a registration merge collides with an
// existing email or username.
var ErrDuplicateAccount = errors.New("account already exists", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateAccount).
	WithCode(errors.CodeConflict)

// ErrInvalidTransitional is returned when a transitional registration payload
// is invalid or tampered.
var ErrInvalidTransitional = errors.New("invalid transitional registration payload", errors.CategoryBadInput).
	WithTextCode(TextCodeTransitionalInvalid).
	WithCode(errors.CodeBadRequest)

// ErrTransitionalExpired is returned when a transitional registration payload
// is past its window.
var ErrTransitionalExpired = errors.New("transitional registration payload expired", errors.CategoryBadInput).
	WithTextCode(TextCodeTransitionalExpired).
	WithCode(errors.CodeBadRequest)

// IsInvalidAuthorizationRequest reports whether err belongs to the
// verification request taxonomy (bad code shape, unknown code, dangling token).
func IsInvalidAuthorizationRequest(err error) bool {
	if err == nil {
		return false
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == TextCodeInvalidAuthorizationRequest
	}

	return false
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTokenExpired) ||
		strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTokenMalformed) ||
		strings.Contains(err.Error(), "token is malformed")
}

// IsUniqueConstraintError matches driver level uniqueness violations so the
// repositories can surface them as ErrDuplicateAccount.
func IsUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
