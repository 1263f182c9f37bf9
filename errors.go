package gatekeeper

import (
	"errors"

	"github.com/MrEthical07/gatekeeper/identity"
	"github.com/MrEthical07/gatekeeper/internal/validate"
	"github.com/MrEthical07/gatekeeper/jwt"
	"github.com/MrEthical07/gatekeeper/permission"
	"github.com/MrEthical07/gatekeeper/store"
)

var (
	// ErrAuthenticationRequired is returned when a request carries no credential.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrSessionExpiredOrRevoked is returned when the credential is genuine but
	// its session is gone from the cache or from the owner's session set.
	ErrSessionExpiredOrRevoked = errors.New("session expired or revoked")
	// ErrPermissionDenied is returned by the Require* middleware on a negative check.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrCheckFailed marks a store I/O failure during a session or permission
	// check. It is never a grant and never a denial.
	ErrCheckFailed = errors.New("check failed")
	// ErrInvalidCredentials is returned by Login for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive is returned for users whose account was deactivated.
	ErrAccountInactive = errors.New("account inactive")
	// ErrEmailUnverified is returned by Login when verified email is required.
	ErrEmailUnverified              = errors.New("email not verified")
	ErrEmailVerificationDisabled    = errors.New("email verification disabled")
	ErrEmailVerificationInvalid     = errors.New("email verification challenge invalid")
	ErrEmailVerificationUnavailable = errors.New("email verification backend unavailable")
	ErrEngineNotReady               = errors.New("engine not initialized")
	ErrSessionCreationFailed        = errors.New("session creation failed")
)

// Token failures. These are the codec's own sentinels so errors.Is matches
// whichever layer the error came from.
var (
	ErrTokenMalformed        = jwt.ErrMalformed
	ErrTokenSignatureInvalid = jwt.ErrSignatureInvalid
	ErrTokenExpired          = jwt.ErrExpired
)

// Store failures, aliased from the store and registry packages.
var (
	ErrEntityNotFound            = store.ErrNotFound
	ErrDuplicateConstraint       = store.ErrDuplicate
	ErrDuplicateEmail            = identity.ErrDuplicateEmail
	ErrNotAllowedWhileReferenced = store.ErrReferenced
	ErrDefaultRoleRequired       = permission.ErrDefaultRoleRequired
	ErrInvalidInput              = validate.ErrInvalid
)

// IsAuthenticationError reports whether err should be answered with 401.
func IsAuthenticationError(err error) bool {
	switch {
	case errors.Is(err, ErrAuthenticationRequired),
		errors.Is(err, ErrSessionExpiredOrRevoked),
		errors.Is(err, ErrTokenMalformed),
		errors.Is(err, ErrTokenSignatureInvalid),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrAccountInactive):
		return true
	}
	return false
}
