package gatekeeper

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess             = "login_success"
	auditEventLoginFailure             = "login_failure"
	auditEventRefreshSuccess           = "refresh_success"
	auditEventRefreshFailure           = "refresh_failure"
	auditEventLogoutSession            = "logout_session"
	auditEventLogoutAll                = "logout_all"
	auditEventSessionRevoked           = "session_revoked"
	auditEventEmailVerificationRequest = "email_verification_request"
	auditEventEmailVerificationConfirm = "email_verification_confirm"
	auditEventUserRegistered           = "user_registered"
	auditEventUserStatusChange         = "user_status_change"
	auditEventUserRolesChanged         = "user_roles_changed"
	auditEventUserPermissionsChanged   = "user_permissions_changed"
	auditEventPermissionCreated        = "permission_created"
	auditEventPermissionUpdated        = "permission_updated"
	auditEventPermissionDeleted        = "permission_deleted"
	auditEventRoleCreated              = "role_created"
	auditEventRoleUpdated              = "role_updated"
	auditEventRoleDeleted              = "role_deleted"
	auditEventRoleDefaultChanged       = "role_default_changed"
	auditEventRolePermissionsChanged   = "role_permissions_changed"
)

// AuditErrorCode is the stable error label recorded on failed audit events.
type AuditErrorCode string

const (
	auditErrAuthenticationRequired AuditErrorCode = "authentication_required"
	auditErrInvalidCredentials     AuditErrorCode = "invalid_credentials"
	auditErrInvalidToken           AuditErrorCode = "invalid_token"
	auditErrSessionRevoked         AuditErrorCode = "session_revoked"
	auditErrAccountInactive        AuditErrorCode = "account_inactive"
	auditErrEmailUnverified        AuditErrorCode = "email_unverified"
	auditErrVerificationInvalid    AuditErrorCode = "verification_invalid"
	auditErrVerificationDisabled   AuditErrorCode = "verification_disabled"
	auditErrNotFound               AuditErrorCode = "not_found"
	auditErrDuplicate              AuditErrorCode = "duplicate"
	auditErrReferenced             AuditErrorCode = "referenced"
	auditErrDefaultRoleRequired    AuditErrorCode = "default_role_required"
	auditErrInvalidInput           AuditErrorCode = "invalid_input"
	auditErrSessionCreationFailed  AuditErrorCode = "session_creation_failed"
	auditErrUnavailable            AuditErrorCode = "backend_unavailable"
	auditErrInternal               AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrAuthenticationRequired):
		return auditErrAuthenticationRequired
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrTokenMalformed),
		errors.Is(err, ErrTokenSignatureInvalid),
		errors.Is(err, ErrTokenExpired):
		return auditErrInvalidToken
	case errors.Is(err, ErrSessionExpiredOrRevoked):
		return auditErrSessionRevoked
	case errors.Is(err, ErrAccountInactive):
		return auditErrAccountInactive
	case errors.Is(err, ErrEmailUnverified):
		return auditErrEmailUnverified
	case errors.Is(err, ErrEmailVerificationInvalid):
		return auditErrVerificationInvalid
	case errors.Is(err, ErrEmailVerificationDisabled):
		return auditErrVerificationDisabled
	case errors.Is(err, ErrDefaultRoleRequired):
		return auditErrDefaultRoleRequired
	case errors.Is(err, ErrNotAllowedWhileReferenced):
		return auditErrReferenced
	case errors.Is(err, ErrDuplicateConstraint):
		return auditErrDuplicate
	case errors.Is(err, ErrEntityNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrInvalidInput):
		return auditErrInvalidInput
	case errors.Is(err, ErrSessionCreationFailed):
		return auditErrSessionCreationFailed
	case errors.Is(err, ErrCheckFailed),
		errors.Is(err, ErrEmailVerificationUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
