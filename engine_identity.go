package gatekeeper

import (
	"context"
	"strconv"
	"time"

	"github.com/MrEthical07/gatekeeper/identity"
	"github.com/MrEthical07/gatekeeper/permission"
	"github.com/MrEthical07/gatekeeper/store"
)

// RegisterInput describes a new user. With no Roles the active default
// role, if any, is attached.
type RegisterInput = identity.CreateInput

// Register creates a user. A taken email returns ErrDuplicateEmail, which
// also matches ErrDuplicateConstraint.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (identity.PublicUser, error) {
	if !e.ready() {
		return identity.PublicUser{}, ErrEngineNotReady
	}
	u, err := e.identities.Create(ctx, in)
	if err != nil {
		e.emitAudit(ctx, auditEventUserRegistered, false, "", "", err, func() map[string]string {
			return map[string]string{"email": identity.NormalizeEmail(in.Email)}
		})
		return identity.PublicUser{}, err
	}
	e.metricInc(MetricUserRegistered)
	e.emitAudit(ctx, auditEventUserRegistered, true, u.ID, "", nil, func() map[string]string {
		return map[string]string{"roles": strconv.Itoa(len(u.RoleIDs))}
	})
	return identity.External(u), nil
}

func (e *Engine) GetUser(ctx context.Context, userID string) (identity.PublicUser, error) {
	if !e.ready() {
		return identity.PublicUser{}, ErrEngineNotReady
	}
	u, err := e.identities.FindByID(ctx, userID)
	if err != nil {
		return identity.PublicUser{}, storeError(err)
	}
	return identity.External(u), nil
}

func (e *Engine) FindUserByEmail(ctx context.Context, email string) (identity.PublicUser, error) {
	if !e.ready() {
		return identity.PublicUser{}, ErrEngineNotReady
	}
	u, err := e.identities.FindByEmail(ctx, email)
	if err != nil {
		return identity.PublicUser{}, storeError(err)
	}
	return identity.External(u), nil
}

// IdentityFor loads a session-less identity for userID, for authorization
// checks outside a request.
func (e *Engine) IdentityFor(ctx context.Context, userID string) (*Identity, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	u, err := e.identities.FindByID(ctx, userID)
	if err != nil {
		return nil, storeError(err)
	}
	return newIdentity(u, "", time.Time{}), nil
}

// UpdateUserRoles applies op to the user's role set. Every ref must resolve
// or nothing changes.
func (e *Engine) UpdateUserRoles(ctx context.Context, userID string, op store.SetOp, roles ...permission.Ref) (identity.PublicUser, error) {
	if !e.ready() {
		return identity.PublicUser{}, ErrEngineNotReady
	}
	u, err := e.identities.UpdateRoles(ctx, userID, op, roles...)
	e.emitAudit(ctx, auditEventUserRolesChanged, err == nil, userID, "", err, func() map[string]string {
		return map[string]string{"op": op.String(), "refs": strconv.Itoa(len(roles))}
	})
	if err != nil {
		return identity.PublicUser{}, err
	}
	return identity.External(u), nil
}

// UpdateUserPermissions applies op to the user's direct grants.
func (e *Engine) UpdateUserPermissions(ctx context.Context, userID string, op store.SetOp, perms ...permission.Ref) (identity.PublicUser, error) {
	if !e.ready() {
		return identity.PublicUser{}, ErrEngineNotReady
	}
	u, err := e.identities.UpdatePermissions(ctx, userID, op, perms...)
	e.emitAudit(ctx, auditEventUserPermissionsChanged, err == nil, userID, "", err, func() map[string]string {
		return map[string]string{"op": op.String(), "refs": strconv.Itoa(len(perms))}
	})
	if err != nil {
		return identity.PublicUser{}, err
	}
	return identity.External(u), nil
}

// SetUserActive toggles the account. Deactivation also ends every session
// of the user; a failure there is returned after the flag is written.
func (e *Engine) SetUserActive(ctx context.Context, userID string, active bool) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	_, err := e.identities.SetActive(ctx, userID, active)
	if err == nil && !active {
		e.metricInc(MetricUserDeactivated)
		if _, logoutErr := e.LogoutAll(ctx, userID); logoutErr != nil {
			err = logoutErr
		}
	}
	e.emitAudit(ctx, auditEventUserStatusChange, err == nil, userID, "", err, func() map[string]string {
		return map[string]string{"active": strconv.FormatBool(active)}
	})
	return err
}
