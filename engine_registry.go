package gatekeeper

import (
	"context"

	"github.com/MrEthical07/gatekeeper/permission"
	"github.com/MrEthical07/gatekeeper/store"
)

// Audited administrative writes over the permission and role registries.
// Reads go straight to Engine.Permissions and Engine.Roles.

func (e *Engine) CreatePermission(ctx context.Context, in permission.CreatePermissionInput) (*store.Permission, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	p, err := e.permissions.Create(ctx, in)
	e.emitAudit(ctx, auditEventPermissionCreated, err == nil, "", "", err, func() map[string]string {
		if p == nil {
			return map[string]string{"resource": in.Resource, "action": string(in.Action)}
		}
		return map[string]string{"permission_id": p.ID, "name": p.Name}
	})
	return p, err
}

func (e *Engine) UpdatePermission(ctx context.Context, id string, in permission.UpdatePermissionInput) (*store.Permission, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	p, err := e.permissions.Update(ctx, id, in)
	e.emitAudit(ctx, auditEventPermissionUpdated, err == nil, "", "", err, func() map[string]string {
		return map[string]string{"permission_id": id}
	})
	return p, err
}

// DeletePermission removes the permission and drops it from every role and
// user that held it.
func (e *Engine) DeletePermission(ctx context.Context, id string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	err := e.permissions.Delete(ctx, id)
	e.emitAudit(ctx, auditEventPermissionDeleted, err == nil, "", "", err, func() map[string]string {
		return map[string]string{"permission_id": id}
	})
	return err
}

func (e *Engine) CreateRole(ctx context.Context, in permission.CreateRoleInput) (*store.Role, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	r, err := e.roles.Create(ctx, in)
	e.emitAudit(ctx, auditEventRoleCreated, err == nil, "", "", err, func() map[string]string {
		return map[string]string{"name": in.Name}
	})
	return r, err
}

func (e *Engine) UpdateRole(ctx context.Context, ref permission.Ref, in permission.UpdateRoleInput) (*store.Role, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	r, err := e.roles.Update(ctx, ref, in)
	e.emitAudit(ctx, auditEventRoleUpdated, err == nil, "", "", err, func() map[string]string {
		return map[string]string{"role": ref.String()}
	})
	return r, err
}

// DeleteRole fails with ErrNotAllowedWhileReferenced while any user holds
// the role and with ErrDefaultRoleRequired for the current default.
func (e *Engine) DeleteRole(ctx context.Context, ref permission.Ref) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	err := e.roles.Delete(ctx, ref)
	e.emitAudit(ctx, auditEventRoleDeleted, err == nil, "", "", err, func() map[string]string {
		return map[string]string{"role": ref.String()}
	})
	return err
}

// SetDefaultRole makes ref the single default role.
func (e *Engine) SetDefaultRole(ctx context.Context, ref permission.Ref) (*store.Role, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	r, err := e.roles.SetDefault(ctx, ref)
	e.emitAudit(ctx, auditEventRoleDefaultChanged, err == nil, "", "", err, func() map[string]string {
		return map[string]string{"role": ref.String()}
	})
	return r, err
}

func (e *Engine) GivePermissionTo(ctx context.Context, role permission.Ref, perms ...permission.Ref) (*store.Role, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	r, err := e.roles.GivePermissionTo(ctx, role, perms...)
	e.auditRolePermissions(ctx, "give", role, err)
	return r, err
}

func (e *Engine) RevokePermissionTo(ctx context.Context, role permission.Ref, perms ...permission.Ref) (*store.Role, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	r, err := e.roles.RevokePermissionTo(ctx, role, perms...)
	e.auditRolePermissions(ctx, "revoke", role, err)
	return r, err
}

// SyncPermissions replaces the role's permission set. Any unresolved ref
// aborts the call without changes.
func (e *Engine) SyncPermissions(ctx context.Context, role permission.Ref, perms ...permission.Ref) (*store.Role, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	r, err := e.roles.SyncPermissions(ctx, role, perms...)
	e.auditRolePermissions(ctx, "sync", role, err)
	return r, err
}

func (e *Engine) auditRolePermissions(ctx context.Context, op string, role permission.Ref, err error) {
	e.emitAudit(ctx, auditEventRolePermissionsChanged, err == nil, "", "", err, func() map[string]string {
		return map[string]string{"role": role.String(), "op": op}
	})
}
