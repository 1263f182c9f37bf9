package permission

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/gatekeeper/internal/validate"
	"github.com/MrEthical07/gatekeeper/store"
)

// CreateRoleInput describes a new role. IsActive defaults to true.
type CreateRoleInput struct {
	Name        string `json:"name" validate:"required,max=64"`
	Description string `json:"description" validate:"max=512"`
	Permissions []Ref  `json:"-"`
	IsDefault   bool   `json:"isDefault"`
	IsActive    *bool  `json:"isActive"`
}

// UpdateRoleInput carries optional replacements. Nil fields are kept.
type UpdateRoleInput struct {
	Name        *string `json:"name" validate:"omitnil,min=1,max=64"`
	Description *string `json:"description" validate:"omitnil,max=512"`
	IsActive    *bool   `json:"isActive"`
}

// RoleManager is the catalogue of roles and their permission sets.
type RoleManager struct {
	roles    store.RoleStore
	perms    store.PermissionStore
	validate *validate.Validator
}

// NewRoleManager returns a RoleManager. perms resolves permission refs.
func NewRoleManager(roles store.RoleStore, perms store.PermissionStore) *RoleManager {
	return &RoleManager{roles: roles, perms: perms, validate: validate.New()}
}

// Create stores a new role. Permission refs are resolved before anything is
// written; a miss aborts with store.ErrNotFound. A default role must be active.
func (m *RoleManager) Create(ctx context.Context, in CreateRoleInput) (*store.Role, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := m.validate.Struct(in); err != nil {
		return nil, err
	}
	active := in.IsActive == nil || *in.IsActive
	if in.IsDefault && !active {
		return nil, fmt.Errorf("%w: default role must be active", validate.ErrInvalid)
	}

	permIDs, err := ResolvePermissionIDs(ctx, m.perms, in.Permissions)
	if err != nil {
		return nil, err
	}

	r := &store.Role{
		Name:          in.Name,
		Description:   in.Description,
		PermissionIDs: permIDs,
		IsDefault:     in.IsDefault,
		IsActive:      active,
	}
	if err := m.roles.CreateRole(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Get returns the role with id.
func (m *RoleManager) Get(ctx context.Context, id string) (*store.Role, error) {
	return m.roles.GetRole(ctx, id)
}

// GetByName returns the role with the unique name.
func (m *RoleManager) GetByName(ctx context.Context, name string) (*store.Role, error) {
	return m.roles.GetRoleByName(ctx, name)
}

// Resolve returns the role ref points at.
func (m *RoleManager) Resolve(ctx context.Context, ref Ref) (*store.Role, error) {
	return ResolveRole(ctx, m.roles, ref)
}

// List returns every role ordered by name.
func (m *RoleManager) List(ctx context.Context) ([]*store.Role, error) {
	return m.roles.ListRoles(ctx)
}

// Default returns the active default role or store.ErrNotFound.
func (m *RoleManager) Default(ctx context.Context) (*store.Role, error) {
	return m.roles.DefaultRole(ctx)
}

// Update applies the non-nil fields of in. The default role cannot be
// deactivated; promote another role first.
func (m *RoleManager) Update(ctx context.Context, ref Ref, in UpdateRoleInput) (*store.Role, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if err := m.validate.Struct(in); err != nil {
		return nil, err
	}
	r, err := m.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if in.IsActive != nil && !*in.IsActive && r.IsDefault {
		return nil, ErrDefaultRoleRequired
	}
	if in.Name != nil {
		r.Name = *in.Name
	}
	if in.Description != nil {
		r.Description = *in.Description
	}
	if in.IsActive != nil {
		r.IsActive = *in.IsActive
	}
	if err := m.roles.UpdateRole(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Delete removes the role. It fails with store.ErrReferenced while any user
// holds the role and with ErrDefaultRoleRequired for the default role.
func (m *RoleManager) Delete(ctx context.Context, ref Ref) error {
	r, err := m.Resolve(ctx, ref)
	if err != nil {
		return err
	}
	if r.IsDefault {
		return ErrDefaultRoleRequired
	}
	return m.roles.DeleteRole(ctx, r.ID)
}

// SetDefault makes the role the single default. Concurrent calls leave
// exactly one default: the last writer wins.
func (m *RoleManager) SetDefault(ctx context.Context, ref Ref) (*store.Role, error) {
	r, err := m.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !r.IsActive {
		return nil, fmt.Errorf("%w: inactive role cannot be default", validate.ErrInvalid)
	}
	if err := m.roles.SetDefaultRole(ctx, r.ID); err != nil {
		if errors.Is(err, store.ErrInactive) {
			return nil, fmt.Errorf("%w: inactive role cannot be default", validate.ErrInvalid)
		}
		return nil, err
	}
	r.IsDefault = true
	return r, nil
}

// GivePermissionTo adds permissions to the role. Re-granting is a no-op.
func (m *RoleManager) GivePermissionTo(ctx context.Context, role Ref, perms ...Ref) (*store.Role, error) {
	return m.mutate(ctx, role, store.SetAdd, perms)
}

// RevokePermissionTo removes permissions from the role. Revoking a
// permission the role does not hold is a no-op.
func (m *RoleManager) RevokePermissionTo(ctx context.Context, role Ref, perms ...Ref) (*store.Role, error) {
	return m.mutate(ctx, role, store.SetRemove, perms)
}

// SyncPermissions replaces the role's permission set. Either every ref
// resolves and the set is replaced, or nothing changes.
func (m *RoleManager) SyncPermissions(ctx context.Context, role Ref, perms ...Ref) (*store.Role, error) {
	return m.mutate(ctx, role, store.SetReplace, perms)
}

func (m *RoleManager) mutate(ctx context.Context, ref Ref, op store.SetOp, perms []Ref) (*store.Role, error) {
	r, err := m.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	ids, err := ResolvePermissionIDs(ctx, m.perms, perms)
	if err != nil {
		return nil, err
	}
	if err := m.roles.UpdateRolePermissions(ctx, r.ID, op, ids); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%s role permissions: %w", op, err)
		}
		return nil, err
	}
	return m.roles.GetRole(ctx, r.ID)
}
