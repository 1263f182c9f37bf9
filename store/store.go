package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a looked-up entity does not exist.
	ErrNotFound = errors.New("entity not found")
	// ErrDuplicate is returned when a unique name or email is already taken.
	ErrDuplicate = errors.New("duplicate constraint")
	// ErrReferenced is returned when deleting an entity that is still referenced.
	ErrReferenced = errors.New("not allowed while referenced")
	// ErrDefaultRole is returned when a write would deactivate or remove the
	// default role.
	ErrDefaultRole = errors.New("default role required")
	// ErrInactive is returned when an inactive role is made the default.
	ErrInactive = errors.New("role inactive")
)

// PermissionStore persists permissions.
type PermissionStore interface {
	CreatePermission(ctx context.Context, p *Permission) error
	GetPermission(ctx context.Context, id string) (*Permission, error)
	GetPermissionByName(ctx context.Context, name string) (*Permission, error)
	ListPermissions(ctx context.Context) ([]*Permission, error)
	// PermissionsByIDs returns the permissions that exist; unknown ids are skipped.
	PermissionsByIDs(ctx context.Context, ids []string) ([]*Permission, error)
	UpdatePermission(ctx context.Context, p *Permission) error
	// DeletePermission also drops the permission from every role and user.
	DeletePermission(ctx context.Context, id string) error
}

// RoleStore persists roles and their permission sets.
type RoleStore interface {
	CreateRole(ctx context.Context, r *Role) error
	GetRole(ctx context.Context, id string) (*Role, error)
	GetRoleByName(ctx context.Context, name string) (*Role, error)
	ListRoles(ctx context.Context) ([]*Role, error)
	// RolesByIDs returns the roles that exist; unknown ids are skipped.
	RolesByIDs(ctx context.Context, ids []string) ([]*Role, error)
	// UpdateRole writes name, description and active flag. The permission
	// set and default flag have dedicated mutations. Deactivating the
	// default role fails with ErrDefaultRole.
	UpdateRole(ctx context.Context, r *Role) error
	// DeleteRole fails with ErrReferenced while any user holds the role and
	// with ErrDefaultRole for the default role.
	DeleteRole(ctx context.Context, id string) error
	UpdateRolePermissions(ctx context.Context, roleID string, op SetOp, permissionIDs []string) error
	// SetDefaultRole marks id as the single default role, clearing the flag
	// on every other role in the same atomic step. An inactive role fails
	// with ErrInactive and leaves the current default in place.
	SetDefaultRole(ctx context.Context, id string) error
	// DefaultRole returns the active default role or ErrNotFound.
	DefaultRole(ctx context.Context) (*Role, error)
}

// UserStore persists users and the session ids they own.
type UserStore interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	// UpdateUser writes the scalar profile fields. Sets are left untouched.
	UpdateUser(ctx context.Context, u *User) error
	UpdateUserRoles(ctx context.Context, userID string, op SetOp, roleIDs []string) error
	UpdateUserPermissions(ctx context.Context, userID string, op SetOp, permissionIDs []string) error
	AddUserSession(ctx context.Context, userID, sessionID string) error
	// RemoveUserSession is a no-op when the id is not present. An unknown
	// user fails with ErrNotFound.
	RemoveUserSession(ctx context.Context, userID, sessionID string) error
	// ClearUserSessions empties the set and returns the ids it held. An
	// unknown user fails with ErrNotFound.
	ClearUserSessions(ctx context.Context, userID string) ([]string, error)
}

// Store is the full durable storage port.
type Store interface {
	PermissionStore
	RoleStore
	UserStore
	Close() error
}
