package permission

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/gatekeeper/store"
)

// ErrDefaultRoleRequired is returned when an operation would leave the
// system without its default role.
var ErrDefaultRoleRequired = store.ErrDefaultRole

// Ref addresses a role or permission either by id or by unique name.
type Ref struct {
	id   string
	name string
}

// ByID returns a Ref resolved by entity id.
func ByID(id string) Ref { return Ref{id: id} }

// ByName returns a Ref resolved by unique name.
func ByName(name string) Ref { return Ref{name: name} }

func (r Ref) String() string {
	if r.id != "" {
		return "id:" + r.id
	}
	return "name:" + r.name
}

// IsZero reports whether r addresses nothing.
func (r Ref) IsZero() bool { return r.id == "" && r.name == "" }

func (r Ref) notFound() error {
	return fmt.Errorf("%w: %s", store.ErrNotFound, r)
}

// PermissionLookup is the read side of store.PermissionStore used to resolve refs.
type PermissionLookup interface {
	GetPermission(ctx context.Context, id string) (*store.Permission, error)
	GetPermissionByName(ctx context.Context, name string) (*store.Permission, error)
}

// RoleLookup is the read side of store.RoleStore used to resolve refs.
type RoleLookup interface {
	GetRole(ctx context.Context, id string) (*store.Role, error)
	GetRoleByName(ctx context.Context, name string) (*store.Role, error)
}

// ResolvePermission returns the permission ref points at.
func ResolvePermission(ctx context.Context, src PermissionLookup, ref Ref) (*store.Permission, error) {
	var (
		p   *store.Permission
		err error
	)
	switch {
	case ref.id != "":
		p, err = src.GetPermission(ctx, ref.id)
	case ref.name != "":
		p, err = src.GetPermissionByName(ctx, ref.name)
	default:
		return nil, ref.notFound()
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, ref.notFound()
	}
	return p, err
}

// ResolveRole returns the role ref points at.
func ResolveRole(ctx context.Context, src RoleLookup, ref Ref) (*store.Role, error) {
	var (
		r   *store.Role
		err error
	)
	switch {
	case ref.id != "":
		r, err = src.GetRole(ctx, ref.id)
	case ref.name != "":
		r, err = src.GetRoleByName(ctx, ref.name)
	default:
		return nil, ref.notFound()
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, ref.notFound()
	}
	return r, err
}

// ResolvePermissionIDs resolves every ref or none. The first miss aborts.
func ResolvePermissionIDs(ctx context.Context, src PermissionLookup, refs []Ref) ([]string, error) {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		p, err := ResolvePermission(ctx, src, ref)
		if err != nil {
			return nil, err
		}
		ids = append(ids, p.ID)
	}
	return ids, nil
}

// ResolveRoleIDs resolves every ref or none. The first miss aborts.
func ResolveRoleIDs(ctx context.Context, src RoleLookup, refs []Ref) ([]string, error) {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		r, err := ResolveRole(ctx, src, ref)
		if err != nil {
			return nil, err
		}
		ids = append(ids, r.ID)
	}
	return ids, nil
}
