package permission

import (
	"context"
	"slices"

	"github.com/MrEthical07/gatekeeper/store"
)

// GrantSource is the batch read side of the store used by LoadGrants.
type GrantSource interface {
	RolesByIDs(ctx context.Context, ids []string) ([]*store.Role, error)
	PermissionsByIDs(ctx context.Context, ids []string) ([]*store.Permission, error)
}

// Grants is a point-in-time snapshot of everything a user holds. All
// methods are pure and safe for concurrent use.
type Grants struct {
	// Roles are the user's active roles.
	Roles []*store.Role
	// Direct are permissions granted to the user itself.
	Direct []*store.Permission
	// FromRoles are the permissions reachable through Roles.
	FromRoles []*store.Permission
}

// LoadGrants reads the user's roles and the union of direct and role
// permissions in two batch lookups. Inactive roles are dropped.
func LoadGrants(ctx context.Context, src GrantSource, user *store.User) (Grants, error) {
	var g Grants
	if user == nil {
		return g, nil
	}

	roles, err := src.RolesByIDs(ctx, user.RoleIDs)
	if err != nil {
		return g, err
	}
	rolePermIDs := make([]string, 0)
	for _, r := range roles {
		if !r.IsActive {
			continue
		}
		g.Roles = append(g.Roles, r)
		rolePermIDs = append(rolePermIDs, r.PermissionIDs...)
	}

	wanted := store.ApplySet(user.PermissionIDs, store.SetAdd, rolePermIDs)
	perms, err := src.PermissionsByIDs(ctx, wanted)
	if err != nil {
		return g, err
	}
	for _, p := range perms {
		if slices.Contains(user.PermissionIDs, p.ID) {
			g.Direct = append(g.Direct, p)
		}
		if slices.Contains(rolePermIDs, p.ID) {
			g.FromRoles = append(g.FromRoles, p)
		}
	}
	return g, nil
}

// All returns the union of direct and role permissions, deduplicated by id.
// Direct grants come first.
func (g Grants) All() []*store.Permission {
	out := make([]*store.Permission, 0, len(g.Direct)+len(g.FromRoles))
	seen := make(map[string]struct{}, cap(out))
	for _, set := range [][]*store.Permission{g.Direct, g.FromRoles} {
		for _, p := range set {
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

func (g Grants) any(match func(*store.Permission) bool) bool {
	return slices.ContainsFunc(g.Direct, match) || slices.ContainsFunc(g.FromRoles, match)
}

// HasPermission reports whether a permission with this name is held.
func (g Grants) HasPermission(name string) bool {
	return g.any(func(p *store.Permission) bool { return p.Name == name })
}

// HasPermissionTo reports whether action on resource is allowed, either by
// an exact grant or by manage on the same resource.
func (g Grants) HasPermissionTo(resource string, action store.Action) bool {
	resource = NormalizeResource(resource)
	return g.any(func(p *store.Permission) bool {
		return p.Resource == resource && (p.Action == action || p.Action == store.ActionManage)
	})
}

// HasAnyPermission reports whether at least one name is held. It is false
// for an empty list.
func (g Grants) HasAnyPermission(names ...string) bool {
	return slices.ContainsFunc(names, g.HasPermission)
}

// HasAllPermissions reports whether every name is held. It is true for an
// empty list.
func (g Grants) HasAllPermissions(names ...string) bool {
	for _, n := range names {
		if !g.HasPermission(n) {
			return false
		}
	}
	return true
}

// HasRole reports whether an active role with this name is attached.
func (g Grants) HasRole(name string) bool {
	return slices.ContainsFunc(g.Roles, func(r *store.Role) bool { return r.Name == name })
}

// HasAnyRole is false for an empty list.
func (g Grants) HasAnyRole(names ...string) bool {
	return slices.ContainsFunc(names, g.HasRole)
}

// HasAllRoles is true for an empty list.
func (g Grants) HasAllRoles(names ...string) bool {
	for _, n := range names {
		if !g.HasRole(n) {
			return false
		}
	}
	return true
}
