// Package memory is an in-process implementation of store.Store.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/gatekeeper/store"
)

// Store keeps every entity in maps guarded by a single RWMutex. Values are
// cloned on the way in and out so callers never share memory with the store.
type Store struct {
	mu          sync.RWMutex
	permissions map[string]*store.Permission
	roles       map[string]*store.Role
	users       map[string]*store.User
	now         func() time.Time
}

var _ store.Store = (*Store)(nil)

// New returns an empty memory store.
func New() *Store {
	return &Store{
		permissions: make(map[string]*store.Permission),
		roles:       make(map[string]*store.Role),
		users:       make(map[string]*store.User),
		now:         time.Now,
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

/* ==== PERMISSIONS ==== */

func (s *Store) CreatePermission(_ context.Context, p *store.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.permissionTakenLocked("", p) {
		return store.ErrDuplicate
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	} else if _, ok := s.permissions[p.ID]; ok {
		return store.ErrDuplicate
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	s.permissions[p.ID] = p.Clone()
	return nil
}

// permissionTakenLocked reports whether a permission other than self already
// holds p's name or its (resource, action) pair.
func (s *Store) permissionTakenLocked(self string, p *store.Permission) bool {
	for id, existing := range s.permissions {
		if id == self {
			continue
		}
		if existing.Name == p.Name || (existing.Resource == p.Resource && existing.Action == p.Action) {
			return true
		}
	}
	return false
}

func (s *Store) GetPermission(_ context.Context, id string) (*store.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.permissions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *Store) GetPermissionByName(_ context.Context, name string) (*store.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.permissions {
		if p.Name == name {
			return p.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListPermissions(_ context.Context) ([]*store.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*store.Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) PermissionsByIDs(_ context.Context, ids []string) ([]*store.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*store.Permission, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.permissions[id]; ok {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (s *Store) UpdatePermission(_ context.Context, p *store.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.permissions[p.ID]
	if !ok {
		return store.ErrNotFound
	}
	if s.permissionTakenLocked(p.ID, p) {
		return store.ErrDuplicate
	}
	p.CreatedAt = current.CreatedAt
	p.UpdatedAt = s.now()
	s.permissions[p.ID] = p.Clone()
	return nil
}

func (s *Store) DeletePermission(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.permissions[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.permissions, id)

	drop := []string{id}
	for _, r := range s.roles {
		r.PermissionIDs = store.ApplySet(r.PermissionIDs, store.SetRemove, drop)
	}
	for _, u := range s.users {
		u.PermissionIDs = store.ApplySet(u.PermissionIDs, store.SetRemove, drop)
	}
	return nil
}

/* ==== ROLES ==== */

func (s *Store) CreateRole(_ context.Context, r *store.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.roles {
		if existing.Name == r.Name {
			return store.ErrDuplicate
		}
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	} else if _, ok := s.roles[r.ID]; ok {
		return store.ErrDuplicate
	}
	for _, pid := range r.PermissionIDs {
		if _, ok := s.permissions[pid]; !ok {
			return store.ErrNotFound
		}
	}
	r.PermissionIDs = store.ApplySet(nil, store.SetReplace, r.PermissionIDs)
	now := s.now()
	r.CreatedAt, r.UpdatedAt = now, now
	if r.IsDefault {
		s.clearDefaultLocked()
	}
	s.roles[r.ID] = r.Clone()
	return nil
}

func (s *Store) GetRole(_ context.Context, id string) (*store.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.roles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *Store) GetRoleByName(_ context.Context, name string) (*store.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.roles {
		if r.Name == name {
			return r.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListRoles(_ context.Context) ([]*store.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*store.Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) RolesByIDs(_ context.Context, ids []string) ([]*store.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*store.Role, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.roles[id]; ok {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (s *Store) UpdateRole(_ context.Context, r *store.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.roles[r.ID]
	if !ok {
		return store.ErrNotFound
	}
	for id, existing := range s.roles {
		if id != r.ID && existing.Name == r.Name {
			return store.ErrDuplicate
		}
	}
	if current.IsDefault && !r.IsActive {
		return store.ErrDefaultRole
	}
	current.Name = r.Name
	current.Description = r.Description
	current.IsActive = r.IsActive
	current.UpdatedAt = s.now()
	return nil
}

func (s *Store) DeleteRole(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.roles[id]
	if !ok {
		return store.ErrNotFound
	}
	if r.IsDefault {
		return store.ErrDefaultRole
	}
	for _, u := range s.users {
		if slices.Contains(u.RoleIDs, id) {
			return store.ErrReferenced
		}
	}
	delete(s.roles, id)
	return nil
}

func (s *Store) UpdateRolePermissions(_ context.Context, roleID string, op store.SetOp, permissionIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.roles[roleID]
	if !ok {
		return store.ErrNotFound
	}
	if op != store.SetRemove {
		for _, pid := range permissionIDs {
			if _, ok := s.permissions[pid]; !ok {
				return store.ErrNotFound
			}
		}
	}
	r.PermissionIDs = store.ApplySet(r.PermissionIDs, op, permissionIDs)
	r.UpdatedAt = s.now()
	return nil
}

func (s *Store) SetDefaultRole(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.roles[id]
	if !ok {
		return store.ErrNotFound
	}
	if !r.IsActive {
		return store.ErrInactive
	}
	s.clearDefaultLocked()
	r.IsDefault = true
	r.UpdatedAt = s.now()
	return nil
}

func (s *Store) clearDefaultLocked() {
	for _, r := range s.roles {
		r.IsDefault = false
	}
}

func (s *Store) DefaultRole(_ context.Context) (*store.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.roles {
		if r.IsDefault && r.IsActive {
			return r.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

/* ==== USERS ==== */

func (s *Store) CreateUser(_ context.Context, u *store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == u.Email {
			return store.ErrDuplicate
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	} else if _, ok := s.users[u.ID]; ok {
		return store.ErrDuplicate
	}
	for _, rid := range u.RoleIDs {
		if _, ok := s.roles[rid]; !ok {
			return store.ErrNotFound
		}
	}
	for _, pid := range u.PermissionIDs {
		if _, ok := s.permissions[pid]; !ok {
			return store.ErrNotFound
		}
	}
	u.RoleIDs = store.ApplySet(nil, store.SetReplace, u.RoleIDs)
	u.PermissionIDs = store.ApplySet(nil, store.SetReplace, u.PermissionIDs)
	u.SessionIDs = nil
	now := s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	s.users[u.ID] = u.Clone()
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u.Clone(), nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			return u.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) UpdateUser(_ context.Context, u *store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[u.ID]
	if !ok {
		return store.ErrNotFound
	}
	for id, existing := range s.users {
		if id != u.ID && existing.Email == u.Email {
			return store.ErrDuplicate
		}
	}
	current.Name = u.Name
	current.Email = u.Email
	current.PasswordHash = u.PasswordHash
	current.IsActive = u.IsActive
	current.IsEmailVerified = u.IsEmailVerified
	current.UpdatedAt = s.now()
	return nil
}

func (s *Store) UpdateUserRoles(_ context.Context, userID string, op store.SetOp, roleIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	if op != store.SetRemove {
		for _, rid := range roleIDs {
			if _, ok := s.roles[rid]; !ok {
				return store.ErrNotFound
			}
		}
	}
	u.RoleIDs = store.ApplySet(u.RoleIDs, op, roleIDs)
	u.UpdatedAt = s.now()
	return nil
}

func (s *Store) UpdateUserPermissions(_ context.Context, userID string, op store.SetOp, permissionIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	if op != store.SetRemove {
		for _, pid := range permissionIDs {
			if _, ok := s.permissions[pid]; !ok {
				return store.ErrNotFound
			}
		}
	}
	u.PermissionIDs = store.ApplySet(u.PermissionIDs, op, permissionIDs)
	u.UpdatedAt = s.now()
	return nil
}

func (s *Store) AddUserSession(_ context.Context, userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.SessionIDs = store.ApplySet(u.SessionIDs, store.SetAdd, []string{sessionID})
	return nil
}

func (s *Store) RemoveUserSession(_ context.Context, userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.SessionIDs = store.ApplySet(u.SessionIDs, store.SetRemove, []string{sessionID})
	return nil
}

func (s *Store) ClearUserSessions(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	removed := u.SessionIDs
	u.SessionIDs = nil
	return removed, nil
}
