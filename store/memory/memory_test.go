package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/gatekeeper/store"
)

func seedPermission(t *testing.T, s *Store, name string) *store.Permission {
	t.Helper()
	p := &store.Permission{Name: name, Resource: "articles", Action: store.ActionRead}
	require.NoError(t, s.CreatePermission(context.Background(), p))
	return p
}

func TestPermissionCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	p := seedPermission(t, s, "articles:read")
	assert.NotEmpty(t, p.ID)

	err := s.CreatePermission(ctx, &store.Permission{Name: "articles:read", Resource: "articles", Action: store.ActionRead})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	got, err := s.GetPermissionByName(ctx, "articles:read")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = s.GetPermission(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	got.Action = store.ActionUpdate
	require.NoError(t, s.UpdatePermission(ctx, got))
	again, err := s.GetPermission(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, store.ActionUpdate, again.Action)
}

func TestPermissionPairIsUnique(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := seedPermission(t, s, "articles:read")

	err := s.CreatePermission(ctx, &store.Permission{Name: "read-articles", Resource: "articles", Action: store.ActionRead})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	other := &store.Permission{Name: "articles:update", Resource: "articles", Action: store.ActionUpdate}
	require.NoError(t, s.CreatePermission(ctx, other))
	other.Action = store.ActionRead
	assert.ErrorIs(t, s.UpdatePermission(ctx, other), store.ErrDuplicate)

	got, err := s.GetPermission(ctx, p.ID)
	require.NoError(t, err)
	got.Name = "articles:read:renamed"
	require.NoError(t, s.UpdatePermission(ctx, got))
}

func TestDefaultRoleGuards(t *testing.T) {
	ctx := context.Background()
	s := New()

	def := &store.Role{Name: "member", IsActive: true, IsDefault: true}
	idle := &store.Role{Name: "idle", IsActive: false}
	require.NoError(t, s.CreateRole(ctx, def))
	require.NoError(t, s.CreateRole(ctx, idle))

	assert.ErrorIs(t, s.SetDefaultRole(ctx, idle.ID), store.ErrInactive)
	got, err := s.DefaultRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, def.ID, got.ID)

	assert.ErrorIs(t, s.UpdateRole(ctx, &store.Role{ID: def.ID, Name: "member", IsActive: false}), store.ErrDefaultRole)
	assert.ErrorIs(t, s.DeleteRole(ctx, def.ID), store.ErrDefaultRole)

	got, err = s.GetRole(ctx, def.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.True(t, got.IsDefault)
}

func TestSessionSetUnknownUser(t *testing.T) {
	ctx := context.Background()
	s := New()
	assert.ErrorIs(t, s.RemoveUserSession(ctx, "ghost", "s1"), store.ErrNotFound)
	_, err := s.ClearUserSessions(ctx, "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeletePermissionDetachesFromRolesAndUsers(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := seedPermission(t, s, "articles:read")

	r := &store.Role{Name: "reader", IsActive: true, PermissionIDs: []string{p.ID}}
	require.NoError(t, s.CreateRole(ctx, r))
	u := &store.User{Email: "a@example.com", PermissionIDs: []string{p.ID}}
	require.NoError(t, s.CreateUser(ctx, u))

	require.NoError(t, s.DeletePermission(ctx, p.ID))

	role, err := s.GetRole(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, role.PermissionIDs)
	user, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, user.PermissionIDs)
}

func TestDeleteRoleReferenced(t *testing.T) {
	ctx := context.Background()
	s := New()

	r := &store.Role{Name: "editor", IsActive: true}
	require.NoError(t, s.CreateRole(ctx, r))
	u := &store.User{Email: "e@example.com", RoleIDs: []string{r.ID}}
	require.NoError(t, s.CreateUser(ctx, u))

	assert.ErrorIs(t, s.DeleteRole(ctx, r.ID), store.ErrReferenced)

	require.NoError(t, s.UpdateUserRoles(ctx, u.ID, store.SetRemove, []string{r.ID}))
	require.NoError(t, s.DeleteRole(ctx, r.ID))
	_, err := s.GetRole(ctx, r.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSetDefaultRoleIsExclusive(t *testing.T) {
	ctx := context.Background()
	s := New()

	a := &store.Role{Name: "a", IsActive: true, IsDefault: true}
	b := &store.Role{Name: "b", IsActive: true}
	require.NoError(t, s.CreateRole(ctx, a))
	require.NoError(t, s.CreateRole(ctx, b))

	require.NoError(t, s.SetDefaultRole(ctx, b.ID))

	def, err := s.DefaultRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.ID, def.ID)

	first, err := s.GetRole(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, first.IsDefault)
}

func TestSetDefaultRoleConcurrentLeavesOne(t *testing.T) {
	ctx := context.Background()
	s := New()

	ids := make([]string, 0, 8)
	for _, name := range []string{"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7"} {
		r := &store.Role{Name: name, IsActive: true}
		require.NoError(t, s.CreateRole(ctx, r))
		ids = append(ids, r.ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_ = s.SetDefaultRole(ctx, id)
		}(id)
	}
	wg.Wait()

	roles, err := s.ListRoles(ctx)
	require.NoError(t, err)
	defaults := 0
	for _, r := range roles {
		if r.IsDefault {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestUpdateRolePermissionsRejectsUnknown(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := seedPermission(t, s, "articles:read")
	r := &store.Role{Name: "reader", IsActive: true, PermissionIDs: []string{p.ID}}
	require.NoError(t, s.CreateRole(ctx, r))

	err := s.UpdateRolePermissions(ctx, r.ID, store.SetReplace, []string{"missing"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	role, err := s.GetRole(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{p.ID}, role.PermissionIDs)
}

func TestUserSessions(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := &store.User{Email: "s@example.com"}
	require.NoError(t, s.CreateUser(ctx, u))

	require.NoError(t, s.AddUserSession(ctx, u.ID, "s1"))
	require.NoError(t, s.AddUserSession(ctx, u.ID, "s2"))
	require.NoError(t, s.AddUserSession(ctx, u.ID, "s1"))
	require.NoError(t, s.RemoveUserSession(ctx, u.ID, "absent"))

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, got.SessionIDs)

	removed, err := s.ClearUserSessions(ctx, u.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"s1", "s2"}, removed)

	got, err = s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, got.SessionIDs)
}

func TestDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateUser(ctx, &store.User{Email: "dup@example.com"}))
	assert.ErrorIs(t, s.CreateUser(ctx, &store.User{Email: "dup@example.com"}), store.ErrDuplicate)
}

func TestReturnedValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := &store.User{Email: "c@example.com"}
	require.NoError(t, s.CreateUser(ctx, u))
	require.NoError(t, s.AddUserSession(ctx, u.ID, "s1"))

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	got.SessionIDs[0] = "tampered"

	again, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, again.SessionIDs)
}
