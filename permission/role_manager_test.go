package permission

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/gatekeeper/internal/validate"
	"github.com/MrEthical07/gatekeeper/store"
	"github.com/MrEthical07/gatekeeper/store/memory"
)

type fixture struct {
	store *memory.Store
	reg   *Registry
	roles *RoleManager
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	s := memory.New()
	return fixture{store: s, reg: NewRegistry(s), roles: NewRoleManager(s, s)}
}

func (f fixture) permission(t *testing.T, resource string, action store.Action) *store.Permission {
	t.Helper()
	p, err := f.reg.Create(context.Background(), CreatePermissionInput{Resource: resource, Action: action})
	require.NoError(t, err)
	return p
}

func TestRoleGiveRevokeIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	read := f.permission(t, "articles", store.ActionRead)

	role, err := f.roles.Create(ctx, CreateRoleInput{Name: "reader"})
	require.NoError(t, err)
	assert.True(t, role.IsActive)

	role, err = f.roles.GivePermissionTo(ctx, ByID(role.ID), ByName(read.Name))
	require.NoError(t, err)
	role, err = f.roles.GivePermissionTo(ctx, ByName("reader"), ByID(read.ID))
	require.NoError(t, err)
	assert.Equal(t, []string{read.ID}, role.PermissionIDs)

	role, err = f.roles.RevokePermissionTo(ctx, ByID(role.ID), ByID(read.ID))
	require.NoError(t, err)
	assert.Empty(t, role.PermissionIDs)

	role, err = f.roles.RevokePermissionTo(ctx, ByID(role.ID), ByID(read.ID))
	require.NoError(t, err)
	assert.Empty(t, role.PermissionIDs)
}

func TestRoleSyncIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	read := f.permission(t, "articles", store.ActionRead)
	write := f.permission(t, "articles", store.ActionUpdate)

	role, err := f.roles.Create(ctx, CreateRoleInput{Name: "editor", Permissions: []Ref{ByID(read.ID)}})
	require.NoError(t, err)

	_, err = f.roles.SyncPermissions(ctx, ByID(role.ID), ByID(write.ID), ByName("missing"))
	assert.ErrorIs(t, err, store.ErrNotFound)

	unchanged, err := f.roles.Get(ctx, role.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{read.ID}, unchanged.PermissionIDs)

	synced, err := f.roles.SyncPermissions(ctx, ByID(role.ID), ByID(write.ID))
	require.NoError(t, err)
	assert.Equal(t, []string{write.ID}, synced.PermissionIDs)
}

func TestRoleDefaultInvariant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a, err := f.roles.Create(ctx, CreateRoleInput{Name: "member", IsDefault: true})
	require.NoError(t, err)
	b, err := f.roles.Create(ctx, CreateRoleInput{Name: "guest", IsDefault: true})
	require.NoError(t, err)

	def, err := f.roles.Default(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.ID, def.ID)

	_, err = f.roles.SetDefault(ctx, ByName("member"))
	require.NoError(t, err)
	def, err = f.roles.Default(ctx)
	require.NoError(t, err)
	assert.Equal(t, a.ID, def.ID)

	inactive := false
	_, err = f.roles.Update(ctx, ByID(a.ID), UpdateRoleInput{IsActive: &inactive})
	assert.ErrorIs(t, err, ErrDefaultRoleRequired)
	assert.ErrorIs(t, f.roles.Delete(ctx, ByID(a.ID)), ErrDefaultRoleRequired)

	_, err = f.roles.Update(ctx, ByID(b.ID), UpdateRoleInput{IsActive: &inactive})
	require.NoError(t, err)
	_, err = f.roles.SetDefault(ctx, ByID(b.ID))
	assert.ErrorIs(t, err, validate.ErrInvalid)

	_, err = f.roles.Create(ctx, CreateRoleInput{Name: "ghost", IsDefault: true, IsActive: &inactive})
	assert.ErrorIs(t, err, validate.ErrInvalid)
}

func TestRoleConcurrentSetDefaultLeavesExactlyOne(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var refs []Ref
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		r, err := f.roles.Create(ctx, CreateRoleInput{Name: name})
		require.NoError(t, err)
		refs = append(refs, ByID(r.ID))
	}

	var wg sync.WaitGroup
	for _, ref := range refs {
		wg.Add(1)
		go func(ref Ref) {
			defer wg.Done()
			_, _ = f.roles.SetDefault(ctx, ref)
		}(ref)
	}
	wg.Wait()

	roles, err := f.roles.List(ctx)
	require.NoError(t, err)
	count := 0
	for _, r := range roles {
		if r.IsDefault && r.IsActive {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestRoleDeleteReferenced(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	role, err := f.roles.Create(ctx, CreateRoleInput{Name: "editor"})
	require.NoError(t, err)
	require.NoError(t, f.store.CreateUser(ctx, &store.User{Email: "e@example.com", RoleIDs: []string{role.ID}}))

	assert.ErrorIs(t, f.roles.Delete(ctx, ByName("editor")), store.ErrReferenced)

	_, err = f.roles.Get(ctx, role.ID)
	assert.NoError(t, err)
}

func TestRoleUpdateTrimsBeforeValidating(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	role, err := f.roles.Create(ctx, CreateRoleInput{Name: "editor"})
	require.NoError(t, err)

	blank := "   "
	_, err = f.roles.Update(ctx, ByID(role.ID), UpdateRoleInput{Name: &blank})
	assert.ErrorIs(t, err, validate.ErrInvalid)

	padded := "  writer "
	updated, err := f.roles.Update(ctx, ByID(role.ID), UpdateRoleInput{Name: &padded})
	require.NoError(t, err)
	assert.Equal(t, "writer", updated.Name)
	assert.Equal(t, "  writer ", padded)

	got, err := f.roles.Get(ctx, role.ID)
	require.NoError(t, err)
	assert.Equal(t, "writer", got.Name)
}

// staleRoles serves a fixed snapshot from GetRole, as a reader that lost a
// race with a concurrent writer would see it.
type staleRoles struct {
	store.RoleStore
	snapshot *store.Role
}

func (s staleRoles) GetRole(context.Context, string) (*store.Role, error) {
	return s.snapshot.Clone(), nil
}

func TestRoleDefaultGuardsHoldAgainstStaleReads(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	member, err := f.roles.Create(ctx, CreateRoleInput{Name: "member", IsDefault: true})
	require.NoError(t, err)
	guest, err := f.roles.Create(ctx, CreateRoleInput{Name: "guest"})
	require.NoError(t, err)

	t.Run("set default on a role deactivated since the read", func(t *testing.T) {
		snapshot, err := f.store.GetRole(ctx, guest.ID)
		require.NoError(t, err)
		inactive := false
		_, err = f.roles.Update(ctx, ByID(guest.ID), UpdateRoleInput{IsActive: &inactive})
		require.NoError(t, err)

		stale := NewRoleManager(staleRoles{RoleStore: f.store, snapshot: snapshot}, f.store)
		_, err = stale.SetDefault(ctx, ByID(guest.ID))
		assert.ErrorIs(t, err, validate.ErrInvalid)

		def, err := f.roles.Default(ctx)
		require.NoError(t, err)
		assert.Equal(t, member.ID, def.ID)

		active := true
		_, err = f.roles.Update(ctx, ByID(guest.ID), UpdateRoleInput{IsActive: &active})
		require.NoError(t, err)
	})

	t.Run("deactivate a role promoted since the read", func(t *testing.T) {
		snapshot, err := f.store.GetRole(ctx, guest.ID)
		require.NoError(t, err)
		_, err = f.roles.SetDefault(ctx, ByID(guest.ID))
		require.NoError(t, err)

		stale := NewRoleManager(staleRoles{RoleStore: f.store, snapshot: snapshot}, f.store)
		inactive := false
		_, err = stale.Update(ctx, ByID(guest.ID), UpdateRoleInput{IsActive: &inactive})
		assert.ErrorIs(t, err, ErrDefaultRoleRequired)
		assert.ErrorIs(t, stale.Delete(ctx, ByID(guest.ID)), ErrDefaultRoleRequired)

		def, err := f.roles.Default(ctx)
		require.NoError(t, err)
		assert.Equal(t, guest.ID, def.ID)
	})
}
