package identity

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/gatekeeper/internal/validate"
	"github.com/MrEthical07/gatekeeper/password"
	"github.com/MrEthical07/gatekeeper/permission"
	"github.com/MrEthical07/gatekeeper/store"
	"github.com/MrEthical07/gatekeeper/store/memory"
)

func newIdentity(t *testing.T) (*Store, *memory.Store) {
	t.Helper()
	hasher, err := password.NewArgon2(password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)
	s := memory.New()
	return New(s, s, s, hasher), s
}

func TestCreateAttachesDefaultRole(t *testing.T) {
	ctx := context.Background()
	ids, s := newIdentity(t)

	def := &store.Role{Name: "member", IsActive: true, IsDefault: true}
	require.NoError(t, s.CreateRole(ctx, def))

	u, err := ids.Create(ctx, CreateInput{Name: "Ann", Email: " Ann@Example.com ", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", u.Email)
	assert.Equal(t, []string{def.ID}, u.RoleIDs)
	assert.True(t, u.IsActive)
	assert.NotEqual(t, "s3cret-pass", u.PasswordHash)
}

func TestCreateWithoutDefaultRole(t *testing.T) {
	ids, _ := newIdentity(t)
	u, err := ids.Create(context.Background(), CreateInput{Email: "solo@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Empty(t, u.RoleIDs)
}

func TestCreateDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	ids, _ := newIdentity(t)

	_, err := ids.Create(ctx, CreateInput{Email: "dup@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	_, err = ids.Create(ctx, CreateInput{Email: "DUP@example.com", Password: "another-pass"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestCreateValidation(t *testing.T) {
	ids, _ := newIdentity(t)
	_, err := ids.Create(context.Background(), CreateInput{Email: "not-an-email", Password: "short"})
	assert.ErrorIs(t, err, validate.ErrInvalid)
}

func TestVerifyCredential(t *testing.T) {
	ctx := context.Background()
	ids, _ := newIdentity(t)

	u, err := ids.Create(ctx, CreateInput{Email: "v@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	assert.True(t, ids.VerifyCredential(u, "s3cret-pass"))
	assert.False(t, ids.VerifyCredential(u, "wrong-pass"))
	assert.False(t, ids.VerifyCredential(u, ""))
	assert.False(t, ids.VerifyCredential(nil, "s3cret-pass"))
	assert.False(t, ids.VerifyCredential(&store.User{PasswordHash: "garbage"}, "s3cret-pass"))
}

func TestUpdateRolesIsIdempotentAndAtomic(t *testing.T) {
	ctx := context.Background()
	ids, s := newIdentity(t)

	editor := &store.Role{Name: "editor", IsActive: true}
	require.NoError(t, s.CreateRole(ctx, editor))
	u, err := ids.Create(ctx, CreateInput{Email: "r@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	u, err = ids.UpdateRoles(ctx, u.ID, store.SetAdd, permission.ByName("editor"))
	require.NoError(t, err)
	u, err = ids.UpdateRoles(ctx, u.ID, store.SetAdd, permission.ByID(editor.ID))
	require.NoError(t, err)
	assert.Equal(t, []string{editor.ID}, u.RoleIDs)

	_, err = ids.UpdateRoles(ctx, u.ID, store.SetReplace, permission.ByName("ghost"))
	assert.ErrorIs(t, err, store.ErrNotFound)

	u, err = ids.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{editor.ID}, u.RoleIDs)

	u, err = ids.UpdateRoles(ctx, u.ID, store.SetRemove, permission.ByID(editor.ID))
	require.NoError(t, err)
	assert.Empty(t, u.RoleIDs)
}

func TestUpdatePermissions(t *testing.T) {
	ctx := context.Background()
	ids, s := newIdentity(t)

	p := &store.Permission{Name: "articles:read", Resource: "articles", Action: store.ActionRead}
	require.NoError(t, s.CreatePermission(ctx, p))
	u, err := ids.Create(ctx, CreateInput{Email: "p@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	u, err = ids.UpdatePermissions(ctx, u.ID, store.SetAdd, permission.ByName("articles:read"))
	require.NoError(t, err)
	assert.Equal(t, []string{p.ID}, u.PermissionIDs)

	u, err = ids.UpdatePermissions(ctx, u.ID, store.SetReplace)
	require.NoError(t, err)
	assert.Empty(t, u.PermissionIDs)
}

func TestExternalStripsSecrets(t *testing.T) {
	u := &store.User{ID: "u1", Email: "x@example.com", PasswordHash: "hash", SessionIDs: []string{"s1"}}
	raw, err := json.Marshal(External(u))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hash")
	assert.NotContains(t, string(raw), "s1")
	assert.Contains(t, string(raw), "x@example.com")
}

func TestSetEmailVerifiedAndActive(t *testing.T) {
	ctx := context.Background()
	ids, _ := newIdentity(t)
	u, err := ids.Create(ctx, CreateInput{Email: "e@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.False(t, u.IsEmailVerified)

	u, err = ids.SetEmailVerified(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, u.IsEmailVerified)

	u, err = ids.SetActive(ctx, u.ID, false)
	require.NoError(t, err)
	assert.False(t, u.IsActive)

	_, err = ids.SetActive(ctx, "missing", true)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRehashIfNeeded(t *testing.T) {
	ctx := context.Background()
	weak, s := newIdentity(t)
	u, err := weak.Create(ctx, CreateInput{Email: "old@example.com", Password: "long-enough-secret"})
	require.NoError(t, err)

	upgraded, err := weak.RehashIfNeeded(ctx, u, "long-enough-secret")
	require.NoError(t, err)
	assert.False(t, upgraded)

	hasher, err := password.NewArgon2(password.Config{Memory: 8 * 1024, Time: 2, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)
	strong := New(s, s, s, hasher)
	oldHash := u.PasswordHash

	upgraded, err = strong.RehashIfNeeded(ctx, u, "long-enough-secret")
	require.NoError(t, err)
	assert.True(t, upgraded)
	assert.NotEqual(t, oldHash, u.PasswordHash)

	stored, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.PasswordHash, stored.PasswordHash)
	assert.True(t, strong.VerifyCredential(stored, "long-enough-secret"))

	u.PasswordHash = "not-a-phc-string"
	_, err = strong.RehashIfNeeded(ctx, u, "long-enough-secret")
	assert.ErrorIs(t, err, password.ErrMalformedHash)
}
