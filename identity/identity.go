// Package identity manages users: registration, credential checks, and the
// role and permission references a user holds.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/gatekeeper/internal/validate"
	"github.com/MrEthical07/gatekeeper/permission"
	"github.com/MrEthical07/gatekeeper/store"
)

// ErrDuplicateEmail is returned by Create when the email is already registered.
// It matches store.ErrDuplicate as well.
var ErrDuplicateEmail = fmt.Errorf("%w: email already registered", store.ErrDuplicate)

// Hasher derives and checks password hashes.
type Hasher interface {
	Hash(password string) (string, error)
	Matches(password, encodedHash string) bool
	NeedsUpgrade(encodedHash string) (bool, error)
}

// CreateInput describes a new user. With no Roles the active default role,
// if one exists, is attached.
type CreateInput struct {
	Name     string           `json:"name" validate:"max=128"`
	Email    string           `json:"email" validate:"required,email,max=254"`
	Password string           `json:"password" validate:"required,min=8,max=256"`
	Roles    []permission.Ref `json:"-"`
}

// PublicUser is the external representation of a user. It never carries the
// password hash or the session set.
type PublicUser struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	RoleIDs         []string  `json:"roleIds"`
	PermissionIDs   []string  `json:"permissionIds"`
	IsActive        bool      `json:"isActive"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Store is the identity service over the durable stores.
type Store struct {
	users    store.UserStore
	roles    store.RoleStore
	perms    store.PermissionStore
	hasher   Hasher
	validate *validate.Validator
}

// New returns an identity Store.
func New(users store.UserStore, roles store.RoleStore, perms store.PermissionStore, hasher Hasher) *Store {
	return &Store{
		users:    users,
		roles:    roles,
		perms:    perms,
		hasher:   hasher,
		validate: validate.New(),
	}
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create registers a user with a hashed password.
func (s *Store) Create(ctx context.Context, in CreateInput) (*store.User, error) {
	in.Email = NormalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	roleIDs, err := permission.ResolveRoleIDs(ctx, s.roles, in.Roles)
	if err != nil {
		return nil, err
	}
	if len(roleIDs) == 0 {
		def, err := s.roles.DefaultRole(ctx)
		switch {
		case err == nil:
			roleIDs = []string{def.ID}
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &store.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		RoleIDs:      roleIDs,
		IsActive:     true,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return u, nil
}

// FindByEmail looks a user up by normalised email.
func (s *Store) FindByEmail(ctx context.Context, email string) (*store.User, error) {
	return s.users.GetUserByEmail(ctx, NormalizeEmail(email))
}

// FindByID looks a user up by id.
func (s *Store) FindByID(ctx context.Context, id string) (*store.User, error) {
	return s.users.GetUser(ctx, id)
}

// VerifyCredential reports whether candidate matches the user's password.
// It never errors; a nil user or malformed hash is a mismatch.
func (s *Store) VerifyCredential(user *store.User, candidate string) bool {
	if user == nil || user.PasswordHash == "" || candidate == "" {
		return false
	}
	return s.hasher.Matches(candidate, user.PasswordHash)
}

// UpdateRoles applies op to the user's role set. Every ref is resolved
// before the write; a miss leaves the set unchanged.
func (s *Store) UpdateRoles(ctx context.Context, userID string, op store.SetOp, refs ...permission.Ref) (*store.User, error) {
	ids, err := permission.ResolveRoleIDs(ctx, s.roles, refs)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdateUserRoles(ctx, userID, op, ids); err != nil {
		return nil, err
	}
	return s.users.GetUser(ctx, userID)
}

// UpdatePermissions applies op to the user's direct permission set.
func (s *Store) UpdatePermissions(ctx context.Context, userID string, op store.SetOp, refs ...permission.Ref) (*store.User, error) {
	ids, err := permission.ResolvePermissionIDs(ctx, s.perms, refs)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdateUserPermissions(ctx, userID, op, ids); err != nil {
		return nil, err
	}
	return s.users.GetUser(ctx, userID)
}

// SetEmailVerified marks the user's email as verified.
func (s *Store) SetEmailVerified(ctx context.Context, userID string) (*store.User, error) {
	return s.updateProfile(ctx, userID, func(u *store.User) { u.IsEmailVerified = true })
}

// SetActive toggles whether the user may log in.
func (s *Store) SetActive(ctx context.Context, userID string, active bool) (*store.User, error) {
	return s.updateProfile(ctx, userID, func(u *store.User) { u.IsActive = active })
}

// RehashIfNeeded rewrites the stored hash of user under the hasher's current
// parameters when the stored one was derived with weaker ones. candidate must
// already have matched user.PasswordHash. It reports whether a new hash was
// written.
func (s *Store) RehashIfNeeded(ctx context.Context, user *store.User, candidate string) (bool, error) {
	stale, err := s.hasher.NeedsUpgrade(user.PasswordHash)
	if err != nil || !stale {
		return false, err
	}
	hash, err := s.hasher.Hash(candidate)
	if err != nil {
		return false, err
	}
	if _, err := s.updateProfile(ctx, user.ID, func(u *store.User) { u.PasswordHash = hash }); err != nil {
		return false, err
	}
	user.PasswordHash = hash
	return true, nil
}

func (s *Store) updateProfile(ctx context.Context, userID string, apply func(*store.User)) (*store.User, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	apply(u)
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// External strips secrets and session ids from u.
func External(u *store.User) PublicUser {
	if u == nil {
		return PublicUser{}
	}
	return PublicUser{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		RoleIDs:         append([]string(nil), u.RoleIDs...),
		PermissionIDs:   append([]string(nil), u.PermissionIDs...),
		IsActive:        u.IsActive,
		IsEmailVerified: u.IsEmailVerified,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}
