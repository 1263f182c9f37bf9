// Package postgres implements store.Store on PostgreSQL through pgx/v5.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MrEthical07/gatekeeper/store"
)

// defaultRoleLockKey serialises SetDefaultRole across connections.
const defaultRoleLockKey int64 = 0x6761746b64666c74

// Store implements store.Store for PostgreSQL.
type Store struct {
	db     DB
	logger *slog.Logger
	now    func() time.Time
}

var _ store.Store = (*Store)(nil)

// New wraps an open pool.
func New(db DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:     db,
		logger: logger.With("component", "postgres_store"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.db.Close()
	return nil
}

/* ==== PERMISSIONS ==== */

const permissionColumns = `id, name, resource, action, conditions, created_at, updated_at`

func scanPermission(row pgx.Row) (*store.Permission, error) {
	p := &store.Permission{}
	var action string
	if err := row.Scan(&p.ID, &p.Name, &p.Resource, &action, &p.Conditions, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Action = store.Action(action)
	return p, nil
}

func (s *Store) CreatePermission(ctx context.Context, p *store.Permission) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now

	_, err := s.db.Exec(ctx,
		`INSERT INTO permissions (`+permissionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.Name, p.Resource, string(p.Action), p.Conditions, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return mapWriteErr("create permission", err)
	}
	return nil
}

func (s *Store) GetPermission(ctx context.Context, id string) (*store.Permission, error) {
	p, err := scanPermission(s.db.QueryRow(ctx,
		`SELECT `+permissionColumns+` FROM permissions WHERE id = $1`, id))
	if err != nil {
		return nil, mapReadErr("get permission", err)
	}
	return p, nil
}

func (s *Store) GetPermissionByName(ctx context.Context, name string) (*store.Permission, error) {
	p, err := scanPermission(s.db.QueryRow(ctx,
		`SELECT `+permissionColumns+` FROM permissions WHERE name = $1`, name))
	if err != nil {
		return nil, mapReadErr("get permission by name", err)
	}
	return p, nil
}

func (s *Store) ListPermissions(ctx context.Context) ([]*store.Permission, error) {
	return s.queryPermissions(ctx, "list permissions",
		`SELECT `+permissionColumns+` FROM permissions ORDER BY name`)
}

func (s *Store) PermissionsByIDs(ctx context.Context, ids []string) ([]*store.Permission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.queryPermissions(ctx, "load permissions",
		`SELECT `+permissionColumns+` FROM permissions WHERE id = ANY($1) ORDER BY name`, ids)
}

func (s *Store) queryPermissions(ctx context.Context, op, query string, args ...any) ([]*store.Permission, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	defer rows.Close()

	var out []*store.Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to %s: %w", op, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return out, nil
}

func (s *Store) UpdatePermission(ctx context.Context, p *store.Permission) error {
	p.UpdatedAt = s.now()
	tag, err := s.db.Exec(ctx,
		`UPDATE permissions SET name = $2, resource = $3, action = $4, conditions = $5, updated_at = $6 WHERE id = $1`,
		p.ID, p.Name, p.Resource, string(p.Action), p.Conditions, p.UpdatedAt)
	if err != nil {
		return mapWriteErr("update permission", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeletePermission(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete permission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

/* ==== ROLES ==== */

const roleSelect = `SELECT r.id, r.name, r.description, r.is_default, r.is_active, r.created_at, r.updated_at,
	ARRAY(SELECT rp.permission_id FROM role_permissions rp WHERE rp.role_id = r.id ORDER BY rp.permission_id)
FROM roles r`

func scanRole(row pgx.Row) (*store.Role, error) {
	r := &store.Role{}
	if err := row.Scan(&r.ID, &r.Name, &r.Description, &r.IsDefault, &r.IsActive, &r.CreatedAt, &r.UpdatedAt, &r.PermissionIDs); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) CreateRole(ctx context.Context, r *store.Role) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := s.now()
	r.CreatedAt, r.UpdatedAt = now, now
	r.PermissionIDs = store.ApplySet(nil, store.SetReplace, r.PermissionIDs)

	return s.withTx(ctx, "create role", func(tx pgx.Tx) error {
		if r.IsDefault {
			if err := clearDefault(ctx, tx, now); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO roles (id, name, description, is_default, is_active, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			r.ID, r.Name, r.Description, r.IsDefault, r.IsActive, r.CreatedAt, r.UpdatedAt); err != nil {
			return mapWriteErr("create role", err)
		}
		if len(r.PermissionIDs) > 0 {
			if _, err := tx.Exec(ctx,
				`INSERT INTO role_permissions (role_id, permission_id) SELECT $1, unnest($2::text[]) ON CONFLICT DO NOTHING`,
				r.ID, r.PermissionIDs); err != nil {
				return mapWriteErr("grant role permissions", err)
			}
		}
		return nil
	})
}

func (s *Store) GetRole(ctx context.Context, id string) (*store.Role, error) {
	r, err := scanRole(s.db.QueryRow(ctx, roleSelect+` WHERE r.id = $1`, id))
	if err != nil {
		return nil, mapReadErr("get role", err)
	}
	return r, nil
}

func (s *Store) GetRoleByName(ctx context.Context, name string) (*store.Role, error) {
	r, err := scanRole(s.db.QueryRow(ctx, roleSelect+` WHERE r.name = $1`, name))
	if err != nil {
		return nil, mapReadErr("get role by name", err)
	}
	return r, nil
}

func (s *Store) DefaultRole(ctx context.Context) (*store.Role, error) {
	r, err := scanRole(s.db.QueryRow(ctx, roleSelect+` WHERE r.is_default AND r.is_active`))
	if err != nil {
		return nil, mapReadErr("get default role", err)
	}
	return r, nil
}

func (s *Store) ListRoles(ctx context.Context) ([]*store.Role, error) {
	return s.queryRoles(ctx, "list roles", roleSelect+` ORDER BY r.name`)
}

func (s *Store) RolesByIDs(ctx context.Context, ids []string) ([]*store.Role, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.queryRoles(ctx, "load roles", roleSelect+` WHERE r.id = ANY($1) ORDER BY r.name`, ids)
}

func (s *Store) queryRoles(ctx context.Context, op, query string, args ...any) ([]*store.Role, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	defer rows.Close()

	var out []*store.Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to %s: %w", op, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return out, nil
}

func (s *Store) UpdateRole(ctx context.Context, r *store.Role) error {
	r.UpdatedAt = s.now()
	tag, err := s.db.Exec(ctx,
		`UPDATE roles SET name = $2, description = $3, is_active = $4, updated_at = $5 WHERE id = $1 AND ($4 OR NOT is_default)`,
		r.ID, r.Name, r.Description, r.IsActive, r.UpdatedAt)
	if err != nil {
		return mapWriteErr("update role", err)
	}
	if tag.RowsAffected() == 0 {
		return explainMiss(ctx, s.db, "roles", r.ID, store.ErrDefaultRole)
	}
	return nil
}

func (s *Store) DeleteRole(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM roles WHERE id = $1 AND NOT is_default`, id)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return store.ErrReferenced
		}
		return fmt.Errorf("failed to delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return explainMiss(ctx, s.db, "roles", id, store.ErrDefaultRole)
	}
	return nil
}

func (s *Store) UpdateRolePermissions(ctx context.Context, roleID string, op store.SetOp, permissionIDs []string) error {
	return s.updateSet(ctx, setTarget{
		parent:    "roles",
		join:      "role_permissions",
		parentCol: "role_id",
		childCol:  "permission_id",
	}, roleID, op, permissionIDs)
}

func (s *Store) SetDefaultRole(ctx context.Context, id string) error {
	now := s.now()
	return s.withTx(ctx, "set default role", func(tx pgx.Tx) error {
		if err := clearDefault(ctx, tx, now); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `UPDATE roles SET is_default = TRUE, updated_at = $2 WHERE id = $1 AND is_active`, id, now)
		if err != nil {
			return fmt.Errorf("failed to set default role: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return explainMiss(ctx, tx, "roles", id, store.ErrInactive)
		}
		return nil
	})
}

// clearDefault takes the default-role advisory lock for the rest of tx and
// clears every default flag.
func clearDefault(ctx context.Context, tx pgx.Tx, now time.Time) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, defaultRoleLockKey); err != nil {
		return fmt.Errorf("failed to lock default role: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE roles SET is_default = FALSE, updated_at = $1 WHERE is_default`, now); err != nil {
		return fmt.Errorf("failed to clear default role: %w", err)
	}
	return nil
}

/* ==== USERS ==== */

const userSelect = `SELECT u.id, u.name, u.email, u.password_hash, u.is_active, u.is_email_verified, u.created_at, u.updated_at,
	ARRAY(SELECT ur.role_id FROM user_roles ur WHERE ur.user_id = u.id ORDER BY ur.role_id),
	ARRAY(SELECT up.permission_id FROM user_permissions up WHERE up.user_id = u.id ORDER BY up.permission_id),
	ARRAY(SELECT us.session_id FROM user_sessions us WHERE us.user_id = u.id ORDER BY us.created_at)
FROM users u`

func scanUser(row pgx.Row) (*store.User, error) {
	u := &store.User{}
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.IsActive, &u.IsEmailVerified,
		&u.CreatedAt, &u.UpdatedAt, &u.RoleIDs, &u.PermissionIDs, &u.SessionIDs); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *store.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	u.RoleIDs = store.ApplySet(nil, store.SetReplace, u.RoleIDs)
	u.PermissionIDs = store.ApplySet(nil, store.SetReplace, u.PermissionIDs)
	u.SessionIDs = nil

	return s.withTx(ctx, "create user", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO users (id, name, email, password_hash, is_active, is_email_verified, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			u.ID, u.Name, u.Email, u.PasswordHash, u.IsActive, u.IsEmailVerified, u.CreatedAt, u.UpdatedAt); err != nil {
			return mapWriteErr("create user", err)
		}
		if len(u.RoleIDs) > 0 {
			if _, err := tx.Exec(ctx,
				`INSERT INTO user_roles (user_id, role_id) SELECT $1, unnest($2::text[]) ON CONFLICT DO NOTHING`,
				u.ID, u.RoleIDs); err != nil {
				return mapWriteErr("assign user roles", err)
			}
		}
		if len(u.PermissionIDs) > 0 {
			if _, err := tx.Exec(ctx,
				`INSERT INTO user_permissions (user_id, permission_id) SELECT $1, unnest($2::text[]) ON CONFLICT DO NOTHING`,
				u.ID, u.PermissionIDs); err != nil {
				return mapWriteErr("grant user permissions", err)
			}
		}
		return nil
	})
}

func (s *Store) GetUser(ctx context.Context, id string) (*store.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, userSelect+` WHERE u.id = $1`, id))
	if err != nil {
		return nil, mapReadErr("get user", err)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, userSelect+` WHERE u.email = $1`, email))
	if err != nil {
		return nil, mapReadErr("get user by email", err)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u *store.User) error {
	u.UpdatedAt = s.now()
	tag, err := s.db.Exec(ctx,
		`UPDATE users SET name = $2, email = $3, password_hash = $4, is_active = $5, is_email_verified = $6, updated_at = $7 WHERE id = $1`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.IsActive, u.IsEmailVerified, u.UpdatedAt)
	if err != nil {
		return mapWriteErr("update user", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateUserRoles(ctx context.Context, userID string, op store.SetOp, roleIDs []string) error {
	return s.updateSet(ctx, setTarget{
		parent:    "users",
		join:      "user_roles",
		parentCol: "user_id",
		childCol:  "role_id",
	}, userID, op, roleIDs)
}

func (s *Store) UpdateUserPermissions(ctx context.Context, userID string, op store.SetOp, permissionIDs []string) error {
	return s.updateSet(ctx, setTarget{
		parent:    "users",
		join:      "user_permissions",
		parentCol: "user_id",
		childCol:  "permission_id",
	}, userID, op, permissionIDs)
}

func (s *Store) AddUserSession(ctx context.Context, userID, sessionID string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO user_sessions (user_id, session_id, created_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		userID, sessionID, s.now())
	if err != nil {
		return mapWriteErr("add user session", err)
	}
	return nil
}

func (s *Store) RemoveUserSession(ctx context.Context, userID, sessionID string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM user_sessions WHERE user_id = $1 AND session_id = $2`, userID, sessionID)
	if err != nil {
		return fmt.Errorf("failed to remove user session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return explainMiss(ctx, s.db, "users", userID, nil)
	}
	return nil
}

func (s *Store) ClearUserSessions(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`DELETE FROM user_sessions WHERE user_id = $1 RETURNING session_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to clear user sessions: %w", err)
	}
	ids, err := collectStrings(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to clear user sessions: %w", err)
	}
	if len(ids) == 0 {
		if err := explainMiss(ctx, s.db, "users", userID, nil); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

/* ==== SET MUTATIONS ==== */

// setTarget names a parent table and the join table holding one of its sets.
// All identifiers are package constants, never caller input.
type setTarget struct {
	parent    string
	join      string
	parentCol string
	childCol  string
}

// updateSet locks the parent row, then applies op to the join table in the
// same transaction so concurrent mutations on one parent serialise.
func (s *Store) updateSet(ctx context.Context, t setTarget, parentID string, op store.SetOp, ids []string) error {
	ids = store.ApplySet(nil, store.SetReplace, ids)
	opName := fmt.Sprintf("%s %s", op, t.join)

	return s.withTx(ctx, opName, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			fmt.Sprintf(`UPDATE %s SET updated_at = $2 WHERE id = $1`, t.parent), parentID, s.now())
		if err != nil {
			return fmt.Errorf("failed to lock %s: %w", t.parent, err)
		}
		if tag.RowsAffected() == 0 {
			return store.ErrNotFound
		}

		switch op {
		case store.SetRemove:
			if len(ids) == 0 {
				return nil
			}
			if _, err := tx.Exec(ctx,
				fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND %s = ANY($2)`, t.join, t.parentCol, t.childCol),
				parentID, ids); err != nil {
				return fmt.Errorf("failed to %s: %w", opName, err)
			}
			return nil
		case store.SetReplace:
			if _, err := tx.Exec(ctx,
				fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, t.join, t.parentCol), parentID); err != nil {
				return fmt.Errorf("failed to %s: %w", opName, err)
			}
		}

		if len(ids) == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx,
			fmt.Sprintf(`INSERT INTO %s (%s, %s) SELECT $1, unnest($2::text[]) ON CONFLICT DO NOTHING`, t.join, t.parentCol, t.childCol),
			parentID, ids); err != nil {
			return mapWriteErr(opName, err)
		}
		return nil
	})
}
