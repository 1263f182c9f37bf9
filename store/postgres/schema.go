package postgres

// Schema creates the tables the store reads and writes. It is idempotent.
//
// role_permissions and user_permissions cascade on permission delete so a
// removed permission silently drops out of every grant set. user_roles
// restricts role deletion, which is how ErrReferenced is enforced atomically.
// roles_single_default guarantees at most one default role at any instant.
// A (resource, action) pair names at most one permission.
const Schema = `
CREATE TABLE IF NOT EXISTS permissions (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	resource    TEXT NOT NULL,
	action      TEXT NOT NULL CHECK (action IN ('create', 'read', 'update', 'delete', 'manage')),
	conditions  JSONB,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS permissions_resource_action ON permissions (resource, action);

CREATE TABLE IF NOT EXISTS roles (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	is_default  BOOLEAN NOT NULL DEFAULT FALSE,
	is_active   BOOLEAN NOT NULL DEFAULT TRUE,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS roles_single_default ON roles ((is_default)) WHERE is_default;

CREATE TABLE IF NOT EXISTS role_permissions (
	role_id       TEXT NOT NULL REFERENCES roles (id) ON DELETE CASCADE,
	permission_id TEXT NOT NULL REFERENCES permissions (id) ON DELETE CASCADE,
	PRIMARY KEY (role_id, permission_id)
);

CREATE TABLE IF NOT EXISTS users (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL DEFAULT '',
	email             TEXT NOT NULL UNIQUE,
	password_hash     TEXT NOT NULL,
	is_active         BOOLEAN NOT NULL DEFAULT TRUE,
	is_email_verified BOOLEAN NOT NULL DEFAULT FALSE,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS user_roles (
	user_id TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	role_id TEXT NOT NULL REFERENCES roles (id) ON DELETE RESTRICT,
	PRIMARY KEY (user_id, role_id)
);

CREATE TABLE IF NOT EXISTS user_permissions (
	user_id       TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	permission_id TEXT NOT NULL REFERENCES permissions (id) ON DELETE CASCADE,
	PRIMARY KEY (user_id, permission_id)
);

CREATE TABLE IF NOT EXISTS user_sessions (
	user_id    TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	session_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (user_id, session_id)
);
`
