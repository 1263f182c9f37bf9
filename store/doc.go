// Package store defines the durable data model (users, roles, permissions)
// and the storage port the rest of gatekeeper is written against.
//
// # Implementations
//
//   - store/memory: in-process maps, for tests and single-node development.
//   - store/postgres: pgx/v5 backed, transactional set mutations.
//   - store/cached: read-through LRU decorator for roles and permissions.
//
// # Contract
//
// Lookups return ErrNotFound on a miss. Unique name/email violations return
// ErrDuplicate. Deleting a role that any user still references returns
// ErrReferenced. Set mutations (SetAdd, SetRemove, SetReplace) are idempotent
// and applied atomically by the implementation.
//
// # What this package must NOT do
//
//   - Evaluate permissions. Resolution lives in package permission.
//   - Touch the session cache. Only session ids owned by a user are stored here.
package store
