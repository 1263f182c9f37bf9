// Package permission owns the permission and role registries and the pure
// resolver that answers "may this user do X" over a loaded snapshot.
//
// # Lookups
//
// Grant arguments are [Ref] values built with [ByID] or [ByName]. There is
// no runtime inspection of argument types.
//
// # Resolution
//
// [LoadGrants] performs the store I/O once and returns a [Grants] snapshot.
// Every check on Grants is a pure function of that snapshot. A user holds a
// permission when it is a direct grant or belongs to any active attached
// role. The manage action implies every other action on the same resource.
//
// # What this package must NOT do
//
//   - Touch sessions or tokens.
//   - Turn a storage failure into a boolean. I/O errors are returned as-is
//     and the caller decides how to fail closed.
package permission
