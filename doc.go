// Package gatekeeper is a session and role-based authorization engine.
//
// It issues signed session credentials, tracks every session in a Redis
// cache and in the owning user's durable session set, and answers
// authorization questions by combining a user's direct permission grants
// with the permissions of their active roles.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build].
//
// # Sessions
//
// A session is valid only while it is present in the cache and its id is in
// the owner's persisted session set. [Engine.ValidateSession] checks both on
// every request and slides the cache TTL. Removing the session from either
// side invalidates it: [Engine.Logout] removes both, [Engine.RevokeSession]
// only the durable side.
//
// # Authorization
//
// [Engine.HasPermission], [Engine.HasPermissionTo] and the quantifier
// variants return (bool, error). A store failure is reported as
// [ErrCheckFailed], never as a grant or a denial. The "manage" action is a
// wildcard over every action on its resource.
//
// # Architecture boundaries
//
// This package is the public surface: [Engine], [Builder], [Config] and the
// value types. Flow orchestration, challenge storage and audit dispatch live
// under internal/. Durable storage is injected as a [store.Store]; the
// engine never opens or closes it.
package gatekeeper
