// Package middleware adapts gatekeeper.Engine to net/http.
//
// [Authenticate] reads the session credential (cookie first, then an
// Authorization bearer header), validates it and attaches the identity with
// gatekeeper.WithIdentity. [OptionalAuthenticate] does the same but lets
// anonymous requests through. The Require* guards run after one of them and
// answer 403 when the identity lacks the grant.
//
// Errors are written as a small JSON body. Authentication failures map to
// 401 and store outages to 503, so an outage is never reported as a denial.
package middleware
