// Package flows holds the orchestration behind every Engine session
// operation: login, validate, logout, refresh and email verification.
//
// Each Run* function takes a dependency struct of function fields plus the
// metric ids, event names and sentinel errors it reports with, so the
// package never imports the root. Flows keep no state between calls and do
// no I/O of their own.
//
// Flows coordinate the session cache, the durable session set, the token
// codec, audit emission and metrics. The Engine owns all of those.
package flows
