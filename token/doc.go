// Package token owns the access/refresh token pair: holding it, persisting it,
// and renewing the access token.
//
// # Refresh coalescing
//
// Concurrent [Manager.Refresh] callers share one in-flight backend call and
// receive the same result. A refresh rejected as unauthorized discards the
// whole pair and fires the OnExpired hook; that is the only path that ends a
// session without an explicit user action.
//
// # What this package must NOT do
//
//   - Import goAuthClient or session (session depends on token, not the reverse).
//   - Retry a failed refresh on its own.
package token
