// Package middleware adapts an Engine to net/http.
//
// [Transport] wraps an outbound RoundTripper so every request carries the
// session's bearer token. A 401 triggers one forced refresh and one retry.
//
// [RequireSession] guards local handlers (status pages, metrics) and
// rejects requests while no session is authenticated.
package middleware
