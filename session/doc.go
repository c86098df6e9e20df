// Package session holds the process-wide authentication state: who is signed
// in, whether the session is authenticated, and the transient loading/error
// fields the UI renders.
//
// # Persistence
//
// Only the user record and the authenticated flag are written to durable
// storage, as a compact versioned binary record. Tokens are persisted by the
// token manager the store reads through [TokenHolder]. Loading and error
// fields are never persisted.
//
// # Architecture boundaries
//
// The [Store] is mutated only through its transition methods. It does not
// classify login responses, call the backend, or decide navigation; those
// belong to the Engine.
//
// # What this package must NOT do
//
//   - Report IsAuthenticated without an access token.
//   - Store passwords or OTP codes.
package session
