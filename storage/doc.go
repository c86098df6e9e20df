// Package storage provides the durable key-value contract used to persist the
// whitelisted session fields and token pair across process restarts.
//
// # Architecture boundaries
//
// This package owns the [KV] interface and its in-memory, Redis, and encrypting
// implementations. It does not know what a session or token is; callers encode
// their own records.
//
// # What this package must NOT do
//
//   - Import goAuthClient, session, or token (no upward imports).
//   - Log or expose stored values.
package storage
