// Package jwt reads access-token claims on the client side.
//
// The client does not hold signing keys in the common case, so claims are read
// without signature verification and used only for scheduling (when to refresh)
// and for identifying the subject. Authorization decisions stay on the backend.
// When the host is provisioned with the issuer's ed25519 public key, [Inspector]
// verifies signatures as well.
//
// # What this package must NOT do
//
//   - Import goAuthClient, token, or session.
//   - Treat an unverified claim as proof of identity.
package jwt
