// Package flows contains pure-function orchestrators for the Engine's
// multi-step operations: login classification, OTP verification side
// effects, and logout.
//
// Each flow function accepts a typed dependency struct and returns a result
// value. Session transitions stay with the Engine, which applies them from
// the result.
//
// # Architecture boundaries
//
// Flow functions coordinate the transport call, the device-trust classifier,
// the credential cache, audit and metrics. They do NOT own any of these
// resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the root package (to avoid import cycles).
//   - Log or emit passwords, codes, or tokens.
package flows
