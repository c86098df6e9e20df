// Package otp implements the one-time-code verification attempt shared by the
// register, new-device, forgot-password and generic flows.
//
// An [Attempt] owns the code being typed, the submit latch, and the resend
// cooldown. Network work is delegated to the [Verifier] and [Resender]
// callbacks, which are always invoked without the attempt's lock held.
//
// # Concurrency
//
// Submit and Resend may overlap. A generation counter is bumped by Resend and
// Cancel; a verify result that returns under an older generation is reported
// as [ErrStale] and leaves the attempt untouched.
//
// # What this package must NOT do
//
//   - Touch session or token state. Per-flow side effects belong to the caller.
//   - Persist codes anywhere.
package otp
