// Package goAuthClient is the client-side session and identity layer for a
// phone-number-first financial app: credential validation, token lifecycle
// with coalesced refresh, device-trust classification of login answers, OTP
// verification flows, biometric signature login, and a reactive session store.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build] and [Engine.Init].
//
// # Architecture boundaries
//
// goAuthClient is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (SessionSnapshot, LoginResult, MetricsSnapshot, etc.). Flow
// orchestration, audit dispatch and metric storage live under internal/.
// Durable storage, the backend transport and the platform key store are
// collaborators injected through the Builder.
//
// # What this package must NOT do
//
//   - Navigate, render, or otherwise decide what the user sees next. Login
//     returns a classification; routing is the caller's job.
//   - Treat tokens returned by an OTP verification as authentication. Only a
//     login classified AUTHENTICATED, or an explicit CompleteVerification,
//     authenticates the session.
//   - Log or audit passwords, verification codes, or tokens.
//   - Import any sub-package that re-imports goAuthClient (no import cycles).
package goAuthClient
