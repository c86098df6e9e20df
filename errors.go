package goAuthClient

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goAuthClient/biometric"
	"github.com/MrEthical07/goAuthClient/credential"
	"github.com/MrEthical07/goAuthClient/session"
	"github.com/MrEthical07/goAuthClient/transport"
)

var (
	// ErrValidation wraps every local input failure. No network call was made.
	ErrValidation = credential.ErrValidation
	// ErrAuthRejected means the backend answered and said no. The backend
	// message, when given, is in the session snapshot's Error field.
	ErrAuthRejected = errors.New("authentication rejected")
	// ErrTokenExpired means the refresh token was refused; the session has
	// been torn down.
	ErrTokenExpired = errors.New("session expired")
	// ErrNetworkUnavailable means the backend could not be reached.
	ErrNetworkUnavailable = transport.ErrNetwork
	// ErrBiometricCancelled is never returned by Engine.BiometricLogin; a
	// dismissed prompt is a no-op there.
	ErrBiometricCancelled = biometric.ErrCancelled
	// ErrBiometricNotEnrolled means the phone has no key pair on this device.
	ErrBiometricNotEnrolled = biometric.ErrNotEnrolled
	// ErrBiometricUnavailable means the device has no usable sensor.
	ErrBiometricUnavailable = biometric.ErrUnavailable
	// ErrClassificationAmbiguous means the backend answered without an error,
	// a token, or any verification signal.
	ErrClassificationAmbiguous = errors.New("login response could not be classified")
	// ErrAlreadyAuthenticated rejects a login while a session is active.
	ErrAlreadyAuthenticated = session.ErrAlreadyAuthenticated
	// ErrNotAuthenticated rejects operations that need an active session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrEngineNotReady is returned before Init has completed.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrTransportRequired is returned by Build without a transport.
	ErrTransportRequired = errors.New("transport required")
)

const (
	msgNetworkUnavailable = "Unable to reach the server. Check your connection and try again."
	msgLoginRejected      = "Incorrect phone number or password."
	msgAmbiguous          = "Login failed. Please try again."
	msgUnverified         = "Your account has not been verified yet."
	msgNewDevice          = "We sent a verification code to confirm this device."
)

// userMessage picks the human-readable text for a failure: the backend's own
// message when it sent one, else a fixed text per error class.
func userMessage(err error, backendMsg, fallback string) string {
	if m := transport.MessageOf(err); m != "" {
		return m
	}
	if backendMsg != "" {
		return backendMsg
	}
	if errors.Is(err, transport.ErrNetwork) {
		return msgNetworkUnavailable
	}
	return fallback
}

// mapTransportError converts transport sentinels into Engine sentinels while
// keeping the original error (and its backend message) in the chain.
func mapTransportError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, transport.ErrNetwork):
		return err
	case errors.Is(err, transport.ErrUnauthorized), errors.Is(err, transport.ErrRejected):
		return fmt.Errorf("%w: %w", ErrAuthRejected, err)
	default:
		return err
	}
}
