package goAuthClient

import (
	"github.com/MrEthical07/goAuthClient/biometric"
	"github.com/MrEthical07/goAuthClient/devicetrust"
	"github.com/MrEthical07/goAuthClient/otp"
	"github.com/MrEthical07/goAuthClient/session"
	"github.com/MrEthical07/goAuthClient/token"
	"github.com/MrEthical07/goAuthClient/transport"
)

// SessionSnapshot is the immutable view handed to Snapshot and subscribers.
type SessionSnapshot = session.Snapshot

// SessionState is the session lifecycle position.
type SessionState = session.State

const (
	StateInitializing    = session.Initializing
	StateUnauthenticated = session.Unauthenticated
	StateAuthenticating  = session.Authenticating
	StateAuthenticated   = session.Authenticated
)

// User is the signed-in account as held by the session.
type User = session.User

type TokenPair = token.Pair

type Profile = transport.Profile

// Classification is the device-trust outcome of a login answer.
type Classification = devicetrust.Classification

const (
	ClassificationFailed        = devicetrust.Failed
	ClassificationAuthenticated = devicetrust.Authenticated
	ClassificationNewDevice     = devicetrust.NewDevice
	ClassificationUnverified    = devicetrust.Unverified
)

// FlowKind selects the OTP verification flow.
type FlowKind = otp.FlowKind

const (
	FlowGeneric        = otp.FlowGeneric
	FlowRegister       = otp.FlowRegister
	FlowNewDevice      = otp.FlowNewDevice
	FlowForgotPassword = otp.FlowForgotPassword
)

// BiometricStatus is the per (phone, device) enrollment state.
type BiometricStatus = biometric.Enrollment

// LoginResult tells the caller where to route next. Message is the text the
// session's Error field also carries, when any.
type LoginResult struct {
	Classification Classification
	Message        string
	User           *User
}

// RegisterInput is a new account request. Phone may be in any accepted
// format; it is normalized before sending.
type RegisterInput struct {
	Phone    string
	Password string
	Name     string
}

// VerifyResult is the outcome of a successful OTP verification.
//
// ResetToken is set for FlowForgotPassword. Replayed is set when a
// FlowNewDevice verification replayed the cached login; Classification and
// Authenticated describe that login.
type VerifyResult struct {
	Kind           FlowKind
	ResetToken     string
	Replayed       bool
	Classification Classification
	Authenticated  bool
}
