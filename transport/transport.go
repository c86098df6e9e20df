// Package transport defines the backend contract the session layer consumes.
//
// Wire formats live in implementations such as [httpapi]; this package holds
// only the abstract operations, the wire-neutral request/response values, and
// the error sentinels every implementation maps its failures onto.
package transport

import (
	"context"
	"errors"
)

var (
	// ErrUnauthorized means the backend rejected the presented credential
	// (wrong password, invalid OTP, expired refresh token).
	ErrUnauthorized = errors.New("transport: unauthorized")
	// ErrNetwork means the request never produced a backend answer.
	ErrNetwork = errors.New("transport: network unavailable")
	// ErrRejected means the backend answered with an explicit failure.
	ErrRejected = errors.New("transport: rejected")
)

// Error carries the backend's human-readable message alongside a sentinel.
// Raw backend error bodies never leave the implementation.
type Error struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Op + ": " + e.Message
	}
	if e.Err != nil {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + ": failed"
}

func (e *Error) Unwrap() error { return e.Err }

// MessageOf returns the backend message carried by err, if any.
func MessageOf(err error) string {
	var te *Error
	if errors.As(err, &te) {
		return te.Message
	}
	return ""
}

// User is the identity record returned by login and profile calls.
type User struct {
	ID          string `json:"id"`
	Phone       string `json:"phone"`
	Name        string `json:"name,omitempty"`
	AccountKind string `json:"account_kind,omitempty"`
	Verified    bool   `json:"is_verified"`
}

// LoginResponse keeps Raw so the device-trust classifier can look for flags
// anywhere in the body.
type LoginResponse struct {
	Failed       bool
	Message      string
	AccessToken  string
	RefreshToken string
	User         *User
	Raw          []byte
}

type VerifyResponse struct {
	Message      string
	AccessToken  string
	RefreshToken string
	ResetToken   string
}

type RegisterRequest struct {
	Phone    string
	Password string
	Name     string
}

type BiometricLoginRequest struct {
	Phone       string
	Payload     string
	Signature   string
	AccountKind string
}

// Profile is the server-side profile/entitlement record mirrored into the
// profile cache.
type Profile struct {
	User         User              `json:"user"`
	Entitlements []string          `json:"entitlements,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

// Auth is the backend contract. flowKind is the wire name of an OTP flow.
type Auth interface {
	Login(ctx context.Context, phone, password string) (LoginResponse, error)
	Register(ctx context.Context, req RegisterRequest) error
	VerifyOTP(ctx context.Context, flowKind, phone, code string) (VerifyResponse, error)
	ResendOTP(ctx context.Context, flowKind, phone string) error
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, accessToken string) error
	EnrollBiometric(ctx context.Context, accessToken, publicKey, password string) error
	BiometricLogin(ctx context.Context, req BiometricLoginRequest) (LoginResponse, error)
	Profile(ctx context.Context, accessToken string) (Profile, error)
}

// DeviceRegistrar is notified once per successful login. Its outcome is not
// consumed by the session layer.
type DeviceRegistrar interface {
	RegisterDevice(ctx context.Context, user User) error
}
