package goAuthClient

import (
	"context"
	"errors"

	"github.com/MrEthical07/goAuthClient/biometric"
	"github.com/MrEthical07/goAuthClient/devicetrust"
	"github.com/MrEthical07/goAuthClient/internal/flows"
	"github.com/MrEthical07/goAuthClient/transport"
)

// EnrollBiometric registers a fresh device key pair for the signed-in
// phone. Any previous pair is replaced.
func (e *Engine) EnrollBiometric(ctx context.Context, password string) error {
	if err := e.ensureReady(); err != nil {
		return err
	}
	if e.biometric == nil {
		return ErrBiometricUnavailable
	}
	snap := e.session.Snapshot()
	if !snap.IsAuthenticated || snap.User == nil {
		return ErrNotAuthenticated
	}
	if err := e.policy.ValidatePassword(password); err != nil {
		return err
	}

	err := e.biometric.Enroll(ctx, snap.User.Phone, snap.AccessToken, password)
	if err == nil {
		e.metricInc(MetricBiometricEnroll)
	}
	e.emitAudit(ctx, auditBiometricEnroll, err == nil, snap.User.ID, snap.User.Phone, err, nil)
	if errors.Is(err, biometric.ErrCancelled) || errors.Is(err, biometric.ErrUnavailable) {
		return err
	}
	return mapTransportError(err)
}

// RemoveBiometric deletes the signed-in phone's enrollment. Removing an
// absent enrollment succeeds.
func (e *Engine) RemoveBiometric(ctx context.Context) error {
	if err := e.ensureReady(); err != nil {
		return err
	}
	if e.biometric == nil {
		return nil
	}
	snap := e.session.Snapshot()
	if snap.User == nil {
		return ErrNotAuthenticated
	}
	err := e.biometric.Remove(ctx, snap.User.Phone)
	e.emitAudit(ctx, auditBiometricRemove, err == nil, snap.User.ID, snap.User.Phone, err, nil)
	return err
}

// BiometricStatus reports the enrollment for phone on this device. Callers
// must query again whenever the phone changes.
func (e *Engine) BiometricStatus(ctx context.Context, phone string) (BiometricStatus, error) {
	if err := e.ensureReady(); err != nil {
		return BiometricStatus{}, err
	}
	if e.biometric == nil {
		return BiometricStatus{}, nil
	}
	canonical, err := e.policy.NormalizePhone(phone)
	if err != nil {
		return BiometricStatus{}, err
	}
	return e.biometric.Status(ctx, canonical)
}

// BiometricLogin signs a fresh challenge with the device key and logs in
// with it. Classification is applied exactly as for Login. A dismissed
// prompt returns a zero result and nil error with the session untouched.
func (e *Engine) BiometricLogin(ctx context.Context, phone string) (LoginResult, error) {
	if err := e.ensureReady(); err != nil {
		return LoginResult{}, err
	}
	if e.biometric == nil {
		return LoginResult{}, ErrBiometricUnavailable
	}
	canonical, err := e.policy.NormalizePhone(phone)
	if err != nil {
		return LoginResult{}, err
	}
	if e.session.Snapshot().IsAuthenticated {
		return LoginResult{}, ErrAlreadyAuthenticated
	}

	req, err := e.biometric.SignLogin(ctx, canonical, e.config.Biometric.AccountKind)
	if err != nil {
		if errors.Is(err, biometric.ErrCancelled) {
			e.metricInc(MetricBiometricCancelled)
			return LoginResult{}, nil
		}
		return LoginResult{}, err
	}

	if err := e.session.BeginLogin(); err != nil {
		return LoginResult{}, err
	}
	res := flows.RunLogin(ctx, canonical, "biometric", func(ctx context.Context) (transport.LoginResponse, error) {
		return e.transport.BiometricLogin(ctx, req)
	}, e.flows.Login)
	if res.Classification == devicetrust.Authenticated {
		e.metricInc(MetricBiometricLogin)
	}
	return e.applyLogin(ctx, canonical, res)
}
