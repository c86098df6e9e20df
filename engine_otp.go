package goAuthClient

import (
	"context"

	"github.com/MrEthical07/goAuthClient/devicetrust"
	"github.com/MrEthical07/goAuthClient/internal/flows"
	"github.com/MrEthical07/goAuthClient/otp"
)

// NewOTPAttempt returns a verification attempt for phone wired to this
// Engine. The attempt owns the code input, submit latch and resend cooldown;
// verification side effects are the same as VerifyOTP.
func (e *Engine) NewOTPAttempt(kind FlowKind, phone string) (*otp.Attempt, error) {
	if err := e.ensureReady(); err != nil {
		return nil, err
	}
	canonical, err := e.policy.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	verify := func(ctx context.Context, kind otp.FlowKind, phone, code string) (otp.Result, error) {
		res, err := e.VerifyOTP(ctx, kind, phone, code)
		if err != nil {
			return otp.Result{}, err
		}
		out := otp.Result{ResetToken: res.ResetToken}
		if res.Authenticated {
			out.Tokens = e.tokens.Pair()
		}
		return out, nil
	}
	resend := func(ctx context.Context, kind otp.FlowKind, phone string) error {
		return e.ResendOTP(ctx, kind, phone)
	}

	return otp.NewAttempt(kind, canonical, otp.Config{
		Digits:         e.config.Credential.OTPLength,
		ResendCooldown: e.config.OTP.cooldown(kind),
		Now:            e.now,
	}, verify, resend), nil
}

// VerifyOTP checks code for phone and applies the flow's side effect:
// FlowNewDevice replays the cached login, FlowForgotPassword returns the
// reset token, FlowRegister and FlowGeneric do nothing. Tokens returned by
// the verification itself never authenticate the session.
//
// A replayed login that does not authenticate is reported through the
// result, not the error; the session's Error field carries its message.
func (e *Engine) VerifyOTP(ctx context.Context, kind FlowKind, phone, code string) (VerifyResult, error) {
	if err := e.ensureReady(); err != nil {
		return VerifyResult{}, err
	}
	canonical, err := e.policy.NormalizePhone(phone)
	if err != nil {
		return VerifyResult{}, err
	}
	if err := e.policy.ValidateOTP(code); err != nil {
		return VerifyResult{}, err
	}

	res := flows.RunVerifyOTP(ctx, kind, canonical, code, e.flows.Verify)
	if res.Err != nil {
		return VerifyResult{}, mapTransportError(res.Err)
	}

	out := VerifyResult{
		Kind:       kind,
		ResetToken: res.ResetToken,
	}
	if res.Replayed {
		out.Replayed = true
		out.Classification = res.Classification
		out.Authenticated = res.Classification == devicetrust.Authenticated
		if res.ReplayErr != nil {
			e.warn("goAuthClient: login replay after device verification did not authenticate", "classification", res.Classification.String())
		}
	}
	return out, nil
}

// ResendOTP asks the backend for a new code. Cooldown is enforced by
// otp.Attempt, not here.
func (e *Engine) ResendOTP(ctx context.Context, kind FlowKind, phone string) error {
	if err := e.ensureReady(); err != nil {
		return err
	}
	canonical, err := e.policy.NormalizePhone(phone)
	if err != nil {
		return err
	}

	err = e.transport.ResendOTP(ctx, kind.String(), canonical)
	if err == nil {
		e.metricInc(MetricOTPResend)
	}
	e.emitAudit(ctx, auditOTPResend, err == nil, "", canonical, err, func() map[string]string {
		return map[string]string{"flow": kind.String()}
	})
	return mapTransportError(err)
}
