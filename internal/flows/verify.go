package flows

import (
	"context"

	"github.com/MrEthical07/goAuthClient/credcache"
	"github.com/MrEthical07/goAuthClient/devicetrust"
	"github.com/MrEthical07/goAuthClient/otp"
	"github.com/MrEthical07/goAuthClient/transport"
)

type VerifyMetrics struct {
	Success int
	Failure int
	Replay  int
}

type VerifyEvents struct {
	Verify string
	Replay string
}

type VerifyDeps struct {
	Call              func(ctx context.Context, flowKind, phone, code string) (transport.VerifyResponse, error)
	ConsumeCredential func() (credcache.Entry, bool)
	// ReplayLogin repeats a login with cached credentials and reports how it
	// was classified.
	ReplayLogin func(ctx context.Context, phone, password string) (devicetrust.Classification, error)
	MetricInc   func(int)
	EmitAudit   AuditFunc
	Warn        func(string, ...any)

	Metrics VerifyMetrics
	Events  VerifyEvents
}

// VerifyResult is the outcome of one verification. Tokens in Response are
// never used to authenticate; only a replayed login can do that.
type VerifyResult struct {
	Response   transport.VerifyResponse
	ResetToken string
	// Replayed is set when a new-device verification replayed the cached
	// login. Classification and ReplayErr describe that login.
	Replayed       bool
	Classification devicetrust.Classification
	ReplayErr      error
	Err            error
}

// RunVerifyOTP verifies code and applies the per-flow side effect:
//
//	register         nothing; the caller logs in again
//	new-device       consume the cached credentials and replay the login
//	forgot-password  surface the reset token
//	generic          nothing
func RunVerifyOTP(ctx context.Context, kind otp.FlowKind, phone, code string, deps VerifyDeps) VerifyResult {
	if deps.MetricInc == nil {
		deps.MetricInc = noopInc
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Warn == nil {
		deps.Warn = noopWarn
	}

	meta := func() map[string]string {
		return map[string]string{"flow": kind.String()}
	}

	resp, err := deps.Call(ctx, kind.String(), phone, code)
	if err != nil {
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Verify, false, "", phone, err, meta)
		return VerifyResult{Err: err}
	}
	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Verify, true, "", phone, nil, meta)

	out := VerifyResult{Response: resp}
	switch kind {
	case otp.FlowForgotPassword:
		out.ResetToken = resp.ResetToken
	case otp.FlowNewDevice:
		if deps.ConsumeCredential == nil || deps.ReplayLogin == nil {
			return out
		}
		entry, ok := deps.ConsumeCredential()
		if !ok {
			return out
		}
		if entry.Phone != phone {
			deps.Warn("goAuthClient: cached credentials belong to another phone; replay skipped")
			return out
		}
		deps.MetricInc(deps.Metrics.Replay)
		out.Replayed = true
		out.Classification, out.ReplayErr = deps.ReplayLogin(ctx, entry.Phone, entry.Password)
		deps.EmitAudit(ctx, deps.Events.Replay, out.Classification == devicetrust.Authenticated, "", phone, out.ReplayErr, func() map[string]string {
			return map[string]string{
				"flow":           kind.String(),
				"classification": out.Classification.String(),
			}
		})
	}
	return out
}
