package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goAuthClient/devicetrust"
	"github.com/MrEthical07/goAuthClient/transport"
)

// LoginMetrics carries metric IDs used by the login flow.
type LoginMetrics struct {
	Success    int
	NewDevice  int
	Unverified int
	Failure    int
	Latency    int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	Success    string
	NewDevice  string
	Unverified string
	Failure    string
}

type LoginDeps struct {
	Classify  func(devicetrust.Response) devicetrust.Classification
	Now       func() time.Time
	MetricInc func(int)
	Observe   func(int, time.Duration)
	EmitAudit AuditFunc

	Metrics LoginMetrics
	Events  LoginEvents
}

// LoginResult carries the classification and the raw transport outcome.
// Err is the transport error, if the call failed.
type LoginResult struct {
	Classification devicetrust.Classification
	Response       transport.LoginResponse
	Err            error
}

// RunLogin performs one login call and classifies the answer. method names
// the credential kind ("password", "biometric") for audit metadata.
func RunLogin(ctx context.Context, phone, method string, call func(context.Context) (transport.LoginResponse, error), deps LoginDeps) LoginResult {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopInc
	}
	if deps.Observe == nil {
		deps.Observe = func(int, time.Duration) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Classify == nil {
		deps.Classify = devicetrust.NewClassifier().Classify
	}

	start := deps.Now()
	resp, err := call(ctx)
	deps.Observe(deps.Metrics.Latency, deps.Now().Sub(start))

	cls := deps.Classify(devicetrust.Response{
		Err:         err,
		Failed:      resp.Failed,
		Message:     resp.Message,
		AccessToken: resp.AccessToken,
		Raw:         resp.Raw,
	})

	var userID string
	if resp.User != nil {
		userID = resp.User.ID
	}
	meta := func() map[string]string {
		return map[string]string{
			"method":         method,
			"classification": cls.String(),
		}
	}

	switch cls {
	case devicetrust.Authenticated:
		deps.MetricInc(deps.Metrics.Success)
		deps.EmitAudit(ctx, deps.Events.Success, true, userID, phone, nil, meta)
	case devicetrust.NewDevice:
		deps.MetricInc(deps.Metrics.NewDevice)
		deps.EmitAudit(ctx, deps.Events.NewDevice, false, userID, phone, nil, meta)
	case devicetrust.Unverified:
		deps.MetricInc(deps.Metrics.Unverified)
		deps.EmitAudit(ctx, deps.Events.Unverified, false, userID, phone, nil, meta)
	default:
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Failure, false, userID, phone, err, meta)
	}

	return LoginResult{Classification: cls, Response: resp, Err: err}
}
