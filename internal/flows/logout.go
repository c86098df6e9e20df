package flows

import (
	"context"
	"time"
)

type LogoutDeps struct {
	// Teardown clears every piece of local session state.
	Teardown func(ctx context.Context) error
	// Backend revokes the session server-side.
	Backend   func(ctx context.Context, accessToken string) error
	Timeout   time.Duration
	Warn      func(string, ...any)
	MetricInc func(int)
	EmitAudit AuditFunc

	MetricLogout int
	EventLogout  string
}

// RunLogout tears down local state first, then makes a bounded best-effort
// backend call. Neither failure is returned: local teardown never depends on
// the network.
func RunLogout(ctx context.Context, accessToken, userID string, deps LogoutDeps) {
	if deps.Warn == nil {
		deps.Warn = noopWarn
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopInc
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}

	if deps.Teardown != nil {
		if err := deps.Teardown(ctx); err != nil {
			deps.Warn("goAuthClient: local logout cleanup incomplete", "error", err)
		}
	}
	deps.MetricInc(deps.MetricLogout)

	var backendErr error
	if accessToken != "" && deps.Backend != nil {
		callCtx := context.WithoutCancel(ctx)
		if deps.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(callCtx, deps.Timeout)
			defer cancel()
		}
		if backendErr = deps.Backend(callCtx, accessToken); backendErr != nil {
			deps.Warn("goAuthClient: backend logout failed", "error", backendErr)
		}
	}

	deps.EmitAudit(ctx, deps.EventLogout, true, userID, "", backendErr, nil)
}
