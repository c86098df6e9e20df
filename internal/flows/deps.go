package flows

import "context"

// Deps groups flow dependency sets. The Engine builds this once.
type Deps struct {
	Login  LoginDeps
	Verify VerifyDeps
	Logout LogoutDeps
}

// AuditFunc emits one audit event. meta is only called when auditing is on.
type AuditFunc func(ctx context.Context, event string, success bool, userID, phone string, err error, meta func() map[string]string)

func noopAudit(context.Context, string, bool, string, string, error, func() map[string]string) {}

func noopInc(int) {}

func noopWarn(string, ...any) {}
