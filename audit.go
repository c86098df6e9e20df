package goAuthClient

import (
	"context"
	"io"
	"strings"

	internalaudit "github.com/MrEthical07/goAuthClient/internal/audit"
)

type AuditEvent = internalaudit.Event

type AuditSink = internalaudit.Sink

type NoOpSink = internalaudit.NoOpSink

type ChannelSink = internalaudit.ChannelSink

type JSONWriterSink = internalaudit.JSONWriterSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

const (
	auditLogin            = "login"
	auditLoginNewDevice   = "login_new_device"
	auditLoginUnverified  = "login_unverified"
	auditLoginFailure     = "login_failure"
	auditRegister         = "register"
	auditOTPVerify        = "otp_verify"
	auditOTPResend        = "otp_resend"
	auditCredentialReplay = "credential_replay"
	auditRefreshRejected  = "refresh_rejected"
	auditSessionExpired   = "session_expired"
	auditLogout           = "logout"
	auditBiometricEnroll  = "biometric_enroll"
	auditBiometricRemove  = "biometric_remove"
)

// emitAudit builds the event lazily so a disabled dispatcher costs nothing.
func (e *Engine) emitAudit(ctx context.Context, event string, success bool, userID, phone string, err error, meta func() map[string]string) {
	if e == nil || e.audit == nil {
		return
	}
	ev := AuditEvent{
		EventType: event,
		UserID:    userID,
		Phone:     maskPhone(phone),
		DeviceID:  e.deviceID(ctx),
		Success:   success,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	if meta != nil {
		ev.Metadata = meta()
		if flow, ok := ev.Metadata["flow"]; ok {
			ev.Flow = flow
			delete(ev.Metadata, "flow")
		}
	}
	e.audit.Emit(ctx, ev)
}

// maskPhone keeps the last three digits.
func maskPhone(phone string) string {
	if phone == "" {
		return ""
	}
	const keep = 3
	if len(phone) <= keep {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-keep) + phone[len(phone)-keep:]
}
