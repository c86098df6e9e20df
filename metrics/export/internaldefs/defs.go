package internaldefs

import (
	goAuthClient "github.com/MrEthical07/goAuthClient"
)

// Series is one labelled member of a family. Value is empty for a family
// without a label.
type Series struct {
	ID    goAuthClient.MetricID
	Value string
}

// Family groups counters or histograms that differ only by one label.
type Family struct {
	Name   string
	Help   string
	Label  string
	Series []Series
}

func single(id goAuthClient.MetricID, name, help string) Family {
	return Family{Name: name, Help: help, Series: []Series{{ID: id}}}
}

// CounterFamilies lists every exported counter. Login outcomes carry the
// device-trust classification the Engine routed on.
var CounterFamilies = []Family{
	{
		Name:  "goauthclient_login_total",
		Help:  "Login attempts by device-trust classification.",
		Label: "classification",
		Series: []Series{
			{ID: goAuthClient.MetricLoginSuccess, Value: goAuthClient.ClassificationAuthenticated.String()},
			{ID: goAuthClient.MetricLoginNewDevice, Value: goAuthClient.ClassificationNewDevice.String()},
			{ID: goAuthClient.MetricLoginUnverified, Value: goAuthClient.ClassificationUnverified.String()},
			{ID: goAuthClient.MetricLoginFailure, Value: goAuthClient.ClassificationFailed.String()},
		},
	},
	{
		Name:  "goauthclient_otp_verify_total",
		Help:  "Verification code submissions by result.",
		Label: "result",
		Series: []Series{
			{ID: goAuthClient.MetricOTPVerifySuccess, Value: "accepted"},
			{ID: goAuthClient.MetricOTPVerifyFailure, Value: "rejected"},
		},
	},
	single(goAuthClient.MetricOTPResend, "goauthclient_otp_resend_total", "Verification codes re-sent."),
	{
		Name:  "goauthclient_refresh_total",
		Help:  "Token refresh callers by result. Coalesced callers joined an in-flight call.",
		Label: "result",
		Series: []Series{
			{ID: goAuthClient.MetricRefreshSuccess, Value: "success"},
			{ID: goAuthClient.MetricRefreshFailure, Value: "failure"},
			{ID: goAuthClient.MetricRefreshCoalesced, Value: "coalesced"},
		},
	},
	single(goAuthClient.MetricForcedExpiry, "goauthclient_forced_expiry_total", "Sessions ended by a refused refresh token."),
	single(goAuthClient.MetricLogout, "goauthclient_logout_total", "Logout operations."),
	{
		Name:  "goauthclient_biometric_total",
		Help:  "Biometric enrollment and prompt outcomes.",
		Label: "event",
		Series: []Series{
			{ID: goAuthClient.MetricBiometricEnroll, Value: "enrolled"},
			{ID: goAuthClient.MetricBiometricLogin, Value: "login"},
			{ID: goAuthClient.MetricBiometricCancelled, Value: "cancelled"},
		},
	},
	single(goAuthClient.MetricCredentialReplay, "goauthclient_credential_replay_total", "Logins replayed after device verification."),
}

// LatencyFamily is the round-trip histogram of the two backend calls that
// gate a session.
var LatencyFamily = Family{
	Name:  "goauthclient_backend_latency_seconds",
	Help:  "Backend round-trip latency by operation.",
	Label: "operation",
	Series: []Series{
		{ID: goAuthClient.MetricLoginLatency, Value: "login"},
		{ID: goAuthClient.MetricRefreshLatency, Value: "refresh"},
	},
}

const (
	AuditDroppedName = "goauthclient_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped by dispatcher backpressure."

	SessionAuthenticatedName = "goauthclient_session_authenticated"
	SessionAuthenticatedHelp = "1 while the session holds an authenticated identity."
	SessionVersionName       = "goauthclient_session_version"
	SessionVersionHelp       = "Session snapshot version; it moves on every state change."
	SessionStateName         = "goauthclient_session_state"
	SessionStateHelp         = "1 for the current session lifecycle state."
	SessionStateLabel        = "state"
)

// SessionStates is the lifecycle order used for the state gauge.
var SessionStates = []goAuthClient.SessionState{
	goAuthClient.StateInitializing,
	goAuthClient.StateUnauthenticated,
	goAuthClient.StateAuthenticating,
	goAuthClient.StateAuthenticated,
}

// SessionGauge is the numeric view of a snapshot.
type SessionGauge struct {
	Authenticated uint64
	Version       uint64
	State         goAuthClient.SessionState
}

func SessionGaugeOf(snap goAuthClient.SessionSnapshot) SessionGauge {
	g := SessionGauge{Version: snap.Version, State: snap.State}
	if snap.IsAuthenticated {
		g.Authenticated = 1
	}
	return g
}

// HistogramBounds are the upper bounds, in seconds, of the eight buckets.
var HistogramBounds = [8]string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// NormalizeBuckets copies raw into a fixed eight-bucket array; missing
// buckets are zero.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := range raw {
		running += raw[i]
		out[i] = running
	}
	return out
}
