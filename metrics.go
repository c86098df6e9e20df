package goAuthClient

import (
	internalmetrics "github.com/MrEthical07/goAuthClient/internal/metrics"
)

// MetricID identifies one counter or latency histogram.
type MetricID = internalmetrics.MetricID

const (
	MetricLoginSuccess       = MetricID(internalmetrics.MetricLoginSuccess)
	MetricLoginNewDevice     = MetricID(internalmetrics.MetricLoginNewDevice)
	MetricLoginUnverified    = MetricID(internalmetrics.MetricLoginUnverified)
	MetricLoginFailure       = MetricID(internalmetrics.MetricLoginFailure)
	MetricOTPVerifySuccess   = MetricID(internalmetrics.MetricOTPVerifySuccess)
	MetricOTPVerifyFailure   = MetricID(internalmetrics.MetricOTPVerifyFailure)
	MetricOTPResend          = MetricID(internalmetrics.MetricOTPResend)
	MetricRefreshSuccess     = MetricID(internalmetrics.MetricRefreshSuccess)
	MetricRefreshFailure     = MetricID(internalmetrics.MetricRefreshFailure)
	MetricRefreshCoalesced   = MetricID(internalmetrics.MetricRefreshCoalesced)
	MetricForcedExpiry       = MetricID(internalmetrics.MetricForcedExpiry)
	MetricLogout             = MetricID(internalmetrics.MetricLogout)
	MetricBiometricEnroll    = MetricID(internalmetrics.MetricBiometricEnroll)
	MetricBiometricLogin     = MetricID(internalmetrics.MetricBiometricLogin)
	MetricBiometricCancelled = MetricID(internalmetrics.MetricBiometricCancelled)
	MetricCredentialReplay   = MetricID(internalmetrics.MetricCredentialReplay)
	MetricLoginLatency       = MetricID(internalmetrics.MetricLoginLatency)
	MetricRefreshLatency     = MetricID(internalmetrics.MetricRefreshLatency)
)

// Metrics holds in-process counters. A nil *Metrics is a valid no-op.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
type MetricsSnapshot = internalmetrics.Snapshot

func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
