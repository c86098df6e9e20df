package goAuthClient

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// envConfig lists the settings that can be overridden from the environment.
// Unset variables keep the defaults.
type envConfig struct {
	CountryCode         string        `env:"GOAUTHCLIENT_COUNTRY_CODE"`
	MinPasswordLength   int           `env:"GOAUTHCLIENT_MIN_PASSWORD_LENGTH"`
	OTPLength           int           `env:"GOAUTHCLIENT_OTP_LENGTH"`
	ResendCooldown      time.Duration `env:"GOAUTHCLIENT_OTP_RESEND_COOLDOWN"`
	RefreshLeeway       time.Duration `env:"GOAUTHCLIENT_REFRESH_LEEWAY"`
	TokenIssuer         string        `env:"GOAUTHCLIENT_TOKEN_ISSUER"`
	TokenVerifyKey      string        `env:"GOAUTHCLIENT_TOKEN_VERIFY_KEY"`
	RedisPrefix         string        `env:"GOAUTHCLIENT_REDIS_PREFIX"`
	StorageSecret       string        `env:"GOAUTHCLIENT_STORAGE_SECRET"`
	StorageSalt         string        `env:"GOAUTHCLIENT_STORAGE_SALT"`
	CredentialCacheTTL  time.Duration `env:"GOAUTHCLIENT_CREDENTIAL_CACHE_TTL"`
	VerificationPhrases []string      `env:"GOAUTHCLIENT_VERIFICATION_PHRASES" envSeparator:"|"`
	AccountKind         string        `env:"GOAUTHCLIENT_BIOMETRIC_ACCOUNT_KIND"`
	PromptMessage       string        `env:"GOAUTHCLIENT_BIOMETRIC_PROMPT"`
	ProfileNamespace    string        `env:"GOAUTHCLIENT_PROFILE_NAMESPACE"`
	ProfileTTL          time.Duration `env:"GOAUTHCLIENT_PROFILE_TTL"`
	ProfileWarmOnLogin  bool          `env:"GOAUTHCLIENT_PROFILE_WARM_ON_LOGIN"`
	LogoutTimeout       time.Duration `env:"GOAUTHCLIENT_LOGOUT_TIMEOUT"`
	DeviceID            string        `env:"GOAUTHCLIENT_DEVICE_ID"`
	RegisterDevice      bool          `env:"GOAUTHCLIENT_REGISTER_DEVICE"`
	AuditEnabled        bool          `env:"GOAUTHCLIENT_AUDIT_ENABLED"`
	AuditBufferSize     int           `env:"GOAUTHCLIENT_AUDIT_BUFFER_SIZE"`
	MetricsEnabled      bool          `env:"GOAUTHCLIENT_METRICS_ENABLED"`
	MetricsLatency      bool          `env:"GOAUTHCLIENT_METRICS_LATENCY"`
}

// LoadConfigFromEnv returns the default configuration with environment
// overrides applied, validated.
func LoadConfigFromEnv() (Config, error) {
	cfg := defaultConfig()
	raw := envConfig{
		CountryCode:         cfg.Credential.CountryCode,
		MinPasswordLength:   cfg.Credential.MinPasswordLength,
		OTPLength:           cfg.Credential.OTPLength,
		ResendCooldown:      cfg.OTP.ResendCooldown,
		RefreshLeeway:       cfg.Token.RefreshLeeway,
		RedisPrefix:         cfg.Storage.RedisPrefix,
		CredentialCacheTTL:  cfg.CredentialCache.TTL,
		VerificationPhrases: cfg.Trust.VerificationPhrases,
		AccountKind:         cfg.Biometric.AccountKind,
		PromptMessage:       cfg.Biometric.PromptMessage,
		ProfileNamespace:    cfg.Profile.Namespace,
		ProfileTTL:          cfg.Profile.TTL,
		ProfileWarmOnLogin:  cfg.Profile.WarmOnLogin,
		LogoutTimeout:       cfg.Logout.Timeout,
		RegisterDevice:      cfg.Device.RegisterOnLogin,
		AuditEnabled:        cfg.Audit.Enabled,
		AuditBufferSize:     cfg.Audit.BufferSize,
		MetricsEnabled:      cfg.Metrics.Enabled,
		MetricsLatency:      cfg.Metrics.EnableLatencyHistograms,
	}
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.Credential.CountryCode = strings.TrimSpace(raw.CountryCode)
	cfg.Credential.MinPasswordLength = raw.MinPasswordLength
	cfg.Credential.OTPLength = raw.OTPLength
	cfg.OTP.ResendCooldown = raw.ResendCooldown
	cfg.Token.RefreshLeeway = raw.RefreshLeeway
	cfg.Token.Issuer = raw.TokenIssuer
	if raw.TokenVerifyKey != "" {
		cfg.Token.VerifyKey = []byte(raw.TokenVerifyKey)
	}
	cfg.Storage.RedisPrefix = raw.RedisPrefix
	if raw.StorageSecret != "" {
		cfg.Storage.EncryptionSecret = []byte(raw.StorageSecret)
		cfg.Storage.EncryptionSalt = []byte(raw.StorageSalt)
	}
	cfg.CredentialCache.TTL = raw.CredentialCacheTTL
	cfg.Trust.VerificationPhrases = raw.VerificationPhrases
	cfg.Biometric.AccountKind = raw.AccountKind
	cfg.Biometric.PromptMessage = raw.PromptMessage
	cfg.Profile.Namespace = raw.ProfileNamespace
	cfg.Profile.TTL = raw.ProfileTTL
	cfg.Profile.WarmOnLogin = raw.ProfileWarmOnLogin
	cfg.Logout.Timeout = raw.LogoutTimeout
	cfg.Device.ID = raw.DeviceID
	cfg.Device.RegisterOnLogin = raw.RegisterDevice
	cfg.Audit.Enabled = raw.AuditEnabled
	cfg.Audit.BufferSize = raw.AuditBufferSize
	cfg.Metrics.Enabled = raw.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = raw.MetricsLatency

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
