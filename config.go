package goAuthClient

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goAuthClient/otp"
)

// Config is the Engine configuration. Start from [DefaultConfig] or
// [LoadConfigFromEnv]; a zero Config does not validate.
type Config struct {
	Credential      CredentialConfig
	OTP             OTPConfig
	Token           TokenConfig
	Storage         StorageConfig
	CredentialCache CredentialCacheConfig
	Trust           TrustConfig
	Biometric       BiometricConfig
	Profile         ProfileConfig
	Logout          LogoutConfig
	Device          DeviceConfig
	Audit           AuditConfig
	Metrics         MetricsConfig
}

/*
====================================
CREDENTIAL CONFIG
====================================
*/

// CredentialConfig controls phone formatting and local input checks.
type CredentialConfig struct {
	CountryCode       string
	MinPasswordLength int
	OTPLength         int
}

/*
====================================
OTP CONFIG
====================================
*/

type OTPConfig struct {
	ResendCooldown time.Duration
	// FlowCooldowns overrides ResendCooldown per flow kind.
	FlowCooldowns map[otp.FlowKind]time.Duration
}

func (c OTPConfig) cooldown(kind otp.FlowKind) time.Duration {
	if d, ok := c.FlowCooldowns[kind]; ok && d > 0 {
		return d
	}
	return c.ResendCooldown
}

/*
====================================
TOKEN CONFIG
====================================
*/

type TokenConfig struct {
	// RefreshLeeway makes AccessToken refresh a token that expires within
	// this window. Opaque tokens are never refreshed early.
	RefreshLeeway time.Duration
	// VerifyKey optionally verifies access-token signatures (ed25519, raw or
	// PEM). Without it claims are read unverified.
	VerifyKey []byte
	Issuer    string
}

/*
====================================
STORAGE CONFIG
====================================
*/

type StorageConfig struct {
	TokenKey   string
	SessionKey string
	// RedisPrefix namespaces keys when the Builder is given a Redis client.
	RedisPrefix string
	// EncryptionSecret, when set, seals every stored value.
	EncryptionSecret []byte
	EncryptionSalt   []byte
}

type CredentialCacheConfig struct {
	TTL time.Duration
}

/*
====================================
TRUST CONFIG
====================================
*/

// TrustConfig tunes device-trust classification. VerificationPhrases are
// matched case-insensitively against the backend message when the response
// carries no structured flag.
type TrustConfig struct {
	VerificationPhrases []string
}

type BiometricConfig struct {
	AccountKind   string
	PromptMessage string
}

type ProfileConfig struct {
	Namespace   string
	TTL         time.Duration
	WarmOnLogin bool
}

type LogoutConfig struct {
	// Timeout bounds the best-effort backend logout call.
	Timeout time.Duration
}

type DeviceConfig struct {
	// ID identifies this installation in audit events and backend headers.
	ID              string
	RegisterOnLogin bool
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Credential: CredentialConfig{
			CountryCode:       "84",
			MinPasswordLength: 6,
			OTPLength:         otp.DefaultDigits,
		},
		OTP: OTPConfig{
			ResendCooldown: otp.DefaultResendCooldown,
		},
		Token: TokenConfig{
			RefreshLeeway: 30 * time.Second,
		},
		Storage: StorageConfig{
			TokenKey:    "tokens",
			SessionKey:  "session",
			RedisPrefix: "goauthclient:",
		},
		CredentialCache: CredentialCacheConfig{
			TTL: 10 * time.Minute,
		},
		Trust: TrustConfig{},
		Biometric: BiometricConfig{
			AccountKind:   "personal",
			PromptMessage: "Confirm your identity",
		},
		Profile: ProfileConfig{
			Namespace:   "auth",
			TTL:         30 * time.Minute,
			WarmOnLogin: true,
		},
		Logout: LogoutConfig{
			Timeout: 5 * time.Second,
		},
		Device: DeviceConfig{
			RegisterOnLogin: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.VerifyKey = cloneBytes(cfg.Token.VerifyKey)
	out.Storage.EncryptionSecret = cloneBytes(cfg.Storage.EncryptionSecret)
	out.Storage.EncryptionSalt = cloneBytes(cfg.Storage.EncryptionSalt)
	if cfg.Trust.VerificationPhrases != nil {
		out.Trust.VerificationPhrases = append([]string(nil), cfg.Trust.VerificationPhrases...)
	}
	if cfg.OTP.FlowCooldowns != nil {
		out.OTP.FlowCooldowns = make(map[otp.FlowKind]time.Duration, len(cfg.OTP.FlowCooldowns))
		for k, v := range cfg.OTP.FlowCooldowns {
			out.OTP.FlowCooldowns[k] = v
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	// Credential
	cc := strings.TrimSpace(c.Credential.CountryCode)
	if cc == "" {
		return errors.New("Credential CountryCode must be set")
	}
	for _, r := range cc {
		if r < '0' || r > '9' {
			return errors.New("Credential CountryCode must be digits only")
		}
	}
	if c.Credential.MinPasswordLength < 1 {
		return errors.New("Credential MinPasswordLength must be >= 1")
	}
	if c.Credential.OTPLength < 4 || c.Credential.OTPLength > 10 {
		return errors.New("Credential OTPLength must be between 4 and 10")
	}

	// OTP
	if c.OTP.ResendCooldown <= 0 {
		return errors.New("OTP ResendCooldown must be > 0")
	}
	for _, d := range c.OTP.FlowCooldowns {
		if d < 0 {
			return errors.New("OTP FlowCooldowns must be >= 0")
		}
	}

	// Token
	if c.Token.RefreshLeeway < 0 {
		return errors.New("Token RefreshLeeway must be >= 0")
	}

	// Storage
	if c.Storage.TokenKey == "" || c.Storage.SessionKey == "" {
		return errors.New("Storage TokenKey and SessionKey must be set")
	}
	if c.Storage.TokenKey == c.Storage.SessionKey {
		return errors.New("Storage TokenKey and SessionKey must differ")
	}
	if len(c.Storage.EncryptionSecret) > 0 && len(c.Storage.EncryptionSecret) < 16 {
		return errors.New("Storage EncryptionSecret must be at least 16 bytes")
	}

	if c.CredentialCache.TTL <= 0 {
		return errors.New("CredentialCache TTL must be > 0")
	}

	if c.Profile.TTL <= 0 {
		return errors.New("Profile TTL must be > 0")
	}
	if strings.Contains(c.Profile.Namespace, ":") {
		return errors.New("Profile Namespace must not contain ':'")
	}

	if c.Logout.Timeout <= 0 {
		return errors.New("Logout Timeout must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Audit is enabled")
	}

	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}
	return nil
}
