package goAuthClient

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/goAuthClient/biometric"
	"github.com/MrEthical07/goAuthClient/credcache"
	"github.com/MrEthical07/goAuthClient/credential"
	"github.com/MrEthical07/goAuthClient/devicetrust"
	internalaudit "github.com/MrEthical07/goAuthClient/internal/audit"
	"github.com/MrEthical07/goAuthClient/jwt"
	"github.com/MrEthical07/goAuthClient/profilecache"
	"github.com/MrEthical07/goAuthClient/session"
	"github.com/MrEthical07/goAuthClient/storage"
	"github.com/MrEthical07/goAuthClient/token"
	"github.com/MrEthical07/goAuthClient/transport"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. Configure it once, then call Build.
type Builder struct {
	config Config

	transport      transport.Auth
	registrar      transport.DeviceRegistrar
	kv             storage.KV
	redis          redis.UniversalClient
	keyStore       biometric.KeyStore
	profileBackend profilecache.Backend
	auditSink      AuditSink
	logger         *slog.Logger

	built bool
}

// New returns a Builder holding the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithTransport sets the backend. Required.
func (b *Builder) WithTransport(t transport.Auth) *Builder {
	b.transport = t
	return b
}

// WithDeviceRegistrar sets the collaborator notified after each successful
// login. Its result is ignored.
func (b *Builder) WithDeviceRegistrar(r transport.DeviceRegistrar) *Builder {
	b.registrar = r
	return b
}

// WithStorage sets durable storage for tokens, the session record and the
// biometric enrollment record. It takes precedence over WithRedis.
func (b *Builder) WithStorage(kv storage.KV) *Builder {
	b.kv = kv
	return b
}

// WithRedis backs both storage and the profile cache with Redis, unless
// WithStorage or WithProfileBackend override them.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithKeyStore enables biometric enrollment and login.
func (b *Builder) WithKeyStore(ks biometric.KeyStore) *Builder {
	b.keyStore = ks
	return b
}

func (b *Builder) WithProfileBackend(backend profilecache.Backend) *Builder {
	b.profileBackend = backend
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger for best-effort failures. The default discards.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine. The Engine must
// be initialized with Init before use.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.transport == nil {
		return nil, ErrTransportRequired
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	// -------- STORAGE --------
	kv := b.kv
	if kv == nil {
		if b.redis != nil {
			kv = storage.NewRedis(b.redis, cfg.Storage.RedisPrefix)
		} else {
			kv = storage.NewMemory()
		}
	}
	if len(cfg.Storage.EncryptionSecret) > 0 {
		enc, err := storage.NewEncrypted(kv, cfg.Storage.EncryptionSecret, cfg.Storage.EncryptionSalt)
		if err != nil {
			return nil, err
		}
		kv = enc
	}

	inspector, err := jwt.NewInspector(jwt.Config{
		VerifyKey: cloneBytes(cfg.Token.VerifyKey),
		Issuer:    cfg.Token.Issuer,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:    cfg,
		logger:    logger,
		transport: b.transport,
		registrar: b.registrar,
		inspector: inspector,
		policy: credential.Policy{
			CountryCode:       strings.TrimSpace(cfg.Credential.CountryCode),
			MinPasswordLength: cfg.Credential.MinPasswordLength,
			OTPLength:         cfg.Credential.OTPLength,
		},
		creds:      credcache.New(cfg.CredentialCache.TTL),
		classifier: devicetrust.NewClassifier(cfg.Trust.VerificationPhrases...),
		metrics:    NewMetrics(cfg.Metrics),
		now:        time.Now,
	}
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	// -------- TOKENS + SESSION --------
	engine.tokens = token.NewManager(token.Config{
		Store:         kv,
		Key:           cfg.Storage.TokenKey,
		Refresher:     token.RefresherFunc(b.transport.Refresh),
		Inspector:     inspector,
		RefreshLeeway: cfg.Token.RefreshLeeway,
		OnExpired:     engine.onTokensExpired,
		OnRefresh:     engine.onRefresh,
		OnShared:      func() { engine.metricInc(MetricRefreshCoalesced) },
		Warn:          engine.warn,
	})
	engine.session = session.NewStore(kv, cfg.Storage.SessionKey, engine.tokens)
	engine.session.SetWarn(engine.warn)

	// -------- BIOMETRIC --------
	if b.keyStore != nil {
		engine.biometric = &biometric.Manager{
			KeyStore: b.keyStore,
			Store:    kv,
			Backend:  b.transport,
			Prompt:   cfg.Biometric.PromptMessage,
			Warn:     engine.warn,
		}
	}

	// -------- PROFILE CACHE --------
	backend := b.profileBackend
	if backend == nil {
		if b.redis != nil {
			backend = profilecache.NewRedisBackend(b.redis)
		} else {
			backend = profilecache.NewMemoryBackend()
		}
	}
	engine.profiles = profilecache.NewSynchronizer(backend, cfg.Profile.Namespace, cfg.Profile.TTL)

	engine.flows = engine.buildFlowDeps()

	b.built = true

	return engine, nil
}
