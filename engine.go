package goAuthClient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goAuthClient/biometric"
	"github.com/MrEthical07/goAuthClient/credcache"
	"github.com/MrEthical07/goAuthClient/credential"
	"github.com/MrEthical07/goAuthClient/devicetrust"
	internalaudit "github.com/MrEthical07/goAuthClient/internal/audit"
	"github.com/MrEthical07/goAuthClient/internal/flows"
	"github.com/MrEthical07/goAuthClient/jwt"
	"github.com/MrEthical07/goAuthClient/profilecache"
	"github.com/MrEthical07/goAuthClient/session"
	"github.com/MrEthical07/goAuthClient/token"
	"github.com/MrEthical07/goAuthClient/transport"
)

// Engine is the session facade. All methods are safe for concurrent use
// once Init has returned.
type Engine struct {
	config     Config
	logger     *slog.Logger
	transport  transport.Auth
	registrar  transport.DeviceRegistrar
	inspector  *jwt.Inspector
	policy     credential.Policy
	tokens     *token.Manager
	session    *session.Store
	creds      *credcache.Cache
	classifier *devicetrust.Classifier
	biometric  *biometric.Manager
	profiles   *profilecache.Synchronizer
	audit      *internalaudit.Dispatcher
	metrics    *Metrics
	flows      flows.Deps
	now        func() time.Time

	ready atomic.Bool
	// bg tracks post-login work (device registration, profile warm).
	bg sync.WaitGroup
}

// Init restores tokens and the session record from storage and leaves the
// session Authenticated or Unauthenticated. Storage errors are logged; the
// Engine still becomes ready with whatever could be restored.
func (e *Engine) Init(ctx context.Context) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := e.tokens.Load(ctx); err != nil {
		e.warn("goAuthClient: loading tokens failed", "error", err)
	}
	if err := e.session.Hydrate(ctx); err != nil {
		e.warn("goAuthClient: loading session failed", "error", err)
	}
	e.ready.Store(true)
	return nil
}

// Close waits for background post-login work and drains the audit queue.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.bg.Wait()
	if e.audit != nil {
		_ = e.audit.Close(context.Background())
	}
}

func (e *Engine) Snapshot() SessionSnapshot {
	return e.session.Snapshot()
}

// Subscribe registers fn for every session transition. fn runs
// synchronously on the goroutine that caused the transition and must not
// call back into the Engine.
func (e *Engine) Subscribe(fn func(SessionSnapshot)) (unsubscribe func()) {
	return e.session.Subscribe(fn)
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) warn(msg string, args ...any) {
	if e == nil || e.logger == nil {
		return
	}
	e.logger.Warn(msg, args...)
}

func (e *Engine) ensureReady() error {
	if e == nil || !e.ready.Load() {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) buildFlowDeps() flows.Deps {
	inc := func(id int) { e.metricInc(MetricID(id)) }
	return flows.Deps{
		Login: flows.LoginDeps{
			Classify:  e.classifier.Classify,
			Now:       e.now,
			MetricInc: inc,
			Observe: func(id int, d time.Duration) {
				e.metrics.Observe(MetricID(id), d)
			},
			EmitAudit: e.emitAudit,
			Metrics: flows.LoginMetrics{
				Success:    int(MetricLoginSuccess),
				NewDevice:  int(MetricLoginNewDevice),
				Unverified: int(MetricLoginUnverified),
				Failure:    int(MetricLoginFailure),
				Latency:    int(MetricLoginLatency),
			},
			Events: flows.LoginEvents{
				Success:    auditLogin,
				NewDevice:  auditLoginNewDevice,
				Unverified: auditLoginUnverified,
				Failure:    auditLoginFailure,
			},
		},
		Verify: flows.VerifyDeps{
			Call:              e.transport.VerifyOTP,
			ConsumeCredential: e.creds.Consume,
			ReplayLogin: func(ctx context.Context, phone, password string) (devicetrust.Classification, error) {
				res, err := e.login(ctx, phone, password)
				return res.Classification, err
			},
			MetricInc: inc,
			EmitAudit: e.emitAudit,
			Warn:      e.warn,
			Metrics: flows.VerifyMetrics{
				Success: int(MetricOTPVerifySuccess),
				Failure: int(MetricOTPVerifyFailure),
				Replay:  int(MetricCredentialReplay),
			},
			Events: flows.VerifyEvents{
				Verify: auditOTPVerify,
				Replay: auditCredentialReplay,
			},
		},
		Logout: flows.LogoutDeps{
			Teardown:     e.teardown,
			Backend:      e.transport.Logout,
			Timeout:      e.config.Logout.Timeout,
			Warn:         e.warn,
			MetricInc:    inc,
			EmitAudit:    e.emitAudit,
			MetricLogout: int(MetricLogout),
			EventLogout:  auditLogout,
		},
	}
}

/*
====================================
LOGIN
====================================
*/

// Login validates the input, calls the backend and classifies the answer.
// Only an AUTHENTICATED answer authenticates the session. A NEW_DEVICE
// answer caches the credentials for one replay after device verification.
// The returned classification tells the caller where to route; the error
// is non-nil only for FAILED.
func (e *Engine) Login(ctx context.Context, phone, password string) (LoginResult, error) {
	if err := e.ensureReady(); err != nil {
		return LoginResult{}, err
	}
	canonical, err := e.policy.NormalizePhone(phone)
	if err != nil {
		return LoginResult{}, err
	}
	if err := e.policy.ValidatePassword(password); err != nil {
		return LoginResult{}, err
	}
	return e.login(ctx, canonical, password)
}

func (e *Engine) login(ctx context.Context, phone, password string) (LoginResult, error) {
	if err := e.session.BeginLogin(); err != nil {
		return LoginResult{}, err
	}
	res := flows.RunLogin(ctx, phone, "password", func(ctx context.Context) (transport.LoginResponse, error) {
		return e.transport.Login(ctx, phone, password)
	}, e.flows.Login)

	if res.Classification == devicetrust.NewDevice {
		e.creds.Set(credcache.Entry{Phone: phone, Password: password})
	}
	return e.applyLogin(ctx, phone, res)
}

// applyLogin moves the session according to a classified login answer.
func (e *Engine) applyLogin(ctx context.Context, phone string, res flows.LoginResult) (LoginResult, error) {
	resp := res.Response

	switch res.Classification {
	case devicetrust.Authenticated:
		user := e.userFromLogin(phone, resp)
		pair := token.Pair{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}
		if err := e.session.CompleteVerification(ctx, &user, pair); err != nil {
			e.session.FailLogin("")
			return LoginResult{Classification: devicetrust.Failed}, err
		}
		e.afterAuthenticated(ctx, user, pair.AccessToken)
		out := user
		return LoginResult{Classification: devicetrust.Authenticated, User: &out}, nil

	case devicetrust.NewDevice:
		msg := userMessage(nil, resp.Message, msgNewDevice)
		e.session.FinishUnauthenticated(msg)
		return LoginResult{Classification: devicetrust.NewDevice, Message: msg}, nil

	case devicetrust.Unverified:
		msg := userMessage(nil, resp.Message, msgUnverified)
		e.session.FinishUnauthenticated(msg)
		return LoginResult{Classification: devicetrust.Unverified, Message: msg}, nil
	}

	var (
		err      error
		fallback = msgAmbiguous
	)
	switch {
	case res.Err != nil:
		err = mapTransportError(res.Err)
		if errors.Is(err, ErrAuthRejected) {
			fallback = msgLoginRejected
		}
	case resp.Failed:
		err = ErrAuthRejected
		fallback = msgLoginRejected
	default:
		err = ErrClassificationAmbiguous
	}
	msg := userMessage(res.Err, resp.Message, fallback)
	e.session.FailLogin(msg)
	return LoginResult{Classification: devicetrust.Failed, Message: msg}, err
}

// userFromLogin prefers the user object in the response, then the access
// token claims. An authenticated login implies a verified account.
func (e *Engine) userFromLogin(phone string, resp transport.LoginResponse) User {
	var u User
	if resp.User != nil {
		u = User{
			ID:          resp.User.ID,
			Phone:       resp.User.Phone,
			Name:        resp.User.Name,
			AccountKind: resp.User.AccountKind,
		}
	}
	if u.ID == "" || u.Phone == "" {
		if claims, err := e.inspector.Inspect(resp.AccessToken); err == nil {
			if u.ID == "" {
				u.ID = claims.Subject
			}
			if u.Phone == "" {
				u.Phone = claims.Phone
			}
		}
	}
	if u.Phone == "" {
		u.Phone = phone
	} else if canonical, err := e.policy.NormalizePhone(u.Phone); err == nil {
		u.Phone = canonical
	}
	if u.ID == "" {
		u.ID = u.Phone
	}
	u.Verified = true
	return u
}

// afterAuthenticated starts device registration and profile warm-up. Both
// are best-effort and outlive ctx.
func (e *Engine) afterAuthenticated(ctx context.Context, user User, accessToken string) {
	registrar := e.registrar
	if !e.config.Device.RegisterOnLogin {
		registrar = nil
	}
	warm := e.config.Profile.WarmOnLogin
	if registrar == nil && !warm {
		return
	}

	gen := e.profiles.Generation()
	bgCtx := context.WithoutCancel(ctx)
	e.bg.Add(1)
	go func() {
		defer e.bg.Done()
		if registrar != nil {
			if err := registrar.RegisterDevice(bgCtx, transportUser(user)); err != nil {
				e.warn("goAuthClient: device registration failed", "error", err)
			}
		}
		if !warm || !e.session.Snapshot().IsAuthenticated {
			return
		}
		if _, err := e.warmProfile(bgCtx, gen, user.ID, accessToken); err != nil && !errors.Is(err, profilecache.ErrPurged) {
			e.warn("goAuthClient: profile warm-up failed", "error", err)
		}
	}()
}

func transportUser(u User) transport.User {
	return transport.User{
		ID:          u.ID,
		Phone:       u.Phone,
		Name:        u.Name,
		AccountKind: u.AccountKind,
		Verified:    u.Verified,
	}
}

// Register creates an account. It never authenticates; the account is
// verified through FlowRegister and the user then logs in.
func (e *Engine) Register(ctx context.Context, in RegisterInput) error {
	if err := e.ensureReady(); err != nil {
		return err
	}
	canonical, err := e.policy.NormalizePhone(in.Phone)
	if err != nil {
		return err
	}
	if err := e.policy.ValidatePassword(in.Password); err != nil {
		return err
	}

	err = e.transport.Register(ctx, transport.RegisterRequest{
		Phone:    canonical,
		Password: in.Password,
		Name:     in.Name,
	})
	e.emitAudit(ctx, auditRegister, err == nil, "", canonical, err, nil)
	return mapTransportError(err)
}

// CompleteVerification authenticates the session with tokens obtained
// outside Login, for example from a host-driven flow.
func (e *Engine) CompleteVerification(ctx context.Context, pair TokenPair, user *User) error {
	if err := e.ensureReady(); err != nil {
		return err
	}
	if err := e.session.CompleteVerification(ctx, user, pair); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if snap := e.session.Snapshot(); snap.User != nil {
		e.afterAuthenticated(ctx, *snap.User, pair.AccessToken)
	}
	return nil
}

/*
====================================
TOKENS
====================================
*/

// Refresh renews the access token. Concurrent callers share one backend
// call. A refused refresh token tears the session down and returns
// ErrTokenExpired.
func (e *Engine) Refresh(ctx context.Context) (string, error) {
	if err := e.ensureReady(); err != nil {
		return "", err
	}
	if !e.session.Snapshot().IsAuthenticated {
		return "", ErrNotAuthenticated
	}
	access, err := e.tokens.Refresh(ctx)
	return access, mapTokenError(err)
}

// AccessToken returns a usable access token, refreshing first when the
// held token is about to expire.
func (e *Engine) AccessToken(ctx context.Context) (string, error) {
	if err := e.ensureReady(); err != nil {
		return "", err
	}
	if !e.session.Snapshot().IsAuthenticated {
		return "", ErrNotAuthenticated
	}
	access, err := e.tokens.Valid(ctx)
	return access, mapTokenError(err)
}

func mapTokenError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, token.ErrNoAccessToken):
		return ErrNotAuthenticated
	case errors.Is(err, token.ErrRefreshRejected), errors.Is(err, token.ErrNoRefreshToken):
		return fmt.Errorf("%w: %w", ErrTokenExpired, err)
	default:
		return mapTransportError(err)
	}
}

func (e *Engine) onRefresh(err error, took time.Duration) {
	e.metrics.Observe(MetricRefreshLatency, took)
	if err == nil {
		e.metricInc(MetricRefreshSuccess)
		e.session.TokensRotated()
		return
	}
	e.metricInc(MetricRefreshFailure)
	if errors.Is(err, token.ErrRefreshRejected) {
		e.emitAudit(context.Background(), auditRefreshRejected, false, e.userID(), "", err, nil)
	}
}

// onTokensExpired runs after the token manager discarded a refused pair.
func (e *Engine) onTokensExpired(ctx context.Context) {
	e.ForceExpire(ctx)
}

func (e *Engine) userID() string {
	if snap := e.session.Snapshot(); snap.User != nil {
		return snap.User.ID
	}
	return ""
}

/*
====================================
LOGOUT
====================================
*/

// Logout clears all local state first, then tells the backend. The backend
// call is bounded by Config.Logout.Timeout and its failure is only logged;
// Logout returns an error only when the Engine is not ready.
func (e *Engine) Logout(ctx context.Context) error {
	if err := e.ensureReady(); err != nil {
		return err
	}
	snap := e.session.Snapshot()
	var userID string
	if snap.User != nil {
		userID = snap.User.ID
	}
	flows.RunLogout(ctx, snap.AccessToken, userID, e.flows.Logout)
	return nil
}

// ForceExpire ends the session locally with an expiry message. No backend
// call is made.
func (e *Engine) ForceExpire(ctx context.Context) {
	userID := e.userID()
	e.creds.Clear()
	if err := e.session.ForceExpire(ctx); err != nil {
		e.warn("goAuthClient: clearing expired session failed", "error", err)
	}
	if err := e.profiles.Purge(ctx); err != nil {
		e.warn("goAuthClient: purging profile cache failed", "error", err)
	}
	e.metricInc(MetricForcedExpiry)
	e.emitAudit(ctx, auditSessionExpired, true, userID, "", nil, nil)
}

// teardown clears every piece of local state. Each step runs even when an
// earlier one fails.
func (e *Engine) teardown(ctx context.Context) error {
	e.creds.Clear()
	var errs []error
	if err := e.session.Logout(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := e.profiles.Purge(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
