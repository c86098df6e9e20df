package otp

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrEthical07/goAuthClient/credential"
	"github.com/MrEthical07/goAuthClient/token"
	"github.com/MrEthical07/goAuthClient/transport"
)

var (
	// ErrBusy rejects code edits while a submit is in flight.
	ErrBusy = errors.New("otp: submit in progress")
	// ErrInFlight rejects a submit or resend that would overlap its own kind.
	ErrInFlight = errors.New("otp: request already in flight")
	// ErrDuplicate means this exact code was already submitted. Callers may
	// ignore it.
	ErrDuplicate = errors.New("otp: code already submitted")
	// ErrStale means the attempt moved on (resend or cancel) while the verify
	// call was outstanding. The result was discarded.
	ErrStale = errors.New("otp: result discarded")
	// ErrCooldown rejects a resend while the cooldown timer runs.
	ErrCooldown = errors.New("otp: resend cooldown active")
)

const (
	DefaultDigits         = 6
	DefaultResendCooldown = 60 * time.Second

	msgVerifyFailed = "Verification failed. Please try again."
	msgResendFailed = "Could not resend the code. Please try again."
	msgInvalidCode  = "Enter the full verification code."
)

// Result is what a successful verification yields. Which fields are set
// depends on the flow kind.
type Result struct {
	Tokens     token.Pair
	ResetToken string
}

type Verifier func(ctx context.Context, kind FlowKind, phone, code string) (Result, error)

type Resender func(ctx context.Context, kind FlowKind, phone string) error

type Config struct {
	Digits         int
	ResendCooldown time.Duration
	Now            func() time.Time
}

// Snapshot is a copy of the attempt's visible state.
type Snapshot struct {
	Kind         FlowKind
	Phone        string
	Code         string
	State        State
	Touched      bool
	Error        string
	IsSubmitting bool
	IsResending  bool
	ResendIn     time.Duration
}

type Attempt struct {
	kind   FlowKind
	phone  string
	cfg    Config
	policy credential.Policy
	verify Verifier
	resend Resender

	mu            sync.Mutex
	code          string
	state         State
	touched       bool
	errMsg        string
	submitting    bool
	resending     bool
	lastSubmitted string
	gen           uint64
	resendAfter   time.Time
	cancelled     bool
}

// NewAttempt starts an attempt for a code that was just sent, so the resend
// cooldown begins immediately.
func NewAttempt(kind FlowKind, phone string, cfg Config, verify Verifier, resend Resender) *Attempt {
	if cfg.Digits <= 0 {
		cfg.Digits = DefaultDigits
	}
	if cfg.ResendCooldown <= 0 {
		cfg.ResendCooldown = DefaultResendCooldown
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	policy := credential.DefaultPolicy()
	policy.OTPLength = cfg.Digits

	return &Attempt{
		kind:        kind,
		phone:       phone,
		cfg:         cfg,
		policy:      policy,
		verify:      verify,
		resend:      resend,
		resendAfter: cfg.Now().Add(cfg.ResendCooldown),
	}
}

func (a *Attempt) Kind() FlowKind { return a.kind }

func (a *Attempt) Phone() string { return a.phone }

// UpdateCode replaces the typed code. Non-digits are dropped and the value
// is truncated to the configured length. complete reports whether the code
// is ready for auto-submit.
func (a *Attempt) UpdateCode(v string) (complete bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.submitting {
		return false, ErrBusy
	}

	code := credential.DigitsOnly(v)
	if len(code) > a.cfg.Digits {
		code = code[:a.cfg.Digits]
	}
	a.code = code
	a.touched = true

	if a.state == Failed {
		a.errMsg = ""
	}
	if a.state != Success {
		if len(code) == a.cfg.Digits {
			a.state = Validating
		} else {
			a.state = Idle
		}
	}
	return len(code) == a.cfg.Digits, nil
}

// Submit verifies the current code. The verifier runs without the lock held.
func (a *Attempt) Submit(ctx context.Context) (Result, error) {
	a.mu.Lock()
	if a.cancelled {
		a.mu.Unlock()
		return Result{}, ErrStale
	}
	if a.submitting {
		a.mu.Unlock()
		return Result{}, ErrInFlight
	}
	code := a.code
	if err := a.policy.ValidateOTP(code); err != nil {
		a.errMsg = msgInvalidCode
		a.state = Idle
		a.mu.Unlock()
		return Result{}, err
	}
	if code == a.lastSubmitted {
		a.mu.Unlock()
		return Result{}, ErrDuplicate
	}
	a.submitting = true
	a.lastSubmitted = code
	a.state = Submitting
	a.errMsg = ""
	gen := a.gen
	a.mu.Unlock()

	res, err := a.verify(ctx, a.kind, a.phone, code)

	a.mu.Lock()
	defer a.mu.Unlock()

	if gen != a.gen {
		return Result{}, ErrStale
	}
	a.submitting = false
	if err != nil {
		a.state = Failed
		a.code = ""
		a.lastSubmitted = ""
		a.errMsg = failureMessage(err, msgVerifyFailed)
		return Result{}, err
	}
	a.state = Success
	return res, nil
}

// Resend asks the backend for a new code. It clears the submit latch first
// so a verify that never returns cannot block the next attempt.
func (a *Attempt) Resend(ctx context.Context) error {
	a.mu.Lock()
	if a.cancelled {
		a.mu.Unlock()
		return ErrStale
	}
	if a.resending {
		a.mu.Unlock()
		return ErrInFlight
	}
	if a.cfg.Now().Before(a.resendAfter) {
		a.mu.Unlock()
		return ErrCooldown
	}
	a.resending = true
	a.submitting = false
	a.lastSubmitted = ""
	a.gen++
	if a.state == Submitting {
		a.state = Idle
	}
	gen := a.gen
	a.mu.Unlock()

	err := a.resend(ctx, a.kind, a.phone)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.resending = false
	if a.cancelled {
		return ErrStale
	}
	if err != nil {
		a.errMsg = failureMessage(err, msgResendFailed)
		return err
	}
	a.resendAfter = a.cfg.Now().Add(a.cfg.ResendCooldown)
	if gen == a.gen {
		a.code = ""
		if a.state != Success && a.state != Failed {
			a.state = Idle
		}
	}
	return nil
}

// Cancel marks the attempt as abandoned. Results still in flight become inert.
func (a *Attempt) Cancel() {
	a.mu.Lock()
	a.cancelled = true
	a.gen++
	a.submitting = false
	a.mu.Unlock()
}

func (a *Attempt) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	var wait time.Duration
	if d := a.resendAfter.Sub(a.cfg.Now()); d > 0 {
		wait = d
	}
	return Snapshot{
		Kind:         a.kind,
		Phone:        a.phone,
		Code:         a.code,
		State:        a.state,
		Touched:      a.touched,
		Error:        a.errMsg,
		IsSubmitting: a.submitting,
		IsResending:  a.resending,
		ResendIn:     wait,
	}
}

func failureMessage(err error, fallback string) string {
	if msg := transport.MessageOf(err); msg != "" {
		return msg
	}
	return fallback
}
