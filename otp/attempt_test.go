package otp

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goAuthClient/credential"
	"github.com/MrEthical07/goAuthClient/token"
	"github.com/MrEthical07/goAuthClient/transport"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestAttempt(t *testing.T, kind FlowKind, verify Verifier, resend Resender) (*Attempt, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	if verify == nil {
		verify = func(context.Context, FlowKind, string, string) (Result, error) { return Result{}, nil }
	}
	if resend == nil {
		resend = func(context.Context, FlowKind, string) error { return nil }
	}
	a := NewAttempt(kind, "84987654321", Config{ResendCooldown: 30 * time.Second, Now: clock.Now}, verify, resend)
	return a, clock
}

func TestUpdateCodeSanitizesAndReportsComplete(t *testing.T) {
	a, _ := newTestAttempt(t, FlowGeneric, nil, nil)

	complete, err := a.UpdateCode("12 3-4")
	if err != nil || complete {
		t.Fatalf("expected incomplete code, complete=%v err=%v", complete, err)
	}
	if snap := a.Snapshot(); snap.Code != "1234" || !snap.Touched || snap.State != Idle {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	complete, err = a.UpdateCode("12345678")
	if err != nil || !complete {
		t.Fatalf("expected complete code, complete=%v err=%v", complete, err)
	}
	if snap := a.Snapshot(); snap.Code != "123456" || snap.State != Validating {
		t.Fatalf("expected truncated validating code, got %+v", snap)
	}
}

func TestSubmitRejectsBadShapeWithoutCall(t *testing.T) {
	var calls int32
	a, _ := newTestAttempt(t, FlowGeneric, func(context.Context, FlowKind, string, string) (Result, error) {
		atomic.AddInt32(&calls, 1)
		return Result{}, nil
	}, nil)

	_, _ = a.UpdateCode("123")
	_, err := a.Submit(context.Background())
	if !errors.Is(err, credential.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatal("verifier must not be called for a malformed code")
	}
	if a.Snapshot().Error == "" {
		t.Fatal("expected validation message on the attempt")
	}
}

func TestSubmitSuccessReturnsResult(t *testing.T) {
	a, _ := newTestAttempt(t, FlowForgotPassword, func(_ context.Context, kind FlowKind, phone, code string) (Result, error) {
		if kind != FlowForgotPassword || phone != "84987654321" || code != "123456" {
			t.Errorf("unexpected verifier args %v %q %q", kind, phone, code)
		}
		return Result{ResetToken: "reset-1"}, nil
	}, nil)

	_, _ = a.UpdateCode("123456")
	res, err := a.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.ResetToken != "reset-1" {
		t.Fatalf("expected reset token, got %+v", res)
	}
	if snap := a.Snapshot(); snap.State != Success || snap.IsSubmitting {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestDuplicateSubmitCallsVerifierOnce(t *testing.T) {
	release := make(chan struct{})
	var calls int32
	a, _ := newTestAttempt(t, FlowNewDevice, func(context.Context, FlowKind, string, string) (Result, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return Result{}, nil
	}, nil)

	_, _ = a.UpdateCode("654321")

	done := make(chan error, 1)
	go func() {
		_, err := a.Submit(context.Background())
		done <- err
	}()

	deadline := time.Now().Add(time.Second)
	for !a.Snapshot().IsSubmitting {
		if time.Now().After(deadline) {
			t.Fatal("submit never started")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := a.Submit(context.Background()); !errors.Is(err, ErrInFlight) {
		t.Fatalf("expected ErrInFlight for overlapping submit, got %v", err)
	}
	if _, err := a.UpdateCode("111111"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy while submitting, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := a.Submit(context.Background()); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for same code, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected one verifier call, got %d", n)
	}
}

func TestSubmitFailureClearsCodeAndRecordsMessage(t *testing.T) {
	a, _ := newTestAttempt(t, FlowRegister, func(context.Context, FlowKind, string, string) (Result, error) {
		return Result{}, &transport.Error{Op: "verify", Status: 400, Message: "Code is incorrect", Err: transport.ErrRejected}
	}, nil)

	_, _ = a.UpdateCode("000000")
	if _, err := a.Submit(context.Background()); !errors.Is(err, transport.ErrRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
	snap := a.Snapshot()
	if snap.State != Failed || snap.Code != "" || snap.Error != "Code is incorrect" {
		t.Fatalf("unexpected snapshot after failure %+v", snap)
	}

	_, _ = a.UpdateCode("1")
	snap = a.Snapshot()
	if snap.State != Idle || snap.Error != "" {
		t.Fatalf("typing after failure must clear the error, got %+v", snap)
	}
}

func TestResendCooldown(t *testing.T) {
	var resends int32
	a, clock := newTestAttempt(t, FlowGeneric, nil, func(context.Context, FlowKind, string) error {
		atomic.AddInt32(&resends, 1)
		return nil
	})

	if err := a.Resend(context.Background()); !errors.Is(err, ErrCooldown) {
		t.Fatalf("expected cooldown right after creation, got %v", err)
	}
	if snap := a.Snapshot(); snap.ResendIn != 30*time.Second {
		t.Fatalf("expected 30s remaining, got %v", snap.ResendIn)
	}

	clock.Advance(31 * time.Second)
	_, _ = a.UpdateCode("12")
	if err := a.Resend(context.Background()); err != nil {
		t.Fatalf("Resend: %v", err)
	}
	snap := a.Snapshot()
	if snap.Code != "" || snap.ResendIn != 30*time.Second {
		t.Fatalf("resend must clear the code and restart the timer, got %+v", snap)
	}
	if err := a.Resend(context.Background()); !errors.Is(err, ErrCooldown) {
		t.Fatalf("expected cooldown after resend, got %v", err)
	}
	if atomic.LoadInt32(&resends) != 1 {
		t.Fatalf("expected one resend call, got %d", resends)
	}
}

func TestResendKeepsErrorState(t *testing.T) {
	a, clock := newTestAttempt(t, FlowGeneric, func(context.Context, FlowKind, string, string) (Result, error) {
		return Result{}, transport.ErrUnauthorized
	}, nil)

	_, _ = a.UpdateCode("123456")
	_, _ = a.Submit(context.Background())
	clock.Advance(time.Minute)
	if err := a.Resend(context.Background()); err != nil {
		t.Fatalf("Resend: %v", err)
	}
	if snap := a.Snapshot(); snap.Error == "" {
		t.Fatal("resend must not clear the error")
	}
}

func TestResendDuringSubmitMakesVerifyResultStale(t *testing.T) {
	release := make(chan struct{})
	a, clock := newTestAttempt(t, FlowNewDevice, func(context.Context, FlowKind, string, string) (Result, error) {
		<-release
		return Result{Tokens: token.Pair{AccessToken: "late"}}, nil
	}, nil)
	clock.Advance(time.Minute)

	_, _ = a.UpdateCode("123456")
	done := make(chan error, 1)
	go func() {
		_, err := a.Submit(context.Background())
		done <- err
	}()
	deadline := time.Now().Add(time.Second)
	for !a.Snapshot().IsSubmitting {
		if time.Now().After(deadline) {
			t.Fatal("submit never started")
		}
		time.Sleep(time.Millisecond)
	}

	if err := a.Resend(context.Background()); err != nil {
		t.Fatalf("Resend: %v", err)
	}
	if a.Snapshot().IsSubmitting {
		t.Fatal("resend must clear the submit latch")
	}

	_, _ = a.UpdateCode("123456")
	close(release)
	if err := <-done; !errors.Is(err, ErrStale) {
		t.Fatalf("expected stale verify result, got %v", err)
	}
	if snap := a.Snapshot(); snap.State == Success {
		t.Fatal("stale result must not move the attempt to success")
	}
}

func TestCancelMakesAttemptInert(t *testing.T) {
	a, _ := newTestAttempt(t, FlowGeneric, nil, nil)
	a.Cancel()
	_, _ = a.UpdateCode("123456")
	if _, err := a.Submit(context.Background()); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale after cancel, got %v", err)
	}
}

func TestParseFlowKind(t *testing.T) {
	for _, k := range []FlowKind{FlowRegister, FlowNewDevice, FlowForgotPassword, FlowGeneric} {
		got, err := ParseFlowKind(k.String())
		if err != nil || got != k {
			t.Fatalf("ParseFlowKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseFlowKind("sms"); err == nil {
		t.Fatal("expected error for unknown flow")
	}
}
