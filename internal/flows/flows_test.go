package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goAuthClient/credcache"
	"github.com/MrEthical07/goAuthClient/devicetrust"
	"github.com/MrEthical07/goAuthClient/otp"
	"github.com/MrEthical07/goAuthClient/transport"
)

type counter map[int]int

func (c counter) inc(id int) { c[id]++ }

func testLoginDeps(c counter, events *[]string) LoginDeps {
	return LoginDeps{
		MetricInc: c.inc,
		EmitAudit: func(_ context.Context, event string, _ bool, _, _ string, _ error, _ func() map[string]string) {
			*events = append(*events, event)
		},
		Metrics: LoginMetrics{Success: 1, NewDevice: 2, Unverified: 3, Failure: 4, Latency: 5},
		Events:  LoginEvents{Success: "login_success", NewDevice: "login_new_device", Unverified: "login_unverified", Failure: "login_failure"},
	}
}

func TestRunLoginClassifies(t *testing.T) {
	tests := []struct {
		name   string
		resp   transport.LoginResponse
		err    error
		want   devicetrust.Classification
		metric int
		event  string
	}{
		{
			name:   "authenticated",
			resp:   transport.LoginResponse{AccessToken: "a", RefreshToken: "r", Raw: []byte(`{"access_token":"a"}`)},
			want:   devicetrust.Authenticated,
			metric: 1,
			event:  "login_success",
		},
		{
			name:   "new device flag",
			resp:   transport.LoginResponse{Raw: []byte(`{"data":{"is_new_device":true}}`)},
			want:   devicetrust.NewDevice,
			metric: 2,
			event:  "login_new_device",
		},
		{
			name:   "unverified beats token",
			resp:   transport.LoginResponse{AccessToken: "a", Raw: []byte(`{"user":{"is_verified":false}}`)},
			want:   devicetrust.Unverified,
			metric: 3,
			event:  "login_unverified",
		},
		{
			name:   "transport error",
			err:    transport.ErrNetwork,
			want:   devicetrust.Failed,
			metric: 4,
			event:  "login_failure",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := counter{}
			var events []string
			res := RunLogin(context.Background(), "84987654321", "password", func(context.Context) (transport.LoginResponse, error) {
				return tc.resp, tc.err
			}, testLoginDeps(c, &events))

			if res.Classification != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, res.Classification)
			}
			if !errors.Is(res.Err, tc.err) {
				t.Fatalf("expected err %v, got %v", tc.err, res.Err)
			}
			if c[tc.metric] != 1 {
				t.Fatalf("expected metric %d incremented, got %v", tc.metric, c)
			}
			if len(events) != 1 || events[0] != tc.event {
				t.Fatalf("expected event %q, got %v", tc.event, events)
			}
		})
	}
}

func TestRunLoginObservesLatency(t *testing.T) {
	now := time.Unix(1000, 0)
	var observed time.Duration
	deps := LoginDeps{
		Now: func() time.Time { return now },
		Observe: func(id int, d time.Duration) {
			if id == 9 {
				observed = d
			}
		},
		Metrics: LoginMetrics{Latency: 9},
	}
	RunLogin(context.Background(), "p", "password", func(context.Context) (transport.LoginResponse, error) {
		now = now.Add(250 * time.Millisecond)
		return transport.LoginResponse{}, nil
	}, deps)

	if observed != 250*time.Millisecond {
		t.Fatalf("expected 250ms latency, got %v", observed)
	}
}

func verifyCall(resp transport.VerifyResponse, err error, calls *int) func(context.Context, string, string, string) (transport.VerifyResponse, error) {
	return func(_ context.Context, flow, _, _ string) (transport.VerifyResponse, error) {
		*calls++
		return resp, err
	}
}

func TestRunVerifyOTPNewDeviceReplaysCachedLogin(t *testing.T) {
	cache := credcache.New(time.Minute)
	cache.Set(credcache.Entry{Phone: "84987654321", Password: "P@ssw0rd"})

	var calls int
	var replayedWith string
	c := counter{}
	res := RunVerifyOTP(context.Background(), otp.FlowNewDevice, "84987654321", "123456", VerifyDeps{
		Call:              verifyCall(transport.VerifyResponse{AccessToken: "ignored"}, nil, &calls),
		ConsumeCredential: cache.Consume,
		ReplayLogin: func(_ context.Context, phone, password string) (devicetrust.Classification, error) {
			replayedWith = phone + "/" + password
			return devicetrust.Authenticated, nil
		},
		MetricInc: c.inc,
		Metrics:   VerifyMetrics{Success: 1, Failure: 2, Replay: 3},
	})

	if res.Err != nil || !res.Replayed || res.Classification != devicetrust.Authenticated {
		t.Fatalf("unexpected result %+v", res)
	}
	if replayedWith != "84987654321/P@ssw0rd" {
		t.Fatalf("unexpected replay credentials %q", replayedWith)
	}
	if c[1] != 1 || c[3] != 1 {
		t.Fatalf("unexpected metrics %v", c)
	}
	if _, ok := cache.Consume(); ok {
		t.Fatal("expected cache to be consumed")
	}
}

func TestRunVerifyOTPNewDeviceWithoutCacheDoesNotReplay(t *testing.T) {
	var calls int
	res := RunVerifyOTP(context.Background(), otp.FlowNewDevice, "84987654321", "123456", VerifyDeps{
		Call:              verifyCall(transport.VerifyResponse{}, nil, &calls),
		ConsumeCredential: func() (credcache.Entry, bool) { return credcache.Entry{}, false },
		ReplayLogin: func(context.Context, string, string) (devicetrust.Classification, error) {
			t.Fatal("replay must not run without cached credentials")
			return devicetrust.Failed, nil
		},
	})
	if res.Err != nil || res.Replayed {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunVerifyOTPNewDeviceSkipsForeignPhone(t *testing.T) {
	var calls int
	var warned bool
	res := RunVerifyOTP(context.Background(), otp.FlowNewDevice, "84911111111", "123456", VerifyDeps{
		Call: verifyCall(transport.VerifyResponse{}, nil, &calls),
		ConsumeCredential: func() (credcache.Entry, bool) {
			return credcache.Entry{Phone: "84987654321", Password: "x"}, true
		},
		ReplayLogin: func(context.Context, string, string) (devicetrust.Classification, error) {
			t.Fatal("replay must not run for another phone")
			return devicetrust.Failed, nil
		},
		Warn: func(string, ...any) { warned = true },
	})
	if res.Replayed || !warned {
		t.Fatalf("expected skipped replay with warning, got %+v warned=%v", res, warned)
	}
}

func TestRunVerifyOTPForgotPasswordSurfacesResetToken(t *testing.T) {
	var calls int
	res := RunVerifyOTP(context.Background(), otp.FlowForgotPassword, "84987654321", "123456", VerifyDeps{
		Call: verifyCall(transport.VerifyResponse{ResetToken: "reset-1"}, nil, &calls),
	})
	if res.ResetToken != "reset-1" {
		t.Fatalf("expected reset token, got %+v", res)
	}
}

func TestRunVerifyOTPRegisterHasNoSideEffects(t *testing.T) {
	var calls int
	res := RunVerifyOTP(context.Background(), otp.FlowRegister, "84987654321", "123456", VerifyDeps{
		Call: verifyCall(transport.VerifyResponse{AccessToken: "a", ResetToken: "r"}, nil, &calls),
		ConsumeCredential: func() (credcache.Entry, bool) {
			t.Fatal("register must not touch the credential cache")
			return credcache.Entry{}, false
		},
	})
	if res.Replayed || res.ResetToken != "" {
		t.Fatalf("unexpected side effects %+v", res)
	}
}

func TestRunVerifyOTPFailure(t *testing.T) {
	var calls int
	c := counter{}
	res := RunVerifyOTP(context.Background(), otp.FlowGeneric, "84987654321", "000000", VerifyDeps{
		Call:      verifyCall(transport.VerifyResponse{}, transport.ErrRejected, &calls),
		MetricInc: c.inc,
		Metrics:   VerifyMetrics{Success: 1, Failure: 2},
	})
	if !errors.Is(res.Err, transport.ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", res.Err)
	}
	if c[2] != 1 || c[1] != 0 {
		t.Fatalf("unexpected metrics %v", c)
	}
}

func TestRunLogoutTeardownBeforeBackend(t *testing.T) {
	var order []string
	RunLogout(context.Background(), "access", "u1", LogoutDeps{
		Teardown: func(context.Context) error {
			order = append(order, "teardown")
			return nil
		},
		Backend: func(_ context.Context, token string) error {
			order = append(order, "backend:"+token)
			return errors.New("offline")
		},
		Timeout: time.Second,
	})
	if len(order) != 2 || order[0] != "teardown" || order[1] != "backend:access" {
		t.Fatalf("unexpected order %v", order)
	}
}

func TestRunLogoutBackendSurvivesCancelledCaller(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var backendErr error
	RunLogout(ctx, "access", "", LogoutDeps{
		Backend: func(ctx context.Context, _ string) error {
			backendErr = ctx.Err()
			return nil
		},
		Timeout: time.Second,
	})
	if backendErr != nil {
		t.Fatalf("expected backend context to be live, got %v", backendErr)
	}
}

func TestRunLogoutSkipsBackendWithoutToken(t *testing.T) {
	RunLogout(context.Background(), "", "", LogoutDeps{
		Backend: func(context.Context, string) error {
			t.Fatal("backend must not be called without an access token")
			return nil
		},
	})
}
