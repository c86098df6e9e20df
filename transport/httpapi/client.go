// Package httpapi implements transport.Auth as JSON over HTTP.
//
// Responses may be flat or wrapped in a {"success","message","data"}
// envelope; fields are looked up in both places. Error bodies are reduced to
// their message before leaving the package.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/MrEthical07/goAuthClient/transport"
)

const (
	maxBodyBytes   = 1 << 20
	defaultTimeout = 15 * time.Second

	headerRequestID = "X-Request-ID"
	headerDeviceID  = "X-Device-ID"
)

// Paths are the endpoint paths relative to BaseURL.
type Paths struct {
	Login           string
	Register        string
	VerifyOTP       string
	ResendOTP       string
	Refresh         string
	Logout          string
	EnrollBiometric string
	BiometricLogin  string
	Profile         string
	Devices         string
}

func DefaultPaths() Paths {
	return Paths{
		Login:           "/auth/login",
		Register:        "/auth/register",
		VerifyOTP:       "/auth/otp/verify",
		ResendOTP:       "/auth/otp/resend",
		Refresh:         "/auth/refresh",
		Logout:          "/auth/logout",
		EnrollBiometric: "/auth/biometric",
		BiometricLogin:  "/auth/biometric/login",
		Profile:         "/me",
		Devices:         "/devices",
	}
}

// Client is safe for concurrent use once configured.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Paths      Paths
	// DeviceID, when set, is sent on every request.
	DeviceID string
	// Tokens supplies the bearer for RegisterDevice.
	Tokens func() string
}

// New returns a client with default paths and timeout.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: defaultTimeout},
		Paths:      DefaultPaths(),
	}
}

var (
	_ transport.Auth            = (*Client)(nil)
	_ transport.DeviceRegistrar = (*Client)(nil)
)

func (c *Client) Login(ctx context.Context, phone, password string) (transport.LoginResponse, error) {
	body, err := c.do(ctx, "login", http.MethodPost, c.Paths.Login, "", map[string]string{
		"phone":    phone,
		"password": password,
	})
	if err != nil {
		return transport.LoginResponse{}, err
	}
	return parseLogin(body), nil
}

func (c *Client) Register(ctx context.Context, req transport.RegisterRequest) error {
	body, err := c.do(ctx, "register", http.MethodPost, c.Paths.Register, "", map[string]string{
		"phone":    req.Phone,
		"password": req.Password,
		"name":     req.Name,
	})
	if err != nil {
		return err
	}
	return rejectedIfFlagged("register", body)
}

func (c *Client) VerifyOTP(ctx context.Context, flowKind, phone, code string) (transport.VerifyResponse, error) {
	body, err := c.do(ctx, "verify otp", http.MethodPost, c.Paths.VerifyOTP, "", map[string]string{
		"flow":  flowKind,
		"phone": phone,
		"code":  code,
	})
	if err != nil {
		return transport.VerifyResponse{}, err
	}
	if err := rejectedIfFlagged("verify otp", body); err != nil {
		return transport.VerifyResponse{}, err
	}
	return transport.VerifyResponse{
		Message:      message(body),
		AccessToken:  field(body, "access_token", "accessToken"),
		RefreshToken: field(body, "refresh_token", "refreshToken"),
		ResetToken:   field(body, "reset_token", "resetToken"),
	}, nil
}

func (c *Client) ResendOTP(ctx context.Context, flowKind, phone string) error {
	body, err := c.do(ctx, "resend otp", http.MethodPost, c.Paths.ResendOTP, "", map[string]string{
		"flow":  flowKind,
		"phone": phone,
	})
	if err != nil {
		return err
	}
	return rejectedIfFlagged("resend otp", body)
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	body, err := c.do(ctx, "refresh", http.MethodPost, c.Paths.Refresh, "", map[string]string{
		"refresh_token": refreshToken,
	})
	if err != nil {
		return "", err
	}
	// Only a 401 proves the refresh token dead; any other failed answer
	// leaves the pair in place.
	if err := rejectedIfFlagged("refresh", body); err != nil {
		return "", err
	}
	access := field(body, "access_token", "accessToken")
	if access == "" {
		return "", &transport.Error{Op: "refresh", Message: message(body), Err: fmt.Errorf("%w: malformed body", transport.ErrRejected)}
	}
	return access, nil
}

func (c *Client) Logout(ctx context.Context, accessToken string) error {
	_, err := c.do(ctx, "logout", http.MethodPost, c.Paths.Logout, accessToken, nil)
	return err
}

func (c *Client) EnrollBiometric(ctx context.Context, accessToken, publicKey, password string) error {
	body, err := c.do(ctx, "enroll biometric", http.MethodPatch, c.Paths.EnrollBiometric, accessToken, map[string]string{
		"public_key": publicKey,
		"password":   password,
	})
	if err != nil {
		return err
	}
	return rejectedIfFlagged("enroll biometric", body)
}

func (c *Client) BiometricLogin(ctx context.Context, req transport.BiometricLoginRequest) (transport.LoginResponse, error) {
	body, err := c.do(ctx, "biometric login", http.MethodPost, c.Paths.BiometricLogin, "", map[string]string{
		"phone":        req.Phone,
		"payload":      req.Payload,
		"signature":    req.Signature,
		"account_kind": req.AccountKind,
	})
	if err != nil {
		return transport.LoginResponse{}, err
	}
	return parseLogin(body), nil
}

func (c *Client) Profile(ctx context.Context, accessToken string) (transport.Profile, error) {
	body, err := c.do(ctx, "profile", http.MethodGet, c.Paths.Profile, accessToken, nil)
	if err != nil {
		return transport.Profile{}, err
	}
	raw := string(body)
	if r := gjson.GetBytes(body, "data"); r.IsObject() {
		raw = r.Raw
	}
	var p transport.Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return transport.Profile{}, &transport.Error{Op: "profile", Err: fmt.Errorf("%w: malformed body", transport.ErrRejected)}
	}
	if p.User.ID == "" {
		// Some backends return the user record itself.
		_ = json.Unmarshal([]byte(raw), &p.User)
	}
	return p, nil
}

// RegisterDevice announces this device for push and session listing.
func (c *Client) RegisterDevice(ctx context.Context, user transport.User) error {
	var bearer string
	if c.Tokens != nil {
		bearer = c.Tokens()
	}
	_, err := c.do(ctx, "register device", http.MethodPost, c.Paths.Devices, bearer, map[string]string{
		"user_id":   user.ID,
		"device_id": c.DeviceID,
	})
	return err
}

func (c *Client) do(ctx context.Context, op, method, path, bearer string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, &transport.Error{Op: op, Err: err}
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, &transport.Error{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(headerRequestID, uuid.NewString())
	if c.DeviceID != "" {
		req.Header.Set(headerDeviceID, c.DeviceID)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &transport.Error{Op: op, Err: fmt.Errorf("%w: %v", transport.ErrNetwork, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &transport.Error{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("%w: %v", transport.ErrNetwork, err)}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &transport.Error{Op: op, Status: resp.StatusCode, Message: message(body), Err: transport.ErrUnauthorized}
	case resp.StatusCode >= 400:
		return nil, &transport.Error{Op: op, Status: resp.StatusCode, Message: message(body), Err: transport.ErrRejected}
	}
	return body, nil
}

func parseLogin(body []byte) transport.LoginResponse {
	resp := transport.LoginResponse{
		Failed:       flaggedFailure(body),
		Message:      message(body),
		AccessToken:  field(body, "access_token", "accessToken"),
		RefreshToken: field(body, "refresh_token", "refreshToken"),
		Raw:          body,
	}
	if raw := object(body, "user", "data.user"); raw != "" {
		var u transport.User
		if err := json.Unmarshal([]byte(raw), &u); err == nil {
			resp.User = &u
		}
	}
	return resp
}

func rejectedIfFlagged(op string, body []byte) error {
	if flaggedFailure(body) {
		return &transport.Error{Op: op, Message: message(body), Err: transport.ErrRejected}
	}
	return nil
}

// flaggedFailure reports an explicit "success": false.
func flaggedFailure(body []byte) bool {
	r := gjson.GetBytes(body, "success")
	return r.Exists() && r.Type == gjson.False
}

func message(body []byte) string {
	for _, path := range []string{"message", "error.message", "error", "data.message"} {
		if r := gjson.GetBytes(body, path); r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}

// field returns the first non-empty string among names, at the root or
// under "data".
func field(body []byte, names ...string) string {
	for _, prefix := range []string{"", "data."} {
		for _, name := range names {
			if r := gjson.GetBytes(body, prefix+name); r.Type == gjson.String && r.Str != "" {
				return r.Str
			}
		}
	}
	return ""
}

// object returns the raw JSON of the first object found at paths.
func object(body []byte, paths ...string) string {
	for _, path := range paths {
		if r := gjson.GetBytes(body, path); r.IsObject() {
			return r.Raw
		}
	}
	return ""
}
