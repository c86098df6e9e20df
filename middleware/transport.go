package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
)

// TokenSource supplies access tokens. *goAuthClient.Engine satisfies it.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

type bearerTransport struct {
	tokens TokenSource
	base   http.RoundTripper
}

// Transport returns a RoundTripper that sets Authorization on each request.
// When the server answers 401 and the body can be replayed, the token is
// refreshed once and the request retried. A nil base uses
// http.DefaultTransport.
func Transport(tokens TokenSource, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &bearerTransport{tokens: tokens, base: base}
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.tokens == nil {
		return nil, errors.New("middleware: nil token source")
	}

	access, err := t.tokens.AccessToken(req.Context())
	if err != nil {
		return nil, err
	}

	resp, err := t.base.RoundTrip(withBearer(req, access))
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	refreshed, err := t.tokens.Refresh(req.Context())
	if err != nil {
		return resp, nil
	}

	retry := withBearer(req, refreshed)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return resp, nil
		}
		retry.Body = body
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	return t.base.RoundTrip(retry)
}

func withBearer(req *http.Request, token string) *http.Request {
	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+token)
	return out
}
