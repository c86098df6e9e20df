package jwt

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned for opaque (non-JWT) access tokens.
var ErrNotJWT = errors.New("token is not a jwt")

// Config tunes the Inspector.
type Config struct {
	// VerifyKey is an optional ed25519 public key (raw 32 bytes or PEM PKIX).
	VerifyKey []byte
	Issuer    string
}

// Claims is the subset of registered claims the client cares about.
type Claims struct {
	Subject   string
	Phone     string
	ExpiresAt time.Time
	IssuedAt  time.Time
	Verified  bool
}

type accessClaims struct {
	Phone string `json:"phone,omitempty"`
	jwt.RegisteredClaims
}

// Inspector parses access tokens. The zero value is usable and never verifies.
type Inspector struct {
	issuer string
	key    ed25519.PublicKey
}

func NewInspector(cfg Config) (*Inspector, error) {
	in := &Inspector{issuer: cfg.Issuer}
	if len(cfg.VerifyKey) > 0 {
		key, err := parseEdPublicKey(cfg.VerifyKey)
		if err != nil {
			return nil, err
		}
		in.key = key
	}
	return in, nil
}

// Inspect returns the claims of tokenStr. Expiry is not enforced here; callers
// decide what an expired token means.
func (i *Inspector) Inspect(tokenStr string) (Claims, error) {
	if i != nil && i.key != nil {
		return i.verified(tokenStr)
	}

	var claims accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrNotJWT, err)
	}
	return toClaims(&claims, false), nil
}

// ExpiresWithin reports whether tokenStr expires within d of now. Opaque tokens
// and tokens without exp report false: there is nothing to schedule against.
func (i *Inspector) ExpiresWithin(tokenStr string, d time.Duration, now time.Time) bool {
	claims, err := i.Inspect(tokenStr)
	if err != nil || claims.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(d).Before(claims.ExpiresAt)
}

func (i *Inspector) verified(tokenStr string) (Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithoutClaimsValidation(),
	}

	var claims accessClaims
	_, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		return i.key, nil
	})
	if err != nil {
		return Claims{}, err
	}
	if i.issuer != "" && claims.Issuer != i.issuer {
		return Claims{}, fmt.Errorf("unexpected issuer %q", claims.Issuer)
	}
	return toClaims(&claims, true), nil
}

func toClaims(c *accessClaims, verified bool) Claims {
	out := Claims{
		Subject:  c.Subject,
		Phone:    c.Phone,
		Verified: verified,
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	return out
}

func parseEdPublicKey(raw []byte) (ed25519.PublicKey, error) {
	if len(raw) == ed25519.PublicKeySize {
		return ed25519.PublicKey(raw), nil
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("public key is not ed25519")
	}
	return key, nil
}
