// Package credential normalizes phone numbers and validates password and
// one-time-code shape before anything is sent to the backend.
//
// The backend compares phones by canonical form, so every caller must go
// through [Policy.NormalizePhone] rather than formatting phones itself.
package credential

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/width"
)

var (
	// ErrValidation is wrapped by every error this package returns.
	ErrValidation = errors.New("validation failed")

	ErrInvalidPhone     = fmt.Errorf("%w: invalid phone number", ErrValidation)
	ErrPasswordEmpty    = fmt.Errorf("%w: password is required", ErrValidation)
	ErrPasswordTooShort = fmt.Errorf("%w: password too short", ErrValidation)
	ErrInvalidOTP       = fmt.Errorf("%w: invalid verification code", ErrValidation)
)

const (
	minNationalDigits = 8
	maxNationalDigits = 10
)

// Policy holds the formatting and validation parameters.
type Policy struct {
	CountryCode       string
	MinPasswordLength int
	OTPLength         int
}

func DefaultPolicy() Policy {
	return Policy{
		CountryCode:       "84",
		MinPasswordLength: 6,
		OTPLength:         6,
	}
}

// NormalizePhone returns the canonical digits-only form with exactly one
// country-code prefix. "0987654321", "987654321", "84987654321" and
// "+84 987 654 321" all yield "84987654321".
func (p Policy) NormalizePhone(input string) (string, error) {
	digits := digitsOnly(width.Fold.String(input))
	digits = strings.TrimPrefix(digits, "00")
	if digits == "" {
		return "", ErrInvalidPhone
	}

	cc := p.CountryCode
	if rest, ok := strings.CutPrefix(digits, cc); ok && cc != "" && plausibleNational(rest) {
		return cc + rest, nil
	}

	national := strings.TrimPrefix(digits, "0")
	if !plausibleNational(national) {
		return "", ErrInvalidPhone
	}
	return cc + national, nil
}

func (p Policy) ValidatePassword(password string) error {
	if password == "" {
		return ErrPasswordEmpty
	}
	if utf8.RuneCountInString(password) < p.MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

func (p Policy) ValidateOTP(code string) error {
	if len(code) != p.OTPLength {
		return ErrInvalidOTP
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return ErrInvalidOTP
		}
	}
	return nil
}

// DigitsOnly strips everything except ASCII digits after folding full-width
// forms. OTP inputs use it so pasted "１２３ ４５６" becomes "123456".
func DigitsOnly(input string) string {
	return digitsOnly(width.Fold.String(input))
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func plausibleNational(n string) bool {
	if len(n) < minNationalDigits || len(n) > maxNationalDigits {
		return false
	}
	return n[0] != '0'
}
