// Package devicetrust decides what a login response means for the session:
// fully authenticated, blocked on device verification, blocked on account
// verification, or failed.
//
// Classification is a pure function of the response. It never touches
// session state and never decides navigation.
package devicetrust

import (
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/text/cases"
)

// Classification is the outcome of Classify.
type Classification int

const (
	Failed Classification = iota
	Authenticated
	NewDevice
	Unverified
)

func (c Classification) String() string {
	switch c {
	case Authenticated:
		return "AUTHENTICATED"
	case NewDevice:
		return "NEW_DEVICE"
	case Unverified:
		return "UNVERIFIED"
	default:
		return "FAILED"
	}
}

// Response is the transport-neutral view of a login answer.
type Response struct {
	// Err is the transport error, if the call itself failed.
	Err error
	// Failed is set when the backend explicitly flagged failure.
	Failed      bool
	Message     string
	AccessToken string
	// Raw is the JSON body, searched for verification flags.
	Raw []byte
}

const (
	verifiedFlag  = "is_verified"
	newDeviceFlag = "is_new_device"

	// maxFlagDepth bounds how deep nested objects are searched for flags.
	maxFlagDepth = 3
)

// DefaultPhrases are matched against the backend message when no structured
// flag is present.
var DefaultPhrases = []string{
	"new device",
	"device verification",
	"verify your device",
	"verification required",
	"otp sent",
	"thiết bị mới",
	"xác thực thiết bị",
	"cần xác thực",
}

type Classifier struct {
	phrases []string
}

// NewClassifier folds the given phrases once. With no phrases it uses
// DefaultPhrases.
func NewClassifier(phrases ...string) *Classifier {
	if len(phrases) == 0 {
		phrases = DefaultPhrases
	}
	folded := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		folded = append(folded, fold(p))
	}
	return &Classifier{phrases: folded}
}

// Classify applies the rules in order. Unverified outranks NewDevice because
// an unverified account also looks like an untrusted device.
func (c *Classifier) Classify(r Response) Classification {
	if r.Err != nil || r.Failed {
		return Failed
	}

	if len(r.Raw) > 0 && gjson.ValidBytes(r.Raw) {
		root := gjson.ParseBytes(r.Raw)
		if v, ok := findFlag(root, verifiedFlag, 1); ok && !v {
			return Unverified
		}
		if v, ok := findFlag(root, newDeviceFlag, 1); ok && v {
			return NewDevice
		}
	}

	if c.matchesPhrase(r.Message) {
		return NewDevice
	}

	if r.AccessToken != "" {
		return Authenticated
	}
	return Failed
}

func (c *Classifier) matchesPhrase(msg string) bool {
	if msg == "" {
		return false
	}
	m := fold(msg)
	for _, p := range c.phrases {
		if strings.Contains(m, p) {
			return true
		}
	}
	return false
}

// findFlag looks for key breadth-first: a flag on the current object wins
// over one found deeper.
func findFlag(v gjson.Result, key string, depth int) (bool, bool) {
	if depth > maxFlagDepth || !(v.IsObject() || v.IsArray()) {
		return false, false
	}
	if v.IsObject() {
		if b, ok := flagValue(v.Get(key)); ok {
			return b, true
		}
	}

	var (
		found bool
		value bool
	)
	v.ForEach(func(_, child gjson.Result) bool {
		if b, ok := findFlag(child, key, depth+1); ok {
			found, value = true, b
			return false
		}
		return true
	})
	return value, found
}

func flagValue(r gjson.Result) (bool, bool) {
	switch r.Type {
	case gjson.True:
		return true, true
	case gjson.False:
		return false, true
	case gjson.String:
		switch strings.ToLower(strings.TrimSpace(r.Str)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

// fold builds a fresh Caser per call; Casers keep state and are not safe for
// concurrent use.
func fold(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}
