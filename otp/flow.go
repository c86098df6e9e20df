package otp

import (
	"fmt"
	"strings"
)

// FlowKind selects the backend verification endpoint and the caller's
// post-success side effect.
type FlowKind int

const (
	FlowGeneric FlowKind = iota
	FlowRegister
	FlowNewDevice
	FlowForgotPassword
)

func (k FlowKind) String() string {
	switch k {
	case FlowRegister:
		return "register"
	case FlowNewDevice:
		return "new-device"
	case FlowForgotPassword:
		return "forgot-password"
	default:
		return "generic"
	}
}

// ParseFlowKind accepts the wire names returned by String.
func ParseFlowKind(s string) (FlowKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "register":
		return FlowRegister, nil
	case "new-device", "new_device":
		return FlowNewDevice, nil
	case "forgot-password", "forgot_password":
		return FlowForgotPassword, nil
	case "generic", "":
		return FlowGeneric, nil
	default:
		return FlowGeneric, fmt.Errorf("otp: unknown flow kind %q", s)
	}
}

// State is the lifecycle position of an attempt.
type State int

const (
	Idle State = iota
	Validating
	Submitting
	Success
	Failed
)

func (s State) String() string {
	switch s {
	case Validating:
		return "validating"
	case Submitting:
		return "submitting"
	case Success:
		return "success"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}
