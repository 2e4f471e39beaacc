package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers match them with errors.Is; the values returned by
// this package and by the inventory wrap them with the offending value.
var (
	ErrValidation          = errors.New("validation failed")
	ErrDuplicateName       = errors.New("duplicate device name")
	ErrDuplicateMAC        = errors.New("duplicate MAC address")
	ErrDuplicateIPv4       = errors.New("duplicate IPv4 address")
	ErrDuplicateConnection = errors.New("device already connected")
	ErrCapacityExceeded    = errors.New("no free ports")
	ErrSelfConnection      = errors.New("device cannot connect to itself")
	ErrNegativeTraffic     = errors.New("traffic cannot be negative")
	ErrInvalidDuration     = errors.New("duration must be positive")
	ErrNotFound            = errors.New("device not found")
)

// ValidationKind identifies which field rule a ValidationError broke.
type ValidationKind string

const (
	KindEmptyName        ValidationKind = "empty-name"
	KindInvalidIPv4      ValidationKind = "invalid-ipv4"
	KindInvalidIPv6      ValidationKind = "invalid-ipv6"
	KindInvalidMAC       ValidationKind = "invalid-mac"
	KindInvalidPortCount ValidationKind = "invalid-port-count"
	KindEmptySSID        ValidationKind = "empty-ssid"
	KindEmptyUserID      ValidationKind = "empty-user-id"
	KindEmptyPeer        ValidationKind = "empty-peer"
	KindInvalidStatus    ValidationKind = "invalid-status"
)

// ValidationError reports a field that failed syntax or semantic checks
// while building or updating a device.
type ValidationError struct {
	Kind  ValidationKind
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Kind)
	}
	return fmt.Sprintf("%s: %s (%q)", e.Field, e.Kind, e.Value)
}

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(kind ValidationKind, field, value string) error {
	return &ValidationError{Kind: kind, Field: field, Value: value}
}

// ValidationKindOf returns the kind of the ValidationError in err's chain.
func ValidationKindOf(err error) (ValidationKind, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Kind, true
	}
	return "", false
}
