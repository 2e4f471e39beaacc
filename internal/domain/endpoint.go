package domain

import (
	"fmt"
	"strings"
	"time"
)

// Endpoint is a user device with traffic counters and an optional suspension.
type Endpoint struct {
	base
	userID         string
	ipv4           string
	ipv6           string
	mac            string
	trafficUpMB    float64
	trafficDownMB  float64
	suspendedUntil *time.Time
}

// NewEndpoint builds a validated endpoint with zeroed counters
func NewEndpoint(name, userID, ipv4, ipv6, mac string, meta Metadata) (*Endpoint, error) {
	b, err := newBase(name, DeviceTypeEndpoint, meta)
	if err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, invalid(KindEmptyUserID, "user_id", "")
	}
	v4, err := optionalIPv4(ipv4)
	if err != nil {
		return nil, err
	}
	v6, err := optionalIPv6(ipv6)
	if err != nil {
		return nil, err
	}
	hw, err := requiredMAC(mac)
	if err != nil {
		return nil, err
	}
	return &Endpoint{base: b, userID: userID, ipv4: v4, ipv6: v6, mac: hw}, nil
}

// UserID returns the owning user
func (e *Endpoint) UserID() string { return e.userID }

// IPv4Address returns the IPv4 address or an empty string
func (e *Endpoint) IPv4Address() string { return e.ipv4 }

// IPv6Address returns the IPv6 address or an empty string
func (e *Endpoint) IPv6Address() string { return e.ipv6 }

// MACAddress returns the normalized MAC address
func (e *Endpoint) MACAddress() string { return e.mac }

// TrafficUpMB returns the accumulated upload in megabytes
func (e *Endpoint) TrafficUpMB() float64 { return e.trafficUpMB }

// TrafficDownMB returns the accumulated download in megabytes
func (e *Endpoint) TrafficDownMB() float64 { return e.trafficDownMB }

// TotalTraffic is upload plus download; ranking and policy use it.
func (e *Endpoint) TotalTraffic() float64 { return e.trafficUpMB + e.trafficDownMB }

// SuspendedUntil returns the suspension expiry, or nil
func (e *Endpoint) SuspendedUntil() *time.Time {
	if e.suspendedUntil == nil {
		return nil
	}
	t := *e.suspendedUntil
	return &t
}

// AddTraffic accumulates both counters. Negative amounts are rejected
// without touching either counter.
func (e *Endpoint) AddTraffic(upMB, downMB float64) error {
	if upMB < 0 || downMB < 0 {
		return fmt.Errorf("%w: up=%v down=%v", ErrNegativeTraffic, upMB, downMB)
	}
	e.trafficUpMB += upMB
	e.trafficDownMB += downMB
	return nil
}

// RestoreTraffic overwrites both counters with persisted values
func (e *Endpoint) RestoreTraffic(upMB, downMB float64) error {
	if upMB < 0 || downMB < 0 {
		return fmt.Errorf("%w: up=%v down=%v", ErrNegativeTraffic, upMB, downMB)
	}
	e.trafficUpMB = upMB
	e.trafficDownMB = downMB
	return nil
}

// SetSuspendedUntil restores a persisted suspension expiry (nil clears it).
// Status is left alone; loaders restore it separately.
func (e *Endpoint) SetSuspendedUntil(t *time.Time) {
	if t == nil {
		e.suspendedUntil = nil
		return
	}
	until := *t
	e.suspendedUntil = &until
}

// IsSuspended reports whether a suspension is in force right now
func (e *Endpoint) IsSuspended() bool { return e.IsSuspendedAt(time.Now()) }

// IsSuspendedAt reports whether the expiry is strictly after now
func (e *Endpoint) IsSuspendedAt(now time.Time) bool {
	return e.suspendedUntil != nil && now.Before(*e.suspendedUntil)
}

// SuspendFor suspends the endpoint for the given minutes starting now
func (e *Endpoint) SuspendFor(minutes int) error { return e.SuspendForAt(minutes, time.Now()) }

// SuspendForAt sets the expiry to now+minutes and forces INACTIVE. Any
// earlier expiry is overwritten, whether it was longer or shorter.
func (e *Endpoint) SuspendForAt(minutes int, now time.Time) error {
	if minutes <= 0 {
		return fmt.Errorf("%w: %d minutes", ErrInvalidDuration, minutes)
	}
	until := now.Add(time.Duration(minutes) * time.Minute)
	e.suspendedUntil = &until
	e.status = StatusInactive
	return nil
}

// RefreshStatus lifts an expired suspension
func (e *Endpoint) RefreshStatus() { e.RefreshStatusAt(time.Now()) }

// RefreshStatusAt clears the expiry and restores ACTIVE once now has reached
// it. This is the only path by which an endpoint recovers on its own.
func (e *Endpoint) RefreshStatusAt(now time.Time) {
	if e.suspendedUntil != nil && !now.Before(*e.suspendedUntil) {
		e.suspendedUntil = nil
		e.status = StatusActive
	}
}

// String shows an expired suspension as lifted without writing it back
func (e *Endpoint) String() string {
	status, susp := e.status, "-"
	if e.suspendedUntil != nil {
		if e.IsSuspended() {
			susp = e.suspendedUntil.Format(time.RFC3339)
		} else {
			status = StatusActive
		}
	}
	return fmt.Sprintf("[ENDPOINT] name=%s user_id=%s status=%s ipv4=%s ipv6=%s mac=%s up=%g down=%g total=%g suspended_until=%s",
		e.name, e.userID, status, orDash(e.ipv4), orDash(e.ipv6), e.mac,
		e.trafficUpMB, e.trafficDownMB, e.TotalTraffic(), susp)
}
