package domain

import (
	"strings"

	"netinventory/internal/netaddr"
)

// DeviceType identifies the device variant
type DeviceType string

const (
	DeviceTypeRouter      DeviceType = "ROUTER"
	DeviceTypeSwitch      DeviceType = "SWITCH"
	DeviceTypeAccessPoint DeviceType = "AP"
	DeviceTypeEndpoint    DeviceType = "ENDPOINT"
)

// DeviceTypes lists every known variant in display order
var DeviceTypes = []DeviceType{
	DeviceTypeRouter,
	DeviceTypeSwitch,
	DeviceTypeAccessPoint,
	DeviceTypeEndpoint,
}

// ParseDeviceType matches s against the known type tags, ignoring case and
// surrounding whitespace.
func ParseDeviceType(s string) (DeviceType, bool) {
	t := DeviceType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range DeviceTypes {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// Status is the operational state of a device
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// ParseStatus normalizes s and reports whether it names a known status
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusActive, StatusInactive:
		return st, true
	}
	return "", false
}

// Metadata is free-form descriptive information carried by every device.
// It is trimmed but never validated.
type Metadata struct {
	Model           string
	SerialInterface bool
	Observations    string
}

func (m Metadata) trimmed() Metadata {
	return Metadata{
		Model:           strings.TrimSpace(m.Model),
		SerialInterface: m.SerialInterface,
		Observations:    strings.TrimSpace(m.Observations),
	}
}

// Device is the capability set shared by every variant.
type Device interface {
	Name() string
	Type() DeviceType
	Status() Status
	Metadata() Metadata
	SetStatus(status string) error
	String() string
}

// Connector is implemented by devices that keep a list of peer names.
type Connector interface {
	Device
	Connections() []string
	Connect(peer string) error
	Disconnect(peer string)
	// SetConnections replaces the peer list wholesale. Loaders use it to
	// restore persisted state; no connect-time rules are applied.
	SetConnections(peers []string)
}

// Addressed is implemented by devices that carry a MAC and an optional IPv4.
// These are the fields the inventory keeps unique.
type Addressed interface {
	Device
	MACAddress() string
	IPv4Address() string
}

// DualStack is implemented by devices that may also carry an IPv6 address.
type DualStack interface {
	Addressed
	IPv6Address() string
}

// base holds the attributes common to all variants
type base struct {
	name     string
	kind     DeviceType
	status   Status
	metadata Metadata
}

func newBase(name string, kind DeviceType, meta Metadata) (base, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return base{}, invalid(KindEmptyName, "name", "")
	}
	return base{
		name:     name,
		kind:     kind,
		status:   StatusActive,
		metadata: meta.trimmed(),
	}, nil
}

// Name returns the device name
func (b *base) Name() string { return b.name }

// Type returns the device variant
func (b *base) Type() DeviceType { return b.kind }

// Status returns the stored status. Endpoint status may be stale until
// RefreshStatus is called.
func (b *base) Status() Status { return b.status }

// Metadata returns the descriptive fields
func (b *base) Metadata() Metadata { return b.metadata }

// SetMetadata replaces the descriptive fields
func (b *base) SetMetadata(meta Metadata) { b.metadata = meta.trimmed() }

// SetStatus sets the status from its textual form (case-insensitive)
func (b *base) SetStatus(status string) error {
	st, ok := ParseStatus(status)
	if !ok {
		return invalid(KindInvalidStatus, "status", status)
	}
	b.status = st
	return nil
}

// optionalIPv4 trims s and validates it when non-empty
func optionalIPv4(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s != "" && !netaddr.ValidIPv4(s) {
		return "", invalid(KindInvalidIPv4, "ipv4", s)
	}
	return s, nil
}

// optionalIPv6 trims s and validates it when non-empty
func optionalIPv6(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s != "" && !netaddr.ValidIPv6(s) {
		return "", invalid(KindInvalidIPv6, "ipv6", s)
	}
	return s, nil
}

// requiredMAC normalizes s and validates it
func requiredMAC(s string) (string, error) {
	mac := netaddr.NormalizeMAC(s)
	if !netaddr.ValidMAC(mac) {
		return "", invalid(KindInvalidMAC, "mac_address", mac)
	}
	return mac, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
