package domain

import (
	"fmt"
	"strings"
)

// AccessPoint is a wireless access point identified by its SSID.
// It carries no addressing of its own.
type AccessPoint struct {
	base
	ssid      string
	endpoints peerSet
}

// NewAccessPoint builds a validated access point
func NewAccessPoint(name, ssid string, meta Metadata) (*AccessPoint, error) {
	b, err := newBase(name, DeviceTypeAccessPoint, meta)
	if err != nil {
		return nil, err
	}
	ssid = strings.TrimSpace(ssid)
	if ssid == "" {
		return nil, invalid(KindEmptySSID, "ssid", "")
	}
	return &AccessPoint{base: b, ssid: ssid}, nil
}

// SSID returns the broadcast network name
func (a *AccessPoint) SSID() string { return a.ssid }

// ConnectedEndpoints returns associated endpoint names in association order
func (a *AccessPoint) ConnectedEndpoints() []string { return a.endpoints.list() }

// ConnectEndpoint associates an endpoint. There is no association limit.
func (a *AccessPoint) ConnectEndpoint(endpoint string) error {
	return a.endpoints.add(a.name, endpoint, 0)
}

// DisconnectEndpoint removes an association if present
func (a *AccessPoint) DisconnectEndpoint(endpoint string) { a.endpoints.remove(endpoint) }

// Connections, Connect and Disconnect satisfy Connector.

func (a *AccessPoint) Connections() []string        { return a.ConnectedEndpoints() }
func (a *AccessPoint) Connect(peer string) error     { return a.ConnectEndpoint(peer) }
func (a *AccessPoint) Disconnect(peer string)        { a.DisconnectEndpoint(peer) }
func (a *AccessPoint) SetConnections(peers []string) { a.endpoints.set(peers) }

func (a *AccessPoint) String() string {
	return fmt.Sprintf("[AP] name=%s status=%s ssid=%s connected_endpoints=%d",
		a.name, a.status, a.ssid, a.endpoints.len())
}
