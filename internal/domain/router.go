package domain

import "fmt"

// Router is a layer-3 device with a required MAC and optional IPv4/IPv6.
type Router struct {
	base
	ipv4        string
	ipv6        string
	mac         string
	connections peerSet
}

// NewRouter builds a validated router. On failure no router is returned.
func NewRouter(name, ipv4, ipv6, mac string, meta Metadata) (*Router, error) {
	b, err := newBase(name, DeviceTypeRouter, meta)
	if err != nil {
		return nil, err
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
	return &Router{base: b, ipv4: v4, ipv6: v6, mac: hw}, nil
}

// IPv4Address returns the IPv4 address or an empty string
func (r *Router) IPv4Address() string { return r.ipv4 }

// IPv6Address returns the IPv6 address or an empty string
func (r *Router) IPv6Address() string { return r.ipv6 }

// MACAddress returns the normalized MAC address
func (r *Router) MACAddress() string { return r.mac }

// Connections returns the connected peer names in connection order
func (r *Router) Connections() []string { return r.connections.list() }

// Connect records peer as connected. Peers are not required to exist in any inventory.
func (r *Router) Connect(peer string) error {
	return r.connections.add(r.name, peer, 0)
}

// Disconnect removes peer if present
func (r *Router) Disconnect(peer string) { r.connections.remove(peer) }

func (r *Router) SetConnections(peers []string) { r.connections.set(peers) }

func (r *Router) String() string {
	return fmt.Sprintf("[ROUTER] name=%s status=%s ipv4=%s ipv6=%s mac=%s connected=%d",
		r.name, r.status, orDash(r.ipv4), orDash(r.ipv6), r.mac, r.connections.len())
}
