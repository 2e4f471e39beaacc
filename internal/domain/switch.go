package domain

import (
	"fmt"
	"strconv"
)

// PortLayout is the optional breakdown of a switch's ports by speed class.
// It is informational; nothing checks it against the total.
type PortLayout struct {
	Ethernet     int
	FastEthernet int
	GigaEthernet int
}

// Switch is a layer-2 device whose connection count is capped by its port count.
type Switch struct {
	base
	ipv4        string
	mac         string
	ports       int
	layout      PortLayout
	connections peerSet
}

// NewSwitch builds a validated switch. ports must be positive and the
// per-class counts non-negative.
func NewSwitch(name, ipv4, mac string, ports, ethPorts, fastPorts, gigaPorts int, meta Metadata) (*Switch, error) {
	b, err := newBase(name, DeviceTypeSwitch, meta)
	if err != nil {
		return nil, err
	}
	v4, err := optionalIPv4(ipv4)
	if err != nil {
		return nil, err
	}
	hw, err := requiredMAC(mac)
	if err != nil {
		return nil, err
	}
	if ports <= 0 {
		return nil, invalid(KindInvalidPortCount, "ports", strconv.Itoa(ports))
	}
	for _, p := range []struct {
		field string
		n     int
	}{
		{"eth_ports", ethPorts},
		{"fast_eth_ports", fastPorts},
		{"giga_eth_ports", gigaPorts},
	} {
		if p.n < 0 {
			return nil, invalid(KindInvalidPortCount, p.field, strconv.Itoa(p.n))
		}
	}
	return &Switch{
		base:  b,
		ipv4:  v4,
		mac:   hw,
		ports: ports,
		layout: PortLayout{
			Ethernet:     ethPorts,
			FastEthernet: fastPorts,
			GigaEthernet: gigaPorts,
		},
	}, nil
}

// IPv4Address returns the management IPv4 address or an empty string
func (s *Switch) IPv4Address() string { return s.ipv4 }

// MACAddress returns the normalized MAC address
func (s *Switch) MACAddress() string { return s.mac }

// Ports returns the total port capacity
func (s *Switch) Ports() int { return s.ports }

// Layout returns the per-class port breakdown
func (s *Switch) Layout() PortLayout { return s.layout }

// FreePorts returns how many more peers can be connected
func (s *Switch) FreePorts() int { return s.ports - s.connections.len() }

func (s *Switch) Connections() []string { return s.connections.list() }

// Connect records peer as connected, failing once every port is taken.
func (s *Switch) Connect(peer string) error {
	return s.connections.add(s.name, peer, s.ports)
}

func (s *Switch) Disconnect(peer string) { s.connections.remove(peer) }

// SetConnections restores a persisted peer list. The port cap is not applied.
func (s *Switch) SetConnections(peers []string) { s.connections.set(peers) }

func (s *Switch) String() string {
	return fmt.Sprintf("[SWITCH] name=%s status=%s ipv4=%s mac=%s ports=%d connected=%d",
		s.name, s.status, orDash(s.ipv4), s.mac, s.ports, s.connections.len())
}
