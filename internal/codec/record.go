package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"netinventory/internal/domain"
	"netinventory/internal/inventory"
)

// ErrUnknownType is returned by FromRecord for a type tag it cannot build
var ErrUnknownType = errors.New("unknown device type")

// Record is the flat, persisted form of a device. Fields that do not apply
// to a record's type are left empty and are not written; see recordKeys.
type Record struct {
	Type            string `json:"type" yaml:"type"`
	Name            string `json:"name" yaml:"name"`
	Status          string `json:"status" yaml:"status"`
	Model           string `json:"model" yaml:"model"`
	SerialInterface bool   `json:"serial_interface" yaml:"serial_interface"`
	Observations    string `json:"observations" yaml:"observations"`

	IPv4       string `json:"ipv4" yaml:"ipv4"`
	IPv6       string `json:"ipv6" yaml:"ipv6"`
	MACAddress string `json:"mac_address" yaml:"mac_address"`

	ConnectedDevices   []string `json:"connected_devices" yaml:"connected_devices"`
	ConnectedEndpoints []string `json:"connected_endpoints" yaml:"connected_endpoints"`

	Ports        int `json:"ports" yaml:"ports"`
	EthPorts     int `json:"eth_ports" yaml:"eth_ports"`
	FastEthPorts int `json:"fast_eth_ports" yaml:"fast_eth_ports"`
	GigaEthPorts int `json:"giga_eth_ports" yaml:"giga_eth_ports"`

	SSID string `json:"ssid" yaml:"ssid"`

	UserID         string  `json:"user_id" yaml:"user_id"`
	TrafficUpMB    float64 `json:"traffic_up_mb" yaml:"traffic_up_mb"`
	TrafficDownMB  float64 `json:"traffic_down_mb" yaml:"traffic_down_mb"`
	SuspendedUntil *string `json:"suspended_until" yaml:"suspended_until"`
}

var commonKeys = []string{"type", "name", "status", "model", "serial_interface", "observations"}

// recordKeys lists the keys written after commonKeys for each type. Every
// key is always present, empty or not; suspended_until is null when unset.
var recordKeys = map[domain.DeviceType][]string{
	domain.DeviceTypeRouter: {"ipv4", "ipv6", "mac_address", "connected_devices"},
	domain.DeviceTypeSwitch: {"ipv4", "mac_address", "ports", "eth_ports", "fast_eth_ports",
		"giga_eth_ports", "connected_devices"},
	domain.DeviceTypeAccessPoint: {"ssid", "connected_endpoints"},
	domain.DeviceTypeEndpoint: {"user_id", "ipv4", "ipv6", "mac_address", "traffic_up_mb",
		"traffic_down_mb", "suspended_until"},
}

// allKeys is used for records whose type is not recognised
var allKeys = []string{"ipv4", "ipv6", "mac_address", "connected_devices", "connected_endpoints",
	"ports", "eth_ports", "fast_eth_ports", "giga_eth_ports", "ssid", "user_id",
	"traffic_up_mb", "traffic_down_mb", "suspended_until"}

// Keys returns the keys r is written with, in output order
func (r Record) Keys() []string {
	extra, ok := recordKeys[domain.DeviceType(strings.ToUpper(strings.TrimSpace(r.Type)))]
	if !ok {
		extra = allKeys
	}
	return append(slices.Clone(commonKeys), extra...)
}

func (r Record) value(key string) any {
	switch key {
	case "type":
		return r.Type
	case "name":
		return r.Name
	case "status":
		return r.Status
	case "model":
		return r.Model
	case "serial_interface":
		return r.SerialInterface
	case "observations":
		return r.Observations
	case "ipv4":
		return r.IPv4
	case "ipv6":
		return r.IPv6
	case "mac_address":
		return r.MACAddress
	case "connected_devices":
		return nonNil(r.ConnectedDevices)
	case "connected_endpoints":
		return nonNil(r.ConnectedEndpoints)
	case "ports":
		return r.Ports
	case "eth_ports":
		return r.EthPorts
	case "fast_eth_ports":
		return r.FastEthPorts
	case "giga_eth_ports":
		return r.GigaEthPorts
	case "ssid":
		return r.SSID
	case "user_id":
		return r.UserID
	case "traffic_up_mb":
		return r.TrafficUpMB
	case "traffic_down_mb":
		return r.TrafficDownMB
	case "suspended_until":
		return r.SuspendedUntil
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// MarshalJSON writes the type's keys in order
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		v, err := json.Marshal(r.value(key))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		buf.WriteString(strconv.Quote(key))
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML writes the same keys as MarshalJSON as a block mapping
func (r Record) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, key := range r.Keys() {
		var v yaml.Node
		if err := v.Encode(r.value(key)); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, &v)
	}
	return node, nil
}

func (r Record) metadata() domain.Metadata {
	return domain.Metadata{
		Model:           r.Model,
		SerialInterface: r.SerialInterface,
		Observations:    r.Observations,
	}
}

// ToRecord flattens d into its persisted form
func ToRecord(d domain.Device) Record {
	meta := d.Metadata()
	rec := Record{
		Type:            string(d.Type()),
		Name:            d.Name(),
		Status:          string(d.Status()),
		Model:           meta.Model,
		SerialInterface: meta.SerialInterface,
		Observations:    meta.Observations,
	}

	switch v := d.(type) {
	case *domain.Router:
		rec.IPv4 = v.IPv4Address()
		rec.IPv6 = v.IPv6Address()
		rec.MACAddress = v.MACAddress()
		rec.ConnectedDevices = v.Connections()
	case *domain.Switch:
		layout := v.Layout()
		rec.IPv4 = v.IPv4Address()
		rec.MACAddress = v.MACAddress()
		rec.ConnectedDevices = v.Connections()
		rec.Ports = v.Ports()
		rec.EthPorts = layout.Ethernet
		rec.FastEthPorts = layout.FastEthernet
		rec.GigaEthPorts = layout.GigaEthernet
	case *domain.AccessPoint:
		rec.SSID = v.SSID()
		rec.ConnectedEndpoints = v.ConnectedEndpoints()
	case *domain.Endpoint:
		rec.UserID = v.UserID()
		rec.IPv4 = v.IPv4Address()
		rec.IPv6 = v.IPv6Address()
		rec.MACAddress = v.MACAddress()
		rec.TrafficUpMB = v.TrafficUpMB()
		rec.TrafficDownMB = v.TrafficDownMB()
		if until := v.SuspendedUntil(); until != nil {
			s := until.Format(time.RFC3339Nano)
			rec.SuspendedUntil = &s
		}
	}
	return rec
}

// FromRecord rebuilds a device through its validating constructor, then
// restores the persisted state the constructor does not take.
func FromRecord(rec Record) (domain.Device, error) {
	t, ok := domain.ParseDeviceType(rec.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, rec.Type)
	}

	var (
		dev domain.Device
		err error
	)
	switch t {
	case domain.DeviceTypeRouter:
		var r *domain.Router
		if r, err = domain.NewRouter(rec.Name, rec.IPv4, rec.IPv6, rec.MACAddress, rec.metadata()); err == nil {
			r.SetConnections(rec.ConnectedDevices)
			dev = r
		}
	case domain.DeviceTypeSwitch:
		var s *domain.Switch
		if s, err = domain.NewSwitch(rec.Name, rec.IPv4, rec.MACAddress, rec.Ports,
			rec.EthPorts, rec.FastEthPorts, rec.GigaEthPorts, rec.metadata()); err == nil {
			s.SetConnections(rec.ConnectedDevices)
			dev = s
		}
	case domain.DeviceTypeAccessPoint:
		var ap *domain.AccessPoint
		if ap, err = domain.NewAccessPoint(rec.Name, rec.SSID, rec.metadata()); err == nil {
			ap.SetConnections(rec.ConnectedEndpoints)
			dev = ap
		}
	case domain.DeviceTypeEndpoint:
		var ep *domain.Endpoint
		if ep, err = domain.NewEndpoint(rec.Name, rec.UserID, rec.IPv4, rec.IPv6, rec.MACAddress, rec.metadata()); err == nil {
			err = ep.RestoreTraffic(rec.TrafficUpMB, rec.TrafficDownMB)
			ep.SetSuspendedUntil(parseSuspension(rec.SuspendedUntil))
			dev = ep
		}
	}
	if err != nil {
		return nil, fmt.Errorf("device %q: %w", rec.Name, err)
	}

	if strings.TrimSpace(rec.Status) != "" {
		if err := dev.SetStatus(rec.Status); err != nil {
			return nil, fmt.Errorf("device %q: %w", rec.Name, err)
		}
	}
	return dev, nil
}

// naive layouts cover timestamps written without a zone offset; they are
// read as local time.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseSuspension returns nil for a missing or unreadable timestamp
func parseSuspension(s *string) *time.Time {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return &t
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, v, time.Local); err == nil {
			return &t
		}
	}
	return nil
}

// Encode flattens every device of inv in insertion order. The records are
// built under the inventory lock, so Encode is safe alongside mutations.
func Encode(inv *inventory.Inventory) []Record {
	var records []Record
	inv.View(func(devices []domain.Device) {
		records = Records(devices)
	})
	return records
}

// Records flattens devices in order. Callers sharing the devices with
// writers must hold the inventory lock, as Encode does.
func Records[D domain.Device](devices []D) []Record {
	records := make([]Record, 0, len(devices))
	for _, d := range devices {
		records = append(records, ToRecord(d))
	}
	return records
}

// Snapshot returns the record of the named device, taken under the lock
func Snapshot(inv *inventory.Inventory, name string) (Record, bool) {
	var rec Record
	ok := inv.ViewDevice(name, func(d domain.Device) {
		rec = ToRecord(d)
	})
	return rec, ok
}

// Decode builds a fresh inventory by adding records in order, so the usual
// uniqueness rules apply. Records with an unknown type are skipped and
// returned; any other failure aborts the whole decode.
func Decode(records []Record, opts ...inventory.Option) (*inventory.Inventory, []Record, error) {
	inv := inventory.New(opts...)
	var skipped []Record
	for i, rec := range records {
		dev, err := FromRecord(rec)
		if errors.Is(err, ErrUnknownType) {
			skipped = append(skipped, rec)
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("record %d: %w", i, err)
		}
		if err := inv.Add(dev); err != nil {
			return nil, nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return inv, skipped, nil
}
