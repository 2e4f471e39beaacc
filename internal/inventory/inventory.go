// Package inventory owns the device collection and enforces the
// inventory-wide invariants: unique names, unique MACs and unique IPv4
// addresses. It also runs the traffic-cap policy over endpoints.
//
// Every exported method holds the inventory lock for its whole duration, so
// the uniqueness scan and the insert in Add are atomic with respect to other
// callers. Methods that return devices hand out live values; readers that
// run alongside writers go through View, ViewDevice or Update instead.
package inventory

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"netinventory/internal/domain"
)

// Option configures an Inventory
type Option func(*Inventory)

// WithClock replaces the wall clock used for suspension checks
func WithClock(now func() time.Time) Option {
	return func(inv *Inventory) {
		if now != nil {
			inv.now = now
		}
	}
}

// Inventory is the set of managed devices keyed by name
type Inventory struct {
	mu      sync.Mutex
	devices map[string]domain.Device
	order   []string
	now     func() time.Time
}

// New creates an empty inventory
func New(opts ...Option) *Inventory {
	inv := &Inventory{
		devices: make(map[string]domain.Device),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Add inserts d if its name, MAC and IPv4 are not already taken. All checks
// run before the collection is touched.
func (inv *Inventory) Add(d domain.Device) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if _, exists := inv.devices[d.Name()]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateName, d.Name())
	}

	addressed, ok := d.(domain.Addressed)
	if !ok {
		inv.insert(d)
		return nil
	}

	if mac := addressed.MACAddress(); mac != "" {
		if owner := inv.findLocked(func(other domain.Addressed) bool { return other.MACAddress() == mac }); owner != nil {
			return fmt.Errorf("%w: %s already used by %s", domain.ErrDuplicateMAC, mac, owner.Name())
		}
	}
	// IPv6 is deliberately not part of the uniqueness rules.
	if ip := addressed.IPv4Address(); ip != "" {
		if owner := inv.findLocked(func(other domain.Addressed) bool { return other.IPv4Address() == ip }); owner != nil {
			return fmt.Errorf("%w: %s already used by %s", domain.ErrDuplicateIPv4, ip, owner.Name())
		}
	}

	inv.insert(d)
	return nil
}

func (inv *Inventory) insert(d domain.Device) {
	inv.devices[d.Name()] = d
	inv.order = append(inv.order, d.Name())
}

// findLocked returns the first addressed device in order matching pred
func (inv *Inventory) findLocked(pred func(domain.Addressed) bool) domain.Device {
	for _, name := range inv.order {
		if a, ok := inv.devices[name].(domain.Addressed); ok && pred(a) {
			return a
		}
	}
	return nil
}

// Remove deletes the named device and reports whether it existed. Other
// devices that still list it as a peer are left as they are.
func (inv *Inventory) Remove(name string) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	name = strings.TrimSpace(name)
	if _, ok := inv.devices[name]; !ok {
		return false
	}
	delete(inv.devices, name)
	if i := slices.Index(inv.order, name); i >= 0 {
		inv.order = slices.Delete(inv.order, i, i+1)
	}
	return true
}

// Get returns the named device
func (inv *Inventory) Get(name string) (domain.Device, bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	d, ok := inv.devices[strings.TrimSpace(name)]
	return d, ok
}

// Update runs fn against the named device while holding the inventory lock.
// fn must not call back into the inventory.
func (inv *Inventory) Update(name string, fn func(domain.Device) error) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	name = strings.TrimSpace(name)
	d, ok := inv.devices[name]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, name)
	}
	return fn(d)
}

// View calls fn with every device in insertion order while the lock is held.
// fn must not keep the devices past its return or call back into the
// inventory; copy out what it needs.
func (inv *Inventory) View(fn func([]domain.Device)) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	fn(inv.filterLocked(func(domain.Device) bool { return true }))
}

// ViewDevice calls fn with the named device under the lock and reports
// whether it exists. fn has the same limits as in View.
func (inv *Inventory) ViewDevice(name string, fn func(domain.Device)) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	d, ok := inv.devices[strings.TrimSpace(name)]
	if ok {
		fn(d)
	}
	return ok
}

// ViewByIPv4 is ViewDevice keyed by IPv4 address
func (inv *Inventory) ViewByIPv4(ipv4 string, fn func(domain.Device)) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	d := inv.byIPv4Locked(ipv4)
	if d != nil {
		fn(d)
	}
	return d != nil
}

// Refresh lifts every endpoint suspension that has expired
func (inv *Inventory) Refresh() {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	inv.refreshLocked()
}

// List returns every device in insertion order
func (inv *Inventory) List() []domain.Device {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	return inv.filterLocked(func(domain.Device) bool { return true })
}

// Len returns the number of devices
func (inv *Inventory) Len() int {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	return len(inv.devices)
}

// Counts returns the number of devices per type. Every known type is present.
func (inv *Inventory) Counts() map[domain.DeviceType]int {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	counts := make(map[domain.DeviceType]int, len(domain.DeviceTypes))
	for _, t := range domain.DeviceTypes {
		counts[t] = 0
	}
	for _, d := range inv.devices {
		counts[d.Type()]++
	}
	return counts
}

// FindByType returns devices of the given type tag (case-insensitive).
// An unknown tag matches nothing.
func (inv *Inventory) FindByType(deviceType string) []domain.Device {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	t, ok := domain.ParseDeviceType(deviceType)
	if !ok {
		return []domain.Device{}
	}
	return inv.filterLocked(func(d domain.Device) bool { return d.Type() == t })
}

// FindByStatus returns devices whose status matches (case-insensitive).
// Endpoint suspensions are refreshed first so the result is never stale.
func (inv *Inventory) FindByStatus(status string) []domain.Device {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	st := domain.Status(strings.ToUpper(strings.TrimSpace(status)))
	inv.refreshLocked()
	return inv.filterLocked(func(d domain.Device) bool { return d.Status() == st })
}

// FindByIPv4 returns the first device in order carrying ipv4
func (inv *Inventory) FindByIPv4(ipv4 string) (domain.Device, bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	d := inv.byIPv4Locked(ipv4)
	return d, d != nil
}

func (inv *Inventory) byIPv4Locked(ipv4 string) domain.Device {
	ipv4 = strings.TrimSpace(ipv4)
	if ipv4 == "" {
		return nil
	}
	return inv.findLocked(func(a domain.Addressed) bool { return a.IPv4Address() == ipv4 })
}

// GetEndpoint returns the named device only if it is an endpoint
func (inv *Inventory) GetEndpoint(name string) (*domain.Endpoint, bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	ep, ok := inv.devices[strings.TrimSpace(name)].(*domain.Endpoint)
	return ep, ok
}

// ReplaceAll swaps in other's devices wholesale. The incoming set is trusted
// and not re-validated; other must not be used afterwards.
func (inv *Inventory) ReplaceAll(other *Inventory) {
	if other == inv {
		return
	}
	other.mu.Lock()
	devices, order := other.devices, other.order
	other.devices, other.order = make(map[string]domain.Device), nil
	other.mu.Unlock()

	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.devices = devices
	inv.order = order
}

// DanglingReferences maps each connector to the peers it names that are not
// in the inventory. Nothing is cleaned up.
func (inv *Inventory) DanglingReferences() map[string][]string {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	dangling := make(map[string][]string)
	for _, name := range inv.order {
		c, ok := inv.devices[name].(domain.Connector)
		if !ok {
			continue
		}
		for _, peer := range c.Connections() {
			if _, exists := inv.devices[peer]; !exists {
				dangling[name] = append(dangling[name], peer)
			}
		}
	}
	return dangling
}

func (inv *Inventory) filterLocked(keep func(domain.Device) bool) []domain.Device {
	out := make([]domain.Device, 0, len(inv.order))
	for _, name := range inv.order {
		if d := inv.devices[name]; keep(d) {
			out = append(out, d)
		}
	}
	return out
}

func (inv *Inventory) endpointsLocked() []*domain.Endpoint {
	var eps []*domain.Endpoint
	for _, name := range inv.order {
		if ep, ok := inv.devices[name].(*domain.Endpoint); ok {
			eps = append(eps, ep)
		}
	}
	return eps
}

func (inv *Inventory) refreshLocked() {
	now := inv.now()
	for _, ep := range inv.endpointsLocked() {
		ep.RefreshStatusAt(now)
	}
}
