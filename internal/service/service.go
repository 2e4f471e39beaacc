package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"netinventory/internal/codec"
	"netinventory/internal/domain"
	"netinventory/internal/inventory"
	"netinventory/internal/logging"
	"netinventory/internal/metrics"
	"netinventory/internal/storage"
)

var (
	// ErrUnsupported is returned when an operation does not apply to the
	// device's type, such as recording traffic on a router.
	ErrUnsupported = errors.New("operation not supported for device type")
	// ErrInvalidStrategy is returned for an unknown import strategy
	ErrInvalidStrategy = errors.New("invalid import strategy")
)

// Policy is the traffic cap applied by ApplyDefaultPolicy
type Policy struct {
	LimitMB        float64
	SuspendMinutes int
}

// Option configures an InventoryService
type Option func(*InventoryService)

// WithLogger sets the service logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *InventoryService) {
		if log != nil {
			s.log = logging.Component(log, "service")
		}
	}
}

// WithMetrics sets the metrics registry
func WithMetrics(m *metrics.Registry) Option {
	return func(s *InventoryService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock replaces the wall clock used for manual suspensions
func WithClock(now func() time.Time) Option {
	return func(s *InventoryService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAutoSave saves to the store after every successful mutation
func WithAutoSave(enabled bool) Option {
	return func(s *InventoryService) {
		s.autosave = enabled
	}
}

// WithPolicy sets the default traffic cap
func WithPolicy(p Policy) Option {
	return func(s *InventoryService) {
		s.policy = p
	}
}

// InventoryService provides business logic for inventory operations
type InventoryService struct {
	inv      *inventory.Inventory
	store    storage.Store
	eventBus *EventBus
	metrics  *metrics.Registry
	log      logrus.FieldLogger
	now      func() time.Time
	autosave bool
	policy   Policy

	// persistMu serializes Save, Reload and Import
	persistMu sync.Mutex
}

// New loads the inventory from store and returns a service around it
func New(ctx context.Context, store storage.Store, eventBus *EventBus, opts ...Option) (*InventoryService, error) {
	s := &InventoryService{
		store:    store,
		eventBus: eventBus,
		log:      logging.Component(logrus.StandardLogger(), "service"),
		now:      time.Now,
		policy:   Policy{LimitMB: 1024, SuspendMinutes: 30},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewRegistry()
	}
	if s.eventBus == nil {
		s.eventBus = NewEventBus()
	}

	inv, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.inv = inv
	s.updateDeviceGauge()

	s.log.WithField("count", inv.Len()).Info("inventory loaded")
	return s, nil
}

// EventBus returns the bus events are published on
func (s *InventoryService) EventBus() *EventBus {
	return s.eventBus
}

// Policy returns the default traffic cap
func (s *InventoryService) Policy() Policy {
	return s.policy
}

// CreateDevice builds a device from req, adds it to the inventory and
// returns its record as added
func (s *InventoryService) CreateDevice(ctx context.Context, req CreateDeviceRequest) (codec.Record, error) {
	var (
		dev domain.Device
		rec codec.Record
	)
	err := ValidateRequest(req)
	if err == nil {
		dev, err = codec.FromRecord(req.record())
	}
	if err == nil {
		// dev is not shared until Add returns
		rec = codec.ToRecord(dev)
		err = s.inv.Add(dev)
	}
	s.metrics.RecordOperation("create", err)
	if err != nil {
		return codec.Record{}, err
	}

	s.log.WithFields(logrus.Fields{"device": rec.Name, "type": rec.Type}).Info("device created")
	s.changed(ctx, Event{
		Type:    EventDeviceCreated,
		Payload: map[string]string{"name": rec.Name, "type": rec.Type},
	})
	return rec, s.autoSave(ctx)
}

// DeleteDevice removes a device. Peers that still reference it are left
// untouched.
func (s *InventoryService) DeleteDevice(ctx context.Context, name string) error {
	var err error
	if !s.inv.Remove(name) {
		err = fmt.Errorf("%w: %s", domain.ErrNotFound, name)
	}
	s.metrics.RecordOperation("delete", err)
	if err != nil {
		return err
	}

	s.log.WithField("device", name).Info("device deleted")
	s.changed(ctx, Event{
		Type:    EventDeviceDeleted,
		Payload: map[string]string{"name": strings.TrimSpace(name)},
	})
	return s.autoSave(ctx)
}

// GetDevice returns a snapshot of one device by name
func (s *InventoryService) GetDevice(name string) (codec.Record, error) {
	s.inv.Refresh()
	rec, ok := codec.Snapshot(s.inv, name)
	if !ok {
		return codec.Record{}, fmt.Errorf("%w: %s", domain.ErrNotFound, name)
	}
	return rec, nil
}

// ListFilter narrows ListDevices; empty fields match everything
type ListFilter struct {
	Type   string
	Status string
}

func (f ListFilter) match() func(domain.Device) bool {
	var wantType domain.DeviceType
	if f.Type != "" {
		t, ok := domain.ParseDeviceType(f.Type)
		if !ok {
			return func(domain.Device) bool { return false }
		}
		wantType = t
	}
	wantStatus := domain.Status(strings.ToUpper(strings.TrimSpace(f.Status)))
	return func(d domain.Device) bool {
		if wantType != "" && d.Type() != wantType {
			return false
		}
		return f.Status == "" || d.Status() == wantStatus
	}
}

// ListDevices returns snapshots of the devices matching filter in insertion
// order. Expired suspensions are lifted first.
func (s *InventoryService) ListDevices(filter ListFilter) []codec.Record {
	keep := filter.match()
	s.inv.Refresh()

	var out []codec.Record
	s.inv.View(func(devices []domain.Device) {
		out = make([]codec.Record, 0, len(devices))
		for _, d := range devices {
			if keep(d) {
				out = append(out, codec.ToRecord(d))
			}
		}
	})
	return out
}

// FindByIPv4 returns a snapshot of the device holding ipv4
func (s *InventoryService) FindByIPv4(ipv4 string) (codec.Record, error) {
	s.inv.Refresh()
	var rec codec.Record
	if !s.inv.ViewByIPv4(ipv4, func(d domain.Device) { rec = codec.ToRecord(d) }) {
		return codec.Record{}, fmt.Errorf("%w: no device with IPv4 %s", domain.ErrNotFound, ipv4)
	}
	return rec, nil
}

// Connect records peer on the named device's connection list
func (s *InventoryService) Connect(ctx context.Context, name, peer string) error {
	err := s.inv.Update(name, func(d domain.Device) error {
		c, ok := d.(domain.Connector)
		if !ok {
			return fmt.Errorf("%w: %s cannot hold connections", ErrUnsupported, d.Type())
		}
		return c.Connect(peer)
	})
	s.metrics.RecordOperation("connect", err)
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"device": name, "peer": peer}).Info("connection added")
	s.changed(ctx, Event{
		Type:    EventConnectionAdded,
		Payload: map[string]string{"name": name, "peer": strings.TrimSpace(peer)},
	})
	return s.autoSave(ctx)
}

// Disconnect removes peer from the named device; absent peers are ignored
func (s *InventoryService) Disconnect(ctx context.Context, name, peer string) error {
	err := s.inv.Update(name, func(d domain.Device) error {
		c, ok := d.(domain.Connector)
		if !ok {
			return fmt.Errorf("%w: %s cannot hold connections", ErrUnsupported, d.Type())
		}
		c.Disconnect(peer)
		return nil
	})
	s.metrics.RecordOperation("disconnect", err)
	if err != nil {
		return err
	}

	s.changed(ctx, Event{
		Type:    EventConnectionRemoved,
		Payload: map[string]string{"name": name, "peer": strings.TrimSpace(peer)},
	})
	return s.autoSave(ctx)
}

// RecordTraffic adds upload and download megabytes to an endpoint and
// returns its updated record
func (s *InventoryService) RecordTraffic(ctx context.Context, name string, upMB, downMB float64) (codec.Record, error) {
	rec, err := s.updateEndpoint(name, func(ep *domain.Endpoint) error {
		return ep.AddTraffic(upMB, downMB)
	})
	s.metrics.RecordOperation("traffic", err)
	if err != nil {
		return codec.Record{}, err
	}
	s.metrics.RecordTraffic(upMB, downMB)

	s.log.WithFields(logrus.Fields{"device": rec.Name, "up_mb": upMB, "down_mb": downMB}).Debug("traffic recorded")
	s.changed(ctx, Event{
		Type:    EventTrafficRecorded,
		Payload: map[string]interface{}{"name": rec.Name, "up_mb": upMB, "down_mb": downMB},
	})
	return rec, s.autoSave(ctx)
}

// Suspend suspends an endpoint for minutes starting now, replacing any
// current suspension.
func (s *InventoryService) Suspend(ctx context.Context, name string, minutes int) (codec.Record, error) {
	now := s.now()
	rec, err := s.updateEndpoint(name, func(ep *domain.Endpoint) error {
		return ep.SuspendForAt(minutes, now)
	})
	s.metrics.RecordOperation("suspend", err)
	if err != nil {
		return codec.Record{}, err
	}
	s.metrics.RecordSuspension()

	until := *rec.SuspendedUntil
	s.log.WithFields(logrus.Fields{"device": rec.Name, "until": until}).Info("endpoint suspended")
	s.changed(ctx, Event{
		Type:    EventEndpointSuspended,
		Payload: map[string]interface{}{"name": rec.Name, "until": until},
	})
	return rec, s.autoSave(ctx)
}

// updateEndpoint applies fn under the inventory lock and records the result
// before the lock is released
func (s *InventoryService) updateEndpoint(name string, fn func(*domain.Endpoint) error) (codec.Record, error) {
	var rec codec.Record
	err := s.inv.Update(name, func(d domain.Device) error {
		ep, ok := d.(*domain.Endpoint)
		if !ok {
			return fmt.Errorf("%w: %s is not an endpoint", ErrUnsupported, d.Name())
		}
		if err := fn(ep); err != nil {
			return err
		}
		rec = codec.ToRecord(ep)
		return nil
	})
	return rec, err
}

// TopConsumers returns up to n endpoint records by total traffic
func (s *InventoryService) TopConsumers(n int) []codec.Record {
	var out []codec.Record
	s.inv.ViewTopConsumers(n, func(eps []*domain.Endpoint) {
		out = codec.Records(eps)
	})
	return out
}

// PolicyRun describes one traffic-cap run
type PolicyRun struct {
	LimitMB        float64
	SuspendMinutes int
	// Trigger labels the run in metrics and events (manual, scheduled)
	Trigger string
}

// ApplyPolicy suspends over-limit endpoints and returns the records of those
// it suspended
func (s *InventoryService) ApplyPolicy(ctx context.Context, run PolicyRun) ([]codec.Record, error) {
	if run.Trigger == "" {
		run.Trigger = "manual"
	}

	var affected []codec.Record
	err := s.inv.ApplyTrafficPolicyView(run.LimitMB, run.SuspendMinutes, func(eps []*domain.Endpoint) {
		affected = codec.Records(eps)
	})
	s.metrics.RecordOperation("policy", err)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordPolicyRun(run.Trigger, len(affected))

	names := make([]string, 0, len(affected))
	for _, rec := range affected {
		names = append(names, rec.Name)
	}
	s.log.WithFields(logrus.Fields{
		"trigger":   run.Trigger,
		"limit_mb":  run.LimitMB,
		"minutes":   run.SuspendMinutes,
		"suspended": len(affected),
	}).Info("traffic policy applied")

	if len(affected) == 0 {
		return affected, nil
	}
	s.changed(ctx, Event{
		Type: EventPolicyApplied,
		Payload: map[string]interface{}{
			"trigger":   run.Trigger,
			"limit_mb":  run.LimitMB,
			"minutes":   run.SuspendMinutes,
			"suspended": names,
		},
	})
	return affected, s.autoSave(ctx)
}

// ApplyDefaultPolicy runs the configured traffic cap
func (s *InventoryService) ApplyDefaultPolicy(ctx context.Context, trigger string) ([]codec.Record, error) {
	return s.ApplyPolicy(ctx, PolicyRun{
		LimitMB:        s.policy.LimitMB,
		SuspendMinutes: s.policy.SuspendMinutes,
		Trigger:        trigger,
	})
}

// Dangling reports connection entries naming devices that do not exist
func (s *InventoryService) Dangling() map[string][]string {
	return s.inv.DanglingReferences()
}

// Stats summarizes the inventory
type Stats struct {
	Total    int            `json:"total"`
	ByType   map[string]int `json:"by_type"`
	Inactive int            `json:"inactive"`
}

// Stats counts devices per type and those currently inactive
func (s *InventoryService) Stats() Stats {
	counts := s.inv.Counts()
	st := Stats{ByType: make(map[string]int, len(counts))}
	for t, n := range counts {
		st.ByType[string(t)] = n
		st.Total += n
	}
	st.Inactive = len(s.inv.FindByStatus(string(domain.StatusInactive)))
	return st
}

// Save persists the current inventory
func (s *InventoryService) Save(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if err := s.save(ctx); err != nil {
		return err
	}
	s.eventBus.Publish(Event{
		Type:    EventInventorySaved,
		Payload: map[string]int{"count": s.inv.Len()},
	})
	return nil
}

// Reload replaces the in-memory inventory with the stored one. It reports
// false, without publishing, when both already hold the same devices.
func (s *InventoryService) Reload(ctx context.Context) (bool, error) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	loaded, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	if reflect.DeepEqual(codec.Encode(loaded), codec.Encode(s.inv)) {
		return false, nil
	}

	s.inv.ReplaceAll(loaded)
	s.updateDeviceGauge()
	s.log.WithField("count", s.inv.Len()).Info("inventory reloaded")
	s.eventBus.Publish(Event{
		Type:    EventInventoryReloaded,
		Payload: map[string]int{"count": s.inv.Len()},
	})
	return true, nil
}

// Import strategies
const (
	StrategyReplace = "replace"
	StrategyMerge   = "merge"
)

// ImportResult reports what an import did
type ImportResult struct {
	Strategy  string   `json:"strategy"`
	Added     int      `json:"added"`
	Skipped   []string `json:"skipped,omitempty"`
	Conflicts []string `json:"conflicts,omitempty"`
}

// Import reads records with imp. Replace swaps the whole inventory and
// fails on the first invalid record; merge adds records one by one and
// reports the ones that conflict.
func (s *InventoryService) Import(ctx context.Context, imp codec.Importer, r io.Reader, strategy string) (*ImportResult, error) {
	if strategy == "" {
		strategy = StrategyReplace
	}
	if strategy != StrategyReplace && strategy != StrategyMerge {
		return nil, fmt.Errorf("%w %q, must be %q or %q", ErrInvalidStrategy, strategy, StrategyReplace, StrategyMerge)
	}

	records, err := imp.Parse(r)
	if err != nil {
		err = fmt.Errorf("%w: parse %s: %w", ErrInvalidRequest, imp.Format(), err)
		s.metrics.RecordOperation("import", err)
		return nil, err
	}

	s.persistMu.Lock()
	result := &ImportResult{Strategy: strategy}
	if strategy == StrategyReplace {
		err = s.importReplace(records, result)
	} else {
		s.importMerge(records, result)
	}
	s.persistMu.Unlock()

	s.metrics.RecordOperation("import", err)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"format":    imp.Format(),
		"strategy":  strategy,
		"added":     result.Added,
		"skipped":   len(result.Skipped),
		"conflicts": len(result.Conflicts),
	}).Info("inventory imported")
	s.changed(ctx, Event{Type: EventInventoryImported, Payload: result})
	return result, s.autoSave(ctx)
}

func (s *InventoryService) importReplace(records []codec.Record, result *ImportResult) error {
	loaded, skipped, err := codec.Decode(records, inventory.WithClock(s.now))
	if err != nil {
		return err
	}
	for _, rec := range skipped {
		result.Skipped = append(result.Skipped, rec.Name)
	}
	result.Added = loaded.Len()
	s.inv.ReplaceAll(loaded)
	return nil
}

func (s *InventoryService) importMerge(records []codec.Record, result *ImportResult) {
	for _, rec := range records {
		dev, err := codec.FromRecord(rec)
		if errors.Is(err, codec.ErrUnknownType) {
			result.Skipped = append(result.Skipped, rec.Name)
			continue
		}
		if err == nil {
			err = s.inv.Add(dev)
		}
		if err != nil {
			result.Conflicts = append(result.Conflicts, err.Error())
			continue
		}
		result.Added++
	}
}

// Export writes every device with exp
func (s *InventoryService) Export(ctx context.Context, exp codec.Exporter, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := exp.Export(codec.Encode(s.inv), w)
	s.metrics.RecordOperation("export", err)
	return err
}

func (s *InventoryService) load(ctx context.Context) (*inventory.Inventory, error) {
	start := time.Now()
	inv, err := s.store.Load(ctx)
	s.metrics.RecordStoreOperation("load", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("load inventory: %w", err)
	}
	return inv, nil
}

func (s *InventoryService) save(ctx context.Context) error {
	start := time.Now()
	err := s.store.Save(ctx, s.inv)
	s.metrics.RecordStoreOperation("save", err, time.Since(start))
	if err != nil {
		s.log.WithError(err).Error("failed to save inventory")
		return fmt.Errorf("save inventory: %w", err)
	}
	return nil
}

func (s *InventoryService) autoSave(ctx context.Context) error {
	if !s.autosave {
		return nil
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	return s.save(ctx)
}

// changed refreshes derived metrics and publishes ev
func (s *InventoryService) changed(_ context.Context, ev Event) {
	s.updateDeviceGauge()
	s.eventBus.Publish(ev)
}

func (s *InventoryService) updateDeviceGauge() {
	counts := s.inv.Counts()
	byType := make(map[string]int, len(counts))
	for t, n := range counts {
		byType[string(t)] = n
	}
	s.metrics.SetDeviceCounts(byType)
}
