package service

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netinventory/internal/codec"
	"netinventory/internal/domain"
	"netinventory/internal/inventory"
	"netinventory/internal/metrics"
	"netinventory/internal/storage/jsonfile"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc     *InventoryService
	path    string
	clock   *testClock
	metrics *metrics.Registry
	events  chan Event
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	log, _ := test.NewNullLogger()
	clock := &testClock{now: time.Date(2025, 1, 21, 14, 0, 0, 0, time.UTC)}
	path := filepath.Join(t.TempDir(), "inventario.json")
	store := jsonfile.New(path,
		jsonfile.WithLogger(log),
		jsonfile.WithInventoryOptions(inventory.WithClock(clock.Now)),
	)

	bus := NewEventBus()
	events := make(chan Event, 64)
	bus.Subscribe(events)

	reg := metrics.NewRegistry()
	base := []Option{
		WithLogger(log),
		WithMetrics(reg),
		WithClock(clock.Now),
		WithAutoSave(true),
		WithPolicy(Policy{LimitMB: 500, SuspendMinutes: 30}),
	}
	svc, err := New(context.Background(), store, bus, append(base, opts...)...)
	require.NoError(t, err)

	return &fixture{svc: svc, path: path, clock: clock, metrics: reg, events: events}
}

func (f *fixture) drain() []EventType {
	var types []EventType
	for {
		select {
		case ev := <-f.events:
			types = append(types, ev.Type)
		default:
			return types
		}
	}
}

func untilOf(t *testing.T, rec codec.Record) time.Time {
	t.Helper()
	require.NotNil(t, rec.SuspendedUntil, rec.Name)
	until, err := time.Parse(time.RFC3339Nano, *rec.SuspendedUntil)
	require.NoError(t, err)
	return until
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	reqs := []CreateDeviceRequest{
		{Type: "router", Name: "R1", IPv4: "192.168.1.1", MACAddress: "AA:BB:CC:DD:EE:FF"},
		{Type: "SWITCH", Name: "SW1", MACAddress: "11:22:33:44:55:66", Ports: 24},
		{Type: "AP", Name: "AP1", SSID: "lab"},
		{Type: "ENDPOINT", Name: "heavy", UserID: "u1", IPv4: "192.168.1.20", MACAddress: "AA:BB:CC:00:00:01"},
		{Type: "ENDPOINT", Name: "light", UserID: "u2", MACAddress: "AA:BB:CC:00:00:02"},
	}
	for _, req := range reqs {
		_, err := f.svc.CreateDevice(ctx, req)
		require.NoError(t, err, req.Name)
	}
}

func TestCreateDevicePersistsAndPublishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dev, err := f.svc.CreateDevice(ctx, CreateDeviceRequest{
		Type: "router", Name: "  R1 ", IPv4: "192.168.1.1", MACAddress: "AA:BB:CC:DD:EE:FF", Model: "ISR4321",
	})
	require.NoError(t, err)
	assert.Equal(t, "R1", dev.Name)
	assert.Equal(t, string(domain.DeviceTypeRouter), dev.Type)
	assert.Equal(t, "ISR4321", dev.Model)
	assert.Equal(t, []EventType{EventDeviceCreated}, f.drain())

	reloaded, err := jsonfile.New(f.path).Load(ctx)
	require.NoError(t, err)
	got, ok := reloaded.Get("R1")
	require.True(t, ok)
	assert.Equal(t, "ISR4321", got.Metadata().Model)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Devices.WithLabelValues("ROUTER")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OperationsTotal.WithLabelValues("create", metrics.StatusOK)))
}

func TestCreateDeviceErrors(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	f.drain()

	tests := []struct {
		name string
		req  CreateDeviceRequest
		is   error
	}{
		{"missing name", CreateDeviceRequest{Type: "AP", SSID: "x"}, ErrInvalidRequest},
		{"unknown type", CreateDeviceRequest{Type: "FIREWALL", Name: "FW1"}, ErrInvalidRequest},
		{"bad status", CreateDeviceRequest{Type: "AP", Name: "AP2", SSID: "x", Status: "BROKEN"}, ErrInvalidRequest},
		{"negative ports", CreateDeviceRequest{Type: "SWITCH", Name: "SW2", MACAddress: "11:22:33:44:55:01", Ports: -1}, ErrInvalidRequest},
		{"bad mac", CreateDeviceRequest{Type: "ROUTER", Name: "R2", MACAddress: "zz"}, domain.ErrValidation},
		{"duplicate name", CreateDeviceRequest{Type: "AP", Name: "R1", SSID: "x"}, domain.ErrDuplicateName},
		{"duplicate mac", CreateDeviceRequest{Type: "ROUTER", Name: "R2", MACAddress: "AA:BB:CC:DD:EE:FF"}, domain.ErrDuplicateMAC},
		{"duplicate ipv4", CreateDeviceRequest{Type: "ROUTER", Name: "R2", IPv4: "192.168.1.1", MACAddress: "AA:BB:CC:DD:EE:01"}, domain.ErrDuplicateIPv4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateDevice(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.is)
		})
	}

	assert.Empty(t, f.drain())
	assert.Equal(t, float64(len(tests)), testutil.ToFloat64(f.metrics.OperationsTotal.WithLabelValues("create", metrics.StatusError)))
}

func TestDeleteDevice(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Connect(ctx, "R1", "SW1"))
	f.drain()

	require.NoError(t, f.svc.DeleteDevice(ctx, "SW1"))
	assert.Equal(t, []EventType{EventDeviceDeleted}, f.drain())
	assert.Equal(t, map[string][]string{"R1": {"SW1"}}, f.svc.Dangling())

	err := f.svc.DeleteDevice(ctx, "SW1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.GetDevice("SW1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConnectAndDisconnect(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()
	f.drain()

	require.NoError(t, f.svc.Connect(ctx, "R1", "SW1"))
	require.NoError(t, f.svc.Connect(ctx, "AP1", "heavy"))
	assert.ErrorIs(t, f.svc.Connect(ctx, "R1", "SW1"), domain.ErrDuplicateConnection)
	assert.ErrorIs(t, f.svc.Connect(ctx, "R1", "R1"), domain.ErrSelfConnection)
	assert.ErrorIs(t, f.svc.Connect(ctx, "heavy", "AP1"), ErrUnsupported)
	assert.ErrorIs(t, f.svc.Connect(ctx, "nope", "R1"), domain.ErrNotFound)

	r1, err := f.svc.GetDevice("R1")
	require.NoError(t, err)
	assert.Equal(t, []string{"SW1"}, r1.ConnectedDevices)
	ap1, err := f.svc.GetDevice("AP1")
	require.NoError(t, err)
	assert.Equal(t, []string{"heavy"}, ap1.ConnectedEndpoints)

	require.NoError(t, f.svc.Disconnect(ctx, "R1", "SW1"))
	require.NoError(t, f.svc.Disconnect(ctx, "R1", "SW1"), "absent peers are ignored")
	assert.Equal(t, []string{"SW1"}, r1.ConnectedDevices, "snapshots do not follow later changes")
	r1, err = f.svc.GetDevice("R1")
	require.NoError(t, err)
	assert.Empty(t, r1.ConnectedDevices)

	assert.Equal(t, []EventType{
		EventConnectionAdded, EventConnectionAdded,
		EventConnectionRemoved, EventConnectionRemoved,
	}, f.drain())
}

func TestRecordTraffic(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	ep, err := f.svc.RecordTraffic(ctx, "heavy", 100, 50.5)
	require.NoError(t, err)
	assert.Equal(t, 100.0, ep.TrafficUpMB)
	assert.Equal(t, 150.5, ep.TrafficUpMB+ep.TrafficDownMB)

	_, err = f.svc.RecordTraffic(ctx, "heavy", -1, 0)
	assert.ErrorIs(t, err, domain.ErrNegativeTraffic)
	_, err = f.svc.RecordTraffic(ctx, "R1", 1, 1)
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = f.svc.RecordTraffic(ctx, "ghost", 1, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Equal(t, 100.0, testutil.ToFloat64(f.metrics.TrafficMegabytes.WithLabelValues("up")))
	assert.Equal(t, 50.5, testutil.ToFloat64(f.metrics.TrafficMegabytes.WithLabelValues("down")))
}

func TestSuspendAndPolicy(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	_, err := f.svc.RecordTraffic(ctx, "heavy", 400, 200)
	require.NoError(t, err)
	_, err = f.svc.RecordTraffic(ctx, "light", 10, 10)
	require.NoError(t, err)
	f.drain()

	affected, err := f.svc.ApplyDefaultPolicy(ctx, "manual")
	require.NoError(t, err)
	require.Len(t, affected, 1)
	assert.Equal(t, "heavy", affected[0].Name)
	assert.Equal(t, "INACTIVE", affected[0].Status)
	assert.Equal(t, f.clock.Now().Add(30*time.Minute), untilOf(t, affected[0]))
	assert.Equal(t, []EventType{EventPolicyApplied}, f.drain())

	affected, err = f.svc.ApplyDefaultPolicy(ctx, "manual")
	require.NoError(t, err)
	assert.Empty(t, affected)
	assert.Empty(t, f.drain(), "runs that suspend nothing publish nothing")

	_, err = f.svc.ApplyPolicy(ctx, PolicyRun{LimitMB: 1, SuspendMinutes: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidDuration)

	ep, err := f.svc.Suspend(ctx, "light", 5)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Add(5*time.Minute), untilOf(t, ep))
	_, err = f.svc.Suspend(ctx, "light", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidDuration)
	_, err = f.svc.Suspend(ctx, "AP1", 5)
	assert.ErrorIs(t, err, ErrUnsupported)

	inactive := f.svc.ListDevices(ListFilter{Status: "inactive"})
	assert.Len(t, inactive, 2)

	f.clock.Advance(10 * time.Minute)
	inactive = f.svc.ListDevices(ListFilter{Status: "INACTIVE", Type: "endpoint"})
	require.Len(t, inactive, 1, "the short suspension has expired")
	assert.Equal(t, "heavy", inactive[0].Name)

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.PolicyRunsTotal.WithLabelValues("manual")))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.SuspensionsTotal))
}

func TestTopConsumersAndStats(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()
	_, err := f.svc.RecordTraffic(ctx, "light", 20, 0)
	require.NoError(t, err)
	_, err = f.svc.RecordTraffic(ctx, "heavy", 5, 0)
	require.NoError(t, err)

	top := f.svc.TopConsumers(1)
	require.Len(t, top, 1)
	assert.Equal(t, "light", top[0].Name)

	st := f.svc.Stats()
	assert.Equal(t, 5, st.Total)
	assert.Equal(t, map[string]int{"ROUTER": 1, "SWITCH": 1, "AP": 1, "ENDPOINT": 2}, st.ByType)
	assert.Equal(t, 0, st.Inactive)
}

func TestListDevices(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	assert.Len(t, f.svc.ListDevices(ListFilter{}), 5)
	assert.Len(t, f.svc.ListDevices(ListFilter{Type: "endpoint"}), 2)
	assert.Empty(t, f.svc.ListDevices(ListFilter{Type: "hub"}))
	assert.Empty(t, f.svc.ListDevices(ListFilter{Type: "hub", Status: "ACTIVE"}))

	d, err := f.svc.FindByIPv4("192.168.1.20")
	require.NoError(t, err)
	assert.Equal(t, "heavy", d.Name)
	_, err = f.svc.FindByIPv4("10.0.0.1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReload(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()
	f.drain()

	changed, err := f.svc.Reload(ctx)
	require.NoError(t, err)
	assert.False(t, changed, "own saves are not reported as changes")
	assert.Empty(t, f.drain())

	external := `[{"type": "AP", "name": "AP9", "ssid": "other"}]`
	require.NoError(t, os.WriteFile(f.path, []byte(external), 0o644))

	changed, err = f.svc.Reload(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []EventType{EventInventoryReloaded}, f.drain())
	assert.Len(t, f.svc.ListDevices(ListFilter{}), 1)

	require.NoError(t, os.WriteFile(f.path, []byte("{"), 0o644))
	_, err = f.svc.Reload(ctx)
	assert.Error(t, err)
	assert.Len(t, f.svc.ListDevices(ListFilter{}), 1, "a failed reload keeps memory intact")
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	payload := `[
  {"type": "ROUTER", "name": "R1", "mac_address": "AA:BB:CC:DD:EE:FF"},
  {"type": "FIREWALL", "name": "FW1"},
  {"type": "AP", "name": "AP7", "ssid": "guest"}
]`

	t.Run("replace swaps the inventory", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t)
		f.drain()

		result, err := f.svc.Import(ctx, codec.NewJSONCodec(), strings.NewReader(payload), StrategyReplace)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Added)
		assert.Equal(t, []string{"FW1"}, result.Skipped)
		assert.Len(t, f.svc.ListDevices(ListFilter{}), 2)
		assert.Equal(t, []EventType{EventInventoryImported}, f.drain())
	})

	t.Run("merge reports conflicts", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t)

		result, err := f.svc.Import(ctx, codec.NewJSONCodec(), strings.NewReader(payload), StrategyMerge)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Added)
		assert.Equal(t, []string{"FW1"}, result.Skipped)
		require.Len(t, result.Conflicts, 1)
		assert.Contains(t, result.Conflicts[0], "R1")
		assert.Len(t, f.svc.ListDevices(ListFilter{}), 6)
	})

	t.Run("replace aborts on invalid records", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t)

		bad := `[{"type": "ROUTER", "name": "R1", "mac_address": "nope"}]`
		_, err := f.svc.Import(ctx, codec.NewJSONCodec(), strings.NewReader(bad), StrategyReplace)
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Len(t, f.svc.ListDevices(ListFilter{}), 5)
	})

	t.Run("unknown strategy", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Import(ctx, codec.NewJSONCodec(), strings.NewReader("[]"), "append")
		assert.ErrorIs(t, err, ErrInvalidStrategy)
	})
}

func TestExportAndSave(t *testing.T) {
	f := newFixture(t, WithAutoSave(false))
	f.seed(t)
	ctx := context.Background()

	_, err := os.Stat(f.path)
	assert.True(t, os.IsNotExist(err), "autosave is off")

	var buf bytes.Buffer
	require.NoError(t, f.svc.Export(ctx, codec.NewYAMLCodec(), &buf))
	assert.Contains(t, buf.String(), "name: SW1")

	f.drain()
	require.NoError(t, f.svc.Save(ctx))
	assert.Equal(t, []EventType{EventInventorySaved}, f.drain())
	_, err = os.Stat(f.path)
	assert.NoError(t, err)
}

func TestPolicyEnforcer(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	_, err := f.svc.RecordTraffic(context.Background(), "heavy", 1000, 0)
	require.NoError(t, err)

	log, _ := test.NewNullLogger()
	assert.False(t, NewPolicyEnforcer(f.svc, 0, log).Enabled())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewPolicyEnforcer(f.svc, 10*time.Millisecond, log).Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(f.metrics.PolicyRunsTotal.WithLabelValues(TriggerScheduled)) > 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	d, err := f.svc.GetDevice("heavy")
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusInactive), d.Status)
}

// Run with -race: readers snapshot under the inventory lock while writers
// mutate the same devices.
func TestConcurrentReadsAndWrites(t *testing.T) {
	f := newFixture(t, WithAutoSave(false))
	f.seed(t)
	ctx := context.Background()

	const rounds = 50
	var wg sync.WaitGroup
	start := make(chan struct{})
	writer := func(fn func(i int) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for i := 0; i < rounds; i++ {
				assert.NoError(t, fn(i))
			}
		}()
	}
	reader := func(fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for i := 0; i < rounds; i++ {
				assert.NoError(t, fn())
			}
		}()
	}

	writer(func(i int) error { return f.svc.Connect(ctx, "R1", fmt.Sprintf("peer-%d", i)) })
	writer(func(int) error {
		_, err := f.svc.RecordTraffic(ctx, "heavy", 1, 1)
		return err
	})
	writer(func(int) error {
		_, err := f.svc.ApplyPolicy(ctx, PolicyRun{LimitMB: 1, SuspendMinutes: 1})
		return err
	})
	writer(func(int) error {
		_, err := f.svc.Suspend(ctx, "light", 5)
		return err
	})

	reader(func() error {
		_, err := f.svc.GetDevice("R1")
		return err
	})
	reader(func() error {
		var buf bytes.Buffer
		return f.svc.Export(ctx, codec.NewJSONCodec(), &buf)
	})
	reader(func() error { return f.svc.Save(ctx) })
	reader(func() error {
		f.svc.ListDevices(ListFilter{Type: "endpoint"})
		f.svc.TopConsumers(2)
		_, err := f.svc.FindByIPv4("192.168.1.20")
		return err
	})

	close(start)
	wg.Wait()

	r1, err := f.svc.GetDevice("R1")
	require.NoError(t, err)
	assert.Len(t, r1.ConnectedDevices, rounds)
	heavy, err := f.svc.GetDevice("heavy")
	require.NoError(t, err)
	assert.Equal(t, float64(2*rounds), heavy.TrafficUpMB+heavy.TrafficDownMB)
}
