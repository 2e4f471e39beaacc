package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netinventory/internal/domain"
	"netinventory/internal/inventory"
)

// newTestStore creates an in-memory SQLite store for testing
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func testInventory(t *testing.T) *inventory.Inventory {
	t.Helper()
	inv := inventory.New()

	sw, err := domain.NewSwitch("SW1", "10.0.0.2", "11:22:33:44:55:66", 8, 8, 0, 0, domain.Metadata{Model: "C2960"})
	require.NoError(t, err)
	require.NoError(t, sw.Connect("R1"))
	r1, err := domain.NewRouter("R1", "10.0.0.1", "", "AA:BB:CC:DD:EE:FF", domain.Metadata{})
	require.NoError(t, err)
	ap, err := domain.NewAccessPoint("AP1", "Campus", domain.Metadata{})
	require.NoError(t, err)
	require.NoError(t, ap.ConnectEndpoint("E1"))
	ep, err := domain.NewEndpoint("E1", "u1", "10.0.0.20", "fe80::1", "AA:BB:CC:00:00:01", domain.Metadata{})
	require.NoError(t, err)
	require.NoError(t, ep.AddTraffic(100, 50))
	until := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	ep.SetSuspendedUntil(&until)
	require.NoError(t, ep.SetStatus("INACTIVE"))

	for _, d := range []domain.Device{sw, r1, ap, ep} {
		require.NoError(t, inv.Add(d))
	}
	return inv
}

func deviceNames(inv *inventory.Inventory) []string {
	var out []string
	for _, d := range inv.List() {
		out = append(out, d.Name())
	}
	return out
}

func TestLoadEmpty(t *testing.T) {
	s := newTestStore(t)
	inv, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, inv.Len())
}

func TestSaveAndLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	inv := testInventory(t)

	require.NoError(t, s.Save(ctx, inv))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"SW1", "R1", "AP1", "E1"}, deviceNames(loaded), "insertion order survives")

	ep, ok := loaded.GetEndpoint("E1")
	require.True(t, ok)
	assert.Equal(t, 150.0, ep.TotalTraffic())
	assert.Equal(t, domain.StatusInactive, ep.Status())
	assert.NotNil(t, ep.SuspendedUntil())
	assert.Equal(t, "fe80::1", ep.IPv6Address())

	sw, _ := loaded.Get("SW1")
	assert.Equal(t, "C2960", sw.Metadata().Model)
	assert.Equal(t, []string{"R1"}, sw.(*domain.Switch).Connections())

	var count string
	require.NoError(t, s.db.QueryRow(`SELECT value FROM metadata WHERE key = 'device_count'`).Scan(&count))
	assert.Equal(t, "4", count)

	var ipv4 *string
	require.NoError(t, s.db.QueryRow(`SELECT ipv4 FROM devices WHERE name = 'AP1'`).Scan(&ipv4))
	assert.Nil(t, ipv4)
}

func TestSaveReplacesAllRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, testInventory(t)))

	smaller := inventory.New()
	r, err := domain.NewRouter("R9", "", "", "AA:BB:CC:DD:EE:09", domain.Metadata{})
	require.NoError(t, err)
	require.NoError(t, smaller.Add(r))
	require.NoError(t, s.Save(ctx, smaller))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"R9"}, deviceNames(loaded))
}

func TestLoadSkipsUnknownTypes(t *testing.T) {
	s := newTestStore(t)
	_, err := s.db.Exec(`INSERT INTO devices (name, type, status, position, data) VALUES ('FW1', 'FIREWALL', 'ACTIVE', 0, '{"type":"FIREWALL","name":"FW1"}')`)
	require.NoError(t, err)

	inv, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, inv.Len())
}

func TestFileDatabasePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.db")
	ctx := context.Background()

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, testInventory(t)))
	require.NoError(t, s.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Len())
}
