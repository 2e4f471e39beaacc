package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netinventory/internal/domain"
)

func epNames(eps []*domain.Endpoint) []string {
	out := make([]string, 0, len(eps))
	for _, ep := range eps {
		out = append(out, ep.Name())
	}
	return out
}

func seedTraffic(t *testing.T, inv *Inventory, traffic map[string][2]float64, order ...string) {
	t.Helper()
	for i, name := range order {
		ep := mustEndpoint(t, name, "", macFor(i))
		require.NoError(t, ep.AddTraffic(traffic[name][0], traffic[name][1]))
		require.NoError(t, inv.Add(ep))
	}
}

func macFor(i int) string {
	return []string{
		"AA:BB:CC:00:00:01", "AA:BB:CC:00:00:02", "AA:BB:CC:00:00:03",
		"AA:BB:CC:00:00:04", "AA:BB:CC:00:00:05", "AA:BB:CC:00:00:06",
	}[i]
}

func TestTopConsumers(t *testing.T) {
	inv := New()
	require.NoError(t, inv.Add(mustRouter(t, "R1", "", "AA:BB:CC:DD:EE:01")))
	seedTraffic(t, inv, map[string][2]float64{
		"a": {10, 0},
		"b": {50, 50},
		"c": {5, 5},
		"d": {60, 40},
	}, "a", "b", "c", "d")

	assert.Equal(t, []string{"b", "d"}, epNames(inv.TopConsumers(2)), "ties keep insertion order")
	assert.Equal(t, []string{"b", "d", "a", "c"}, epNames(inv.TopConsumers(10)))
	assert.Empty(t, inv.TopConsumers(0))
	assert.Empty(t, inv.TopConsumers(-3))
	assert.NotNil(t, New().TopConsumers(5))

	var viewed []string
	inv.ViewTopConsumers(1, func(eps []*domain.Endpoint) { viewed = epNames(eps) })
	assert.Equal(t, []string{"b"}, viewed)
}

func TestApplyTrafficPolicy(t *testing.T) {
	now := time.Date(2025, 1, 21, 14, 0, 0, 0, time.UTC)
	inv := New(WithClock(func() time.Time { return now }))
	seedTraffic(t, inv, map[string][2]float64{
		"heavy":  {400, 200},
		"light":  {10, 10},
		"border": {250, 250},
	}, "heavy", "light", "border")

	affected, err := inv.ApplyTrafficPolicy(500, 30)
	require.NoError(t, err)
	assert.Equal(t, []string{"heavy"}, epNames(affected), "exactly at the limit is not over it")

	heavy, _ := inv.GetEndpoint("heavy")
	assert.Equal(t, domain.StatusInactive, heavy.Status())
	assert.Equal(t, now.Add(30*time.Minute), *heavy.SuspendedUntil())

	t.Run("second run is idempotent while suspended", func(t *testing.T) {
		now = now.Add(10 * time.Minute)
		affected, err := inv.ApplyTrafficPolicy(500, 30)
		require.NoError(t, err)
		assert.Empty(t, affected)
		assert.Equal(t, now.Add(20*time.Minute), *heavy.SuspendedUntil(), "expiry is not extended")
	})

	t.Run("expired suspension is re-applied", func(t *testing.T) {
		now = now.Add(20 * time.Minute)
		affected, err := inv.ApplyTrafficPolicy(500, 15)
		require.NoError(t, err)
		assert.Equal(t, []string{"heavy"}, epNames(affected))
		assert.Equal(t, now.Add(15*time.Minute), *heavy.SuspendedUntil())
	})

	t.Run("lower limit catches more endpoints", func(t *testing.T) {
		affected, err := inv.ApplyTrafficPolicy(0, 5)
		require.NoError(t, err)
		assert.Equal(t, []string{"light", "border"}, epNames(affected))
	})
}

func TestApplyTrafficPolicyRejectsBadDuration(t *testing.T) {
	inv := New()
	seedTraffic(t, inv, map[string][2]float64{"heavy": {1000, 0}}, "heavy")

	for _, minutes := range []int{0, -1} {
		affected, err := inv.ApplyTrafficPolicy(1, minutes)
		assert.ErrorIs(t, err, domain.ErrInvalidDuration)
		assert.Nil(t, affected)
	}

	heavy, _ := inv.GetEndpoint("heavy")
	assert.Equal(t, domain.StatusActive, heavy.Status())
	assert.Nil(t, heavy.SuspendedUntil())

	err := inv.ApplyTrafficPolicyView(1, 0, func([]*domain.Endpoint) { t.Fatal("called for a bad duration") })
	assert.ErrorIs(t, err, domain.ErrInvalidDuration)
}

func TestApplyTrafficPolicyView(t *testing.T) {
	now := time.Date(2025, 1, 21, 14, 0, 0, 0, time.UTC)
	inv := New(WithClock(func() time.Time { return now }))
	seedTraffic(t, inv, map[string][2]float64{"heavy": {900, 200}, "light": {1, 1}}, "heavy", "light")

	var until []time.Time
	err := inv.ApplyTrafficPolicyView(1000, 10, func(eps []*domain.Endpoint) {
		for _, ep := range eps {
			until = append(until, *ep.SuspendedUntil())
		}
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{now.Add(10 * time.Minute)}, until)
}
