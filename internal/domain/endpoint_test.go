package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEndpoint(t *testing.T) *Endpoint {
	t.Helper()
	ep, err := NewEndpoint("laptop", "u1", "10.0.0.10", "", "AA:BB:CC:00:00:10", Metadata{})
	require.NoError(t, err)
	return ep
}

func TestAddTraffic(t *testing.T) {
	ep := newTestEndpoint(t)

	require.NoError(t, ep.AddTraffic(10, 5))
	require.NoError(t, ep.AddTraffic(2.5, 0))
	assert.Equal(t, 12.5, ep.TrafficUpMB())
	assert.Equal(t, 5.0, ep.TrafficDownMB())
	assert.Equal(t, 17.5, ep.TotalTraffic())

	t.Run("negative amounts leave counters untouched", func(t *testing.T) {
		assert.ErrorIs(t, ep.AddTraffic(-1, 100), ErrNegativeTraffic)
		assert.ErrorIs(t, ep.AddTraffic(100, -0.1), ErrNegativeTraffic)
		assert.Equal(t, 17.5, ep.TotalTraffic())
	})
}

func TestRestoreTraffic(t *testing.T) {
	ep := newTestEndpoint(t)
	require.NoError(t, ep.AddTraffic(1, 1))

	require.NoError(t, ep.RestoreTraffic(300, 200))
	assert.Equal(t, 500.0, ep.TotalTraffic())
	assert.ErrorIs(t, ep.RestoreTraffic(-1, 0), ErrNegativeTraffic)
}

func TestSuspension(t *testing.T) {
	now := time.Date(2025, 1, 21, 14, 0, 0, 0, time.UTC)

	t.Run("suspend then check immediately", func(t *testing.T) {
		ep := newTestEndpoint(t)
		require.NoError(t, ep.SuspendForAt(30, now))

		assert.True(t, ep.IsSuspendedAt(now))
		assert.Equal(t, StatusInactive, ep.Status())
		require.NotNil(t, ep.SuspendedUntil())
		assert.Equal(t, now.Add(30*time.Minute), *ep.SuspendedUntil())
	})

	t.Run("refresh before expiry keeps the suspension", func(t *testing.T) {
		ep := newTestEndpoint(t)
		require.NoError(t, ep.SuspendForAt(30, now))

		ep.RefreshStatusAt(now.Add(29 * time.Minute))
		assert.Equal(t, StatusInactive, ep.Status())
		assert.NotNil(t, ep.SuspendedUntil())
	})

	t.Run("refresh at and after expiry restores ACTIVE", func(t *testing.T) {
		ep := newTestEndpoint(t)
		require.NoError(t, ep.SuspendForAt(30, now))

		expiry := now.Add(30 * time.Minute)
		assert.False(t, ep.IsSuspendedAt(expiry))

		ep.RefreshStatusAt(expiry)
		assert.Equal(t, StatusActive, ep.Status())
		assert.Nil(t, ep.SuspendedUntil())
	})

	t.Run("status stays stale until refreshed", func(t *testing.T) {
		ep := newTestEndpoint(t)
		require.NoError(t, ep.SuspendForAt(1, now))

		later := now.Add(time.Hour)
		assert.False(t, ep.IsSuspendedAt(later))
		assert.Equal(t, StatusInactive, ep.Status())
	})

	t.Run("re-suspending overwrites the expiry", func(t *testing.T) {
		ep := newTestEndpoint(t)
		require.NoError(t, ep.SuspendForAt(60, now))
		require.NoError(t, ep.SuspendForAt(5, now.Add(time.Minute)))

		assert.Equal(t, now.Add(6*time.Minute), *ep.SuspendedUntil())
	})

	t.Run("non-positive durations are rejected", func(t *testing.T) {
		ep := newTestEndpoint(t)
		assert.ErrorIs(t, ep.SuspendForAt(0, now), ErrInvalidDuration)
		assert.ErrorIs(t, ep.SuspendForAt(-5, now), ErrInvalidDuration)
		assert.Nil(t, ep.SuspendedUntil())
		assert.Equal(t, StatusActive, ep.Status())
	})

	t.Run("wall clock variants", func(t *testing.T) {
		ep := newTestEndpoint(t)
		require.NoError(t, ep.SuspendFor(30))
		assert.True(t, ep.IsSuspended())
		ep.RefreshStatus()
		assert.Equal(t, StatusInactive, ep.Status())
	})
}

func TestSetSuspendedUntilCopies(t *testing.T) {
	ep := newTestEndpoint(t)
	until := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	ep.SetSuspendedUntil(&until)
	until = until.Add(time.Hour)
	assert.Equal(t, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), *ep.SuspendedUntil())

	ep.SetSuspendedUntil(nil)
	assert.Nil(t, ep.SuspendedUntil())
}

func TestEndpointString(t *testing.T) {
	ep := newTestEndpoint(t)
	require.NoError(t, ep.AddTraffic(1.5, 2))

	s := ep.String()
	assert.True(t, strings.HasPrefix(s, "[ENDPOINT] name=laptop"))
	assert.Contains(t, s, "total=3.5")
	assert.Contains(t, s, "suspended_until=-")
}

func TestEndpointStringDoesNotLiftSuspension(t *testing.T) {
	ep := newTestEndpoint(t)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, ep.SuspendForAt(10, past))

	s := ep.String()
	assert.Contains(t, s, "status=ACTIVE")
	assert.Contains(t, s, "suspended_until=-")
	assert.Equal(t, StatusInactive, ep.Status(), "String is read-only")
	require.NotNil(t, ep.SuspendedUntil())

	require.NoError(t, ep.SuspendForAt(10, time.Now()))
	assert.Contains(t, ep.String(), "status=INACTIVE")
}
