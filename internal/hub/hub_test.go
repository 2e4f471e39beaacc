package hub

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netinventory/internal/service"
)

func TestHubStreamsBusEvents(t *testing.T) {
	log, _ := test.NewNullLogger()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_subscribers"})
	h := New(log, gauge)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	bus := service.NewEventBus()
	h.Attach(ctx, bus)

	srv := httptest.NewServer(h)
	defer srv.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(gauge))

	bus.Publish(service.Event{Type: service.EventDeviceCreated, Payload: map[string]string{"name": "R1"}})

	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	var got []string
	deadline := time.After(2 * time.Second)
	for len(got) < 3 {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream closed early")
			if strings.HasPrefix(line, "id:") || strings.HasPrefix(line, "event:") || strings.HasPrefix(line, "data:") {
				got = append(got, line)
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event, got %v", got)
		}
	}

	assert.Equal(t, "event: device_created", got[1])
	assert.Contains(t, got[2], `"type":"device_created"`)
	assert.Contains(t, got[2], `"name":"R1"`)
}

func TestHubShutdownClosesClients(t *testing.T) {
	log, _ := test.NewNullLogger()
	h := New(log, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
