package netx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonitorProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	m := NewMonitor(WithProbeURL(srv.URL), WithCacheTTL(0))
	assert.True(t, m.Online(context.Background()))
}

func TestMonitorUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	m := NewMonitor(WithProbeURL(srv.URL), WithCacheTTL(0))
	assert.False(t, m.Online(context.Background()))
}

func TestMonitorCachesResult(t *testing.T) {
	var probes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probes.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	m := NewMonitor(WithProbeURL(srv.URL), WithCacheTTL(time.Minute))
	for i := 0; i < 5; i++ {
		m.Online(context.Background())
	}
	assert.EqualValues(t, 1, probes.Load())
}

func TestMonitorNotifiesOnReconnect(t *testing.T) {
	m := NewMonitor(WithCacheTTL(time.Minute))

	flips := make(chan bool, 4)
	m.OnChange(func(online bool) { flips <- online })

	m.SetHint(false)
	m.SetHint(true)

	select {
	case online := <-flips:
		assert.True(t, online)
	case <-time.After(time.Second):
		t.Fatal("no notification after hint flipped the monitor online")
	}

	// Repeating the same hint is not a transition.
	m.SetHint(true)
	select {
	case <-flips:
		t.Fatal("notified without a state change")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMonitorHintOverridesProbe(t *testing.T) {
	var probes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probes.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	m := NewMonitor(WithProbeURL(srv.URL), WithCacheTTL(time.Minute))
	m.SetHint(false)

	assert.False(t, m.Online(context.Background()))
	assert.EqualValues(t, 0, probes.Load())
}
