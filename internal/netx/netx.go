// Package netx tracks network reachability for the sync and tag subsystems.
package netx

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// DefaultProbeURL answers 204 with no body, which keeps probes cheap.
const DefaultProbeURL = "http://connectivitycheck.gstatic.com/generate_204"

// Monitor answers "are we online" from a cached HTTP probe. Results are
// cached for a short window so hot paths never block on the network.
type Monitor struct {
	client   *http.Client
	probeURL string
	cacheTTL time.Duration

	mu        sync.Mutex
	online    bool
	checkedAt time.Time
	onChange  func(online bool)
}

// Option configures a Monitor.
type Option func(*Monitor)

func WithProbeURL(url string) Option {
	return func(m *Monitor) { m.probeURL = url }
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(m *Monitor) { m.cacheTTL = ttl }
}

func WithClient(client *http.Client) Option {
	return func(m *Monitor) { m.client = client }
}

func NewMonitor(opts ...Option) *Monitor {
	m := &Monitor{
		client:   &http.Client{Timeout: 3 * time.Second},
		probeURL: DefaultProbeURL,
		cacheTTL: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnChange registers a callback invoked (in its own goroutine) whenever the
// observed state flips, whether by probe or by hint. Subsystems that must
// react to the offline-to-online transition hook in here.
func (m *Monitor) OnChange(fn func(online bool)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// Online reports current reachability, probing at most once per cache window.
func (m *Monitor) Online(ctx context.Context) bool {
	m.mu.Lock()
	if time.Since(m.checkedAt) < m.cacheTTL {
		online := m.online
		m.mu.Unlock()
		return online
	}
	m.mu.Unlock()

	online := m.probe(ctx)
	m.record(online)
	return online
}

// SetHint records reachability reported by a client (the OS network change
// notification arrives there first). The hint refreshes the cache window.
func (m *Monitor) SetHint(online bool) {
	m.record(online)
}

func (m *Monitor) record(online bool) {
	m.mu.Lock()
	flipped := online != m.online
	m.online = online
	m.checkedAt = time.Now()
	fn := m.onChange
	m.mu.Unlock()

	if flipped && fn != nil {
		go fn(online)
	}
}

func (m *Monitor) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.probeURL, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}
