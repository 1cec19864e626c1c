// Package connectivity reports network reachability to the sync engine. The
// mobile app gets this from a platform API; here it is an HTTP probe plus a
// polling watcher that turns probe results into online/offline transition
// events.
package connectivity

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Checker reports current reachability.
type Checker interface {
	Online(ctx context.Context) bool
}

const defaultProbeURL = "http://clients3.google.com/generate_204"

// Probe is a Checker backed by a single HTTP request to a captive-portal
// style endpoint. Any response at all counts as online.
type Probe struct {
	httpClient *http.Client
	url        string
}

// NewProbe creates a probe against the default endpoint.
func NewProbe() *Probe {
	return &Probe{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		url:        defaultProbeURL,
	}
}

// SetURL points the probe at a different endpoint. Used in tests.
func (p *Probe) SetURL(url string) { p.url = url }

// Online implements Checker.
func (p *Probe) Online(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// Manual is a Checker toggled by hand. Tests and embedding callers that
// already know the network state use it in place of a probe.
type Manual struct {
	online atomic.Bool
}

// NewManual creates a manual checker with the given initial state.
func NewManual(online bool) *Manual {
	m := &Manual{}
	m.online.Store(online)
	return m
}

// SetOnline flips the reported state.
func (m *Manual) SetOnline(online bool) { m.online.Store(online) }

// Online implements Checker.
func (m *Manual) Online(ctx context.Context) bool { return m.online.Load() }

// Watcher polls a Checker and delivers online/offline transitions to
// subscribers. It reports only changes, not every poll.
type Watcher struct {
	checker  Checker
	interval time.Duration

	mu          sync.Mutex
	subscribers []func(online bool)
	last        bool
	seeded      bool
}

// NewWatcher creates a watcher polling checker at the given interval.
func NewWatcher(checker Checker, interval time.Duration) *Watcher {
	return &Watcher{checker: checker, interval: interval}
}

// Subscribe registers a transition observer.
func (w *Watcher) Subscribe(fn func(online bool)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subscribers = append(w.subscribers, fn)
}

// Run polls until ctx is done. The first poll always notifies, seeding
// subscribers with the initial state.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	online := w.checker.Online(ctx)

	w.mu.Lock()
	changed := !w.seeded || online != w.last
	w.seeded = true
	w.last = online
	subscribers := make([]func(bool), len(w.subscribers))
	copy(subscribers, w.subscribers)
	w.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range subscribers {
		fn(online)
	}
}

var (
	_ Checker = (*Probe)(nil)
	_ Checker = (*Manual)(nil)
)
