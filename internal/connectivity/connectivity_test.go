package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeOnline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	probe := NewProbe()
	probe.SetURL(server.URL)
	assert.True(t, probe.Online(context.Background()))
}

func TestProbeAnyResponseCountsAsOnline(t *testing.T) {
	// A captive portal answering 503 still proves the network is up.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	probe := NewProbe()
	probe.SetURL(server.URL)
	assert.True(t, probe.Online(context.Background()))
}

func TestProbeOfflineOnConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	probe := NewProbe()
	probe.SetURL(url)
	assert.False(t, probe.Online(context.Background()))
}

func TestManual(t *testing.T) {
	m := NewManual(false)
	assert.False(t, m.Online(context.Background()))
	m.SetOnline(true)
	assert.True(t, m.Online(context.Background()))
}

func TestWatcherReportsTransitionsOnly(t *testing.T) {
	checker := NewManual(true)
	watcher := NewWatcher(checker, 5*time.Millisecond)

	var mu sync.Mutex
	var events []bool
	watcher.Subscribe(func(online bool) {
		mu.Lock()
		events = append(events, online)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Run(ctx)

	snapshot := func() []bool {
		mu.Lock()
		defer mu.Unlock()
		return append([]bool(nil), events...)
	}

	// First poll seeds the initial state.
	require.Eventually(t, func() bool { return len(snapshot()) == 1 },
		time.Second, time.Millisecond)
	assert.Equal(t, []bool{true}, snapshot())

	// Steady state produces no further events.
	time.Sleep(30 * time.Millisecond)
	assert.Len(t, snapshot(), 1)

	checker.SetOnline(false)
	require.Eventually(t, func() bool { return len(snapshot()) == 2 },
		time.Second, time.Millisecond)
	assert.Equal(t, []bool{true, false}, snapshot())

	checker.SetOnline(true)
	require.Eventually(t, func() bool { return len(snapshot()) == 3 },
		time.Second, time.Millisecond)
	assert.Equal(t, []bool{true, false, true}, snapshot())
}
