package sync

import (
	"context"
	"encoding/json"
	"errors"
	stdsync "sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/ledgerbook/internal/connectivity"
	"github.com/dvloznov/ledgerbook/internal/domain"
	"github.com/dvloznov/ledgerbook/internal/identity"
	"github.com/dvloznov/ledgerbook/internal/kv"
	"github.com/dvloznov/ledgerbook/internal/logger"
	"github.com/dvloznov/ledgerbook/internal/remote"
	"github.com/dvloznov/ledgerbook/internal/store"
)

type fakeRemote struct {
	mu       stdsync.Mutex
	docs     map[string]map[string]any
	writes   int
	writeErr error
	readErr  error
	delay    time.Duration
}

var _ remote.Client = (*fakeRemote)(nil)

func (f *fakeRemote) ReadDocument(ctx context.Context, path string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	doc, ok := f.docs[path]
	if !ok {
		return nil, remote.ErrDocumentNotFound
	}
	return doc, nil
}

func (f *fakeRemote) WriteDocument(ctx context.Context, path string, fields map[string]any, merge bool) error {
	f.mu.Lock()
	delay := f.delay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	if f.docs == nil {
		f.docs = make(map[string]map[string]any)
	}
	f.docs[path] = fields
	f.writes++
	return nil
}

func (f *fakeRemote) Close() error { return nil }

func (f *fakeRemote) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func (f *fakeRemote) document(path string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[path]
}

func (f *fakeRemote) seed(path string, fields map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.docs == nil {
		f.docs = make(map[string]map[string]any)
	}
	f.docs[path] = fields
}

type testRig struct {
	engine *Engine
	store  *store.Store
	kv     *kv.Memory
	ids    *identity.Context
	remote *fakeRemote
	net    *connectivity.Manual
}

func newTestRig(t *testing.T, online bool) *testRig {
	t.Helper()
	kvs := kv.NewMemory()
	ids := identity.NewContext()
	st := store.New(kvs, ids, logger.Nop())
	rc := &fakeRemote{}
	net := connectivity.NewManual(online)
	engine := New(st, rc, ids, net, Config{
		Platform: "test",
		Debounce: 20 * time.Millisecond,
		FollowUp: 10 * time.Millisecond,
	}, logger.Nop())
	t.Cleanup(engine.Close)
	return &testRig{engine: engine, store: st, kv: kvs, ids: ids, remote: rc, net: net}
}

func addLocalData(t *testing.T, rig *testRig) {
	t.Helper()
	ctx := context.Background()
	customer, err := rig.store.AddCustomer(ctx, store.CustomerInput{Name: "Ana"})
	require.NoError(t, err)
	_, err = rig.store.AddTransaction(ctx, store.TransactionInput{
		Amount:     decimal.NewFromInt(50),
		Type:       domain.TypeIncome,
		CustomerID: customer.ID,
	})
	require.NoError(t, err)
}

func TestGuestNeverTouchesNetwork(t *testing.T) {
	rig := newTestRig(t, true)
	addLocalData(t, rig)

	result := rig.engine.PushAll(context.Background())
	assert.Equal(t, StatusNotSignedIn, result.Status)

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, rig.remote.writeCount(), "guest data must never leave the device")
}

func TestPushAllWritesSnapshot(t *testing.T) {
	rig := newTestRig(t, true)
	rig.ids.SetIdentity("user-1")
	addLocalData(t, rig)

	result := rig.engine.PushAll(context.Background())
	require.Equal(t, StatusSynced, result.Status)
	require.NoError(t, result.Err)

	doc := rig.remote.document("users/user-1")
	require.NotNil(t, doc)
	assert.Len(t, doc["customers"].([]any), 1)
	assert.Len(t, doc["transactions"].([]any), 1)
	assert.NotEmpty(t, doc["lastSyncedAt"])

	state := rig.engine.Status(context.Background())
	assert.False(t, state.Pending)
	assert.NotEmpty(t, state.LastSyncedAt)
}

func TestLocalWritesDebounceIntoOnePush(t *testing.T) {
	rig := newTestRig(t, true)
	rig.ids.SetIdentity("user-1")

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := rig.store.AddCustomer(ctx, store.CustomerInput{Name: "C"})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool { return rig.remote.writeCount() == 1 },
		time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, rig.remote.writeCount(), "rapid edits must coalesce into one push")
}

func TestOfflineQueuesThenPushesOnReconnect(t *testing.T) {
	rig := newTestRig(t, false)
	rig.ids.SetIdentity("user-1")
	addLocalData(t, rig)

	result := rig.engine.PushAll(context.Background())
	assert.Equal(t, StatusPending, result.Status)
	assert.True(t, rig.engine.Status(context.Background()).Pending)
	assert.Zero(t, rig.remote.writeCount())

	rig.net.SetOnline(true)
	rig.engine.SetOnline(true)

	require.Eventually(t, func() bool { return rig.remote.writeCount() == 1 },
		time.Second, 5*time.Millisecond)
	assert.False(t, rig.engine.Status(context.Background()).Pending)
}

func TestInFlightPushCoalescesFollowUp(t *testing.T) {
	rig := newTestRig(t, true)
	rig.ids.SetIdentity("user-1")
	addLocalData(t, rig)
	rig.remote.mu.Lock()
	rig.remote.delay = 50 * time.Millisecond
	rig.remote.mu.Unlock()

	done := make(chan Result, 1)
	go func() { done <- rig.engine.PushAll(context.Background()) }()

	// Wait until the first push is actually in flight, then pile on.
	require.Eventually(t, func() bool { return rig.engine.Status(context.Background()).InProgress },
		time.Second, time.Millisecond)
	assert.Equal(t, StatusInProgress, rig.engine.PushAll(context.Background()).Status)
	assert.Equal(t, StatusInProgress, rig.engine.PushAll(context.Background()).Status)

	require.Equal(t, StatusSynced, (<-done).Status)

	// The two piled-on requests collapse into exactly one follow-up push.
	require.Eventually(t, func() bool { return rig.remote.writeCount() == 2 },
		time.Second, 5*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 2, rig.remote.writeCount())
}

func TestPushFailureSetsPending(t *testing.T) {
	rig := newTestRig(t, true)
	rig.ids.SetIdentity("user-1")
	rig.remote.mu.Lock()
	rig.remote.writeErr = errors.New("quota exceeded")
	rig.remote.mu.Unlock()

	result := rig.engine.PushAll(context.Background())
	assert.Equal(t, StatusFailed, result.Status)
	assert.Error(t, result.Err)
	assert.True(t, rig.engine.Status(context.Background()).Pending)
}

func TestPullAllAbsentDocument(t *testing.T) {
	rig := newTestRig(t, true)
	rig.ids.SetIdentity("user-1")

	snapshot, err := rig.engine.PullAll(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snapshot, "a missing document is the normal first-login state")
}

func TestPullAllOfflineAndGuest(t *testing.T) {
	rig := newTestRig(t, false)
	snapshot, err := rig.engine.PullAll(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snapshot)

	rig.net.SetOnline(true)
	snapshot, err = rig.engine.PullAll(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snapshot, "guest has no remote document to pull")
}

func remoteSnapshotFields(names ...string) map[string]any {
	customers := make([]domain.Customer, 0, len(names))
	for i, name := range names {
		customers = append(customers, domain.Customer{ID: "r" + string(rune('0'+i)), Name: name})
	}
	transactions := []domain.Transaction{{
		ID:     "rt1",
		Amount: decimal.NewFromInt(10),
		Type:   domain.TypeIncome,
	}}
	return domain.NewSnapshot(customers, transactions, "other-device", time.Now()).Fields()
}

func TestLoginAdoptsRemoteDataWhenLocalIsEmpty(t *testing.T) {
	rig := newTestRig(t, true)
	rig.remote.seed("users/user-1", remoteSnapshotFields("Remote Ana"))

	rig.ids.SetIdentity("user-1")

	ctx := context.Background()
	customers := rig.store.ListCustomers(ctx)
	require.Len(t, customers, 1)
	assert.Equal(t, "Remote Ana", customers[0].Name)
	assert.Len(t, rig.store.ListTransactions(ctx), 1)

	// Adoption writes bypass change notification, so nothing echoes back.
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, rig.remote.writeCount())
}

func TestLoginKeepsLocalDataWhenNonEmpty(t *testing.T) {
	rig := newTestRig(t, true)
	rig.remote.seed("users/user-2", remoteSnapshotFields("Remote Ana"))

	// Pre-existing local data in the authenticated identity's namespace.
	local, err := json.Marshal([]domain.Customer{{ID: "l1", Name: "Local Bo"}})
	require.NoError(t, err)
	require.NoError(t, rig.kv.Set(context.Background(), "user-2_customers", local))

	rig.ids.SetIdentity("user-2")

	customers := rig.store.ListCustomers(context.Background())
	require.Len(t, customers, 1)
	assert.Equal(t, "Local Bo", customers[0].Name, "existing local data must win over remote on login")

	// Transactions were locally empty, so that collection is still adopted.
	assert.Len(t, rig.store.ListTransactions(context.Background()), 1)
}

func TestForceRefreshSentinels(t *testing.T) {
	t.Run("offline", func(t *testing.T) {
		rig := newTestRig(t, false)
		rig.ids.SetIdentity("user-1")
		_, err := rig.engine.ForceRefresh(context.Background())
		assert.ErrorIs(t, err, ErrOffline)
	})

	t.Run("guest", func(t *testing.T) {
		rig := newTestRig(t, true)
		_, err := rig.engine.ForceRefresh(context.Background())
		assert.ErrorIs(t, err, ErrNotSignedIn)
	})

	t.Run("no remote document", func(t *testing.T) {
		rig := newTestRig(t, true)
		rig.ids.SetIdentity("user-1")
		_, err := rig.engine.ForceRefresh(context.Background())
		assert.ErrorIs(t, err, ErrNoRemoteData)
	})

	t.Run("transport failure", func(t *testing.T) {
		rig := newTestRig(t, true)
		rig.ids.SetIdentity("user-1")
		rig.remote.mu.Lock()
		rig.remote.readErr = errors.New("missing or insufficient permissions")
		rig.remote.mu.Unlock()
		_, err := rig.engine.ForceRefresh(context.Background())
		require.Error(t, err)
		// A failed read is a sync failure, not an absent document.
		assert.NotErrorIs(t, err, ErrNoRemoteData)
		assert.NotErrorIs(t, err, ErrLocalWrite)
		assert.Contains(t, err.Error(), "missing or insufficient permissions")
	})
}

func TestStatusConsultsChecker(t *testing.T) {
	rig := newTestRig(t, false)
	rig.ids.SetIdentity("user-1")

	// A fresh engine has never pushed; Status must still report real
	// reachability.
	assert.False(t, rig.engine.Status(context.Background()).Online)

	rig.net.SetOnline(true)
	assert.True(t, rig.engine.Status(context.Background()).Online)
}

func TestWatcherDrivesReconnectPush(t *testing.T) {
	rig := newTestRig(t, false)
	rig.ids.SetIdentity("user-1")
	addLocalData(t, rig)
	require.Equal(t, StatusPending, rig.engine.PushAll(context.Background()).Status)

	watcher := connectivity.NewWatcher(rig.net, 5*time.Millisecond)
	watcher.Subscribe(rig.engine.SetOnline)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Run(ctx)

	// Wait for the seed poll so the next change is a real transition.
	time.Sleep(20 * time.Millisecond)
	rig.net.SetOnline(true)

	require.Eventually(t, func() bool { return rig.remote.writeCount() == 1 },
		time.Second, 5*time.Millisecond)
	assert.False(t, rig.engine.Status(context.Background()).Pending)
}

func TestForceRefreshOverwritesLocal(t *testing.T) {
	rig := newTestRig(t, true)
	rig.ids.SetIdentity("user-1")
	addLocalData(t, rig)
	rig.remote.seed("users/user-1", remoteSnapshotFields("Remote Ana", "Remote Bo"))

	result, err := rig.engine.ForceRefresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Customers)
	assert.Equal(t, 1, result.Transactions)

	ctx := context.Background()
	customers := rig.store.ListCustomers(ctx)
	require.Len(t, customers, 2)
	assert.Equal(t, "Remote Ana", customers[0].Name)
	require.Len(t, rig.store.ListTransactions(ctx), 1)
	assert.Equal(t, "rt1", rig.store.ListTransactions(ctx)[0].ID)
}
