// Package sync keeps the remote document store eventually consistent with
// the local record store for authenticated identities, tolerating
// intermittent connectivity.
//
// Pushes are single-flight per process only. Two devices can push
// concurrently and the later merge-write wins at whole-document granularity,
// silently dropping the other device's concurrent edits. That is a known,
// accepted weakness of the snapshot model, not something this engine tries
// to resolve.
package sync

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	stdsync "sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/ledgerbook/internal/connectivity"
	"github.com/dvloznov/ledgerbook/internal/domain"
	"github.com/dvloznov/ledgerbook/internal/identity"
	"github.com/dvloznov/ledgerbook/internal/remote"
	"github.com/dvloznov/ledgerbook/internal/store"
)

const (
	defaultDebounce = time.Second
	defaultFollowUp = 500 * time.Millisecond
)

// Config tunes the engine. Zero values select the defaults.
type Config struct {
	// Platform goes into the snapshot's device metadata.
	Platform string
	// Debounce is how long after a local write the push fires; rapid
	// successive edits collapse into one network round trip.
	Debounce time.Duration
	// FollowUp is the delay before the single coalesced re-push that runs
	// when requests arrived during an in-flight push.
	FollowUp time.Duration
}

// Engine is the sync engine. It subscribes to the record store's change
// notifications and to identity transitions at construction.
type Engine struct {
	store    *store.Store
	remote   remote.Client
	ids      *identity.Context
	net      connectivity.Checker
	log      zerolog.Logger
	platform string
	debounce time.Duration
	followUp time.Duration
	now      func() time.Time

	mu           stdsync.Mutex
	online       bool
	pending      bool
	inProgress   bool
	timer        *time.Timer
	lastSyncedAt string
}

// New wires an engine to its collaborators: it subscribes to store change
// notifications (debounced push) and to identity transitions (merge on
// login).
func New(st *store.Store, rc remote.Client, ids *identity.Context, net connectivity.Checker, cfg Config, log zerolog.Logger) *Engine {
	if cfg.Platform == "" {
		cfg.Platform = runtime.GOOS
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = defaultDebounce
	}
	if cfg.FollowUp == 0 {
		cfg.FollowUp = defaultFollowUp
	}
	e := &Engine{
		store:    st,
		remote:   rc,
		ids:      ids,
		net:      net,
		log:      log.With().Str("component", "sync").Logger(),
		platform: cfg.Platform,
		debounce: cfg.Debounce,
		followUp: cfg.FollowUp,
		now:      time.Now,
		online:   true,
	}
	st.Subscribe(e.scheduleSync)
	ids.OnChange(func(previous, current string) {
		if previous == identity.Guest && current != identity.Guest {
			if err := e.MergeOnLogin(context.Background()); err != nil {
				e.log.Warn().Err(err).Msg("Merge on login failed")
			}
		}
	})
	return e
}

// scheduleSync debounces local-change notifications into one push.
func (e *Engine) scheduleSync() {
	if e.ids.IsGuest() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.debounce, func() {
		e.PushAll(context.Background())
	})
}

// SetOnline feeds connectivity transitions into the engine. Restoring
// connectivity with a pending sync triggers an immediate push.
func (e *Engine) SetOnline(online bool) {
	e.mu.Lock()
	wasOnline := e.online
	e.online = online
	pending := e.pending
	e.mu.Unlock()

	if !wasOnline && online && pending {
		e.log.Info().Msg("Back online, pushing pending data")
		go e.PushAll(context.Background())
	}
}

// PushAll reads the full local collections, builds a snapshot and
// merge-writes it to the per-identity remote document. Offline, guest and
// in-flight conditions return discriminated results instead of errors.
func (e *Engine) PushAll(ctx context.Context) Result {
	online := e.net.Online(ctx)
	e.mu.Lock()
	e.online = online
	if !online {
		e.pending = true
		e.mu.Unlock()
		e.log.Info().Msg("Offline, sync pending")
		return Result{Status: StatusPending}
	}
	e.mu.Unlock()

	// The store resolves the identity and reads both collections under one
	// lock, so a concurrent identity switch cannot pair one identity's data
	// with another identity's document path.
	id, customers, transactions := e.store.Collections(ctx)
	if id == identity.Guest {
		return Result{Status: StatusNotSignedIn}
	}

	e.mu.Lock()
	if e.inProgress {
		e.pending = true
		e.mu.Unlock()
		return Result{Status: StatusInProgress}
	}
	e.inProgress = true
	e.pending = false
	e.mu.Unlock()

	snapshot := domain.NewSnapshot(customers, transactions, e.platform, e.now())
	err := e.remote.WriteDocument(ctx, remote.UserDocPath(id), snapshot.Fields(), true)

	e.mu.Lock()
	e.inProgress = false
	if err != nil {
		e.pending = true
		e.mu.Unlock()
		e.log.Error().Err(err).Msg("Sync failed, will retry")
		return Result{Status: StatusFailed, Err: err}
	}
	e.lastSyncedAt = snapshot.LastSyncedAt
	rerun := e.pending
	e.pending = false
	e.mu.Unlock()

	e.log.Info().
		Int("customers", len(customers)).
		Int("transactions", len(transactions)).
		Msg("Snapshot pushed")

	if rerun {
		// Requests that arrived mid-push coalesce into exactly one re-run.
		time.AfterFunc(e.followUp, func() {
			e.PushAll(context.Background())
		})
	}
	return Result{Status: StatusSynced}
}

// PullAll reads the remote snapshot for the current identity. It returns
// (nil, nil) when offline, signed out, or when no document exists yet; a
// missing document is the expected first-login state, never an error.
func (e *Engine) PullAll(ctx context.Context) (*domain.Snapshot, error) {
	if !e.net.Online(ctx) {
		return nil, nil
	}
	id := e.ids.Current()
	if id == identity.Guest {
		return nil, nil
	}

	fields, err := e.remote.ReadDocument(ctx, remote.UserDocPath(id))
	if errors.Is(err, remote.ErrDocumentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pull snapshot: %w", err)
	}
	snapshot := domain.SnapshotFromFields(fields)
	return &snapshot, nil
}

// MergeOnLogin runs once when the identity transitions from guest to
// authenticated. Each collection is adopted wholesale from the remote
// snapshot only if the local collection is empty; existing local data is
// never overwritten automatically. Adoption writes bypass change
// notification so the pull does not echo back as a push.
func (e *Engine) MergeOnLogin(ctx context.Context) error {
	snapshot, err := e.PullAll(ctx)
	if err != nil {
		return err
	}
	if snapshot == nil {
		return nil
	}

	var errs []error
	if len(e.store.ListCustomers(ctx)) == 0 && len(snapshot.Customers) > 0 {
		if err := e.store.ReplaceCustomers(ctx, snapshot.Customers); err != nil {
			errs = append(errs, fmt.Errorf("adopt customers: %w", err))
		} else {
			e.log.Info().Int("count", len(snapshot.Customers)).Msg("Adopted remote customers")
		}
	}
	if len(e.store.ListTransactions(ctx)) == 0 && len(snapshot.Transactions) > 0 {
		if err := e.store.ReplaceTransactions(ctx, snapshot.Transactions); err != nil {
			errs = append(errs, fmt.Errorf("adopt transactions: %w", err))
		} else {
			e.log.Info().Int("count", len(snapshot.Transactions)).Msg("Adopted remote transactions")
		}
	}
	return errors.Join(errs...)
}

// ForceRefresh overwrites both local collections from the remote snapshot,
// unconditionally. The sentinel errors ErrOffline, ErrNotSignedIn,
// ErrNoRemoteData and ErrLocalWrite mark the expected failure modes; a
// transport failure on the read surfaces as a plain wrapped error so callers
// do not confuse it with an absent document.
func (e *Engine) ForceRefresh(ctx context.Context) (RefreshResult, error) {
	if !e.net.Online(ctx) {
		return RefreshResult{}, ErrOffline
	}
	id := e.ids.Current()
	if id == identity.Guest {
		return RefreshResult{}, ErrNotSignedIn
	}

	fields, err := e.remote.ReadDocument(ctx, remote.UserDocPath(id))
	if errors.Is(err, remote.ErrDocumentNotFound) {
		return RefreshResult{}, ErrNoRemoteData
	}
	if err != nil {
		return RefreshResult{}, fmt.Errorf("refresh snapshot: %w", err)
	}
	snapshot := domain.SnapshotFromFields(fields)

	if err := e.store.ReplaceCustomers(ctx, snapshot.Customers); err != nil {
		return RefreshResult{}, fmt.Errorf("%w: customers: %v", ErrLocalWrite, err)
	}
	if err := e.store.ReplaceTransactions(ctx, snapshot.Transactions); err != nil {
		return RefreshResult{}, fmt.Errorf("%w: transactions: %v", ErrLocalWrite, err)
	}

	result := RefreshResult{
		Customers:    len(snapshot.Customers),
		Transactions: len(snapshot.Transactions),
	}
	e.log.Info().
		Int("customers", result.Customers).
		Int("transactions", result.Transactions).
		Msg("Refreshed local data from remote")
	return result, nil
}

// Status reports the engine's current state for sync indicators. It asks the
// connectivity checker directly, so a fresh process reports real reachability
// rather than the optimistic initial state.
func (e *Engine) Status(ctx context.Context) State {
	online := e.net.Online(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.online = online
	return State{
		Online:       online,
		Pending:      e.pending,
		InProgress:   e.inProgress,
		LastSyncedAt: e.lastSyncedAt,
	}
}

// Close stops any pending debounce timer.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}
