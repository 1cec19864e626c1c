// Package store implements the identity-namespaced local record store for
// customers and transactions, including derived balance maintenance, cascade
// deletes, aggregate stats and change notification.
//
// Failure semantics follow the local-first contract: reads never fail (a read
// error yields an empty collection and a log line), writes return errors but
// do not roll back optimistic in-memory state held by callers.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/ledgerbook/internal/domain"
	"github.com/dvloznov/ledgerbook/internal/identity"
	"github.com/dvloznov/ledgerbook/internal/kv"
)

// ErrNotFound is returned when an update or delete names a record that does
// not exist in the current identity's collections.
var ErrNotFound = errors.New("store: record not found")

const (
	customersSuffix    = "_customers"
	transactionsSuffix = "_transactions"
)

// Store is the local record store. All mutating operations are serialized by
// an internal mutex; every persisting write notifies the registered
// observers exactly once.
type Store struct {
	kv  kv.Store
	ids *identity.Context
	log zerolog.Logger
	now func() time.Time

	mu  sync.Mutex
	seq atomic.Int64

	obsMu     sync.Mutex
	observers []func()
}

// New creates a record store over the given kv backend, keyed by the given
// identity context.
func New(kvs kv.Store, ids *identity.Context, log zerolog.Logger) *Store {
	return &Store{
		kv:  kvs,
		ids: ids,
		log: log.With().Str("component", "store").Logger(),
		now: time.Now,
	}
}

// Subscribe registers an observer invoked after every persisting write to
// the customer or transaction collections. Settings writes do not notify.
// The sync engine subscribes here to schedule debounced pushes.
func (s *Store) Subscribe(fn func()) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, fn)
}

func (s *Store) notify() {
	s.obsMu.Lock()
	observers := make([]func(), len(s.observers))
	copy(observers, s.observers)
	s.obsMu.Unlock()
	for _, fn := range observers {
		fn()
	}
}

// newID returns a time-derived identifier that stays unique under rapid
// successive creates within the same millisecond.
func (s *Store) newID(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + strconv.FormatInt(s.seq.Add(1), 36)
}

func (s *Store) customersKey() string {
	return s.ids.Current() + customersSuffix
}

func (s *Store) transactionsKey() string {
	return s.ids.Current() + transactionsSuffix
}

func (s *Store) loadCustomers(ctx context.Context) []domain.Customer {
	var customers []domain.Customer
	s.loadCollection(ctx, s.customersKey(), &customers)
	return customers
}

func (s *Store) loadTransactions(ctx context.Context) []domain.Transaction {
	var transactions []domain.Transaction
	s.loadCollection(ctx, s.transactionsKey(), &transactions)
	for i := range transactions {
		transactions[i].Type = transactions[i].Type.Normalize()
	}
	return transactions
}

func (s *Store) loadCollection(ctx context.Context, key string, out any) {
	data, err := s.kv.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("Failed to read collection")
		return
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("Malformed collection data")
	}
}

// Collections resolves the current identity and reads both of its
// collections under one lock, returning the identity alongside the data.
// Callers that pair the data with an identity-derived destination (the sync
// engine's document path, backup object names) use the returned id, so a
// concurrent identity switch cannot mix one identity's records with
// another's address.
func (s *Store) Collections(ctx context.Context) (string, []domain.Customer, []domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.ids.Current()
	var customers []domain.Customer
	s.loadCollection(ctx, id+customersSuffix, &customers)
	var transactions []domain.Transaction
	s.loadCollection(ctx, id+transactionsSuffix, &transactions)
	for i := range transactions {
		transactions[i].Type = transactions[i].Type.Normalize()
	}
	return id, customers, transactions
}

// commit persists the given collections as one durable write and notifies
// observers. Nil slices are skipped, so single-collection writes and
// both-collection writes (cascades, balance adjustments) share one path.
func (s *Store) commit(ctx context.Context, customers []domain.Customer, transactions []domain.Transaction) error {
	values := make(map[string][]byte, 2)
	if customers != nil {
		data, err := json.Marshal(customers)
		if err != nil {
			return err
		}
		values[s.customersKey()] = data
	}
	if transactions != nil {
		data, err := json.Marshal(transactions)
		if err != nil {
			return err
		}
		values[s.transactionsKey()] = data
	}
	if err := s.kv.SetMulti(ctx, values); err != nil {
		s.log.Error().Err(err).Msg("Failed to persist collections")
		return err
	}
	s.notify()
	return nil
}

// Stats recomputes the aggregate summary by full scan. Income and expense
// totals cover linked and unlinked transactions alike; the customer balance
// total is an independent sum of the denormalized running balances.
func (s *Store) Stats(ctx context.Context) domain.Stats {
	transactions := s.loadTransactions(ctx)
	customers := s.loadCustomers(ctx)

	stats := domain.Stats{
		TotalCustomers:    len(customers),
		TotalTransactions: len(transactions),
	}
	for _, t := range transactions {
		switch {
		case t.Type.IsIncome():
			stats.TotalIncome = stats.TotalIncome.Add(t.Amount)
		case t.Type.IsExpense():
			stats.TotalExpenses = stats.TotalExpenses.Add(t.Amount)
		}
	}
	stats.TotalBalance = stats.TotalIncome.Sub(stats.TotalExpenses)
	for _, c := range customers {
		stats.TotalCustomerBalance = stats.TotalCustomerBalance.Add(c.Balance)
	}
	return stats
}

// ReplaceCustomers overwrites the customer collection with a direct write,
// bypassing change notification. Used by the sync engine when adopting or
// force-refreshing remote data, so a pull never echoes back as a push.
func (s *Store) ReplaceCustomers(ctx context.Context, customers []domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replace(ctx, s.customersKey(), customers)
}

// ReplaceTransactions overwrites the transaction collection with a direct
// write, bypassing change notification.
func (s *Store) ReplaceTransactions(ctx context.Context, transactions []domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range transactions {
		transactions[i].Type = transactions[i].Type.Normalize()
	}
	return s.replace(ctx, s.transactionsKey(), transactions)
}

func (s *Store) replace(ctx context.Context, key string, collection any) error {
	data, err := json.Marshal(collection)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, key, data); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("Failed to replace collection")
		return err
	}
	return nil
}
