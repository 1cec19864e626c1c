// Package backup exports the current ledger snapshot as a timestamped JSON
// object in a Cloud Storage bucket, and restores local data from a previously
// exported object. It is a manual, user-triggered feature alongside the
// document-store sync, not part of the sync protocol.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/ledgerbook/internal/domain"
	"github.com/dvloznov/ledgerbook/internal/identity"
	"github.com/dvloznov/ledgerbook/internal/store"
)

// ErrGuest is returned when a backup or restore is requested under the guest
// identity; guest data stays on the device.
var ErrGuest = errors.New("backup: guest data stays on the device")

// Uploader writes one named object to backing storage.
type Uploader interface {
	Upload(ctx context.Context, objectName string, data []byte) error
}

// Downloader reads one named object back from backing storage.
type Downloader interface {
	Download(ctx context.Context, objectName string) ([]byte, error)
}

// Bucket is the full backup target: upload for export, download for restore.
type Bucket interface {
	Uploader
	Downloader
}

// Exporter assembles and uploads ledger snapshots, and restores them.
type Exporter struct {
	store    *store.Store
	ids      *identity.Context
	bucket   Bucket
	platform string
	log      zerolog.Logger
	now      func() time.Time
}

// NewExporter creates an exporter for the given store and bucket.
func NewExporter(st *store.Store, ids *identity.Context, bucket Bucket, platform string, log zerolog.Logger) *Exporter {
	return &Exporter{
		store:    st,
		ids:      ids,
		bucket:   bucket,
		platform: platform,
		log:      log.With().Str("component", "backup").Logger(),
		now:      time.Now,
	}
}

// Export uploads the current identity's full snapshot and returns the object
// name it was stored under.
func (e *Exporter) Export(ctx context.Context) (string, error) {
	id, customers, transactions := e.store.Collections(ctx)
	if id == identity.Guest {
		return "", ErrGuest
	}

	snapshot := domain.NewSnapshot(customers, transactions, e.platform, e.now())
	data, err := snapshot.MarshalStable()
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	objectName := fmt.Sprintf("backups/%s/%s-%s.json",
		id,
		e.now().UTC().Format("20060102T150405Z"),
		uuid.New().String()[:8],
	)
	if err := e.bucket.Upload(ctx, objectName, data); err != nil {
		return "", fmt.Errorf("upload backup: %w", err)
	}

	e.log.Info().
		Str("object", objectName).
		Int("customers", len(snapshot.Customers)).
		Int("transactions", len(snapshot.Transactions)).
		Msg("Backup uploaded")
	return objectName, nil
}

// Restore downloads a previously exported snapshot object and overwrites the
// current identity's collections with its contents. Like a force refresh,
// existing local data is replaced wholesale.
func (e *Exporter) Restore(ctx context.Context, objectName string) (domain.Snapshot, error) {
	if e.ids.IsGuest() {
		return domain.Snapshot{}, ErrGuest
	}

	data, err := e.bucket.Download(ctx, objectName)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("download backup: %w", err)
	}
	var snapshot domain.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode backup %q: %w", objectName, err)
	}

	if err := e.store.ReplaceCustomers(ctx, snapshot.Customers); err != nil {
		return domain.Snapshot{}, fmt.Errorf("restore customers: %w", err)
	}
	if err := e.store.ReplaceTransactions(ctx, snapshot.Transactions); err != nil {
		return domain.Snapshot{}, fmt.Errorf("restore transactions: %w", err)
	}

	e.log.Info().
		Str("object", objectName).
		Int("customers", len(snapshot.Customers)).
		Int("transactions", len(snapshot.Transactions)).
		Msg("Backup restored")
	return snapshot, nil
}
