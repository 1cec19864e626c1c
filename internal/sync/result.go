package sync

import "errors"

// Status is the outcome class of a push, structured so the UI can render its
// four cases (synced / will sync later / failed / no cloud data) without
// string parsing.
type Status string

const (
	// StatusSynced means the snapshot reached the remote document store.
	StatusSynced Status = "synced"
	// StatusPending means the device is offline; the push is queued and
	// retried on the next trigger or connectivity restoration.
	StatusPending Status = "pending"
	// StatusNotSignedIn means the current identity is the guest sentinel;
	// guest data never leaves the device. Deliberate no-op, not an error.
	StatusNotSignedIn Status = "not-signed-in"
	// StatusInProgress means another push is in flight; this request was
	// coalesced into a single follow-up run.
	StatusInProgress Status = "in-progress"
	// StatusFailed means the push hit a real error; it is marked pending
	// for a later retry and Err carries the cause.
	StatusFailed Status = "failed"
)

// Result is the discriminated outcome of PushAll. The engine never panics or
// throws across this boundary for expected conditions.
type Result struct {
	Status Status
	Err    error
}

// Sentinel failures for ForceRefresh, checked with errors.Is.
var (
	ErrOffline      = errors.New("sync: offline")
	ErrNotSignedIn  = errors.New("sync: not signed in")
	ErrNoRemoteData = errors.New("sync: no remote data")
	ErrLocalWrite   = errors.New("sync: failed to write local data")
)

// RefreshResult reports how many records a force refresh overwrote.
type RefreshResult struct {
	Customers    int
	Transactions int
}

// State is a point-in-time view of the engine for status displays.
type State struct {
	Online       bool
	Pending      bool
	InProgress   bool
	LastSyncedAt string
}
