// Package remote implements the remote access strategy: one narrow
// document-read/merge-write interface over two interchangeable transports,
// the Firestore Go SDK and the Firestore REST API. The sync engine depends
// only on the Client interface and never learns which transport is active.
package remote

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dvloznov/ledgerbook/internal/identity"
)

// ErrDocumentNotFound is returned by ReadDocument when the document does not
// exist yet. For a first-time user this is the expected state, not a failure.
var ErrDocumentNotFound = errors.New("remote: document not found")

// Client reads and writes one JSON document per path. Field values are plain
// JSON-ish Go types (string, float64, bool, []any, map[string]any, nil).
type Client interface {
	// ReadDocument fetches the document at path, or ErrDocumentNotFound.
	ReadDocument(ctx context.Context, path string) (map[string]any, error)

	// WriteDocument writes fields to the document at path. With merge set,
	// fields absent from the payload are preserved on the remote side.
	WriteDocument(ctx context.Context, path string, fields map[string]any, merge bool) error

	// Close releases transport resources.
	Close() error
}

// UserDocPath is the per-identity document path holding the sync snapshot.
func UserDocPath(identityID string) string {
	return "users/" + identityID
}

// Options configures transport selection.
type Options struct {
	// ProjectID is the Firestore project.
	ProjectID string
	// Transport is "sdk", "rest" or "auto" (empty means auto).
	Transport string
	// CredentialsFile optionally points at a service-account key for the
	// SDK transport; without it the SDK uses application default credentials.
	CredentialsFile string
	// Tokens supplies bearer tokens for the REST transport.
	Tokens identity.TokenSource
}

// New selects and constructs a transport once per process. Auto selection
// prefers the SDK when SDK credentials are configured and falls back to REST
// when only an identity token source is available, mirroring the platform
// split the mobile app makes between its SDK and REST code paths.
func New(ctx context.Context, opts Options) (Client, error) {
	if opts.ProjectID == "" {
		return nil, errors.New("remote: project id is required")
	}
	transport := opts.Transport
	if transport == "" || transport == "auto" {
		if opts.CredentialsFile != "" || os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" {
			transport = "sdk"
		} else if opts.Tokens != nil {
			transport = "rest"
		} else {
			transport = "sdk"
		}
	}
	switch transport {
	case "sdk":
		return NewFirestoreClient(ctx, opts.ProjectID, opts.CredentialsFile)
	case "rest":
		if opts.Tokens == nil {
			return nil, errors.New("remote: rest transport requires a token source")
		}
		return NewRESTClient(opts.ProjectID, opts.Tokens), nil
	default:
		return nil, fmt.Errorf("remote: unknown transport %q", opts.Transport)
	}
}
