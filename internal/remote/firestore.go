package remote

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreClient is the SDK-style transport: a stateful, pre-authenticated
// Firestore client whose Set performs the server-side merge for us.
type FirestoreClient struct {
	client *firestore.Client
}

// NewFirestoreClient connects the Firestore SDK to the given project. With an
// empty credentialsFile, application default credentials apply.
func NewFirestoreClient(ctx context.Context, projectID, credentialsFile string) (*FirestoreClient, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return &FirestoreClient{client: client}, nil
}

// ReadDocument implements Client.
func (f *FirestoreClient) ReadDocument(ctx context.Context, path string) (map[string]any, error) {
	snap, err := f.client.Doc(path).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ReadDocument %q: %w", path, err)
	}
	return snap.Data(), nil
}

// WriteDocument implements Client.
func (f *FirestoreClient) WriteDocument(ctx context.Context, path string, fields map[string]any, merge bool) error {
	var opts []firestore.SetOption
	if merge {
		opts = append(opts, firestore.MergeAll)
	}
	if _, err := f.client.Doc(path).Set(ctx, fields, opts...); err != nil {
		return fmt.Errorf("WriteDocument %q: %w", path, err)
	}
	return nil
}

// Close implements Client.
func (f *FirestoreClient) Close() error { return f.client.Close() }

var _ Client = (*FirestoreClient)(nil)
