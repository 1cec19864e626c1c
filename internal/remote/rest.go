package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dvloznov/ledgerbook/internal/identity"
)

const defaultRESTBase = "https://firestore.googleapis.com/v1"

// RESTClient is the REST-style transport for runtimes where the SDK cannot
// run. It makes bearer-token HTTP calls against the Firestore REST endpoint
// and hand-encodes payloads into Firestore's typed value wire format.
type RESTClient struct {
	httpClient *http.Client
	projectID  string
	tokens     identity.TokenSource
	base       string
}

// NewRESTClient creates a REST transport for the given project. Tokens must
// supply currently valid identity tokens; refresh is the auth collaborator's
// job.
func NewRESTClient(projectID string, tokens identity.TokenSource) *RESTClient {
	return &RESTClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		projectID:  projectID,
		tokens:     tokens,
		base:       defaultRESTBase,
	}
}

// SetBaseURL points the client at a different endpoint. Used in tests and
// with the Firestore emulator.
func (r *RESTClient) SetBaseURL(base string) { r.base = base }

// ReadDocument implements Client. A 404 means the document does not exist
// yet and maps to ErrDocumentNotFound.
func (r *RESTClient) ReadDocument(ctx context.Context, path string) (map[string]any, error) {
	body, status, err := r.do(ctx, http.MethodGet, r.docURL(path), nil)
	if err != nil {
		return nil, fmt.Errorf("ReadDocument %q: %w", path, err)
	}
	if status == http.StatusNotFound {
		return nil, ErrDocumentNotFound
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("ReadDocument %q: %s", path, restErrorMessage(body, status))
	}

	var doc struct {
		Fields map[string]json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("ReadDocument %q: decode response: %w", path, err)
	}
	return DecodeFields(doc.Fields)
}

// WriteDocument implements Client. Merge writes send an updateMask naming
// each top-level field in the payload, so fields absent from the payload are
// preserved remotely; a plain PATCH without a mask would wipe them.
func (r *RESTClient) WriteDocument(ctx context.Context, path string, fields map[string]any, merge bool) error {
	target := r.docURL(path)
	if merge {
		query := url.Values{}
		for key := range fields {
			query.Add("updateMask.fieldPaths", key)
		}
		target += "?" + query.Encode()
	}

	payload, err := json.Marshal(map[string]any{"fields": EncodeFields(fields)})
	if err != nil {
		return fmt.Errorf("WriteDocument %q: encode payload: %w", path, err)
	}

	body, status, err := r.do(ctx, http.MethodPatch, target, payload)
	if err != nil {
		return fmt.Errorf("WriteDocument %q: %w", path, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("WriteDocument %q: %s", path, restErrorMessage(body, status))
	}
	return nil
}

// Close implements Client.
func (r *RESTClient) Close() error {
	r.httpClient.CloseIdleConnections()
	return nil
}

func (r *RESTClient) docURL(path string) string {
	return fmt.Sprintf("%s/projects/%s/databases/(default)/documents/%s", r.base, r.projectID, path)
}

func (r *RESTClient) do(ctx context.Context, method, target string, payload []byte) ([]byte, int, error) {
	token, err := r.tokens.IDToken(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("get id token: %w", err)
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func restErrorMessage(body []byte, status int) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return fmt.Sprintf("unexpected status %d", status)
}

var _ Client = (*RESTClient)(nil)
