package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/remora-io/remora/internal/fieldset"
)

// DefaultTimeout bounds one snapshot request. A full snapshot can be large;
// the transport timeout is the only deadline the remote call carries on its
// own (the run-level context may impose a tighter one).
const DefaultTimeout = 2 * time.Minute

// Fetcher retrieves one full remote snapshot for a system. A single attempt
// is made per run; retry policy belongs to the caller re-running the whole
// reconciliation.
type Fetcher interface {
	FetchSnapshot(ctx context.Context, cred Credential, q Query) (fieldset.Response, error)
}

// Client is the default HTTP Fetcher. It POSTs the snapshot query to
// {baseURL}/query with a bearer credential and decodes the positional
// response envelope.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the given API base URL. A zero timeout
// falls back to DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// FetchSnapshot implements Fetcher.
func (c *Client) FetchSnapshot(ctx context.Context, cred Credential, q Query) (fieldset.Response, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return fieldset.Response{}, fmt.Errorf("encode snapshot query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(body))
	if err != nil {
		return fieldset.Response{}, fmt.Errorf("build snapshot request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cred.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fieldset.Response{}, fmt.Errorf("snapshot request for entity %s: %w", q.Entity, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Bounded read keeps a misbehaving error body out of memory and logs.
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fieldset.Response{}, fmt.Errorf("snapshot request for entity %s: status %d: %s", q.Entity, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var decoded fieldset.Response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fieldset.Response{}, fmt.Errorf("decode snapshot response for entity %s: %w", q.Entity, err)
	}
	return decoded, nil
}
