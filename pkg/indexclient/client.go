/**
 * @description
 * This package provides a client for the external project indexing service.
 * Indexing is best-effort: calls use a bounded timeout with explicit abort, and a
 * failure degrades to a warning on the caller's side, never a rollback of the
 * primary write.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package indexclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a client for the indexing service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	timeout    time.Duration
}

// NewClient creates a new indexing client with a bounded per-call timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
}

// ProjectDocument is the payload submitted for indexing after a project is created.
type ProjectDocument struct {
	ProjectID   string `json:"project_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// IndexProject submits one project document. The request carries its own deadline
// derived from the caller's context so a slow indexer cannot hold the request open.
func (c *Client) IndexProject(ctx context.Context, doc ProjectDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/index/projects", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("indexer returned status %d", resp.StatusCode)
	}
	return nil
}
