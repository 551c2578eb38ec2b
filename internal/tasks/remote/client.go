// Package remote talks to the JSON document store that holds the shared copy
// of the task list.
//
// The store is path addressed. The whole list lives at {base}.json and each
// task at {base}/{IDENTIFIER}.json:
//
//	GET    {base}.json          -> {"<key>": {task}, ...}  (or null when empty)
//	PUT    {base}/{id}.json     <- {task}
//	DELETE {base}/{id}.json
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tasksync/tasks/internal/tasks/schema"
)

// DefaultBaseURL is the document store used when none is configured.
const DefaultBaseURL = "https://tasks-3f211.firebaseio.com/"

// Store is the remote side of synchronisation.
type Store interface {
	// FetchAll returns the current snapshot keyed by opaque document keys.
	FetchAll(ctx context.Context) (map[string]*schema.Representation, error)
	// Put upserts one task at its identifier.
	Put(ctx context.Context, task *schema.Task) error
	// Delete removes the task stored at id.
	Delete(ctx context.Context, id uuid.UUID) error
}

// Config holds configuration for the client.
type Config struct {
	// BaseURL is the document store root, e.g. https://example.firebaseio.com/
	BaseURL string

	// Timeout bounds each request (default: 15s)
	Timeout time.Duration

	// HTTPClient overrides the default client (Timeout is then ignored)
	HTTPClient *http.Client

	// Logger for client activity (default: stderr logger)
	Logger *log.Logger
}

// Client implements Store over HTTP.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *log.Logger
}

// NewClient creates a client for the store rooted at cfg.BaseURL.
func NewClient(cfg Config) (*Client, error) {
	raw := cfg.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid remote URL %q: %w", raw, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid remote URL %q: scheme must be http or https", raw)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}

	return &Client{
		base:   base,
		http:   httpClient,
		logger: logger,
	}, nil
}

// BaseURL returns the store root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// snapshotURL is {base}.json: the root path with the extension appended.
func (c *Client) snapshotURL() string {
	u := *c.base
	path := strings.TrimSuffix(u.Path, "/")
	if path == "" {
		path = "/"
	}
	u.Path = path + ".json"
	return u.String()
}

// documentURL is {base}/{IDENTIFIER}.json.
func (c *Client) documentURL(id uuid.UUID) string {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + schema.FormatID(id) + ".json"
	return u.String()
}

// FetchAll implements Store.FetchAll.
func (c *Client) FetchAll(ctx context.Context) (map[string]*schema.Representation, error) {
	const op = "fetch"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.snapshotURL(), nil)
	if err != nil {
		return nil, newError(op, KindTransport, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Printf("Error fetching tasks: %v", err)
		return nil, newError(op, KindTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Printf("Error reading task snapshot: %v", err)
		return nil, newError(op, KindTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Printf("Error fetching tasks: status %d", resp.StatusCode)
		return nil, newError(op, KindTransport, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	if len(bytes.TrimSpace(body)) == 0 {
		c.logger.Printf("Error: no data returned from fetch")
		return nil, newError(op, KindEmptyResponse, nil)
	}

	snapshot, err := schema.DecodeSnapshot(body)
	if err != nil {
		c.logger.Printf("Error decoding task representations: %v", err)
		return nil, newError(op, KindDecode, err)
	}
	return snapshot, nil
}

// Put implements Store.Put.
func (c *Client) Put(ctx context.Context, task *schema.Task) error {
	const op = "put"

	if task == nil || task.ID == uuid.Nil {
		return newError(op, KindMissingIdentifier, nil)
	}

	rep, err := task.Representation()
	if err != nil {
		return newError(op, KindRepresentation, err)
	}

	body, err := json.Marshal(rep)
	if err != nil {
		c.logger.Printf("Error encoding task %s: %v", task.ID, err)
		return newError(op, KindEncode, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.documentURL(task.ID), bytes.NewReader(body))
	if err != nil {
		return newError(op, KindTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Printf("Error PUTting task to server: %v", err)
		return newError(op, KindTransport, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Printf("Warning: PUT %s returned status %d", schema.FormatID(task.ID), resp.StatusCode)
	}

	return nil
}

// Delete implements Store.Delete.
//
// A status other than 200 is logged but not returned as an error; only a
// transport failure is.
func (c *Client) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "delete"

	if id == uuid.Nil {
		return newError(op, KindMissingIdentifier, nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.documentURL(id), nil)
	if err != nil {
		return newError(op, KindTransport, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Printf("Error deleting task for id %s: %v", schema.FormatID(id), err)
		return newError(op, KindTransport, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		c.logger.Printf("Error: status code is not the expected 200. Instead it is %d", resp.StatusCode)
	}

	return nil
}
