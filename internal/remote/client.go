package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"feltsync/internal/config"
	"feltsync/internal/faults"
)

// HTTPDoer describes the HTTP client used by the document store client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the tenant-scoped remote document API over HTTP.
type Client struct {
	baseURL   string
	tenantKey string
	apiToken  string
	client    HTTPDoer
}

// NewClient constructs a document store client from configuration.
func NewClient(cfg *config.Config) *Client {
	httpClient := &http.Client{Timeout: time.Duration(cfg.Remote.RequestTimeout) * time.Second}
	return NewClientWithDoer(cfg.Remote.BaseURL, cfg.Remote.TenantKey, cfg.Remote.APIToken, httpClient)
}

// NewClientWithDoer constructs a client with an explicit HTTP doer. Tests use
// this to inject transport behavior.
func NewClientWithDoer(baseURL, tenantKey, apiToken string, client HTTPDoer) *Client {
	return &Client{
		baseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		tenantKey: strings.TrimSpace(tenantKey),
		apiToken:  strings.TrimSpace(apiToken),
		client:    client,
	}
}

func (c *Client) collectionURL(collection string) string {
	return fmt.Sprintf("%s/tenants/%s/%s", c.baseURL, url.PathEscape(c.tenantKey), url.PathEscape(collection))
}

func (c *Client) documentURL(collection, id string) string {
	return fmt.Sprintf("%s/%s", c.collectionURL(collection), url.PathEscape(id))
}

// List returns documents in the collection modified at or after since. A zero
// since fetches the whole collection.
func (c *Client) List(ctx context.Context, collection string, since time.Time) ([]Document, error) {
	listURL := c.collectionURL(collection)
	if !since.IsZero() {
		listURL += "?since=" + strconv.FormatInt(since.UnixMilli(), 10)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, faults.Wrap(faults.ErrRejected, "remote", "list "+collection, err)
	}
	c.decorate(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, faults.Wrap(faults.ErrTransient, "remote", "list "+collection, err)
	}
	defer resp.Body.Close()
	if err := c.classifyStatus(resp, "list "+collection); err != nil {
		return nil, err
	}

	var docs []Document
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		return nil, faults.Wrap(faults.ErrTransient, "remote", "decode "+collection, err)
	}
	return docs, nil
}

// Put creates or replaces the document stored under id.
func (c *Client) Put(ctx context.Context, collection, id string, doc Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return faults.Wrap(faults.ErrRejected, "remote", "encode "+collection, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.documentURL(collection, id), bytes.NewReader(body))
	if err != nil {
		return faults.Wrap(faults.ErrRejected, "remote", "put "+collection, err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.decorate(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return faults.Wrap(faults.ErrTransient, "remote", "put "+collection, err)
	}
	defer resp.Body.Close()
	return c.classifyStatus(resp, "put "+collection+"/"+id)
}

// Delete removes the document stored under id. A missing document is treated
// as already deleted.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.documentURL(collection, id), nil)
	if err != nil {
		return faults.Wrap(faults.ErrRejected, "remote", "delete "+collection, err)
	}
	c.decorate(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return faults.Wrap(faults.ErrTransient, "remote", "delete "+collection, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return c.classifyStatus(resp, "delete "+collection+"/"+id)
}

func (c *Client) decorate(req *http.Request) {
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
	req.Header.Set("Accept", "application/json")
}

// classifyStatus maps HTTP status codes onto the fault taxonomy: 5xx and 429
// are retryable, other 4xx are permanent rejections.
func (c *Client) classifyStatus(resp *http.Response, operation string) error {
	if resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}
	detail := strings.TrimSpace(string(readBodyPrefix(resp.Body)))
	statusErr := fmt.Errorf("%s returned %d", operation, resp.StatusCode)
	if detail != "" {
		statusErr = fmt.Errorf("%s returned %d: %s", operation, resp.StatusCode, detail)
	}
	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return faults.Wrap(faults.ErrTransient, "remote", operation, statusErr)
	}
	return faults.Wrap(faults.ErrRejected, "remote", operation, statusErr)
}

func readBodyPrefix(r io.Reader) []byte {
	buf, _ := io.ReadAll(io.LimitReader(r, 512))
	return buf
}
