// Package tiled is a client for the subset of the Tiled REST API that
// glazed exposes: node search, metadata, full table reads and raw asset
// bytes.
package tiled

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/segmentio/encoding/json"
)

type Client struct {
	http    *http.Client
	address *url.URL
}

// NewClient builds a client for the Tiled server at address. The address
// must be an absolute http(s) URL.
func NewClient(address string) (*Client, error) {
	u, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("invalid tiled address %q: %w", address, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("tiled address %q is not an absolute URL", address)
	}
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		address: u,
	}, nil
}

// AppMetadata fetches the Tiled server's self-description from /api/v1/.
func (c *Client) AppMetadata(ctx context.Context) (AppMetadata, error) {
	var meta AppMetadata
	err := c.get(ctx, "/api/v1/", "", nil, &meta)
	return meta, err
}

// Search lists the children of the node at path. Auth is the raw
// Authorization header value to forward upstream, empty for none.
func (c *Client) Search(ctx context.Context, path, auth string, query url.Values) (Root, error) {
	var root Root
	err := c.get(ctx, "/api/v1/search/"+path, auth, query, &root)
	return root, err
}

// Metadata fetches the node at id.
func (c *Client) Metadata(ctx context.Context, id, auth string) (Metadata, error) {
	var meta Metadata
	err := c.get(ctx, "/api/v1/metadata/"+id, auth, nil, &meta)
	return meta, err
}

// TableFull reads an entire table node as column-keyed JSON. A nil columns
// slice requests every column.
func (c *Client) TableFull(ctx context.Context, path string, columns []string, auth string) (Table, error) {
	query := url.Values{}
	for _, col := range columns {
		query.Add("column", col)
	}

	var table Table
	err := c.get(ctx, "/api/v1/table/full/"+path, auth, query, &table)
	return table, err
}

// Download requests the raw bytes of one asset of a dataset. The response
// is returned as-is so callers can stream the body; the caller owns closing
// it.
func (c *Client) Download(ctx context.Context, run, stream, det string, id int64, auth string) (*http.Response, error) {
	u := c.address.JoinPath("/api/v1/asset/bytes", run, stream, det)
	u.RawQuery = url.Values{"id": {strconv.FormatInt(id, 10)}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	return c.http.Do(req)
}

func (c *Client) get(ctx context.Context, endpoint, auth string, query url.Values, out any) error {
	u := c.address.JoinPath(endpoint)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	switch {
	case res.StatusCode >= 500:
		return &InternalError{Status: res.StatusCode, Body: string(body)}
	case res.StatusCode >= 400:
		return &RequestError{Status: res.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &ResponseError{Err: err, Body: string(body)}
	}
	return nil
}

// RequestError is a 4xx response from Tiled, typically a bad path or
// missing credentials.
type RequestError struct {
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("tiled request error: %d - %s", e.Status, e.Body)
}

// InternalError is a 5xx response from Tiled.
type InternalError struct {
	Status int
	Body   string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal tiled error: %d - %s", e.Status, e.Body)
}

// ResponseError is a success response whose body could not be decoded.
type ResponseError struct {
	Err  error
	Body string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("invalid tiled response: %v, response: %s", e.Err, e.Body)
}

func (e *ResponseError) Unwrap() error { return e.Err }
