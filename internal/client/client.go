// Package client talks to a running smartmarks server over its REST API and
// SSE change feed. It is the livelist.Source used by the terminal view.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/starford/smartmarks/internal/apperr"
	"github.com/starford/smartmarks/internal/livelist"
	"github.com/starford/smartmarks/internal/models"
)

// Client is safe for concurrent use.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
	// stream has no overall timeout; the feed is long-lived.
	stream *http.Client
}

var _ livelist.Source = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithToken sends token as a bearer credential.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the client used for plain requests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("client: invalid server URL %q", baseURL)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: 15 * time.Second},
		stream: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// APIError is a non-2xx response. It unwraps to the matching apperr sentinel.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return apperr.ErrNotFound
	case http.StatusConflict:
		return apperr.ErrConflict
	case http.StatusBadRequest:
		return apperr.ErrInvalid
	case http.StatusUnauthorized:
		return apperr.ErrUnauthorized
	}
	return nil
}

// Identity is the response of /api/me.
type Identity struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Mode    string `json:"auth_mode"`
}

type listResponse struct {
	Bookmarks []models.Bookmark `json:"bookmarks"`
	Total     int               `json:"total"`
}

// Me returns the identity the server resolves for this client.
func (c *Client) Me(ctx context.Context) (*Identity, error) {
	var id Identity
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// List returns bookmarks newest first and the total match count.
func (c *Client) List(ctx context.Context, query string, limit int) ([]models.Bookmark, int, error) {
	q := url.Values{}
	if query != "" {
		q.Set("q", query)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/bookmarks"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp listResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, 0, err
	}
	return resp.Bookmarks, resp.Total, nil
}

// Snapshot returns every bookmark of the caller.
func (c *Client) Snapshot(ctx context.Context) ([]models.Bookmark, error) {
	items, _, err := c.List(ctx, "", 0)
	return items, err
}

// Create adds a bookmark. The result is not applied to any local list; the
// change feed delivers it.
func (c *Client) Create(ctx context.Context, title, rawURL string) (*models.Bookmark, error) {
	var b models.Bookmark
	body := map[string]string{"title": title, "url": rawURL}
	if err := c.do(ctx, http.MethodPost, "/api/bookmarks", body, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Update applies a partial update.
func (c *Client) Update(ctx context.Context, id string, patch models.BookmarkPatch) (*models.Bookmark, error) {
	var b models.Bookmark
	if err := c.do(ctx, http.MethodPatch, "/api/bookmarks/"+url.PathEscape(id), patch, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Delete removes a bookmark.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/bookmarks/"+url.PathEscape(id), nil, nil)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("client: encode body: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s: %w", path, err)
	}
	return nil
}

func readAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

// IsUnauthorized reports whether err is an authentication failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, apperr.ErrUnauthorized)
}
