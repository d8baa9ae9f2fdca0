// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dotehq/dote/internal/item"
)

// CacheTolerance is how far the local cache ctime may drift from the
// server-reported ctime before the cache is discarded wholesale. The server
// bumps its ctime on every persisted write, so a skew beyond this window
// means another client changed the data.
const CacheTolerance = 15000 * time.Millisecond

// Session is the authenticated identity returned by login and signup
type Session struct {
	Username string `json:"username"`
	UUID     string `json:"uuid"`
	CTime    int64  `json:"ctime"`
	Token    string `json:"token"`
}

// Userdata is the profile payload for the authenticated user
type Userdata struct {
	Username string `json:"username"`
	UUID     string `json:"uuid"`
	Email    string `json:"email"`
	CTime    int64  `json:"ctime"`
}

// QueryResult is the two-part query response: items matching the criteria
// plus the tag items adjacent to those matches
type QueryResult struct {
	Matches  []*item.Item `json:"matches"`
	Adjacent []*item.Item `json:"adjacent"`
}

// APIError is a non-2xx response from the server
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an APIError with status 404
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

// Client is an id-addressed view over a user's items on a dote server.
//
// Reads go through a sparse local cache keyed by item id and gated by the
// server ctime: on a hit the cached copy is returned without a round trip,
// on a miss the fetched items refresh the cache. Because ids shift when an
// item is removed, Delete clears the whole cache.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string

	cache *Cache
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sets the bearer token for an already-established session
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithCacheFile persists the item cache to path so a new process can reuse
// it when the ctime check passes
func WithCacheFile(path string) Option {
	return func(c *Client) { c.cache = NewFileCache(path) }
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      NewCache(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the current bearer token, empty if not authenticated
func (c *Client) Token() string {
	return c.token
}

// Login authenticates with username and password and stores the session token
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	var session Session
	err := c.doJSON(ctx, http.MethodPost, "/api/login", map[string]string{
		"username": username,
		"password": password,
	}, &session)
	if err != nil {
		return nil, err
	}
	c.token = session.Token
	return &session, nil
}

// Signup registers a new account and stores the session token
func (c *Client) Signup(ctx context.Context, username, password, email string) (*Session, error) {
	var session Session
	err := c.doJSON(ctx, http.MethodPost, "/api/signup", map[string]string{
		"username": username,
		"password": password,
		"email":    email,
	}, &session)
	if err != nil {
		return nil, err
	}
	c.token = session.Token
	return &session, nil
}

// Logout revokes the session token
func (c *Client) Logout(ctx context.Context) error {
	if err := c.doJSON(ctx, http.MethodGet, "/api/logout", nil, nil); err != nil {
		return err
	}
	c.token = ""
	return nil
}

// Userdata fetches the authenticated user's profile
func (c *Client) Userdata(ctx context.Context) (*Userdata, error) {
	var data Userdata
	if err := c.doJSON(ctx, http.MethodGet, "/api/userdata", nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Initialize decides whether the local cache is trustworthy. If the cached
// ctime is within CacheTolerance of remoteCtime the cache is kept as-is,
// otherwise it is discarded and the complete item set is fetched from the
// server. Returns the items now in the cache.
func (c *Client) Initialize(ctx context.Context, remoteCtime int64) ([]*item.Item, error) {
	if c.cache.Trusted(remoteCtime, CacheTolerance) {
		return c.cache.Items(), nil
	}

	c.cache.Reset()

	var resp struct {
		Data []*item.Item `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/data/all", nil, &resp); err != nil {
		return nil, err
	}

	c.cache.Update(resp.Data)
	return c.cache.Items(), nil
}

// Query evaluates criteria on the server. Both matches and adjacent tag
// items are merged into the cache so later GetItem calls for adjacent items
// skip the round trip, but only matches are returned.
func (c *Client) Query(ctx context.Context, criteriaJSON []byte) ([]*item.Item, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/data/query", bytes.NewReader(criteriaJSON))
	if err != nil {
		return nil, err
	}

	var result QueryResult
	if err := c.do(req, &result); err != nil {
		return nil, err
	}

	c.cache.Update(result.Matches)
	c.cache.Update(result.Adjacent)
	return result.Matches, nil
}

// GetItem returns the item with the given id, from cache when possible
func (c *Client) GetItem(ctx context.Context, id int) (*item.Item, error) {
	if it := c.cache.Get(id); it != nil {
		return it, nil
	}

	items, err := c.GetRecursive(ctx, id, 1)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &APIError{StatusCode: http.StatusNotFound, Message: "item not found"}
	}
	return items[0], nil
}

// GetRange fetches every item with id in [first, last] inclusive
func (c *Client) GetRange(ctx context.Context, first, last int) ([]*item.Item, error) {
	path := "/api/data/range?first=" + strconv.Itoa(first) + "&last=" + strconv.Itoa(last)

	var items []*item.Item
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &items); err != nil {
		return nil, err
	}

	c.cache.Update(items)
	return items, nil
}

// GetRecursive fetches the item with the given id plus its descendants to
// depth levels. Depth starts at 1: depth=1 is the item alone, depth=2 adds
// its children, and so on. The result is unordered.
func (c *Client) GetRecursive(ctx context.Context, id, depth int) ([]*item.Item, error) {
	path := "/api/data/recursive?id=" + strconv.Itoa(id) + "&depth=" + strconv.Itoa(depth)

	var items []*item.Item
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &items); err != nil {
		return nil, err
	}

	c.cache.Update(items)
	return items, nil
}

// GetByUUID returns the item with the given uuid, scanning the cache before
// falling back to the server
func (c *Client) GetByUUID(ctx context.Context, uuid string) (*item.Item, error) {
	if it := c.cache.FindByUUID(uuid); it != nil {
		return it, nil
	}

	var it item.Item
	if err := c.doJSON(ctx, http.MethodGet, "/api/data/uuid/"+url.PathEscape(uuid), nil, &it); err != nil {
		return nil, err
	}

	c.cache.Update([]*item.Item{&it})
	return &it, nil
}

// Create makes a new item from fields; id, uuid and created are assigned by
// the server
func (c *Client) Create(ctx context.Context, fields item.Fields) (*item.Item, error) {
	var it item.Item
	err := c.doJSON(ctx, http.MethodPost, "/api/data/create", map[string]any{
		"fields": fields,
	}, &it)
	if err != nil {
		return nil, err
	}

	c.cache.Update([]*item.Item{&it})
	return &it, nil
}

// Modify reassigns fields on the item with the given id
func (c *Client) Modify(ctx context.Context, id int, fields item.Fields) (*item.Item, error) {
	var it item.Item
	err := c.doJSON(ctx, http.MethodPut, "/api/data/modify", map[string]any{
		"id":     id,
		"fields": fields,
	}, &it)
	if err != nil {
		return nil, err
	}

	c.cache.Update([]*item.Item{&it})
	return &it, nil
}

// Delete removes the item with the given uuid. Every id after the removed
// item shifts down by one, so the whole cache is discarded.
func (c *Client) Delete(ctx context.Context, uuid string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/api/data/uuid/"+url.PathEscape(uuid), nil, nil); err != nil {
		return err
	}

	c.cache.Reset()
	return nil
}

// Cache returns a snapshot of the client's sparse item cache
func (c *Client) Cache() []*item.Item {
	return c.cache.Items()
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(data)}
		var payload struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &payload) == nil && payload.Message != "" {
			apiErr.Message = payload.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
