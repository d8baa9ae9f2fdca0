// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotehq/dote/internal/item"
)

// fakeServer serves a fixed item set and counts hits per endpoint
type fakeServer struct {
	ts    *httptest.Server
	items []*item.Item

	allCalls       atomic.Int64
	recursiveCalls atomic.Int64
	rangeCalls     atomic.Int64
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()

	fs := &fakeServer{
		items: []*item.Item{
			{ID: 1, UUID: "uuid-1", Type: item.TypeTodo, Title: "first", Children: []int{2}, Parents: []int{}},
			{ID: 2, UUID: "uuid-2", Type: item.TypeNote, Title: "second", Children: []int{}, Parents: []int{1}},
			{ID: 3, UUID: "uuid-3", Type: item.TypeTag, Title: "label", Children: []int{}, Parents: []int{}},
		},
	}

	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}

	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, Session{Username: "alice", UUID: "user-1", CTime: time.Now().UnixMilli(), Token: "tok-123"})
	})
	mux.HandleFunc("/api/data/all", func(w http.ResponseWriter, r *http.Request) {
		fs.allCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]any{"data": fs.items})
	})
	mux.HandleFunc("/api/data/query", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, QueryResult{
			Matches:  []*item.Item{fs.items[0]},
			Adjacent: []*item.Item{fs.items[2]},
		})
	})
	mux.HandleFunc("/api/data/recursive", func(w http.ResponseWriter, r *http.Request) {
		fs.recursiveCalls.Add(1)
		id, _ := strconv.Atoi(r.URL.Query().Get("id"))
		for _, it := range fs.items {
			if it.ID == id {
				writeJSON(w, []*item.Item{it})
				return
			}
		}
		writeJSON(w, []*item.Item{})
	})
	mux.HandleFunc("/api/data/range", func(w http.ResponseWriter, r *http.Request) {
		fs.rangeCalls.Add(1)
		first, _ := strconv.Atoi(r.URL.Query().Get("first"))
		last, _ := strconv.Atoi(r.URL.Query().Get("last"))
		var out []*item.Item
		for _, it := range fs.items {
			if it.ID >= first && it.ID <= last {
				out = append(out, it)
			}
		}
		if len(out) == 0 {
			w.WriteHeader(http.StatusNotFound)
			writeJSON(w, map[string]string{"message": "no items in range"})
			return
		}
		writeJSON(w, out)
	})
	mux.HandleFunc("/api/data/uuid/", func(w http.ResponseWriter, r *http.Request) {
		uuid := r.URL.Path[len("/api/data/uuid/"):]
		if r.Method == http.MethodDelete {
			writeJSON(w, map[string]string{"status": "deleted"})
			return
		}
		for _, it := range fs.items {
			if it.UUID == uuid {
				writeJSON(w, it)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, map[string]string{"message": "item not found"})
	})
	mux.HandleFunc("/api/data/create", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Fields item.Fields `json:"fields"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		created := &item.Item{ID: 4, UUID: "uuid-4", Type: item.TypeTodo, Children: []int{}, Parents: []int{}}
		if req.Fields.Title != nil {
			created.Title = *req.Fields.Title
		}
		writeJSON(w, created)
	})

	fs.ts = httptest.NewServer(mux)
	t.Cleanup(fs.ts.Close)
	return fs
}

func login(t *testing.T, c *Client) {
	t.Helper()
	_, err := c.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
}

func TestLoginStoresToken(t *testing.T) {
	fs := newFakeServer(t)
	c := NewClient(fs.ts.URL)

	session, err := c.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", session.Token)
	assert.Equal(t, "tok-123", c.Token())

	// token must be sent on data requests
	_, err = c.Initialize(context.Background(), time.Now().UnixMilli())
	require.NoError(t, err)
}

func TestInitializeDiscardsStaleCache(t *testing.T) {
	fs := newFakeServer(t)
	c := NewClient(fs.ts.URL)
	login(t, c)

	// fresh cache has ctime zero, far outside tolerance
	items, err := c.Initialize(context.Background(), time.Now().UnixMilli())
	require.NoError(t, err)
	assert.Len(t, items, 3)
	assert.Equal(t, int64(1), fs.allCalls.Load())
}

func TestInitializeTrustsRecentCache(t *testing.T) {
	fs := newFakeServer(t)
	c := NewClient(fs.ts.URL)
	login(t, c)

	_, err := c.Initialize(context.Background(), time.Now().UnixMilli())
	require.NoError(t, err)

	// cache ctime was just bumped, so a second init within tolerance
	// must not refetch
	items, err := c.Initialize(context.Background(), time.Now().UnixMilli())
	require.NoError(t, err)
	assert.Len(t, items, 3)
	assert.Equal(t, int64(1), fs.allCalls.Load())
}

func TestGetItemReadsThroughCache(t *testing.T) {
	fs := newFakeServer(t)
	c := NewClient(fs.ts.URL)
	login(t, c)

	first, err := c.GetItem(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "first", first.Title)
	assert.Equal(t, int64(1), fs.recursiveCalls.Load())

	// second read must come from the cache
	again, err := c.GetItem(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "first", again.Title)
	assert.Equal(t, int64(1), fs.recursiveCalls.Load())
}

func TestGetItemNotFound(t *testing.T) {
	fs := newFakeServer(t)
	c := NewClient(fs.ts.URL)
	login(t, c)

	_, err := c.GetItem(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestQueryMergesAdjacentIntoCache(t *testing.T) {
	fs := newFakeServer(t)
	c := NewClient(fs.ts.URL)
	login(t, c)

	matches, err := c.Query(context.Background(), []byte(`[{"type":"match","logic":"AND","field":"type","value":"todo"}]`))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "first", matches[0].Title)

	// the adjacent tag item is now cached, no recursive fetch needed
	tag, err := c.GetItem(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "label", tag.Title)
	assert.Equal(t, int64(0), fs.recursiveCalls.Load())
}

func TestGetRange(t *testing.T) {
	fs := newFakeServer(t)
	c := NewClient(fs.ts.URL)
	login(t, c)

	items, err := c.GetRange(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	_, err = c.GetRange(context.Background(), 50, 60)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestGetByUUIDFallsBackToServer(t *testing.T) {
	fs := newFakeServer(t)
	c := NewClient(fs.ts.URL)
	login(t, c)

	it, err := c.GetByUUID(context.Background(), "uuid-2")
	require.NoError(t, err)
	assert.Equal(t, "second", it.Title)

	_, err = c.GetByUUID(context.Background(), "no-such-uuid")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestCreateUpdatesCache(t *testing.T) {
	fs := newFakeServer(t)
	c := NewClient(fs.ts.URL)
	login(t, c)

	title := "new thing"
	created, err := c.Create(context.Background(), item.Fields{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, 4, created.ID)

	cached, err := c.GetItem(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, "new thing", cached.Title)
	assert.Equal(t, int64(0), fs.recursiveCalls.Load())
}

func TestDeleteResetsCache(t *testing.T) {
	fs := newFakeServer(t)
	c := NewClient(fs.ts.URL)
	login(t, c)

	_, err := c.Initialize(context.Background(), time.Now().UnixMilli())
	require.NoError(t, err)
	require.Equal(t, 3, c.cache.Len())

	err = c.Delete(context.Background(), "uuid-2")
	require.NoError(t, err)
	assert.Equal(t, 0, c.cache.Len())
}

func TestFileCacheSurvivesRestart(t *testing.T) {
	fs := newFakeServer(t)
	cachePath := filepath.Join(t.TempDir(), "items.json")

	c := NewClient(fs.ts.URL, WithCacheFile(cachePath))
	login(t, c)

	_, err := c.Initialize(context.Background(), time.Now().UnixMilli())
	require.NoError(t, err)
	require.Equal(t, int64(1), fs.allCalls.Load())

	// a fresh client with the same cache file trusts its recent ctime
	c2 := NewClient(fs.ts.URL, WithCacheFile(cachePath), WithToken("tok-123"))
	items, err := c2.Initialize(context.Background(), time.Now().UnixMilli())
	require.NoError(t, err)
	assert.Len(t, items, 3)
	assert.Equal(t, int64(1), fs.allCalls.Load())
}
