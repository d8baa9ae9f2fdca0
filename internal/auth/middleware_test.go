// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireAuth_MissingToken(t *testing.T) {
	db := setupTestDB(t)
	tm := NewTokenManager(db, 24)
	mw := NewMiddleware(tm)

	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/data/all", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_ValidBearer(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "testuser")
	tm := NewTokenManager(db, 24)
	mw := NewMiddleware(tm)

	token, err := tm.GenerateToken(user.ID)
	require.NoError(t, err)

	var gotUserID uint
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetUserIDFromContext(r.Context())
		require.True(t, ok)
		gotUserID = id
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/data/all", nil)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user.ID, gotUserID)
}

func TestRequireAuth_QueryParamFallback(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "testuser")
	tm := NewTokenManager(db, 24)
	mw := NewMiddleware(tm)

	token, err := tm.GenerateToken(user.ID)
	require.NoError(t, err)

	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/data/all?access_token="+token.AccessToken, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuth_WrongScheme(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "testuser")
	tm := NewTokenManager(db, 24)
	mw := NewMiddleware(tm)

	token, err := tm.GenerateToken(user.ID)
	require.NoError(t, err)

	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	// A valid token under the wrong scheme is not accepted
	req := httptest.NewRequest(http.MethodGet, "/api/data/all", nil)
	req.Header.Set("Authorization", "Basic "+token.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
