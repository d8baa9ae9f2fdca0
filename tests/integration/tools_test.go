// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package integration

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dotehq/dote/internal/crypto"
	"github.com/dotehq/dote/internal/database"
	"github.com/dotehq/dote/internal/locking"
	"github.com/dotehq/dote/internal/store"
	"github.com/dotehq/dote/internal/tools"
)

const testStoreUUID = "store-user-1"

type testSetup struct {
	DB      *gorm.DB
	Stores  *store.Manager
	ToolCtx *tools.ToolContext
	Key     []byte
}

func setupTestEnvironment(t *testing.T, versioning bool) *testSetup {
	t.Helper()
	tempDir := t.TempDir()

	db, err := database.Connect(&database.Config{
		Type:       "sqlite",
		SQLitePath: filepath.Join(tempDir, "system.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })
	require.NoError(t, database.Migrate(db))
	require.NoError(t, locking.MigrateLocks(db))

	stores, err := store.NewManager(filepath.Join(tempDir, "store"), versioning, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(stores.Flush)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	return &testSetup{
		DB:      db,
		Stores:  stores,
		ToolCtx: tools.NewToolContext(db, stores).WithEncryptionKey(key),
		Key:     key,
	}
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	request := mcp.CallToolRequest{}
	request.Params.Arguments = args

	result, err := handler(context.Background(), request)
	require.NoError(t, err)
	return result
}

func getResultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	return text.Text
}

func TestCreateToolIntegration(t *testing.T) {
	setup := setupTestEnvironment(t, false)
	handler := tools.CreateHandler(setup.ToolCtx, testStoreUUID)

	result := callTool(t, handler, map[string]interface{}{
		"title": "water the plants",
		"type":  "todo",
	})
	assert.False(t, result.IsError)

	text := getResultText(t, result)
	assert.Contains(t, text, "water the plants")
	assert.Contains(t, text, `"id": 1`)

	// second item linked under the first
	result = callTool(t, handler, map[string]interface{}{
		"title":   "fill the watering can",
		"parents": "1",
	})
	assert.False(t, result.IsError)
	assert.Contains(t, getResultText(t, result), `"parents": [`)

	st, err := setup.Stores.GetStore(testStoreUUID)
	require.NoError(t, err)
	first, err := st.Get(1)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, first.Children)
}

func TestCreateToolRejectsBadType(t *testing.T) {
	setup := setupTestEnvironment(t, false)
	handler := tools.CreateHandler(setup.ToolCtx, testStoreUUID)

	result := callTool(t, handler, map[string]interface{}{
		"title": "x",
		"type":  "reminder",
	})
	assert.True(t, result.IsError)
}

func TestQueryToolIntegration(t *testing.T) {
	setup := setupTestEnvironment(t, false)
	create := tools.CreateHandler(setup.ToolCtx, testStoreUUID)
	queryTool := tools.QueryHandler(setup.ToolCtx, testStoreUUID)

	callTool(t, create, map[string]interface{}{"title": "groceries", "type": "tag"})
	callTool(t, create, map[string]interface{}{"title": "buy milk", "parents": "1"})
	callTool(t, create, map[string]interface{}{"title": "journal entry", "type": "note"})

	result := callTool(t, queryTool, map[string]interface{}{
		"criteria": `[{"type":"match","logic":"AND","field":"type","value":"todo"}]`,
	})
	assert.False(t, result.IsError)

	text := getResultText(t, result)
	assert.Contains(t, text, "buy milk")
	// the tag parent rides along as adjacent context
	assert.Contains(t, text, "groceries")
	assert.NotContains(t, text, "journal entry")
}

func TestQueryToolRejectsBadCriteria(t *testing.T) {
	setup := setupTestEnvironment(t, false)
	handler := tools.QueryHandler(setup.ToolCtx, testStoreUUID)

	result := callTool(t, handler, map[string]interface{}{
		"criteria": `[{"type":"regex","logic":"AND"}]`,
	})
	assert.True(t, result.IsError)

	result = callTool(t, handler, map[string]interface{}{})
	assert.True(t, result.IsError)
}

func TestModifyToolIntegration(t *testing.T) {
	setup := setupTestEnvironment(t, false)
	create := tools.CreateHandler(setup.ToolCtx, testStoreUUID)
	modify := tools.ModifyHandler(setup.ToolCtx, testStoreUUID)

	callTool(t, create, map[string]interface{}{"title": "draft report"})

	result := callTool(t, modify, map[string]interface{}{
		"id":    float64(1),
		"title": "finish report",
		"done":  true,
	})
	assert.False(t, result.IsError)

	text := getResultText(t, result)
	assert.Contains(t, text, "finish report")
	assert.Contains(t, text, `"done": true`)
}

func TestModifyToolNotFound(t *testing.T) {
	setup := setupTestEnvironment(t, false)
	handler := tools.ModifyHandler(setup.ToolCtx, testStoreUUID)

	result := callTool(t, handler, map[string]interface{}{
		"id":    float64(5),
		"title": "x",
	})
	assert.True(t, result.IsError)
}

func TestRemoveToolIntegration(t *testing.T) {
	setup := setupTestEnvironment(t, false)
	create := tools.CreateHandler(setup.ToolCtx, testStoreUUID)
	remove := tools.RemoveHandler(setup.ToolCtx, testStoreUUID)

	callTool(t, create, map[string]interface{}{"title": "first"})
	callTool(t, create, map[string]interface{}{"title": "second"})

	st, err := setup.Stores.GetStore(testStoreUUID)
	require.NoError(t, err)
	first, err := st.Get(1)
	require.NoError(t, err)

	result := callTool(t, remove, map[string]interface{}{"uuid": first.UUID})
	assert.False(t, result.IsError)
	assert.Contains(t, getResultText(t, result), "renumbered")

	// the survivor slid into id 1
	remaining, err := st.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "second", remaining.Title)
	assert.Equal(t, 1, st.Len())
}

func TestRemoveToolRequiresTarget(t *testing.T) {
	setup := setupTestEnvironment(t, false)
	handler := tools.RemoveHandler(setup.ToolCtx, testStoreUUID)

	result := callTool(t, handler, map[string]interface{}{})
	assert.True(t, result.IsError)
}

func TestSyncToolWithoutVersioning(t *testing.T) {
	setup := setupTestEnvironment(t, false)
	handler := tools.SyncHandler(setup.ToolCtx, testStoreUUID)

	result := callTool(t, handler, map[string]interface{}{})
	assert.True(t, result.IsError)
	assert.Contains(t, getResultText(t, result), "versioning")
}

func TestSyncToolWithoutRemote(t *testing.T) {
	setup := setupTestEnvironment(t, true)
	handler := tools.SyncHandler(setup.ToolCtx, testStoreUUID)

	result := callTool(t, handler, map[string]interface{}{})
	assert.True(t, result.IsError)
	assert.Contains(t, getResultText(t, result), "no remote configured")
}

func TestRemoteToolRegistersEncryptedPAT(t *testing.T) {
	setup := setupTestEnvironment(t, true)
	handler := tools.RemoteHandler(setup.ToolCtx, testStoreUUID)

	result := callTool(t, handler, map[string]interface{}{
		"url": "https://example.com/dote-store.git",
		"pat": "ghp_supersecret",
	})
	assert.False(t, result.IsError)
	assert.Contains(t, getResultText(t, result), "Remote registered")

	var remote database.DoteStoreRemote
	require.NoError(t, setup.DB.Where("store_path = ?", setup.Stores.Dir()).First(&remote).Error)
	assert.Equal(t, "https://example.com/dote-store.git", remote.RemoteURL)

	require.NotEmpty(t, remote.PATTokenEncrypted)
	pat, err := crypto.DecryptSecret(remote.PATTokenEncrypted, setup.Key)
	require.NoError(t, err)
	assert.Equal(t, "ghp_supersecret", pat)

	assert.True(t, setup.Stores.Repo().HasRemote("origin"))

	// The background scheduler's remote filter now matches this store
	var count int64
	require.NoError(t, setup.DB.Model(&database.DoteStoreRemote{}).
		Where("pat_token_encrypted != ''").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRemoteToolRequiresURL(t *testing.T) {
	setup := setupTestEnvironment(t, true)
	handler := tools.RemoteHandler(setup.ToolCtx, testStoreUUID)

	result := callTool(t, handler, map[string]interface{}{})
	assert.True(t, result.IsError)
	assert.Contains(t, getResultText(t, result), "url is required")
}

func TestSyncToolWaitsForStoreLock(t *testing.T) {
	setup := setupTestEnvironment(t, true)

	result := callTool(t, tools.RemoteHandler(setup.ToolCtx, testStoreUUID), map[string]interface{}{
		"url": "https://example.com/dote-store.git",
		"pat": "ghp_supersecret",
	})
	require.False(t, result.IsError)

	// Hold the store lock as the scheduler would; the manual sync must
	// back off instead of racing the repository
	locker := locking.NewLocker(setup.DB)
	acquired, err := locker.Acquire(setup.Stores.Dir(), "scheduler")
	require.NoError(t, err)
	require.True(t, acquired)

	syncResult := callTool(t, tools.SyncHandler(setup.ToolCtx, testStoreUUID), map[string]interface{}{})
	assert.True(t, syncResult.IsError)
	assert.Contains(t, getResultText(t, syncResult), "locked by another sync")
}
