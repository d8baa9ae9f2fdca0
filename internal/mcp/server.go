// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package mcp

import (
	"github.com/mark3labs/mcp-go/server"
	"gorm.io/gorm"

	"github.com/dotehq/dote/internal/auth"
	"github.com/dotehq/dote/internal/config"
	"github.com/dotehq/dote/internal/store"
	"github.com/dotehq/dote/internal/tools"
)

// Server wraps the mcp-go server with our configuration
type Server struct {
	mcpServer     *server.MCPServer
	config        *config.Config
	db            *gorm.DB
	stores        *store.Manager
	tokenManager  *auth.TokenManager
	encryptionKey []byte
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, db *gorm.DB, stores *store.Manager, encryptionKey []byte) (*Server, error) {
	mcpServer := server.NewMCPServer(
		"Dote",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	tokenManager := auth.NewTokenManager(db, cfg.Security.TokenTTL)

	srv := &Server{
		mcpServer:     mcpServer,
		config:        cfg,
		db:            db,
		stores:        stores,
		tokenManager:  tokenManager,
		encryptionKey: encryptionKey,
	}

	return srv, nil
}

// RegisterToolsForUser registers all MCP tools bound to a user's item store.
// The storeUUID is the user's uuid; each tool resolves the store through the
// shared manager so concurrent sessions see the same items.
func (s *Server) RegisterToolsForUser(storeUUID string) error {
	toolCtx := tools.NewToolContext(s.db, s.stores).WithEncryptionKey(s.encryptionKey)

	// dote_query: criteria search - "Which todos are due this week?"
	s.mcpServer.AddTool(tools.NewQueryTool(), tools.QueryHandler(toolCtx, storeUUID))

	// dote_create: add an item with optional relationships
	s.mcpServer.AddTool(tools.NewCreateTool(), tools.CreateHandler(toolCtx, storeUUID))

	// dote_modify: change fields or relink an existing item
	s.mcpServer.AddTool(tools.NewModifyTool(), tools.ModifyHandler(toolCtx, storeUUID))

	// dote_remove: delete an item; remaining ids are renumbered
	s.mcpServer.AddTool(tools.NewRemoveTool(), tools.RemoveHandler(toolCtx, storeUUID))

	// dote_remote: register the git remote and PAT used for sync
	s.mcpServer.AddTool(tools.NewRemoteTool(), tools.RemoteHandler(toolCtx, storeUUID))

	// dote_sync: git synchronization of the store repository
	s.mcpServer.AddTool(tools.NewSyncTool(), tools.SyncHandler(toolCtx, storeUUID))

	return nil
}

// ServeStdio runs the MCP server over stdin/stdout
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// GetMCPServer returns the underlying MCP server
func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// GetTokenManager returns the token manager
func (s *Server) GetTokenManager() *auth.TokenManager {
	return s.tokenManager
}
