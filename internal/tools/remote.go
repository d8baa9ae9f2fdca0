// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dotehq/dote/internal/crypto"
	"github.com/dotehq/dote/internal/database"
)

// NewRemoteTool creates the dote_remote tool definition
func NewRemoteTool() mcp.Tool {
	return mcp.NewTool("dote_remote",
		mcp.WithDescription("Register or update the git remote used to sync the item store"),
		mcp.WithString("url", mcp.Required(), mcp.Description("Remote repository URL")),
		mcp.WithString("branch", mcp.Description("Branch to sync (default: main)")),
		mcp.WithString("pat", mcp.Description("Personal access token for the remote; stored encrypted")),
	)
}

// RemoteHandler handles the dote_remote tool
func RemoteHandler(ctx *ToolContext, storeUUID string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(c context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url := request.GetString("url", "")
		if url == "" {
			return mcp.NewToolResultError("url is required"), nil
		}
		branch := request.GetString("branch", "main")
		pat := request.GetString("pat", "")

		repo := ctx.Stores.Repo()
		if repo == nil {
			return mcp.NewToolResultError("store versioning is disabled"), nil
		}

		encrypted := ""
		if pat != "" {
			enc, err := crypto.EncryptSecret(pat, ctx.EncryptionKey)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("failed to encrypt PAT: %v", err)), nil
			}
			encrypted = enc
		}

		remote, err := database.UpsertStoreRemote(ctx.DB, ctx.Stores.Dir(), url, branch, encrypted)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to save remote: %v", err)), nil
		}

		if !repo.HasRemote("origin") {
			if err := repo.AddRemote("origin", url); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("remote saved but origin setup failed: %v", err)), nil
			}
		}

		result := fmt.Sprintf("Remote registered\n\n- URL: %s\n- Branch: %s\n- PAT stored: %v\n",
			remote.RemoteURL, remote.Branch, remote.PATTokenEncrypted != "")
		return mcp.NewToolResultText(result), nil
	}
}
