// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// NewRemoveTool creates the dote_remove tool definition
func NewRemoveTool() mcp.Tool {
	return mcp.NewTool("dote_remove",
		mcp.WithDescription("Delete an item permanently. The item is unlinked from all parents and children, and the remaining items are renumbered so ids stay contiguous. Prefer the uuid form; ids shift after every removal."),
		mcp.WithString("uuid",
			mcp.Description("The uuid of the item to remove"),
		),
		mcp.WithNumber("id",
			mcp.Description("The id of the item to remove (used when uuid is not given)"),
		),
	)
}

// RemoveHandler handles the dote_remove tool
func RemoveHandler(ctx *ToolContext, storeUUID string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(c context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		st, err := ctx.userStore(storeUUID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to open store: %v", err)), nil
		}

		id := int(request.GetFloat("id", 0))
		if uuid := request.GetString("uuid", ""); uuid != "" {
			it, err := st.ByUUID(uuid)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("item not found: %v", err)), nil
			}
			id = it.ID
		}
		if id < 1 {
			return mcp.NewToolResultError("uuid or id is required"), nil
		}

		if err := st.Remove(id); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to remove item: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Removed item %d. Remaining items have been renumbered.", id)), nil
	}
}
