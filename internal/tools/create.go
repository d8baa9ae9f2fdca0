// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// NewCreateTool creates the dote_create tool definition
func NewCreateTool() mcp.Tool {
	return mcp.NewTool("dote_create",
		mcp.WithDescription("Create a new item. The id, uuid and creation time are assigned by the server. Relationships are symmetric: listing parents or children links both sides."),
		mcp.WithString("title",
			mcp.Description("The item's title"),
		),
		mcp.WithString("body",
			mcp.Description("Longer free-form text for the item"),
		),
		mcp.WithString("type",
			mcp.Description("Item type: todo (default), note, or tag"),
		),
		mcp.WithNumber("due",
			mcp.Description("Due time as unix seconds (todos only)"),
		),
		mcp.WithString("children",
			mcp.Description("Comma-separated ids of existing items to link as children, e.g. '2,5'"),
		),
		mcp.WithString("parents",
			mcp.Description("Comma-separated ids of existing items to link as parents"),
		),
	)
}

// CreateHandler handles the dote_create tool
func CreateHandler(ctx *ToolContext, storeUUID string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(c context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := fieldArgs{
			Title:    request.GetString("title", ""),
			Body:     request.GetString("body", ""),
			Type:     request.GetString("type", ""),
			Children: request.GetString("children", ""),
			Parents:  request.GetString("parents", ""),
		}
		if due := request.GetFloat("due", 0); due != 0 {
			args.Due = due
			args.HasDue = true
		}

		fields, err := args.toFields()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		st, err := ctx.userStore(storeUUID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to open store: %v", err)), nil
		}

		created, err := st.Create(fields)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create item: %v", err)), nil
		}

		out, err := itemsJSON(created)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(out), nil
	}
}
