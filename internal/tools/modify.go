// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// NewModifyTool creates the dote_modify tool definition
func NewModifyTool() mcp.Tool {
	return mcp.NewTool("dote_modify",
		mcp.WithDescription("Modify an existing item by id. Only the provided fields change. Passing children or parents replaces that side's links entirely; pass an empty value to keep them. The id, uuid and creation time cannot be changed."),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("The id of the item to modify"),
		),
		mcp.WithString("title",
			mcp.Description("New title"),
		),
		mcp.WithString("body",
			mcp.Description("New body text"),
		),
		mcp.WithString("type",
			mcp.Description("New type: todo, note, or tag"),
		),
		mcp.WithNumber("due",
			mcp.Description("New due time as unix seconds"),
		),
		mcp.WithBoolean("done",
			mcp.Description("Mark the item done or not done"),
		),
		mcp.WithString("children",
			mcp.Description("Comma-separated ids replacing the item's children"),
		),
		mcp.WithString("parents",
			mcp.Description("Comma-separated ids replacing the item's parents"),
		),
	)
}

// ModifyHandler handles the dote_modify tool
func ModifyHandler(ctx *ToolContext, storeUUID string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(c context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := int(request.GetFloat("id", 0))
		if id < 1 {
			return mcp.NewToolResultError("id is required"), nil
		}

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
		if done, ok := request.GetArguments()["done"].(bool); ok {
			args.Done = done
			args.HasDone = true
		}

		fields, err := args.toFields()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		st, err := ctx.userStore(storeUUID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to open store: %v", err)), nil
		}

		modified, err := st.Modify(id, fields)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to modify item: %v", err)), nil
		}

		out, err := itemsJSON(modified)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(out), nil
	}
}
