// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dotehq/dote/internal/query"
)

// NewQueryTool creates the dote_query tool definition
func NewQueryTool() mcp.Tool {
	return mcp.NewTool("dote_query",
		mcp.WithDescription("Query the user's items. Takes a JSON array of criteria; each criterion has 'type' (match|search|recursive|range) and 'logic' (AND|OR) plus type-specific fields: match/search need 'field' and 'value', recursive needs 'id' (or 'uuid') and optional 'depth', range needs 'first' and 'last'. Returns the matched items plus any tags adjacent to them."),
		mcp.WithString("criteria",
			mcp.Required(),
			mcp.Description(`The criteria array as JSON, e.g. [{"type":"search","logic":"AND","field":"title","value":"milk"}]`),
		),
	)
}

// QueryHandler handles the dote_query tool
func QueryHandler(ctx *ToolContext, storeUUID string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(c context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw := request.GetString("criteria", "")
		if raw == "" {
			return mcp.NewToolResultError("criteria is required"), nil
		}

		criteria, err := query.ParseCriteria([]byte(raw))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid criteria: %v", err)), nil
		}

		st, err := ctx.userStore(storeUUID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to open store: %v", err)), nil
		}

		result := st.Query(criteria)
		out, err := itemsJSON(map[string]any{
			"matches":  result.Matches,
			"adjacent": result.Adjacent,
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(out), nil
	}
}
