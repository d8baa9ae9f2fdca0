// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/dotehq/dote/internal/item"
	"github.com/dotehq/dote/internal/store"
)

// ToolContext holds shared dependencies for all tools
type ToolContext struct {
	DB            *gorm.DB
	Stores        *store.Manager
	EncryptionKey []byte
}

// NewToolContext creates a new tool context
func NewToolContext(db *gorm.DB, stores *store.Manager) *ToolContext {
	return &ToolContext{
		DB:     db,
		Stores: stores,
	}
}

// WithEncryptionKey sets the key used to decrypt stored remote tokens
func (tc *ToolContext) WithEncryptionKey(key []byte) *ToolContext {
	tc.EncryptionKey = key
	return tc
}

// userStore resolves the item store for a user's uuid
func (tc *ToolContext) userStore(storeUUID string) (*store.Store, error) {
	return tc.Stores.GetStore(storeUUID)
}

// itemsJSON renders items as indented JSON for tool output
func itemsJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render result: %w", err)
	}
	return string(data), nil
}

// parseIDList parses a comma-separated id list like "1,2,3"
func parseIDList(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// fieldsFromArgs assembles an item patch from tool arguments. Empty
// strings mean "not provided" for string arguments.
type fieldArgs struct {
	Title    string
	Body     string
	Type     string
	Due      float64
	HasDue   bool
	Done     bool
	HasDone  bool
	Children string
	Parents  string
}

func (a fieldArgs) toFields() (item.Fields, error) {
	var f item.Fields

	if a.Title != "" {
		title := a.Title
		f.Title = &title
	}
	if a.Body != "" {
		body := a.Body
		f.Body = &body
	}
	if a.Type != "" {
		typ := item.Type(a.Type)
		if !item.IsValidType(typ) {
			return f, fmt.Errorf("unknown item type %q", a.Type)
		}
		f.Type = &typ
	}
	if a.HasDue {
		due := int64(a.Due)
		f.Due = &due
	}
	if a.HasDone {
		done := a.Done
		f.Done = &done
	}
	if a.Children != "" {
		children, err := parseIDList(a.Children)
		if err != nil {
			return f, err
		}
		f.Children = &children
	}
	if a.Parents != "" {
		parents, err := parseIDList(a.Parents)
		if err != nil {
			return f, err
		}
		f.Parents = &parents
	}

	return f, nil
}
