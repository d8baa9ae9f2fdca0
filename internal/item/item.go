// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package item

// Type classifies an item for rendering and tag-closure purposes
type Type string

// Item types
const (
	TypeTodo Type = "todo"
	TypeNote Type = "note"
	TypeTag  Type = "tag"
)

// ValidTypes returns all valid item types
func ValidTypes() []Type {
	return []Type{TypeTodo, TypeNote, TypeTag}
}

// IsValidType checks if an item type is valid
func IsValidType(t Type) bool {
	for _, valid := range ValidTypes() {
		if t == valid {
			return true
		}
	}
	return false
}

// Item is a single node in a user's item graph.
//
// ID equals the item's 1-based position in the user's item sequence and is
// only stable within a session: removing any item renumbers everything after
// it. UUID is the stable identifier and never changes once assigned.
// Children and Parents hold ids, kept symmetric by Link/Unlink.
type Item struct {
	ID       int    `json:"id"`
	UUID     string `json:"uuid"`
	Type     Type   `json:"type"`
	Title    string `json:"title"`
	Body     string `json:"body,omitempty"`
	Created  int64  `json:"created"`
	Due      int64  `json:"due,omitempty"`
	Done     bool   `json:"done"`
	Children []int  `json:"children"`
	Parents  []int  `json:"parents"`
}

// Clone returns a deep copy of the item
func (it *Item) Clone() *Item {
	cp := *it
	cp.Children = append([]int(nil), it.Children...)
	cp.Parents = append([]int(nil), it.Parents...)
	return &cp
}

// HasChild reports whether childID is already in the item's children
func (it *Item) HasChild(childID int) bool {
	return containsID(it.Children, childID)
}

// HasParent reports whether parentID is already in the item's parents
func (it *Item) HasParent(parentID int) bool {
	return containsID(it.Parents, parentID)
}

func containsID(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []int, id int) []int {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
