// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package item

import (
	"time"

	"github.com/google/uuid"
)

// Collection is the in-memory sequence of one user's items. It owns the
// id-addressing invariant: items[i].ID == i+1 after every mutation. It is not
// safe for concurrent use; the store layer serializes access.
type Collection struct {
	items []*Item
}

// NewCollection wraps an item sequence loaded from disk
func NewCollection(items []*Item) *Collection {
	return &Collection{items: items}
}

// Items returns the live item sequence. Callers must not mutate it.
func (c *Collection) Items() []*Item {
	return c.items
}

// Len returns the number of items
func (c *Collection) Len() int {
	return len(c.items)
}

// Get resolves a 1-based id to its item
func (c *Collection) Get(id int) (*Item, error) {
	return at(c.items, id)
}

// ByUUID finds an item by its stable identifier
func (c *Collection) ByUUID(id string) (*Item, error) {
	for _, it := range c.items {
		if it.UUID == id {
			return it, nil
		}
	}
	return nil, &NotFoundError{UUID: id}
}

// Create appends a new item with server-assigned id, uuid and creation time,
// then establishes any requested links. The item is appended before linking
// so Link can resolve the new id.
func (c *Collection) Create(f Fields) (*Item, error) {
	if err := c.checkRelationIDs(f); err != nil {
		return nil, err
	}

	it := &Item{
		ID:       len(c.items) + 1,
		UUID:     uuid.NewString(),
		Type:     TypeTodo,
		Created:  time.Now().Unix(),
		Children: []int{},
		Parents:  []int{},
	}
	f.apply(it)

	c.items = append(c.items, it)

	if f.Children != nil {
		for _, child := range *f.Children {
			if err := Link(c.items, it.ID, child); err != nil {
				return nil, err
			}
		}
	}
	if f.Parents != nil {
		for _, parent := range *f.Parents {
			if err := Link(c.items, parent, it.ID); err != nil {
				return nil, err
			}
		}
	}

	return it, nil
}

// Modify merges f onto the item with the given id. If f.Children or
// f.Parents is set, the existing links on that side are destroyed and the
// supplied set is created in full (replace, not merge).
func (c *Collection) Modify(id int, f Fields) (*Item, error) {
	it, err := c.Get(id)
	if err != nil {
		return nil, err
	}
	if err := c.checkRelationIDs(f); err != nil {
		return nil, err
	}

	if f.Children != nil {
		for _, child := range append([]int(nil), it.Children...) {
			if err := Unlink(c.items, id, child); err != nil {
				return nil, err
			}
		}
		for _, child := range *f.Children {
			if err := Link(c.items, id, child); err != nil {
				return nil, err
			}
		}
	}
	if f.Parents != nil {
		for _, parent := range append([]int(nil), it.Parents...) {
			if err := Unlink(c.items, parent, id); err != nil {
				return nil, err
			}
		}
		for _, parent := range *f.Parents {
			if err := Link(c.items, parent, it.ID); err != nil {
				return nil, err
			}
		}
	}

	f.apply(it)
	return it, nil
}

// Remove unlinks the item from every parent and child, deletes it from the
// sequence, and repairs the id space: every remaining item gets its new
// 1-based position as id, and every children/parents list is rewritten to the
// new ids.
func (c *Collection) Remove(id int) error {
	it, err := c.Get(id)
	if err != nil {
		return err
	}

	for _, parent := range append([]int(nil), it.Parents...) {
		if err := Unlink(c.items, parent, id); err != nil {
			return err
		}
	}
	for _, child := range append([]int(nil), it.Children...) {
		if err := Unlink(c.items, id, child); err != nil {
			return err
		}
	}

	c.items = append(c.items[:id-1], c.items[id:]...)

	// old id -> new id, for rewriting relationship references
	remap := make(map[int]int, len(c.items))
	for i, x := range c.items {
		remap[x.ID] = i + 1
	}
	for i, x := range c.items {
		x.ID = i + 1
		x.Children = remapIDs(x.Children, remap)
		x.Parents = remapIDs(x.Parents, remap)
	}

	return nil
}

// remapIDs rewrites every id through the remap table, preserving order.
// References to ids missing from the table are dropped; unlinking before the
// splice should make that impossible.
func remapIDs(ids []int, remap map[int]int) []int {
	out := ids[:0]
	for _, old := range ids {
		if fresh, ok := remap[old]; ok {
			out = append(out, fresh)
		}
	}
	return out
}

// checkRelationIDs validates every referenced id before any link is made, so
// a bad reference fails the whole mutation instead of leaving partial links
func (c *Collection) checkRelationIDs(f Fields) error {
	check := func(ids []int) error {
		for _, id := range ids {
			if id < 1 || id > len(c.items) {
				return &NotFoundError{ID: id}
			}
		}
		return nil
	}
	if f.Children != nil {
		if err := check(*f.Children); err != nil {
			return err
		}
	}
	if f.Parents != nil {
		if err := check(*f.Parents); err != nil {
			return err
		}
	}
	return nil
}
