// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package item

// Link adds childID to the parent's children and parentID to the child's
// parents. Idempotent: linking an already-linked pair is a no-op, and neither
// sequence ever holds duplicates. Both ids must resolve to live items.
func Link(items []*Item, parentID, childID int) error {
	parent, err := at(items, parentID)
	if err != nil {
		return err
	}
	child, err := at(items, childID)
	if err != nil {
		return err
	}

	if !parent.HasChild(childID) {
		parent.Children = append(parent.Children, childID)
	}
	if !child.HasParent(parentID) {
		child.Parents = append(child.Parents, parentID)
	}
	return nil
}

// Unlink removes both sides of a parent/child link. Idempotent: unlinking a
// pair that is not linked is a no-op.
func Unlink(items []*Item, parentID, childID int) error {
	parent, err := at(items, parentID)
	if err != nil {
		return err
	}
	child, err := at(items, childID)
	if err != nil {
		return err
	}

	parent.Children = removeID(parent.Children, childID)
	child.Parents = removeID(child.Parents, parentID)
	return nil
}

// at resolves a 1-based id to an item
func at(items []*Item, id int) (*Item, error) {
	if id < 1 || id > len(items) {
		return nil, &NotFoundError{ID: id}
	}
	return items[id-1], nil
}
