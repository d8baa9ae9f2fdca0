// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package merge

import (
	"github.com/dotehq/dote/internal/item"
)

// LastWriteWinsStrategy keeps whichever side was written most recently
type LastWriteWinsStrategy struct{}

// NewLastWriteWinsStrategy creates a new last-write-wins strategy
func NewLastWriteWinsStrategy() *LastWriteWinsStrategy {
	return &LastWriteWinsStrategy{}
}

// Merge implements Strategy.Merge with last-write-wins
func (s *LastWriteWinsStrategy) Merge(ours, theirs *Snapshot) (*Result, error) {
	if theirs.WrittenAt.After(ours.WrittenAt) {
		return &Result{
			Items:      cloneItems(theirs.Items),
			TookTheirs: true,
		}, nil
	}
	return &Result{
		Items:    cloneItems(ours.Items),
		TookOurs: true,
	}, nil
}

// UnionStrategy merges the two sides by item identity.
// Items present on both sides keep the local version; items only the
// remote has are appended and renumbered into the local id space.
type UnionStrategy struct{}

// NewUnionStrategy creates a new union strategy
func NewUnionStrategy() *UnionStrategy {
	return &UnionStrategy{}
}

// Merge implements Strategy.Merge by unioning items keyed on uuid
func (s *UnionStrategy) Merge(ours, theirs *Snapshot) (*Result, error) {
	merged := cloneItems(ours.Items)

	oursByUUID := make(map[string]*item.Item, len(merged))
	for _, it := range merged {
		oursByUUID[it.UUID] = it
	}

	// Map remote ids into the merged id space: shared items map to the
	// local id, new items get appended ids.
	idMap := make(map[int]int, len(theirs.Items))
	var appended []*item.Item
	for _, remote := range theirs.Items {
		if local, ok := oursByUUID[remote.UUID]; ok {
			idMap[remote.ID] = local.ID
			continue
		}
		clone := remote.Clone()
		clone.ID = len(merged) + len(appended) + 1
		idMap[remote.ID] = clone.ID
		appended = append(appended, clone)
	}

	// Rewrite relation ids on the appended items; relations pointing at
	// remote items that were dropped locally are discarded.
	for _, it := range appended {
		it.Children = remapRelations(it.Children, idMap)
		it.Parents = remapRelations(it.Parents, idMap)
	}
	merged = append(merged, appended...)

	// Appended items may reference shared items; mirror those links so
	// both sides of each relationship agree.
	for _, it := range appended {
		for _, childID := range it.Children {
			if child := findByID(merged, childID); child != nil && !child.HasParent(it.ID) {
				child.Parents = append(child.Parents, it.ID)
			}
		}
		for _, parentID := range it.Parents {
			if parent := findByID(merged, parentID); parent != nil && !parent.HasChild(it.ID) {
				parent.Children = append(parent.Children, it.ID)
			}
		}
	}

	return &Result{
		Items:   merged,
		Unioned: true,
	}, nil
}

func remapRelations(ids []int, idMap map[int]int) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if mapped, ok := idMap[id]; ok {
			out = append(out, mapped)
		}
	}
	return out
}

func findByID(items []*item.Item, id int) *item.Item {
	if id < 1 || id > len(items) {
		return nil
	}
	return items[id-1]
}
