// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package merge

import (
	"time"

	"github.com/dotehq/dote/internal/item"
)

// Strategy defines the interface for item store merge strategies
type Strategy interface {
	// Merge reconciles two divergent copies of a user's item array.
	// ours: the local copy, theirs: the remote copy.
	Merge(ours, theirs *Snapshot) (*Result, error)
}

// Snapshot is one side of a merge: an item array plus its last write time
type Snapshot struct {
	Items     []*item.Item
	WrittenAt time.Time
}

// Result represents the result of a merge operation
type Result struct {
	Items      []*item.Item
	TookOurs   bool
	TookTheirs bool
	Unioned    bool
}

// cloneItems deep-copies an item slice so merge output never aliases input
func cloneItems(items []*item.Item) []*item.Item {
	out := make([]*item.Item, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}
