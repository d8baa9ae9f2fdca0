// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package store

import (
	"sync"

	"github.com/dotehq/dote/internal/item"
	"github.com/dotehq/dote/internal/query"
)

// Store is one user's guarded item collection. All reads return deep
// copies so callers can never mutate shared state, and all mutations
// schedule an asynchronous save through the manager.
type Store struct {
	uuid string
	mgr  *Manager

	mu   sync.Mutex
	coll *item.Collection
}

// UUID returns the store's owner uuid
func (s *Store) UUID() string {
	return s.uuid
}

// All returns a copy of every item in the store
func (s *Store) All() []*item.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSlice(s.coll.Items())
}

// Len returns the number of items in the store
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coll.Len()
}

// Get returns a copy of the item with the given id
func (s *Store) Get(id int) (*item.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.coll.Get(id)
	if err != nil {
		return nil, err
	}
	return it.Clone(), nil
}

// ByUUID returns a copy of the item with the given uuid
func (s *Store) ByUUID(uuid string) (*item.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.coll.ByUUID(uuid)
	if err != nil {
		return nil, err
	}
	return it.Clone(), nil
}

// Range returns copies of the items with ids in [first, last]. The
// boolean reports whether the range addressed any items at all.
func (s *Store) Range(first, last int) ([]*item.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, ok := query.GetRange(s.coll.Items(), first, last)
	if !ok {
		return nil, false
	}
	return cloneSlice(items), true
}

// Recursive returns copies of the target item and its descendants down
// to the given depth
func (s *Store) Recursive(id, depth int) []*item.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSlice(query.GetRecursive(s.coll.Items(), id, depth))
}

// Query evaluates criteria against the store and returns copies of the
// matched items plus their adjacent neighbors
func (s *Store) Query(criteria []query.Criterion) *query.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := query.Evaluate(s.coll.Items(), criteria)
	return &query.Result{
		Matches:  cloneSlice(result.Matches),
		Adjacent: cloneSlice(result.Adjacent),
	}
}

// Create adds a new item and schedules a save
func (s *Store) Create(f item.Fields) (*item.Item, error) {
	s.mu.Lock()
	created, err := s.coll.Create(f)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	out := created.Clone()
	s.mu.Unlock()

	s.mgr.scheduleSave(s)
	return out, nil
}

// Modify patches an existing item and schedules a save
func (s *Store) Modify(id int, f item.Fields) (*item.Item, error) {
	s.mu.Lock()
	modified, err := s.coll.Modify(id, f)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	out := modified.Clone()
	s.mu.Unlock()

	s.mgr.scheduleSave(s)
	return out, nil
}

// Remove deletes an item, renumbering the survivors, and schedules a save
func (s *Store) Remove(id int) error {
	s.mu.Lock()
	if err := s.coll.Remove(id); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.mgr.scheduleRemoval(s, 1)
	return nil
}

// snapshot returns a copy of the current items for persistence
func (s *Store) snapshot() []*item.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSlice(s.coll.Items())
}

// replace swaps the store contents, used when a sync merges in remote items
func (s *Store) replace(items []*item.Item) {
	s.mu.Lock()
	s.coll = item.NewCollection(items)
	s.mu.Unlock()
}

func cloneSlice(items []*item.Item) []*item.Item {
	out := make([]*item.Item, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}
