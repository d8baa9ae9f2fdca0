// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package query

import (
	"strconv"
	"strings"

	"github.com/dotehq/dote/internal/item"
)

// MaxDepth caps recursive descent. A depth of 0 or anything above the cap is
// treated as the cap, which is effectively unbounded for real stores.
const MaxDepth = 1000

// Result is the network-facing query response: the items matching the
// criteria plus every item directly linked to a match, for UI context.
type Result struct {
	Matches  []*item.Item
	Adjacent []*item.Item
}

// Evaluate runs the criteria against the full item set and bundles the
// adjacency closure. This is the network entry point; Run is the pure
// in-process form.
func Evaluate(items []*item.Item, criteria []Criterion) *Result {
	matches := Run(items, criteria)
	return &Result{
		Matches:  matches,
		Adjacent: adjacentItems(items, matches),
	}
}

// Run combines criteria with AND/OR set logic:
// OR criteria union their match sets into the initial candidates (the full
// set if there are none), then every AND criterion intersects the running
// candidates.
func Run(items []*item.Item, criteria []Criterion) []*item.Item {
	var orGroup, andGroup []Criterion
	for _, c := range criteria {
		if c.Logic() == LogicOr {
			orGroup = append(orGroup, c)
		} else {
			andGroup = append(andGroup, c)
		}
	}

	var matches []*item.Item
	if len(orGroup) > 0 {
		seen := make(map[*item.Item]struct{})
		for _, c := range orGroup {
			for _, it := range evalCriterion(items, c) {
				if _, ok := seen[it]; ok {
					continue
				}
				seen[it] = struct{}{}
				matches = append(matches, it)
			}
		}
	} else {
		matches = append(matches, items...)
	}

	for _, c := range andGroup {
		if len(matches) == 0 {
			break
		}
		matches = intersect(matches, evalCriterion(items, c))
	}

	return matches
}

// intersect keeps the primary items also present in secondary, preserving
// primary's order. Items compare by identity: criteria never copy items.
func intersect(primary, secondary []*item.Item) []*item.Item {
	in := make(map[*item.Item]struct{}, len(secondary))
	for _, it := range secondary {
		in[it] = struct{}{}
	}
	out := primary[:0]
	for _, it := range primary {
		if _, ok := in[it]; ok {
			out = append(out, it)
		}
	}
	return out
}

// evalCriterion computes a single criterion's match set. A range that hits
// the no-match sentinel contributes an empty set here; the sentinel is only
// observable through GetRange itself.
func evalCriterion(items []*item.Item, c Criterion) []*item.Item {
	switch c := c.(type) {
	case Match:
		return fieldMatch(items, c.Field, c.Value)
	case Search:
		return fieldSearch(items, c.Field, c.Value)
	case Recursive:
		id := c.ID
		if c.UUID != "" {
			id = idByUUID(items, c.UUID)
		}
		return GetRecursive(items, id, c.Depth)
	case Range:
		matched, ok := GetRange(items, c.First, c.Last)
		if !ok {
			return nil
		}
		return matched
	default:
		// closed set; unreachable for criteria built through ParseCriterion
		return nil
	}
}

// GetRange returns the items with ids in [max(first,1), last] inclusive. The
// second return value is false when the range selects nothing at all, so a
// caller can tell "id space doesn't exist" apart from an empty match list.
func GetRange(items []*item.Item, first, last int) ([]*item.Item, bool) {
	if first < 1 {
		first = 1
	}
	if last > len(items) {
		last = len(items)
	}
	if first > last {
		return nil, false
	}
	return items[first-1 : last], true
}

// GetRecursive returns the item with the target id and every descendant
// reachable through children links, breadth-first, deduplicated, up to
// depthCap levels (the target itself is level 1).
func GetRecursive(items []*item.Item, target, depthCap int) []*item.Item {
	if depthCap <= 0 || depthCap > MaxDepth {
		depthCap = MaxDepth
	}

	var bundle []*item.Item
	visited := make(map[int]bool)

	type queued struct {
		id    int
		depth int
	}
	queue := []queued{{target, 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.depth >= depthCap || cur.id < 1 || cur.id > len(items) {
			continue
		}
		if visited[cur.id] {
			continue
		}
		visited[cur.id] = true

		it := items[cur.id-1]
		bundle = append(bundle, it)

		for _, kid := range it.Children {
			if !visited[kid] {
				queue = append(queue, queued{kid, cur.depth + 1})
			}
		}
	}

	return bundle
}

// fieldMatch returns the items whose field equals value. Array values compare
// element-wise; scalars compare with numeric coercion, since wire values
// arrive as float64.
func fieldMatch(items []*item.Item, field string, value any) []*item.Item {
	var out []*item.Item
	for _, it := range items {
		got, ok := fieldValue(it, field)
		if !ok {
			continue
		}
		if equalValue(got, value) {
			out = append(out, it)
		}
	}
	return out
}

// fieldSearch returns the items whose field contains value: substring match
// for string fields (metacharacters stripped from the needle first), element
// membership for id-list fields. A needle that sanitizes to the empty string
// matches every item whose field is set, since everything contains "".
func fieldSearch(items []*item.Item, field, value string) []*item.Item {
	needle := sanitize(value)

	var out []*item.Item
	for _, it := range items {
		got, ok := fieldValue(it, field)
		if !ok {
			continue
		}
		switch v := got.(type) {
		case string:
			if v != "" && strings.Contains(v, needle) {
				out = append(out, it)
			}
		case []int:
			if id, err := strconv.Atoi(value); err == nil && containsInt(v, id) {
				out = append(out, it)
			}
		}
	}
	return out
}

// adjacentItems computes every item directly linked (as parent or child) to a
// match but not itself matching, deduplicated
func adjacentItems(items []*item.Item, matches []*item.Item) []*item.Item {
	matched := make(map[*item.Item]struct{}, len(matches))
	for _, it := range matches {
		matched[it] = struct{}{}
	}

	var adjacent []*item.Item
	seen := make(map[*item.Item]struct{})
	add := func(id int) {
		if id < 1 || id > len(items) {
			return
		}
		it := items[id-1]
		if _, ok := matched[it]; ok {
			return
		}
		if _, ok := seen[it]; ok {
			return
		}
		seen[it] = struct{}{}
		adjacent = append(adjacent, it)
	}

	for _, it := range matches {
		for _, child := range it.Children {
			add(child)
		}
		for _, parent := range it.Parents {
			add(parent)
		}
	}

	return adjacent
}

// fieldValue exposes the queryable fields of an item by wire name
func fieldValue(it *item.Item, field string) (any, bool) {
	switch field {
	case "id":
		return it.ID, true
	case "uuid":
		return it.UUID, true
	case "type":
		return string(it.Type), true
	case "title":
		return it.Title, true
	case "body":
		return it.Body, true
	case "created":
		return it.Created, true
	case "due":
		return it.Due, true
	case "done":
		return it.Done, true
	case "children":
		return it.Children, true
	case "parents":
		return it.Parents, true
	default:
		return nil, false
	}
}

// equalValue compares a field value against a wire value, coercing numbers to
// float64 and comparing id lists element-wise in order
func equalValue(got, want any) bool {
	switch g := got.(type) {
	case string:
		w, ok := want.(string)
		return ok && g == w
	case bool:
		w, ok := want.(bool)
		return ok && g == w
	case int:
		return numEqual(float64(g), want)
	case int64:
		return numEqual(float64(g), want)
	case []int:
		w, ok := want.([]any)
		if !ok || len(w) != len(g) {
			return false
		}
		for i, v := range g {
			if !numEqual(float64(v), w[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func numEqual(g float64, want any) bool {
	switch w := want.(type) {
	case float64:
		return g == w
	case int:
		return g == float64(w)
	case int64:
		return g == float64(w)
	default:
		return false
	}
}

func idByUUID(items []*item.Item, id string) int {
	for _, it := range items {
		if it.UUID == id {
			return it.ID
		}
	}
	return 0
}

func containsInt(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// sanitize strips pattern metacharacters from a search needle before the
// substring match, so raw user input cannot smuggle pattern syntax around
const metacharacters = "`!@#$%^&*()|+=?;:'\"<>{}[]\\/"

func sanitize(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if !strings.ContainsRune(metacharacters, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
