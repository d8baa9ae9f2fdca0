// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package item

// Fields is a partial item used by Create and Modify. Nil pointers mean
// "leave unchanged" (or "use the default" on create). The struct carries no
// id, uuid or created fields: those are server-assigned and immutable, so
// caller-supplied values are dropped at decode time rather than rejected.
type Fields struct {
	Type     *Type   `json:"type,omitempty"`
	Title    *string `json:"title,omitempty"`
	Body     *string `json:"body,omitempty"`
	Due      *int64  `json:"due,omitempty"`
	Done     *bool   `json:"done,omitempty"`
	Children *[]int  `json:"children,omitempty"`
	Parents  *[]int  `json:"parents,omitempty"`
}

// apply merges the set fields onto it, new values winning. Children and
// Parents are intentionally not applied here: relationship lists are replaced
// through Link/Unlink so both sides stay symmetric.
func (f *Fields) apply(it *Item) {
	if f.Type != nil {
		it.Type = *f.Type
	}
	if f.Title != nil {
		it.Title = *f.Title
	}
	if f.Body != nil {
		it.Body = *f.Body
	}
	if f.Due != nil {
		it.Due = *f.Due
	}
	if f.Done != nil {
		it.Done = *f.Done
	}
}
