// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package item

import "fmt"

// NotFoundError is returned when an id or uuid does not resolve to an item.
// Out-of-range ids are caller bugs and fail fast with this error instead of
// silently indexing past the sequence.
type NotFoundError struct {
	ID   int
	UUID string
}

func (e *NotFoundError) Error() string {
	if e.UUID != "" {
		return fmt.Sprintf("item not found: uuid %s", e.UUID)
	}
	return fmt.Sprintf("item not found: id %d", e.ID)
}
