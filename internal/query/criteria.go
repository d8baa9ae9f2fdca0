// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package query

import (
	"encoding/json"
	"fmt"
)

// Logic is the combination mode of a criterion within a query
type Logic string

// Combination modes. Anything unrecognized on the wire decodes to LogicAnd.
const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Criterion is one declarative filter condition. The set of implementations
// is closed: Match, Search, Recursive and Range.
type Criterion interface {
	Logic() Logic
	criterion()
}

// Match selects items whose field equals the value (deep, array-aware
// equality)
type Match struct {
	Mode  Logic
	Field string
	Value any
}

// Search selects items whose string field contains the value as a substring
// (after metacharacter sanitization), or whose id-list field contains it as
// an element
type Search struct {
	Mode  Logic
	Field string
	Value string
}

// Recursive selects an item and every descendant reachable through children
// links, breadth-first, up to Depth levels. Depth <= 0 or > MaxDepth means
// MaxDepth. UUID may be given instead of ID.
type Recursive struct {
	Mode  Logic
	ID    int
	UUID  string
	Depth int
}

// Range selects items whose id falls in [max(First,1), Last] inclusive
type Range struct {
	Mode  Logic
	First int
	Last  int
}

func (m Match) Logic() Logic     { return m.Mode }
func (s Search) Logic() Logic    { return s.Mode }
func (r Recursive) Logic() Logic { return r.Mode }
func (r Range) Logic() Logic     { return r.Mode }

func (Match) criterion()     {}
func (Search) criterion()    {}
func (Recursive) criterion() {}
func (Range) criterion()     {}

// InvalidCriterionError is returned when a wire criterion cannot be decoded
// into one of the supported shapes
type InvalidCriterionError struct {
	Type   string
	Reason string
}

func (e *InvalidCriterionError) Error() string {
	return fmt.Sprintf("invalid criterion type %q: %s", e.Type, e.Reason)
}

// envelope is the loose wire shape of a criterion before it is narrowed into
// a typed Criterion
type envelope struct {
	Type  string          `json:"type"`
	Logic string          `json:"logic"`
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
	ID    int             `json:"id"`
	UUID  string          `json:"uuid"`
	Depth int             `json:"depth"`
	First int             `json:"first"`
	Last  int             `json:"last"`
}

// ParseCriteria decodes a wire query list into typed criteria. The list may
// arrive bare or wrapped in a {"queries": [...]} envelope; both shapes are
// accepted.
func ParseCriteria(data []byte) ([]Criterion, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		var wrapped struct {
			Queries []json.RawMessage `json:"queries"`
		}
		if wrapErr := json.Unmarshal(data, &wrapped); wrapErr != nil || wrapped.Queries == nil {
			return nil, &InvalidCriterionError{Reason: err.Error()}
		}
		raw = wrapped.Queries
	}

	criteria := make([]Criterion, 0, len(raw))
	for _, r := range raw {
		c, err := ParseCriterion(r)
		if err != nil {
			return nil, err
		}
		criteria = append(criteria, c)
	}
	return criteria, nil
}

// ParseCriterion decodes a single wire criterion
func ParseCriterion(data []byte) (Criterion, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &InvalidCriterionError{Reason: err.Error()}
	}

	mode := LogicAnd
	if env.Logic == string(LogicOr) {
		mode = LogicOr
	}

	switch env.Type {
	case "match":
		if env.Field == "" {
			return nil, &InvalidCriterionError{Type: env.Type, Reason: "field is required"}
		}
		var value any
		if len(env.Value) > 0 {
			if err := json.Unmarshal(env.Value, &value); err != nil {
				return nil, &InvalidCriterionError{Type: env.Type, Reason: err.Error()}
			}
		}
		return Match{Mode: mode, Field: env.Field, Value: value}, nil

	case "search":
		if env.Field == "" {
			return nil, &InvalidCriterionError{Type: env.Type, Reason: "field is required"}
		}
		var value string
		if len(env.Value) > 0 {
			if err := json.Unmarshal(env.Value, &value); err != nil {
				return nil, &InvalidCriterionError{Type: env.Type, Reason: "value must be a string"}
			}
		}
		return Search{Mode: mode, Field: env.Field, Value: value}, nil

	case "recursive":
		if env.ID == 0 && env.UUID == "" {
			return nil, &InvalidCriterionError{Type: env.Type, Reason: "id or uuid is required"}
		}
		return Recursive{Mode: mode, ID: env.ID, UUID: env.UUID, Depth: env.Depth}, nil

	case "range":
		return Range{Mode: mode, First: env.First, Last: env.Last}, nil

	default:
		return nil, &InvalidCriterionError{Type: env.Type, Reason: "unsupported type"}
	}
}
