// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotehq/dote/internal/item"
)

// fixture builds a small graph:
//
//	1 "groceries" (tag)
//	2 "buy milk"  (todo, child of 1, done)
//	3 "buy eggs"  (todo, child of 1)
//	4 "journal"   (note)
//	5 "eggs recipe" (note, child of 3)
func fixture() []*item.Item {
	items := []*item.Item{
		{ID: 1, UUID: "u1", Type: item.TypeTag, Title: "groceries", Children: []int{}, Parents: []int{}},
		{ID: 2, UUID: "u2", Type: item.TypeTodo, Title: "buy milk", Done: true, Children: []int{}, Parents: []int{}},
		{ID: 3, UUID: "u3", Type: item.TypeTodo, Title: "buy eggs", Children: []int{}, Parents: []int{}},
		{ID: 4, UUID: "u4", Type: item.TypeNote, Title: "journal", Body: "dear diary", Children: []int{}, Parents: []int{}},
		{ID: 5, UUID: "u5", Type: item.TypeNote, Title: "eggs recipe", Children: []int{}, Parents: []int{}},
	}
	item.Link(items, 1, 2)
	item.Link(items, 1, 3)
	item.Link(items, 3, 5)
	return items
}

func ids(items []*item.Item) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestRunNoCriteriaMatchesEverything(t *testing.T) {
	items := fixture()
	assert.Len(t, Run(items, nil), len(items))
}

func TestRunAndIntersects(t *testing.T) {
	items := fixture()

	matches := Run(items, []Criterion{
		Match{Mode: LogicAnd, Field: "type", Value: "todo"},
		Match{Mode: LogicAnd, Field: "done", Value: true},
	})
	assert.Equal(t, []int{2}, ids(matches))
}

func TestRunOrUnions(t *testing.T) {
	items := fixture()

	matches := Run(items, []Criterion{
		Match{Mode: LogicOr, Field: "type", Value: "tag"},
		Match{Mode: LogicOr, Field: "type", Value: "note"},
	})
	assert.ElementsMatch(t, []int{1, 4, 5}, ids(matches))
}

func TestRunOrDeduplicates(t *testing.T) {
	items := fixture()

	// both criteria match item 2; it must appear once
	matches := Run(items, []Criterion{
		Match{Mode: LogicOr, Field: "done", Value: true},
		Search{Mode: LogicOr, Field: "title", Value: "milk"},
	})
	assert.Equal(t, []int{2}, ids(matches))
}

func TestRunOrSeedsAndFilter(t *testing.T) {
	items := fixture()

	// OR builds the candidates, AND narrows them
	matches := Run(items, []Criterion{
		Match{Mode: LogicOr, Field: "type", Value: "todo"},
		Match{Mode: LogicOr, Field: "type", Value: "note"},
		Search{Mode: LogicAnd, Field: "title", Value: "eggs"},
	})
	assert.ElementsMatch(t, []int{3, 5}, ids(matches))
}

func TestSearchSubstring(t *testing.T) {
	items := fixture()

	matches := Run(items, []Criterion{Search{Mode: LogicAnd, Field: "title", Value: "buy"}})
	assert.ElementsMatch(t, []int{2, 3}, ids(matches))
}

func TestSearchSanitizesMetacharacters(t *testing.T) {
	items := fixture()

	// stripped needle still matches the plain text
	matches := Run(items, []Criterion{Search{Mode: LogicAnd, Field: "title", Value: "b*u(y)"}})
	assert.ElementsMatch(t, []int{2, 3}, ids(matches))

	// a needle that is nothing but metacharacters degenerates to the empty
	// substring, which every set title contains
	matches = Run(items, []Criterion{Search{Mode: LogicAnd, Field: "title", Value: "*?["}})
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5}, ids(matches))
}

func TestSearchEmptyNeedleSkipsUnsetFields(t *testing.T) {
	items := fixture()

	// only item 4 has a body, so an empty needle finds exactly it
	matches := Run(items, []Criterion{Search{Mode: LogicAnd, Field: "body", Value: ""}})
	assert.Equal(t, []int{4}, ids(matches))
}

func TestSearchIDListMembership(t *testing.T) {
	items := fixture()

	matches := Run(items, []Criterion{Search{Mode: LogicAnd, Field: "children", Value: "5"}})
	assert.Equal(t, []int{3}, ids(matches))
}

func TestMatchNumericCoercion(t *testing.T) {
	items := fixture()

	// wire numbers arrive as float64
	matches := Run(items, []Criterion{Match{Mode: LogicAnd, Field: "id", Value: float64(4)}})
	assert.Equal(t, []int{4}, ids(matches))
}

func TestMatchUnknownFieldMatchesNothing(t *testing.T) {
	items := fixture()
	matches := Run(items, []Criterion{Match{Mode: LogicAnd, Field: "flavor", Value: "sour"}})
	assert.Empty(t, matches)
}

func TestRangeCriterion(t *testing.T) {
	items := fixture()

	matches := Run(items, []Criterion{Range{Mode: LogicAnd, First: 2, Last: 3}})
	assert.Equal(t, []int{2, 3}, ids(matches))
}

func TestGetRangeClampsBounds(t *testing.T) {
	items := fixture()

	got, ok := GetRange(items, -3, 99)
	require.True(t, ok)
	assert.Len(t, got, len(items))
}

func TestGetRangeSentinel(t *testing.T) {
	items := fixture()

	_, ok := GetRange(items, 10, 20)
	assert.False(t, ok)

	_, ok = GetRange(nil, 1, 1)
	assert.False(t, ok)
}

func TestGetRecursiveDepth(t *testing.T) {
	items := fixture()

	// depth 1 is the root alone
	assert.Equal(t, []int{1}, ids(GetRecursive(items, 1, 1)))

	// depth 2 adds direct children
	assert.ElementsMatch(t, []int{1, 2, 3}, ids(GetRecursive(items, 1, 2)))

	// depth 3 reaches the grandchild
	assert.ElementsMatch(t, []int{1, 2, 3, 5}, ids(GetRecursive(items, 1, 3)))
}

func TestGetRecursiveDepthZeroMeansUnbounded(t *testing.T) {
	items := fixture()
	assert.ElementsMatch(t, []int{1, 2, 3, 5}, ids(GetRecursive(items, 1, 0)))
	assert.ElementsMatch(t, []int{1, 2, 3, 5}, ids(GetRecursive(items, 1, MaxDepth+5)))
}

func TestGetRecursiveHandlesCycles(t *testing.T) {
	items := fixture()
	// make 5 point back at 1
	item.Link(items, 5, 1)

	got := GetRecursive(items, 1, 0)
	assert.ElementsMatch(t, []int{1, 2, 3, 5}, ids(got))
}

func TestGetRecursiveBadTarget(t *testing.T) {
	items := fixture()
	assert.Empty(t, GetRecursive(items, 99, 0))
	assert.Empty(t, GetRecursive(items, 0, 0))
}

func TestRecursiveCriterionByUUID(t *testing.T) {
	items := fixture()

	matches := Run(items, []Criterion{Recursive{Mode: LogicAnd, UUID: "u3", Depth: 2}})
	assert.ElementsMatch(t, []int{3, 5}, ids(matches))
}

func TestEvaluateAdjacency(t *testing.T) {
	items := fixture()

	result := Evaluate(items, []Criterion{Match{Mode: LogicAnd, Field: "type", Value: "todo"}})
	assert.ElementsMatch(t, []int{2, 3}, ids(result.Matches))
	// the tag parent and the recipe child are adjacent, each once
	assert.ElementsMatch(t, []int{1, 5}, ids(result.Adjacent))
}

func TestEvaluateAdjacencyExcludesMatches(t *testing.T) {
	items := fixture()

	result := Evaluate(items, []Criterion{Range{Mode: LogicAnd, First: 1, Last: 5}})
	assert.Len(t, result.Matches, 5)
	assert.Empty(t, result.Adjacent)
}

func TestParseCriteria(t *testing.T) {
	criteria, err := ParseCriteria([]byte(`[
		{"type":"match","logic":"AND","field":"type","value":"todo"},
		{"type":"search","logic":"OR","field":"title","value":"milk"},
		{"type":"recursive","id":1,"depth":2},
		{"type":"range","first":1,"last":3}
	]`))
	require.NoError(t, err)
	require.Len(t, criteria, 4)

	match, ok := criteria[0].(Match)
	require.True(t, ok)
	assert.Equal(t, LogicAnd, match.Mode)
	assert.Equal(t, "type", match.Field)
	assert.Equal(t, "todo", match.Value)

	search, ok := criteria[1].(Search)
	require.True(t, ok)
	assert.Equal(t, LogicOr, search.Mode)

	rec, ok := criteria[2].(Recursive)
	require.True(t, ok)
	assert.Equal(t, 1, rec.ID)
	assert.Equal(t, 2, rec.Depth)

	rng, ok := criteria[3].(Range)
	require.True(t, ok)
	assert.Equal(t, 1, rng.First)
	assert.Equal(t, 3, rng.Last)
}

func TestParseCriteriaUnknownType(t *testing.T) {
	_, err := ParseCriteria([]byte(`[{"type":"regex","logic":"AND"}]`))
	require.Error(t, err)
	var invalid *InvalidCriterionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "regex", invalid.Type)
}

func TestParseCriteriaUnknownLogicDefaultsToAnd(t *testing.T) {
	criteria, err := ParseCriteria([]byte(`[{"type":"match","logic":"XOR","field":"done","value":true}]`))
	require.NoError(t, err)
	require.Len(t, criteria, 1)
	assert.Equal(t, LogicAnd, criteria[0].Logic())
}

func TestParseCriteriaWrappedQueries(t *testing.T) {
	criteria, err := ParseCriteria([]byte(`{"queries":[
		{"type":"match","logic":"AND","field":"done","value":true},
		{"type":"search","logic":"OR","field":"title","value":"milk"}
	]}`))
	require.NoError(t, err)
	require.Len(t, criteria, 2)
	assert.Equal(t, Match{Mode: LogicAnd, Field: "done", Value: true}, criteria[0])
	assert.Equal(t, Search{Mode: LogicOr, Field: "title", Value: "milk"}, criteria[1])
}

func TestParseCriteriaMalformedJSON(t *testing.T) {
	_, err := ParseCriteria([]byte(`{"not":"a list"}`))
	var invalid *InvalidCriterionError
	require.ErrorAs(t, err, &invalid)
}
