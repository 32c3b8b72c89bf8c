package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFactsPlainArray(t *testing.T) {
	facts := ParseFacts(`[{"memory":"uses postgres","type":"architecture"}]`)
	require := assert.New(t)
	require.Len(facts, 1)
	require.Equal("uses postgres", facts[0].Memory)
	require.Equal("architecture", facts[0].Type)
}

func TestParseFactsStripsFence(t *testing.T) {
	facts := ParseFacts("```json\n[{\"memory\":\"x\",\"type\":\"preference\"}]\n```")
	assert.Len(t, facts, 1)
	assert.Equal(t, "x", facts[0].Memory)
}

func TestParseFactsStringArrayWrapsAsLearnedPattern(t *testing.T) {
	facts := ParseFacts(`["always use feature branches", "prefer small PRs"]`)
	assert.Len(t, facts, 2)
	assert.Equal(t, "learned-pattern", facts[0].Type)
	assert.Equal(t, "learned-pattern", facts[1].Type)
}

func TestParseFactsRecursesIntoObjectArrayField(t *testing.T) {
	facts := ParseFacts(`{"memories": [{"memory":"y","type":"progress"}]}`)
	assert.Len(t, facts, 1)
	assert.Equal(t, "y", facts[0].Memory)
	assert.Equal(t, "progress", facts[0].Type)
}

func TestParseFactsDiscardsEmptyMemoryAndDefaultsType(t *testing.T) {
	facts := ParseFacts(`[{"memory":"","type":"progress"},{"memory":"  kept  "}]`)
	assert.Len(t, facts, 1)
	assert.Equal(t, "kept", facts[0].Memory)
	assert.Equal(t, "learned-pattern", facts[0].Type)
}

func TestParseFactsMalformedJSONYieldsEmpty(t *testing.T) {
	facts := ParseFacts(`not json at all`)
	assert.Empty(t, facts)
}

func TestParseIDsParsesArrayAndTrims(t *testing.T) {
	ids := ParseIDs(`["id1", " id2 "]`)
	assert.Equal(t, []string{"id1", "id2"}, ids)
}

func TestParseIDsMalformedYieldsEmpty(t *testing.T) {
	ids := ParseIDs(`{"not":"an array"}`)
	assert.Empty(t, ids)
}
