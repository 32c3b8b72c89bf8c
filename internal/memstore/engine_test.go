package memstore

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-dev/mnemo/internal/extract"
)

func TestIngestInsertsNewFact(t *testing.T) {
	extractor := &fakeExtractor{factsQueue: [][]extract.Fact{
		{{Memory: "uses postgres for storage", Type: "architecture"}},
	}}
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"uses postgres for storage": vec(0),
	}}
	engine := newTestEngine(t, extractor, embedder)

	results, err := engine.Ingest(context.Background(), "transcript", "alice", IngestOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, EventAdd, results[0].Event)

	memories, err := engine.List(context.Background(), "alice", ListOptions{})
	require.NoError(t, err)
	require.Len(t, memories, 1)
	assert.Equal(t, "uses postgres for storage", memories[0].Memory)
	assert.Equal(t, "architecture", memories[0].Type)
}

func TestIngestDedupUpdatesInPlace(t *testing.T) {
	extractor := &fakeExtractor{factsQueue: [][]extract.Fact{
		{{Memory: "likes dark mode", Type: "preference"}},
		{{Memory: "likes dark mode themes", Type: "preference"}},
	}}
	// Same vector both times -> distance 0, well under the dedup
	// threshold, so the second ingest updates the first row in place.
	embedder := &fakeEmbedder{def: vec(0.5)} // any fixed angle; only equality matters
	engine := newTestEngine(t, extractor, embedder)

	first, err := engine.Ingest(context.Background(), "t1", "bob", IngestOptions{})
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, EventAdd, first[0].Event)

	second, err := engine.Ingest(context.Background(), "t2", "bob", IngestOptions{})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, EventUpdate, second[0].Event)
	assert.Equal(t, first[0].ID, second[0].ID)

	memories, err := engine.List(context.Background(), "bob", ListOptions{})
	require.NoError(t, err)
	require.Len(t, memories, 1)
	assert.Equal(t, "likes dark mode themes", memories[0].Memory)
}

func TestIngestProgressAgingDeletesOlderActiveProgress(t *testing.T) {
	extractor := &fakeExtractor{factsQueue: [][]extract.Fact{
		{{Memory: "working on the parser", Type: "progress"}},
		{{Memory: "working on the linker", Type: "progress"}},
	}}
	// Distinct angles: cosine distance well above the dedup threshold
	// so both land as separate active rows before aging runs.
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"working on the parser": vec(0),
		"working on the linker": vec(1.7),
	}}
	engine := newTestEngine(t, extractor, embedder)

	_, err := engine.Ingest(context.Background(), "t1", "carol", IngestOptions{})
	require.NoError(t, err)
	_, err = engine.Ingest(context.Background(), "t2", "carol", IngestOptions{})
	require.NoError(t, err)

	memories, err := engine.ListByType(context.Background(), "carol", []string{"progress"}, 10)
	require.NoError(t, err)
	require.Len(t, memories, 1)
	assert.Equal(t, "working on the linker", memories[0].Memory)
}

func TestIngestSessionSummaryRollingWindowCondensesOldest(t *testing.T) {
	extractor := &fakeExtractor{
		factsQueue: [][]extract.Fact{
			{{Memory: "summary one", Type: "session-summary"}},
			{{Memory: "summary two", Type: "session-summary"}},
			{{Memory: "summary three", Type: "session-summary"}},
			{{Memory: "summary four", Type: "session-summary"}},
		},
		condenseFacts: []extract.Fact{{Memory: "learned: ship small diffs", Type: "learned-pattern"}},
	}
	// Angles spaced far enough apart that no two summaries dedup
	// against each other; the condensed fact sits at its own angle.
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"summary one":                vec(0),
		"summary two":                vec(1.2),
		"summary three":              vec(2.4),
		"summary four":               vec(3.6),
		"learned: ship small diffs": vec(5.5),
	}}
	engine := newTestEngine(t, extractor, embedder)

	for i := 0; i < 4; i++ {
		_, err := engine.Ingest(context.Background(), "t", "dave", IngestOptions{})
		require.NoError(t, err)
	}

	summaries, err := engine.ListByType(context.Background(), "dave", []string{"session-summary"}, 10)
	require.NoError(t, err)
	assert.Len(t, summaries, 3, "oldest summary should have been condensed out of the active window")
	for _, m := range summaries {
		assert.NotEqual(t, "summary one", m.Memory)
	}

	learned, err := engine.ListByType(context.Background(), "dave", []string{"learned-pattern"}, 10)
	require.NoError(t, err)
	require.Len(t, learned, 1)
	assert.Equal(t, "learned: ship small diffs", learned[0].Memory)
}

func TestIngestContradictionSupersedesCandidate(t *testing.T) {
	extractor := &fakeExtractor{
		factsQueue: [][]extract.Fact{
			{{Memory: "prefers tabs", Type: "preference"}},
			{{Memory: "prefers spaces", Type: "preference"}},
		},
	}
	// 0.6 rad apart: cosine distance ~0.175 — above the non-structural
	// dedup threshold (0.12) but within the widened contradiction
	// radius (0.5), so the second fact inserts fresh and "prefers tabs"
	// is a contradiction candidate rather than a dedup target.
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"prefers tabs":   vec(0),
		"prefers spaces": vec(0.6),
	}}
	engine := newTestEngine(t, extractor, embedder)

	first, err := engine.Ingest(context.Background(), "t1", "erin", IngestOptions{})
	require.NoError(t, err)
	require.Len(t, first, 1)

	extractor.contradictIDs = []string{first[0].ID}

	_, err = engine.Ingest(context.Background(), "t2", "erin", IngestOptions{})
	require.NoError(t, err)

	active, err := engine.List(context.Background(), "erin", ListOptions{})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "prefers spaces", active[0].Memory)

	all, err := engine.List(context.Background(), "erin", ListOptions{IncludeSuperseded: true})
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestSearchScoresAndFiltersByThreshold(t *testing.T) {
	extractor := &fakeExtractor{factsQueue: [][]extract.Fact{
		{{Memory: "close match to query", Type: "fact"}},
		{{Memory: "unrelated memory", Type: "fact"}},
	}}
	// "unrelated memory" sits at the antipodal angle (distance 2, the
	// max for cosine distance), so it neither dedups, contradicts, nor
	// clears the search threshold against the query.
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"close match to query": vec(0),
		"unrelated memory":     vec(math.Pi),
		"query text":           vec(0),
	}}
	engine := newTestEngine(t, extractor, embedder)

	_, err := engine.Ingest(context.Background(), "t1", "frank", IngestOptions{})
	require.NoError(t, err)
	_, err = engine.Ingest(context.Background(), "t2", "frank", IngestOptions{})
	require.NoError(t, err)

	results, err := engine.Search(context.Background(), "query text", "frank", SearchOptions{Threshold: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "close match to query", results[0].Memory)
}

func TestDeleteIsIdempotent(t *testing.T) {
	extractor := &fakeExtractor{factsQueue: [][]extract.Fact{
		{{Memory: "to be deleted", Type: "fact"}},
	}}
	embedder := &fakeEmbedder{def: vec(0.3)}
	engine := newTestEngine(t, extractor, embedder)

	results, err := engine.Ingest(context.Background(), "t", "gail", IngestOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	require.NoError(t, engine.Delete(context.Background(), results[0].ID))
	require.NoError(t, engine.Delete(context.Background(), results[0].ID))

	memories, err := engine.List(context.Background(), "gail", ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, memories)
}

func TestGetProfileProjectsFields(t *testing.T) {
	extractor := &fakeExtractor{factsQueue: [][]extract.Fact{
		{{Memory: "profile fact", Type: "fact"}},
	}}
	embedder := &fakeEmbedder{def: vec(0.4)}
	engine := newTestEngine(t, extractor, embedder)

	_, err := engine.Ingest(context.Background(), "t", "hank", IngestOptions{})
	require.NoError(t, err)

	profile, err := engine.GetProfile(context.Background(), "hank", 0)
	require.NoError(t, err)
	require.Len(t, profile, 1)
	assert.Equal(t, "profile fact", profile[0].Memory)
	assert.NotEmpty(t, profile[0].CreatedAt)
}
