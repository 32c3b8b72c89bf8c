package memstore

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-dev/mnemo/internal/embedding"
	"github.com/mnemo-dev/mnemo/internal/extract"
	"github.com/mnemo-dev/mnemo/internal/extract/prompts"
	"github.com/mnemo-dev/mnemo/internal/vectorstore"
)

const testDim = 8

// fakeEmbedder returns a configured vector per exact text match, or a
// default vector otherwise.
type fakeEmbedder struct {
	vectors map[string][]float32
	def     []float32
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, role embedding.Role) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	if f.def != nil {
		return f.def, nil
	}
	return vec(0), nil
}

// vec builds a unit vector on a repeated 2D rotation by angle (radians),
// so that the cosine distance between vec(a) and vec(b) is exactly
// 1-cos(a-b) — letting tests pick exact distances by choosing angles,
// instead of relying on incidental vector geometry.
func vec(angle float64) []float32 {
	v := make([]float32, testDim)
	for i := 0; i < testDim; i += 2 {
		v[i] = float32(math.Cos(angle))
		if i+1 < testDim {
			v[i+1] = float32(math.Sin(angle))
		}
	}
	return v
}

// fakeExtractor feeds one []extract.Fact per sequential Extract call
// from factsQueue, and fixed results for the other entry points.
type fakeExtractor struct {
	factsQueue    [][]extract.Fact
	callIdx       int
	condenseFacts []extract.Fact
	contradictIDs []string
}

func (f *fakeExtractor) Extract(ctx context.Context, transcript string) []extract.Fact {
	if f.callIdx >= len(f.factsQueue) {
		return nil
	}
	out := f.factsQueue[f.callIdx]
	f.callIdx++
	return out
}
func (f *fakeExtractor) ExtractInit(ctx context.Context, files string) []extract.Fact { return nil }
func (f *fakeExtractor) Summarize(ctx context.Context, messages string) []extract.Fact { return nil }
func (f *fakeExtractor) Contradicts(ctx context.Context, newMemory string, candidates []prompts.Candidate) []string {
	return f.contradictIDs
}
func (f *fakeExtractor) Condense(ctx context.Context, summary string) []extract.Fact {
	return f.condenseFacts
}

func newTestEngine(t *testing.T, extractor Extractor, embedder embedding.Embedder) *Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := vectorstore.Open(context.Background(), path, testDim, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(store, embedder, extractor, zerolog.Nop())
}
