package memstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"context"

	"github.com/mnemo-dev/mnemo/internal/config"
	"github.com/mnemo-dev/mnemo/internal/embedding"
	"github.com/mnemo-dev/mnemo/internal/extract"
	"github.com/mnemo-dev/mnemo/internal/extract/prompts"
	"github.com/mnemo-dev/mnemo/internal/vectorstore"
)

// Extractor is the capability the store engine needs from C3: the
// five extraction entry points. *extract.Dispatcher satisfies this;
// the interface exists so the engine can be exercised against a fake
// in tests without a real provider dispatch.
type Extractor interface {
	Extract(ctx context.Context, transcript string) []extract.Fact
	ExtractInit(ctx context.Context, files string) []extract.Fact
	Summarize(ctx context.Context, messages string) []extract.Fact
	Contradicts(ctx context.Context, newMemory string, candidates []prompts.Candidate) []string
	Condense(ctx context.Context, summary string) []extract.Fact
}

// Engine is the store engine: the component that owns the ingest
// pipeline and the search/list/delete/profile read paths.
type Engine struct {
	store     *vectorstore.Store
	embedder  embedding.Embedder
	extractor Extractor
	log       zerolog.Logger
}

// New builds an Engine over an already-open vector store, embedder,
// and extractor dispatcher.
func New(store *vectorstore.Store, embedder embedding.Embedder, extractor Extractor, log zerolog.Logger) *Engine {
	return &Engine{store: store, embedder: embedder, extractor: extractor, log: log.With().Str("component", "memstore").Logger()}
}

func newID() string {
	return uuid.NewString()
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func marshalMetadata(m map[string]interface{}) (string, error) {
	if m == nil {
		m = map[string]interface{}{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(data), nil
}

func unmarshalMetadata(raw string) map[string]interface{} {
	if raw == "" {
		return map[string]interface{}{}
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return map[string]interface{}{}
	}
	return m
}

// mergeMetadata returns a new map = base overlaid with {type: factType},
// matching the "baseline ⊕ {type}" rule.
func mergeMetadata(base map[string]interface{}, factType string) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+1)
	for k, v := range base {
		out[k] = v
	}
	out["type"] = factType
	return out
}

func distanceThreshold(factType string, wide bool) float64 {
	structural := config.StructuralTypes[factType]
	switch {
	case wide && structural:
		return config.ContradictionThresholdStructural
	case wide && !structural:
		return config.ContradictionThresholdNonStructural
	case !wide && structural:
		return config.DedupThresholdStructural
	default:
		return config.DedupThresholdNonStructural
	}
}
