package memstore

import (
	"context"
	"fmt"
	"time"

	"github.com/mnemo-dev/mnemo/internal/config"
	"github.com/mnemo-dev/mnemo/internal/embedding"
	"github.com/mnemo-dev/mnemo/internal/extract"
	"github.com/mnemo-dev/mnemo/internal/extract/prompts"
	"github.com/mnemo-dev/mnemo/internal/merrors"
	"github.com/mnemo-dev/mnemo/internal/privacy"
	"github.com/mnemo-dev/mnemo/internal/retry"
	"github.com/mnemo-dev/mnemo/internal/vectorstore"
)

// Ingest runs the full pipeline over input (a transcript, message
// window, or concatenated project files, depending on opts.Mode):
// extract typed facts, then for each fact in order, dedup-or-insert,
// age, and contradiction-detect. A single fact's failure is logged
// and skipped; it never aborts the batch.
func (e *Engine) Ingest(ctx context.Context, input string, userID string, opts IngestOptions) ([]IngestResult, error) {
	escapedUserID, err := config.ValidateID(userID, "user_id")
	if err != nil {
		return nil, err
	}

	facts := e.extractFacts(ctx, input, opts.Mode)
	chunk := truncateChunk(input)

	results := make([]IngestResult, 0, len(facts))
	for _, fact := range facts {
		result, err := e.processFact(ctx, escapedUserID, fact, opts.BaseMetadata, chunk)
		if err != nil {
			e.log.Warn().Str("user_id", userID).Str("type", fact.Type).Err(err).Msg("ingest: fact failed, skipping")
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

func (e *Engine) extractFacts(ctx context.Context, input string, mode IngestMode) []extract.Fact {
	switch mode {
	case ModeSummary:
		return e.extractor.Summarize(ctx, input)
	case ModeInit:
		return e.extractor.ExtractInit(ctx, input)
	default:
		return e.extractor.Extract(ctx, input)
	}
}

func truncateChunk(s string) string {
	if len(s) <= config.ChunkMaxChars {
		return s
	}
	return s[:config.ChunkMaxChars]
}

// processFact runs one extracted fact through dedup-or-insert, aging,
// and contradiction detection. escapedUserID must already be
// validated and escaped.
func (e *Engine) processFact(ctx context.Context, escapedUserID string, fact extract.Fact, baseMetadata map[string]interface{}, chunk string) (IngestResult, error) {
	if scrubbed, found := privacy.RedactFact(fact.Memory); found {
		e.log.Warn().Str("type", fact.Type).Msg("ingest: redacted credential-shaped text from extracted fact")
		fact.Memory = scrubbed
	}

	metadata := mergeMetadata(baseMetadata, fact.Type)
	metadataJSON, err := marshalMetadata(metadata)
	if err != nil {
		return IngestResult{}, err
	}
	hash := contentHash(fact.Memory)

	vector, err := e.embedder.Embed(ctx, fact.Memory, embedding.RoleDocument)
	if err != nil {
		return IngestResult{}, fmt.Errorf("embed fact: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)

	dedupThreshold := distanceThreshold(fact.Type, false)
	dup, distance, err := e.findActive(ctx, escapedUserID, vector)
	if err != nil {
		return IngestResult{}, fmt.Errorf("dedup lookup: %w", err)
	}

	if dup != nil && distance <= dedupThreshold {
		err := retry.Do(ctx, retry.Write(), "memstore:update", merrors.Transient, func(attemptCtx context.Context) error {
			return e.store.Update(attemptCtx, "id = '"+dup.ID+"'", map[string]string{
				"memory":        fact.Memory,
				"metadata_json": metadataJSON,
				"chunk":         chunk,
				"hash":          hash,
				"updated_at":    now,
			})
		})
		if err != nil {
			return IngestResult{}, fmt.Errorf("dedup update: %w", err)
		}
		return IngestResult{ID: dup.ID, Memory: fact.Memory, Event: EventUpdate}, nil
	}

	id := newID()
	row := vectorstore.Row{
		ID: id, Memory: fact.Memory, UserID: escapedUserID, Vector: vector,
		MetadataJSON: metadataJSON, Type: fact.Type, CreatedAt: now, UpdatedAt: now,
		Hash: hash, Chunk: chunk, SupersededBy: "",
	}
	err = retry.Do(ctx, retry.Write(), "memstore:insert", merrors.Transient, func(attemptCtx context.Context) error {
		return e.store.Add(attemptCtx, []vectorstore.Row{row})
	})
	if err != nil {
		return IngestResult{}, fmt.Errorf("insert: %w", err)
	}

	e.applyAging(ctx, escapedUserID, fact.Type, id)
	e.detectContradictions(ctx, escapedUserID, fact.Type, id, fact.Memory, vector)

	return IngestResult{ID: id, Memory: fact.Memory, Event: EventAdd}, nil
}

// findActive returns the single nearest active record (user_id
// matches, superseded_by empty) within the vector store, or nil if
// none exist. The threshold parameter is informational only — the
// caller decides what to do with the returned distance.
func (e *Engine) findActive(ctx context.Context, escapedUserID string, vector []float32) (*vectorstore.Row, float64, error) {
	where := "user_id = '" + escapedUserID + "' AND superseded_by = ''"
	results, err := e.store.Search(vector).Distance("cosine").Where(where).Limit(1).ToArray(ctx)
	if err != nil {
		return nil, 0, err
	}
	if len(results) == 0 {
		return nil, 0, nil
	}
	row := results[0].Row
	return &row, results[0].Distance, nil
}

func (e *Engine) applyAging(ctx context.Context, escapedUserID, factType, newID string) {
	switch factType {
	case "progress":
		e.ageProgress(ctx, escapedUserID, newID)
	case "session-summary":
		e.ageSessionSummary(ctx, escapedUserID)
	}
}

// ageProgress deletes every other active progress record in scope,
// leaving only the just-inserted one.
func (e *Engine) ageProgress(ctx context.Context, escapedUserID, newID string) {
	where := fmt.Sprintf("type = 'progress' AND user_id = '%s' AND superseded_by = '' AND id != '%s'", escapedUserID, newID)
	err := retry.Do(ctx, retry.Write(), "memstore:age-progress", merrors.Transient, func(attemptCtx context.Context) error {
		return e.store.Delete(attemptCtx, where)
	})
	if err != nil {
		e.log.Warn().Err(err).Msg("age progress: delete older records failed")
	}
}

// ageSessionSummary enforces the rolling window of at most
// config.SessionSummaryWindow active session-summary records: when
// the count overflows, the oldest is condensed into a learned-pattern
// fact (run through the full pipeline) and then physically deleted.
func (e *Engine) ageSessionSummary(ctx context.Context, escapedUserID string) {
	where := "type = 'session-summary' AND user_id = '" + escapedUserID + "' AND superseded_by = ''"
	rows, err := e.store.Scan(ctx, where, "created_at ASC", 0)
	if err != nil {
		e.log.Warn().Err(err).Msg("age session-summary: scan failed")
		return
	}
	if len(rows) <= config.SessionSummaryWindow {
		return
	}

	oldest := rows[0]
	facts := e.extractor.Condense(ctx, oldest.Memory)
	if len(facts) > 0 {
		if _, err := e.processFact(ctx, escapedUserID, facts[0], nil, oldest.Chunk); err != nil {
			e.log.Warn().Err(err).Msg("age session-summary: condensed fact ingest failed, deleting oldest anyway")
		}
	} else {
		e.log.Warn().Msg("age session-summary: condensation yielded no fact, deleting oldest anyway")
	}

	err = retry.Do(ctx, retry.Write(), "memstore:age-summary-delete", merrors.Transient, func(attemptCtx context.Context) error {
		return e.store.Delete(attemptCtx, "id = '"+oldest.ID+"'")
	})
	if err != nil {
		e.log.Warn().Err(err).Msg("age session-summary: delete oldest failed")
	}
}

// detectContradictions widens the dedup search radius and asks the
// extractor which active candidates the new memory supersedes, unless
// factType has its own aging rule (VersioningSkipTypes). vector is the
// already-computed embedding of newMemory, reused here to avoid a
// second embed call.
func (e *Engine) detectContradictions(ctx context.Context, escapedUserID, factType, newID, newMemory string, vector []float32) {
	if config.VersioningSkipTypes[factType] {
		return
	}

	threshold := distanceThreshold(factType, true)
	where := fmt.Sprintf("user_id = '%s' AND superseded_by = '' AND id != '%s'", escapedUserID, newID)
	results, err := e.store.Search(vector).Distance("cosine").Where(where).Limit(config.ContradictionCandidateLimit).ToArray(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("contradiction detection: candidate search failed")
		return
	}

	candidates := make([]prompts.Candidate, 0, len(results))
	for _, r := range results {
		if r.Distance <= threshold {
			candidates = append(candidates, prompts.Candidate{ID: r.Row.ID, Memory: r.Row.Memory})
		}
	}
	if len(candidates) == 0 {
		return
	}

	supersededIDs := e.extractor.Contradicts(ctx, newMemory, candidates)
	if len(supersededIDs) == 0 {
		return
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, sid := range supersededIDs {
		escaped, err := config.ValidateID(sid, "superseded_id")
		if err != nil {
			e.log.Warn().Str("id", sid).Msg("contradiction detection: provider returned invalid id, skipping")
			continue
		}
		err = retry.Do(ctx, retry.Write(), "memstore:supersede", merrors.Transient, func(attemptCtx context.Context) error {
			return e.store.Update(attemptCtx, "id = '"+escaped+"'", map[string]string{
				"superseded_by": newID,
				"updated_at":    now,
			})
		})
		if err != nil {
			e.log.Warn().Str("id", sid).Err(err).Msg("contradiction detection: supersede write failed")
		}
	}
}

