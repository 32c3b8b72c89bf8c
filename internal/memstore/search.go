package memstore

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/mnemo-dev/mnemo/internal/config"
	"github.com/mnemo-dev/mnemo/internal/embedding"
	"github.com/mnemo-dev/mnemo/internal/retry"
)

// Search embeds query with role "query", runs the ANN search under
// the search retry profile, blends semantic and (optionally) recency
// scores, applies the threshold, and merges in a typed enumeration
// union when opts.Types is non-empty.
func (e *Engine) Search(ctx context.Context, query string, userID string, opts SearchOptions) ([]SearchResult, error) {
	vector, err := e.embedder.Embed(ctx, query, embedding.RoleQuery)
	if err != nil {
		return nil, err
	}
	return e.SearchByVector(ctx, vector, userID, opts)
}

// SearchByVector is the dashboard variant of Search that accepts an
// already-computed query vector, letting a caller reuse one embed call
// across multiple scopes.
func (e *Engine) SearchByVector(ctx context.Context, vector []float32, userID string, opts SearchOptions) ([]SearchResult, error) {
	escapedUserID, err := config.ValidateID(userID, "user_id")
	if err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = config.SearchDefaultLimit
	}
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = config.SearchDefaultThreshold
	}

	where := "user_id = '" + escapedUserID + "' AND superseded_by = ''"

	var rawResults []SearchResult
	err = retry.Do(ctx, retry.Search(), "memstore:search", func(error) bool { return true }, func(attemptCtx context.Context) error {
		hits, err := e.store.Search(vector).Distance("cosine").Where(where).Limit(limit).ToArray(attemptCtx)
		if err != nil {
			return err
		}
		rawResults = make([]SearchResult, len(hits))
		for i, h := range hits {
			metadata := unmarshalMetadata(h.MetadataJSON)
			rawResults[i] = SearchResult{
				ID:        h.ID,
				Memory:    h.Memory,
				Chunk:     h.Chunk,
				Score:     math.Max(0, 1-h.Distance),
				Metadata:  metadata,
				CreatedAt: h.CreatedAt,
				Date:      recordDate(metadata, h.CreatedAt),
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if opts.RecencyWeight > 0 {
		blendRecency(rawResults, opts.RecencyWeight)
	}

	filtered := rawResults[:0]
	for _, r := range rawResults {
		if r.Score >= threshold {
			filtered = append(filtered, r)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Score > filtered[j].Score })

	if len(opts.Types) > 0 {
		filtered = e.mergeEnumerationUnion(ctx, escapedUserID, opts.Types, limit, filtered)
	}

	return filtered, nil
}

// blendRecency computes recency = exp(-0.1 * days_between(date,
// max_date)) across the candidate set and blends it into each score:
// score = (1-w)*semantic + w*recency. A row with an unparseable date
// contributes 0 to recency, per spec.
func blendRecency(results []SearchResult, w float64) {
	if len(results) == 0 {
		return
	}
	var maxDate time.Time
	for _, r := range results {
		if r.Date.After(maxDate) {
			maxDate = r.Date
		}
	}
	for i := range results {
		var recency float64
		if !results[i].Date.IsZero() {
			days := maxDate.Sub(results[i].Date).Hours() / 24
			recency = math.Exp(-0.1 * days)
		}
		results[i].Score = (1-w)*results[i].Score + w*recency
	}
}

// recordDate resolves the date used for recency blending:
// metadata_json.date if present, else the date part of created_at.
// An unparseable date yields the zero time.
func recordDate(metadata map[string]interface{}, createdAt string) time.Time {
	if raw, ok := metadata["date"].(string); ok && raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t
		}
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			return t
		}
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		return t
	}
	return time.Time{}
}

// mergeEnumerationUnion loads all active records of the given types in
// scope (sorted by created_at ascending, capped at limit), assigns
// each a fixed base score, excludes ids already present, merges, and
// re-sorts descending by score.
func (e *Engine) mergeEnumerationUnion(ctx context.Context, escapedUserID string, types []string, limit int, existing []SearchResult) []SearchResult {
	seen := make(map[string]bool, len(existing))
	for _, r := range existing {
		seen[r.ID] = true
	}

	rows, err := e.scanByTypes(ctx, escapedUserID, types, "created_at ASC", limit)
	if err != nil {
		e.log.Warn().Err(err).Msg("search: enumeration union scan failed")
		return existing
	}

	merged := append([]SearchResult(nil), existing...)
	for _, row := range rows {
		if seen[row.ID] {
			continue
		}
		metadata := unmarshalMetadata(row.MetadataJSON)
		merged = append(merged, SearchResult{
			ID:        row.ID,
			Memory:    row.Memory,
			Chunk:     row.Chunk,
			Score:     config.EnumerationBaseScore,
			Metadata:  metadata,
			CreatedAt: row.CreatedAt,
			Date:      recordDate(metadata, row.CreatedAt),
		})
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	return merged
}
