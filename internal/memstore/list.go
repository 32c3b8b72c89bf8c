package memstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mnemo-dev/mnemo/internal/config"
	"github.com/mnemo-dev/mnemo/internal/merrors"
	"github.com/mnemo-dev/mnemo/internal/retry"
	"github.com/mnemo-dev/mnemo/internal/vectorstore"
)

// toMemories converts scanned store rows into the engine's public
// Memory type, parsing each row's metadata JSON.
func toMemories(rows []vectorstore.Row) []Memory {
	out := make([]Memory, len(rows))
	for i, r := range rows {
		out[i] = fromRow(r, unmarshalMetadata(r.MetadataJSON))
	}
	return out
}

const getProfileDefaultLimit = 200

// List scans the scope, sorted by updated_at descending, sliced to
// opts.Limit. When opts.IncludeSuperseded is false (the common case),
// only active records are returned.
func (e *Engine) List(ctx context.Context, userID string, opts ListOptions) ([]Memory, error) {
	escapedUserID, err := config.ValidateID(userID, "user_id")
	if err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = config.SearchDefaultLimit
	}

	where := "user_id = '" + escapedUserID + "'"
	if !opts.IncludeSuperseded {
		where += " AND superseded_by = ''"
	}

	rows, err := e.store.Scan(ctx, where, "updated_at DESC", limit)
	if err != nil {
		return nil, err
	}
	return toMemories(rows), nil
}

// ListByType returns active records whose type is in types, sorted by
// created_at ascending, capped at limit — the same scan the
// enumeration union step in Search uses, without the merge.
func (e *Engine) ListByType(ctx context.Context, userID string, types []string, limit int) ([]Memory, error) {
	escapedUserID, err := config.ValidateID(userID, "user_id")
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = config.SearchDefaultLimit
	}

	rows, err := e.scanByTypes(ctx, escapedUserID, types, "created_at ASC", limit)
	if err != nil {
		return nil, err
	}
	return toMemories(rows), nil
}

// scanByTypes is the shared scan used by ListByType and Search's
// enumeration union: active records in scope whose type is one of
// types.
func (e *Engine) scanByTypes(ctx context.Context, escapedUserID string, types []string, orderBy string, limit int) ([]vectorstore.Row, error) {
	if len(types) == 0 {
		return nil, nil
	}
	quoted := make([]string, 0, len(types))
	for _, t := range types {
		escaped, err := config.ValidateID(t, "type")
		if err != nil {
			return nil, err
		}
		quoted = append(quoted, "'"+escaped+"'")
	}
	where := fmt.Sprintf("user_id = '%s' AND superseded_by = '' AND type IN (%s)", escapedUserID, strings.Join(quoted, ", "))

	rows, err := e.store.Scan(ctx, where, orderBy, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Delete physically removes id. A missing id is treated as success
// (idempotent), per the not-found policy.
func (e *Engine) Delete(ctx context.Context, id string) error {
	escaped, err := config.ValidateID(id, "id")
	if err != nil {
		return err
	}

	err = retry.Do(ctx, retry.Write(), "memstore:delete", merrors.Transient, func(attemptCtx context.Context) error {
		return e.store.Delete(attemptCtx, "id = '"+escaped+"'")
	})
	if err != nil && !errors.Is(err, merrors.ErrNotFound) {
		return err
	}
	return nil
}

// GetProfile is List with a higher default limit, projecting only
// {id, memory, metadata, created_at}.
func (e *Engine) GetProfile(ctx context.Context, userID string, limit int) ([]ProfileEntry, error) {
	if limit <= 0 {
		limit = getProfileDefaultLimit
	}
	memories, err := e.List(ctx, userID, ListOptions{Limit: limit})
	if err != nil {
		return nil, err
	}

	out := make([]ProfileEntry, len(memories))
	for i, m := range memories {
		out[i] = ProfileEntry{ID: m.ID, Memory: m.Memory, Metadata: m.Metadata, CreatedAt: m.CreatedAt}
	}
	return out, nil
}
