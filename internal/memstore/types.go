// Package memstore implements the store engine (C5): the ingest
// pipeline (extract -> embed -> dedup -> insert/update -> age ->
// supersede), semantic search with recency blending and typed
// enumeration union, and the list/delete/profile read paths. It owns
// every invariant in the data model.
package memstore

import (
	"time"

	"github.com/mnemo-dev/mnemo/internal/vectorstore"
)

// Memory is one record as exposed to callers outside the store
// engine, with metadata already parsed from JSON.
type Memory struct {
	ID           string                 `json:"id"`
	Memory       string                 `json:"memory"`
	UserID       string                 `json:"user_id"`
	Metadata     map[string]interface{} `json:"metadata"`
	Type         string                 `json:"type"`
	CreatedAt    string                 `json:"created_at"`
	UpdatedAt    string                 `json:"updated_at"`
	Hash         string                 `json:"hash"`
	Chunk        string                 `json:"chunk"`
	SupersededBy string                 `json:"superseded_by"`
}

func fromRow(r vectorstore.Row, metadata map[string]interface{}) Memory {
	return Memory{
		ID:           r.ID,
		Memory:       r.Memory,
		UserID:       r.UserID,
		Metadata:     metadata,
		Type:         r.Type,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		Hash:         r.Hash,
		Chunk:        r.Chunk,
		SupersededBy: r.SupersededBy,
	}
}

// IngestMode selects which extraction prompt the pipeline uses.
type IngestMode string

const (
	ModeNormal  IngestMode = "normal"
	ModeSummary IngestMode = "summary"
	ModeInit    IngestMode = "init"
)

// IngestOptions configures one ingest call.
type IngestOptions struct {
	Mode         IngestMode
	BaseMetadata map[string]interface{}
}

// IngestEvent reports what happened to one extracted fact.
type IngestEvent string

const (
	EventAdd    IngestEvent = "ADD"
	EventUpdate IngestEvent = "UPDATE"
)

// IngestResult is emitted once per extracted fact that was
// successfully written.
type IngestResult struct {
	ID     string      `json:"id"`
	Memory string      `json:"memory"`
	Event  IngestEvent `json:"event"`
}

// SearchOptions configures one search call.
type SearchOptions struct {
	Limit         int
	Threshold     float64
	RecencyWeight float64
	Types         []string
}

// SearchResult is one ranked hit.
type SearchResult struct {
	ID        string                 `json:"id"`
	Memory    string                 `json:"memory"`
	Chunk     string                 `json:"chunk"`
	Score     float64                `json:"score"`
	Metadata  map[string]interface{} `json:"metadata"`
	CreatedAt string                 `json:"created_at"`
	Date      time.Time              `json:"date"`
}

// ListOptions configures list.
type ListOptions struct {
	Limit             int
	IncludeSuperseded bool
}

// ProfileEntry is one projected row returned by GetProfile.
type ProfileEntry struct {
	ID        string                 `json:"id"`
	Memory    string                 `json:"memory"`
	Metadata  map[string]interface{} `json:"metadata"`
	CreatedAt string                 `json:"created_at"`
}
