// Package embedding implements the embedder (C2): one HTTP call to an
// OpenAI-compatible /embeddings endpoint, config-pinned model and
// dimension, wrapped in the network retry profile, with best-effort
// cost telemetry on every success.
//
// Grounded on the teacher's OpenAI-compatible embedding client
// (internal/embedding/openai.go in the reference pack): same request/
// response shape, same sort-by-index defensiveness. Adapted here to
// the role-aware contract (document vs. query) the store engine needs
// and wired through the shared retry kernel instead of a bare
// *http.Client with no backoff.
package embedding

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/mnemo-dev/mnemo/internal/config"
	"github.com/mnemo-dev/mnemo/internal/merrors"
	"github.com/mnemo-dev/mnemo/internal/retry"
	"github.com/mnemo-dev/mnemo/internal/telemetry"
)

// Role distinguishes how a text is being embedded; the wire format
// folds this into input_type.
type Role string

const (
	RoleDocument Role = "document"
	RoleQuery    Role = "query"
)

// Embedder is the contract: embed(text, role) -> vec[D].
type Embedder interface {
	Embed(ctx context.Context, text string, role Role) ([]float32, error)
}

type embedRequest struct {
	Model     string   `json:"model"`
	Input     []string `json:"input"`
	InputType string   `json:"input_type"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Client is the production Embedder.
type Client struct {
	http     *http.Client
	baseURL  string
	apiKey   string
	model    string
	ledger   *telemetry.CostLedger
}

// NewClient builds a Client from resolved configuration. Returns
// ErrConfigMissing if no API key is present — the feature is disabled
// upstream rather than retried, since retrying an absent credential is
// pointless.
func NewClient(cfg *config.Config, ledger *telemetry.CostLedger) (*Client, error) {
	if cfg.EmbeddingAPIKey == "" {
		return nil, fmt.Errorf("embedding client: %w", merrors.ErrConfigMissing)
	}
	return &Client{
		http:    &http.Client{},
		baseURL: cfg.EmbeddingBaseURL,
		apiKey:  cfg.EmbeddingAPIKey,
		model:   cfg.EmbeddingModel,
		ledger:  ledger,
	}, nil
}

// Embed returns a single fixed-dimension vector for text under role.
// Network failures are retried under the network profile before
// surfacing to the caller.
func (c *Client) Embed(ctx context.Context, text string, role Role) ([]float32, error) {
	if text == "" {
		return make([]float32, config.EmbeddingDimensions), nil
	}

	var vecs [][]float32
	err := retry.Do(ctx, retry.Network(), "embed", merrors.Transient, func(attemptCtx context.Context) error {
		v, tokens, err := c.embedRequest(attemptCtx, []string{text}, role)
		if err != nil {
			return err
		}
		vecs = v
		if c.ledger != nil {
			c.ledger.RecordEmbedding("openai", c.model, tokens)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embed: empty response for model %s", c.model)
	}
	return vecs[0], nil
}

func (c *Client) embedRequest(ctx context.Context, inputs []string, role Role) ([][]float32, int, error) {
	body, err := json.Marshal(embedRequest{Model: c.model, Input: inputs, InputType: string(role)})
	if err != nil {
		return nil, 0, fmt.Errorf("embed: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("embed: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("embed: %w: %v", merrors.ErrTransientNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, 0, fmt.Errorf("embed: %w: status %d: %s", merrors.ErrTransientNetwork, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, 0, fmt.Errorf("embed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, 0, fmt.Errorf("embed: decode response: %w", err)
	}

	sort.Slice(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })
	out := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		out[i] = d.Embedding
	}
	return out, parsed.Usage.TotalTokens, nil
}
