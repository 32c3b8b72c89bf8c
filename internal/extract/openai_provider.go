package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/mnemo-dev/mnemo/internal/config"
	"github.com/mnemo-dev/mnemo/internal/merrors"
)

// openAIProvider speaks the OpenAI-compatible chat completions shape,
// grounded on the same HTTP-call skeleton as the embedder client
// (thebtf-engram's internal/embedding/openai.go).
type openAIProvider struct {
	http    *http.Client
	baseURL string
	apiKey  string
	modelID string
}

func newOpenAIProvider(cfg *config.Config) *openAIProvider {
	return &openAIProvider{
		http:    &http.Client{Timeout: config.ProviderHTTPTimeout * time.Second},
		baseURL: cfg.OpenAIBaseURL,
		apiKey:  cfg.OpenAIAPIKey,
		modelID: cfg.OpenAIModel,
	}
}

func (p *openAIProvider) name() string  { return "openai" }
func (p *openAIProvider) model() string { return p.modelID }

type openAIChatRequest struct {
	Model    string              `json:"model"`
	Messages []openAIChatMessage `json:"messages"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *openAIProvider) call(ctx context.Context, system, user string) (string, usage, error) {
	if p.apiKey == "" {
		return "", usage{}, fmt.Errorf("openai provider: %w", merrors.ErrConfigMissing)
	}

	reqCtx, cancel := context.WithTimeout(ctx, config.ProviderHTTPTimeout*time.Second)
	defer cancel()

	body, err := json.Marshal(openAIChatRequest{
		Model: p.modelID,
		Messages: []openAIChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", usage{}, fmt.Errorf("openai provider: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", usage{}, fmt.Errorf("openai provider: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.http.Do(httpReq)
	if err != nil {
		return "", usage{}, fmt.Errorf("openai provider: %w: %v", merrors.ErrTransientNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", usage{}, fmt.Errorf("openai provider: %w: status %d: %s", merrors.ErrTransientNetwork, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", usage{}, fmt.Errorf("openai provider: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", usage{}, fmt.Errorf("openai provider: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", usage{}, fmt.Errorf("openai provider: no choices returned")
	}

	return parsed.Choices[0].Message.Content, usage{
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
	}, nil
}
