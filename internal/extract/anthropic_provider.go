package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/mnemo-dev/mnemo/internal/config"
	"github.com/mnemo-dev/mnemo/internal/merrors"
)

const anthropicMaxTokens = 1024

// anthropicProvider speaks the Messages API via the anthropic-sdk-go
// client, normalizing content[0].text per spec.
type anthropicProvider struct {
	client  anthropic.Client
	modelID string
	ready   bool
}

func newAnthropicProvider(cfg *config.Config) *anthropicProvider {
	if cfg.AnthropicAPIKey == "" {
		return &anthropicProvider{modelID: cfg.AnthropicModel}
	}
	return &anthropicProvider{
		client:  anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey)),
		modelID: cfg.AnthropicModel,
		ready:   true,
	}
}

func (p *anthropicProvider) name() string  { return "anthropic" }
func (p *anthropicProvider) model() string { return p.modelID }

func (p *anthropicProvider) call(ctx context.Context, system, user string) (string, usage, error) {
	if !p.ready {
		return "", usage{}, fmt.Errorf("anthropic provider: %w", merrors.ErrConfigMissing)
	}

	reqCtx, cancel := context.WithTimeout(ctx, config.ProviderHTTPTimeout*time.Second)
	defer cancel()

	msg, err := p.client.Messages.New(reqCtx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.modelID),
		MaxTokens: anthropicMaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		// 429/5xx are worth retrying; anything else (bad key, bad
		// request) fails fast so the dispatcher moves to the next
		// provider immediately instead of burning the retry budget on
		// a call that will never succeed.
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500) {
			return "", usage{}, fmt.Errorf("anthropic provider: %w: %v", merrors.ErrTransientNetwork, err)
		}
		return "", usage{}, fmt.Errorf("anthropic provider: %v", err)
	}
	if len(msg.Content) == 0 {
		return "", usage{}, fmt.Errorf("anthropic provider: no content blocks returned")
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}

	return text, usage{
		PromptTokens:     int(msg.Usage.InputTokens),
		CachedTokens:     int(msg.Usage.CacheReadInputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
	}, nil
}
