package extract

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/mnemo-dev/mnemo/internal/config"
	"github.com/mnemo-dev/mnemo/internal/merrors"
)

// googleProvider speaks the Generative Language API via
// google.golang.org/genai, normalizing
// candidates[0].content.parts[0].text, grounded on the same client's
// usage for embeddings in theRebelliousNerd-codenerd's
// internal/embedding/genai.go.
type googleProvider struct {
	client  *genai.Client
	modelID string
	ready   bool
}

func newGoogleProvider(cfg *config.Config) *googleProvider {
	if cfg.GoogleAPIKey == "" {
		return &googleProvider{modelID: cfg.GoogleModel}
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: cfg.GoogleAPIKey})
	if err != nil {
		return &googleProvider{modelID: cfg.GoogleModel}
	}
	return &googleProvider{client: client, modelID: cfg.GoogleModel, ready: true}
}

func (p *googleProvider) name() string  { return "google" }
func (p *googleProvider) model() string { return p.modelID }

func (p *googleProvider) call(ctx context.Context, system, user string) (string, usage, error) {
	if !p.ready {
		return "", usage{}, fmt.Errorf("google provider: %w", merrors.ErrConfigMissing)
	}

	reqCtx, cancel := context.WithTimeout(ctx, config.ProviderHTTPTimeout*time.Second)
	defer cancel()

	contents := []*genai.Content{genai.NewContentFromText(user, genai.RoleUser)}
	result, err := p.client.Models.GenerateContent(reqCtx, p.modelID, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	})
	if err != nil {
		return "", usage{}, fmt.Errorf("google provider: %w: %v", merrors.ErrTransientNetwork, err)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", usage{}, fmt.Errorf("google provider: no content returned")
	}

	var promptTokens, completionTokens int
	if result.UsageMetadata != nil {
		promptTokens = int(result.UsageMetadata.PromptTokenCount)
		completionTokens = int(result.UsageMetadata.CandidatesTokenCount)
	}

	return result.Candidates[0].Content.Parts[0].Text, usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
	}, nil
}
