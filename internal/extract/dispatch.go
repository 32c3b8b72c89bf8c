// Package extract implements the multi-provider LLM dispatcher (C3):
// ordered fallback across openai/anthropic/google, JSON-parsing
// robustness rules, and the five prompt templates used by the store
// engine's ingest pipeline.
package extract

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/mnemo-dev/mnemo/internal/config"
	"github.com/mnemo-dev/mnemo/internal/extract/prompts"
	"github.com/mnemo-dev/mnemo/internal/merrors"
	"github.com/mnemo-dev/mnemo/internal/retry"
	"github.com/mnemo-dev/mnemo/internal/telemetry"
)

// providerFailThreshold/CooldownWindow match the teacher's CLI breaker
// defaults (5 failures, 60s reset) adapted to HTTP providers.
const (
	providerFailThreshold  = 5
	providerCooldownWindow = 60
)

// Dispatcher sends a prompt to providers in order until one succeeds,
// recording telemetry and routing around a provider that trips its
// health tracker on repeated failure.
type Dispatcher struct {
	providers []provider
	health    map[string]*providerHealth
	ledger    *telemetry.CostLedger
	activity  *telemetry.ActivityLog
	log       zerolog.Logger
}

// New builds a Dispatcher with providers ordered primary-first per
// cfg.ExtractionProvider, followed by the remaining providers in a
// fixed fallback order.
func New(cfg *config.Config, ledger *telemetry.CostLedger, activity *telemetry.ActivityLog, log zerolog.Logger) *Dispatcher {
	all := map[string]provider{
		"openai":    newOpenAIProvider(cfg),
		"anthropic": newAnthropicProvider(cfg),
		"google":    newGoogleProvider(cfg),
	}

	order := []string{cfg.ExtractionProvider}
	for _, name := range []string{"anthropic", "openai", "google"} {
		if name != cfg.ExtractionProvider {
			order = append(order, name)
		}
	}

	ordered := make([]provider, 0, len(order))
	health := make(map[string]*providerHealth, len(order))
	for _, name := range order {
		p, ok := all[name]
		if !ok {
			continue
		}
		ordered = append(ordered, p)
		health[name] = newProviderHealth(name, providerFailThreshold, providerCooldownWindow, log)
	}

	return &Dispatcher{providers: ordered, health: health, ledger: ledger, activity: activity, log: log}
}

// CallLLM dispatches system+user to providers in order, under the
// network-no-timeout retry profile (each provider enforces its own
// 60s abort, so the retry kernel must not race a second timeout on
// top of it). Returns the literal "[]" if every provider is
// exhausted or skipped — extraction must never block the caller.
func (d *Dispatcher) CallLLM(ctx context.Context, operation, system, user string) string {
	for _, p := range d.providers {
		health := d.health[p.name()]
		if !health.Allow() {
			continue
		}

		var text string
		var u usage
		err := retry.Do(ctx, retry.NetworkNoTimeout(), "extract:"+p.name(), merrors.Transient, func(attemptCtx context.Context) error {
			t, callUsage, callErr := p.call(attemptCtx, system, user)
			if callErr != nil {
				return callErr
			}
			text, u = t, callUsage
			return nil
		})

		if err != nil {
			health.RecordFailure()
			d.log.Warn().Str("provider", p.name()).Str("operation", operation).Err(err).Msg("extraction provider failed, trying next")
			continue
		}

		health.RecordSuccess()
		d.recordTelemetry(p, operation, u)
		return text
	}

	d.log.Warn().Str("operation", operation).Msg("all extraction providers exhausted")
	return "[]"
}

func (d *Dispatcher) recordTelemetry(p provider, operation string, u usage) {
	if d.ledger != nil {
		d.ledger.RecordExtraction(p.name(), u.PromptTokens, u.CachedTokens, u.CompletionTokens)
	}
	if d.activity != nil {
		prices := config.PricePerMillionTokens[p.name()]
		cost := float64(u.PromptTokens)/1_000_000*prices[0] + float64(u.CompletionTokens)/1_000_000*prices[1]
		d.activity.Record(telemetry.ActivityEntry{
			Timestamp:        time.Now().UTC().Format(time.RFC3339),
			Provider:         p.name(),
			Model:            p.model(),
			Operation:        operation,
			PromptTokens:     int64(u.PromptTokens),
			CachedTokens:     int64(u.CachedTokens),
			CompletionTokens: int64(u.CompletionTokens),
			CostUSD:          cost,
		})
	}
}

// Extract runs the normal per-turn extraction prompt and parses facts.
func (d *Dispatcher) Extract(ctx context.Context, transcript string) []Fact {
	system, user := prompts.Extraction(transcript)
	return ParseFacts(d.CallLLM(ctx, "extraction", system, user))
}

// ExtractInit runs the project-seeding extraction prompt.
func (d *Dispatcher) ExtractInit(ctx context.Context, files string) []Fact {
	system, user := prompts.InitExtraction(files)
	return ParseFacts(d.CallLLM(ctx, "init_extraction", system, user))
}

// Summarize runs the session-summary prompt, returning at most one
// fact (the prompt asks for exactly one, but downstream code must not
// assume a well-behaved provider).
func (d *Dispatcher) Summarize(ctx context.Context, messages string) []Fact {
	system, user := prompts.Summary(messages)
	return ParseFacts(d.CallLLM(ctx, "summary", system, user))
}

// Contradicts runs the contradiction-detection prompt and returns the
// ids the new memory supersedes.
func (d *Dispatcher) Contradicts(ctx context.Context, newMemory string, candidates []prompts.Candidate) []string {
	system, user := prompts.Contradiction(newMemory, candidates)
	return ParseIDs(d.CallLLM(ctx, "contradiction", system, user))
}

// Condense runs the condensation prompt and returns at most one fact.
func (d *Dispatcher) Condense(ctx context.Context, summary string) []Fact {
	system, user := prompts.Condense(summary)
	return ParseFacts(d.CallLLM(ctx, "condense", system, user))
}
