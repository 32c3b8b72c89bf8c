package extract

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-dev/mnemo/internal/telemetry"
)

type fakeProvider struct {
	providerName string
	text         string
	err          error
	calls        int
}

func (f *fakeProvider) name() string  { return f.providerName }
func (f *fakeProvider) model() string { return "fake-model" }
func (f *fakeProvider) call(ctx context.Context, system, user string) (string, usage, error) {
	f.calls++
	if f.err != nil {
		return "", usage{}, f.err
	}
	return f.text, usage{PromptTokens: 10, CompletionTokens: 5}, nil
}

func newTestDispatcher(t *testing.T, providers ...provider) *Dispatcher {
	t.Helper()
	ledger := telemetry.NewCostLedger(filepath.Join(t.TempDir(), "costs.json"))
	activity := telemetry.NewActivityLog(filepath.Join(t.TempDir(), "activity.json"))
	health := make(map[string]*providerHealth, len(providers))
	for _, p := range providers {
		health[p.name()] = newProviderHealth(p.name(), providerFailThreshold, providerCooldownWindow, zerolog.Nop())
	}
	return &Dispatcher{providers: providers, health: health, ledger: ledger, activity: activity, log: zerolog.Nop()}
}

func TestCallLLMReturnsFirstProviderSuccess(t *testing.T) {
	p1 := &fakeProvider{providerName: "anthropic", text: `[{"memory":"x","type":"preference"}]`}
	d := newTestDispatcher(t, p1)
	out := d.CallLLM(context.Background(), "extraction", "sys", "usr")
	assert.Equal(t, `[{"memory":"x","type":"preference"}]`, out)
	assert.Equal(t, 1, p1.calls)
}

func TestCallLLMFallsBackOnFailure(t *testing.T) {
	p1 := &fakeProvider{providerName: "anthropic", err: errors.New("boom")}
	p2 := &fakeProvider{providerName: "openai", text: "[]"}
	d := newTestDispatcher(t, p1, p2)
	out := d.CallLLM(context.Background(), "extraction", "sys", "usr")
	assert.Equal(t, "[]", out)
	assert.Equal(t, 1, p2.calls)
}

func TestCallLLMReturnsSentinelWhenAllExhausted(t *testing.T) {
	p1 := &fakeProvider{providerName: "anthropic", err: errors.New("boom")}
	p2 := &fakeProvider{providerName: "openai", err: errors.New("boom")}
	d := newTestDispatcher(t, p1, p2)
	out := d.CallLLM(context.Background(), "extraction", "sys", "usr")
	assert.Equal(t, "[]", out)
}

func TestCallLLMSkipsUnavailableProvider(t *testing.T) {
	p1 := &fakeProvider{providerName: "anthropic", err: errors.New("boom")}
	p2 := &fakeProvider{providerName: "openai", text: "[]"}
	d := newTestDispatcher(t, p1, p2)
	d.health["anthropic"] = newProviderHealth("anthropic", 1, 3600, zerolog.Nop())

	d.CallLLM(context.Background(), "extraction", "sys", "usr")
	require.Equal(t, "unavailable", d.health["anthropic"].State())

	callsBefore := p1.calls
	d.CallLLM(context.Background(), "extraction", "sys", "usr")
	assert.Equal(t, callsBefore, p1.calls)
}

func TestExtractParsesDispatchedFacts(t *testing.T) {
	p1 := &fakeProvider{providerName: "anthropic", text: `[{"memory":"uses chi","type":"architecture"}]`}
	d := newTestDispatcher(t, p1)
	facts := d.Extract(context.Background(), "some transcript")
	require.Len(t, facts, 1)
	assert.Equal(t, "uses chi", facts[0].Memory)
}
