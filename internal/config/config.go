// Package config provides configuration management for mnemo: central
// constants, credential resolution (env over settings file), and the id
// allowlist validator that is the system's only defense against filter
// injection.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// Embedding dimensionality, pinned by the configured model.
const EmbeddingDimensions = 1024

// Dedup distance thresholds (cosine distance; smaller = more similar).
const (
	DedupThresholdNonStructural = 0.12
	DedupThresholdStructural    = 0.25
)

// Contradiction search radii.
const (
	ContradictionThresholdNonStructural = 0.5
	ContradictionThresholdStructural    = 0.75
)

// ContradictionCandidateLimit bounds how many candidates are sent to the
// contradiction prompt in a single call.
const ContradictionCandidateLimit = 25

// SessionSummaryWindow is the rolling cap of active session-summary
// records kept per scope before the oldest is condensed and dropped.
const SessionSummaryWindow = 3

// ChunkMaxChars bounds the truncated source context stored alongside a
// memory.
const ChunkMaxChars = 8000

// Search defaults.
const (
	SearchDefaultLimit     = 20
	SearchDefaultThreshold = 0.3
	EnumerationBaseScore   = 0.25
)

// ProviderHTTPTimeout bounds a single provider call, in seconds; the
// retry kernel's network profile must never add a second, racing
// timeout on top of it.
const ProviderHTTPTimeout = 60

// PricePerMillionTokens holds USD list prices (input, output) per
// million tokens, keyed by provider name, for best-effort cost
// telemetry. Values are approximate list prices at time of writing and
// are not a billing source of truth.
var PricePerMillionTokens = map[string][2]float64{
	"openai":    {0.13, 0.0},
	"anthropic": {0.80, 4.00},
	"google":    {0.10, 0.40},
}

// StructuralTypes describes facts that evolve slowly and should collapse
// more aggressively under dedup and contradiction detection.
var StructuralTypes = map[string]bool{
	"project-brief":   true,
	"architecture":    true,
	"tech-context":    true,
	"product-context": true,
	"project-config":  true,
}

// VersioningSkipTypes have their own aging rules and never run through
// contradiction detection.
var VersioningSkipTypes = map[string]bool{
	"session-summary": true,
	"progress":        true,
}

// idPattern is the allowlist for anything interpolated into a filter
// string: alphanumeric plus "_:.-". Empty values are rejected.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_:.-]+$`)

// ValidateID checks value against the id allowlist and returns it
// escaped for safe interpolation into a filter string (single quotes
// doubled, defense-in-depth beyond the allowlist itself). fieldName is
// used only to build a useful error message.
//
// Every value interpolated into a filter string anywhere in the system
// must pass through here; a single unvalidated interpolation is a
// critical defect.
func ValidateID(value, fieldName string) (string, error) {
	if value == "" || !idPattern.MatchString(value) {
		return "", &InvalidIDError{Field: fieldName, Value: value}
	}
	return strings.ReplaceAll(value, "'", "''"), nil
}

// InvalidIDError reports a value that failed id validation. Construction
// of a filter string must stop here; callers never catch this
// internally.
type InvalidIDError struct {
	Field string
	Value string
}

func (e *InvalidIDError) Error() string {
	return "mnemo: invalid id for field " + e.Field + ": " + e.Value
}

// Config holds runtime configuration, resolved env-first then from the
// settings file, then defaulted.
type Config struct {
	DataDir            string `json:"data_dir"`
	EmbeddingProvider  string `json:"embedding_provider"`
	EmbeddingBaseURL   string `json:"embedding_base_url"`
	EmbeddingModel     string `json:"embedding_model"`
	EmbeddingAPIKey    string `json:"-"`
	ExtractionProvider string `json:"extraction_provider"`
	OpenAIAPIKey       string `json:"-"`
	OpenAIBaseURL      string `json:"openai_base_url"`
	OpenAIModel        string `json:"openai_model"`
	AnthropicAPIKey    string `json:"-"`
	AnthropicModel     string `json:"anthropic_model"`
	GoogleAPIKey       string `json:"-"`
	GoogleModel        string `json:"google_model"`
	HTTPPort           int    `json:"http_port"`
}

// validExtractionProviders is the enum validated against
// ExtractionProvider; an invalid value falls back to the default with a
// warning (logged by the caller, config stays pure).
var validExtractionProviders = map[string]bool{
	"openai":    true,
	"anthropic": true,
	"google":    true,
}

// DefaultExtractionProvider is used when none is configured or the
// configured value fails the enum check.
const DefaultExtractionProvider = "anthropic"

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// defaultDataDir returns ~/.mnemo.
func defaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".mnemo")
}

// DBPath returns the vector store's backing file path.
func DBPath(cfg *Config) string {
	return filepath.Join(cfg.DataDir, "vectors.db")
}

// SettingsPath returns the settings file path.
func SettingsPath(cfg *Config) string {
	return filepath.Join(cfg.DataDir, "settings.json")
}

// EnsureDataDir creates the data directory (owner-only permissions) if
// it doesn't exist.
func EnsureDataDir(cfg *Config) error {
	return os.MkdirAll(cfg.DataDir, 0700)
}

// Default returns a Config populated with defaults; no credentials are
// set (those are resolved separately, env-first).
func Default() *Config {
	return &Config{
		DataDir:            defaultDataDir(),
		EmbeddingProvider:  "openai",
		EmbeddingBaseURL:   "https://api.openai.com/v1",
		EmbeddingModel:     "text-embedding-3-large",
		ExtractionProvider: DefaultExtractionProvider,
		OpenAIBaseURL:      "https://api.openai.com/v1",
		OpenAIModel:        "gpt-4o-mini",
		AnthropicModel:     "claude-3-5-haiku-20241022",
		GoogleModel:        "gemini-2.0-flash",
		HTTPPort:           37777,
	}
}

// settingsFile mirrors the on-disk JSON shape; credentials are never
// persisted to it (env-only), matching the env-over-file resolution
// order.
type settingsFile struct {
	DataDir            string `json:"data_dir"`
	EmbeddingProvider  string `json:"embedding_provider"`
	EmbeddingBaseURL   string `json:"embedding_base_url"`
	EmbeddingModel     string `json:"embedding_model"`
	ExtractionProvider string `json:"extraction_provider"`
	OpenAIBaseURL      string `json:"openai_base_url"`
	OpenAIModel        string `json:"openai_model"`
	AnthropicModel     string `json:"anthropic_model"`
	GoogleModel        string `json:"google_model"`
	HTTPPort           int    `json:"http_port"`
}

// Load loads configuration from the settings file (merged over
// defaults), then overlays credentials from the environment. A missing
// settings file is not an error; a malformed one falls back to
// defaults.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath(cfg))
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else {
		var s settingsFile
		if err := json.Unmarshal(data, &s); err == nil {
			applySettings(cfg, &s)
		}
	}

	resolveCredentials(cfg)
	return cfg, nil
}

func applySettings(cfg *Config, s *settingsFile) {
	if s.DataDir != "" {
		cfg.DataDir = s.DataDir
	}
	if s.EmbeddingProvider != "" {
		cfg.EmbeddingProvider = s.EmbeddingProvider
	}
	if s.EmbeddingBaseURL != "" {
		cfg.EmbeddingBaseURL = s.EmbeddingBaseURL
	}
	if s.EmbeddingModel != "" {
		cfg.EmbeddingModel = s.EmbeddingModel
	}
	if s.ExtractionProvider != "" {
		cfg.ExtractionProvider = s.ExtractionProvider
	}
	if s.OpenAIBaseURL != "" {
		cfg.OpenAIBaseURL = s.OpenAIBaseURL
	}
	if s.OpenAIModel != "" {
		cfg.OpenAIModel = s.OpenAIModel
	}
	if s.AnthropicModel != "" {
		cfg.AnthropicModel = s.AnthropicModel
	}
	if s.GoogleModel != "" {
		cfg.GoogleModel = s.GoogleModel
	}
	if s.HTTPPort > 0 {
		cfg.HTTPPort = s.HTTPPort
	}
	if !validExtractionProviders[cfg.ExtractionProvider] {
		cfg.ExtractionProvider = DefaultExtractionProvider
	}
}

// resolveCredentials resolves each required credential: environment
// variable first, then empty. There is no credential in the settings
// file by design — secrets never round-trip through a plain JSON file
// on disk.
func resolveCredentials(cfg *Config) {
	cfg.EmbeddingAPIKey = os.Getenv("MNEMO_EMBEDDING_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv("MNEMO_OPENAI_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv("MNEMO_ANTHROPIC_API_KEY")
	cfg.GoogleAPIKey = os.Getenv("MNEMO_GOOGLE_API_KEY")
}

// Get returns the global configuration, loading it once.
func Get() *Config {
	configOnce.Do(func() {
		var err error
		globalConfig, err = Load()
		if err != nil {
			globalConfig = Default()
			resolveCredentials(globalConfig)
		}
	})

	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

// SetForTest overrides the global config for the duration of a test.
// Tests construct a fresh Config rather than relying on the singleton
// wherever possible; this exists for the few call sites that still read
// Get() directly.
func SetForTest(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	globalConfig = cfg
}
