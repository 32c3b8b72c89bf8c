package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateID(t *testing.T) {
	cases := []struct {
		name    string
		value   string
		wantErr bool
		want    string
	}{
		{"plain", "proj_project_abc123", false, "proj_project_abc123"},
		{"with-quote", "o'brien_user_1", false, "o''brien_user_1"},
		{"empty", "", true, ""},
		{"disallowed-char", "proj;drop table", true, ""},
		{"space", "has space", true, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateID(tc.value, "user_id")
			if tc.wantErr {
				require.Error(t, err)
				var invalidErr *InvalidIDError
				require.ErrorAs(t, err, &invalidErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLoadDefaultsWhenNoSettingsFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultExtractionProvider, cfg.ExtractionProvider)
	assert.Equal(t, 37777, cfg.HTTPPort)
}

func TestLoadMergesSettingsFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	cfg := Default()
	require.NoError(t, EnsureDataDir(cfg))
	settingsJSON := `{"extraction_provider": "openai", "http_port": 9001}`
	require.NoError(t, os.WriteFile(SettingsPath(cfg), []byte(settingsJSON), 0o600))

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "openai", loaded.ExtractionProvider)
	assert.Equal(t, 9001, loaded.HTTPPort)
}

func TestLoadRejectsInvalidExtractionProvider(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	cfg := Default()
	require.NoError(t, EnsureDataDir(cfg))
	settingsJSON := `{"extraction_provider": "not-a-real-provider"}`
	require.NoError(t, os.WriteFile(SettingsPath(cfg), []byte(settingsJSON), 0o600))

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultExtractionProvider, loaded.ExtractionProvider)
}

func TestResolveCredentialsFromEnv(t *testing.T) {
	t.Setenv("MNEMO_ANTHROPIC_API_KEY", "sk-test-key")
	cfg := Default()
	resolveCredentials(cfg)
	assert.Equal(t, "sk-test-key", cfg.AnthropicAPIKey)
}
