package embedding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-dev/mnemo/internal/config"
	"github.com/mnemo-dev/mnemo/internal/merrors"
	"github.com/mnemo-dev/mnemo/internal/telemetry"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.EmbeddingBaseURL = srv.URL
	cfg.EmbeddingAPIKey = "test-key"
	cfg.EmbeddingModel = "text-embedding-3-large"

	ledger := telemetry.NewCostLedger(filepath.Join(t.TempDir(), "costs.json"))
	c, err := NewClient(cfg, ledger)
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	cfg := config.Default()
	_, err := NewClient(cfg, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, merrors.ErrConfigMissing)
}

func TestEmbedReturnsEmptyTextAsZeroVector(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not call the server for empty text")
	})
	vec, err := c.Embed(context.Background(), "", RoleDocument)
	require.NoError(t, err)
	assert.Len(t, vec, config.EmbeddingDimensions)
}

func TestEmbedParsesResponseAndSortsByIndex(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2],"index":0}],"usage":{"total_tokens":12}}`))
	})
	vec, err := c.Embed(context.Background(), "hello", RoleQuery)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
}

func TestEmbedRetriesOn5xxThenSucceeds(t *testing.T) {
	attempts := 0
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"embedding":[0.5],"index":0}],"usage":{"total_tokens":3}}`))
	})
	vec, err := c.Embed(context.Background(), "retry me", RoleDocument)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5}, vec)
	assert.Equal(t, 2, attempts)
}

func TestEmbedSurfacesNonRetryableStatus(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad key"}`))
	})
	_, err := c.Embed(context.Background(), "x", RoleDocument)
	require.Error(t, err)
}
