// Command mnemo-server is the external-collaborator HTTP seam: a
// long-lived process exposing ingest/search/list/delete/profile over
// HTTP, for a plugin host or dashboard that does not want to link
// against the store engine directly.
//
// Grounded on thebtf-engram/cmd/mcp-sse/main.go's entrypoint shape:
// flag parsing, zerolog console-writer-to-stderr setup, a cancellable
// context wired to SIGINT/SIGTERM, and a graceful net/http.Server
// shutdown race against that context.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mnemo-dev/mnemo/internal/config"
	"github.com/mnemo-dev/mnemo/internal/embedding"
	"github.com/mnemo-dev/mnemo/internal/extract"
	"github.com/mnemo-dev/mnemo/internal/httpapi"
	"github.com/mnemo-dev/mnemo/internal/memstore"
	"github.com/mnemo-dev/mnemo/internal/registry"
	"github.com/mnemo-dev/mnemo/internal/telemetry"
	"github.com/mnemo-dev/mnemo/internal/vectorstore"
)

// Version is set at build time via ldflags.
var Version = "dev"

// disabledEmbedder stands in for a real embedder when credentials are
// missing at startup, so the server still comes up and reports a clear
// error on the first ingest/search call instead of panicking on a nil
// client.
type disabledEmbedder struct{ err error }

func (d disabledEmbedder) Embed(ctx context.Context, text string, role embedding.Role) ([]float32, error) {
	return nil, d.err
}

func main() {
	port := flag.Int("port", 0, "HTTP port (overrides config/settings.json)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("failed to load config, using defaults")
		cfg = config.Default()
	}
	if *port > 0 {
		cfg.HTTPPort = *port
	}

	if err := config.EnsureDataDir(cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to create data directory")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("shutting down mnemo-server")
		cancel()
	}()

	ledger := telemetry.NewCostLedger(filepath.Join(cfg.DataDir, "costs.json"))
	if err := ledger.Load(); err != nil {
		log.Warn().Err(err).Msg("failed to load cost ledger, starting empty")
	}
	activity := telemetry.NewActivityLog(filepath.Join(cfg.DataDir, "activity.json"))
	if err := activity.Load(); err != nil {
		log.Warn().Err(err).Msg("failed to load activity log, starting empty")
	}
	names, err := registry.Init(cfg.DataDir)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load name registry, starting empty")
	}

	store, err := vectorstore.Open(ctx, config.DBPath(cfg), config.EmbeddingDimensions, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open vector store")
	}
	defer store.Close()

	var embedder embedding.Embedder
	if client, err := embedding.NewClient(cfg, ledger); err != nil {
		log.Warn().Err(err).Msg("embedder unavailable, ingest/search will fail until credentials are set")
		embedder = disabledEmbedder{err: err}
	} else {
		embedder = client
	}

	extractor := extract.New(cfg, ledger, activity, log.Logger)

	engine := memstore.New(store, embedder, extractor, log.Logger)
	server := httpapi.NewServer(engine, ledger, activity, names, log.Logger)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	log.Info().Int("port", cfg.HTTPPort).Str("version", Version).Msg("mnemo-server listening")

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("mnemo-server error")
		}
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("mnemo-server shutdown failed")
		}
	}
}
