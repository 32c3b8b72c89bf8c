package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mnemo-dev/mnemo/internal/config"
	"github.com/mnemo-dev/mnemo/internal/embedding"
	"github.com/mnemo-dev/mnemo/internal/extract"
	"github.com/mnemo-dev/mnemo/internal/memstore"
	"github.com/mnemo-dev/mnemo/internal/telemetry"
	"github.com/mnemo-dev/mnemo/internal/vectorstore"
)

// runtime bundles the pieces a CLI subcommand needs to talk to the
// store engine directly, without the HTTP seam.
type runtime struct {
	cfg    *config.Config
	store  *vectorstore.Store
	engine *memstore.Engine
	ledger *telemetry.CostLedger
}

func newRuntime(ctx context.Context) (*runtime, error) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("failed to load config, using defaults")
		cfg = config.Default()
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if err := config.EnsureDataDir(cfg); err != nil {
		return nil, err
	}

	ledger := telemetry.NewCostLedger(filepath.Join(cfg.DataDir, "costs.json"))
	if err := ledger.Load(); err != nil {
		log.Warn().Err(err).Msg("failed to load cost ledger, starting empty")
	}
	activity := telemetry.NewActivityLog(filepath.Join(cfg.DataDir, "activity.json"))
	if err := activity.Load(); err != nil {
		log.Warn().Err(err).Msg("failed to load activity log, starting empty")
	}

	store, err := vectorstore.Open(ctx, config.DBPath(cfg), config.EmbeddingDimensions, log.Logger)
	if err != nil {
		return nil, err
	}

	embedder, err := embedding.NewClient(cfg, ledger)
	if err != nil {
		store.Close()
		return nil, err
	}

	extractor := extract.New(cfg, ledger, activity, log.Logger)
	engine := memstore.New(store, embedder, extractor, log.Logger)

	return &runtime{cfg: cfg, store: store, engine: engine, ledger: ledger}, nil
}

func (rt *runtime) Close() {
	rt.store.Close()
}
