package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"archivesyncd/internal/config"
	"archivesyncd/internal/download"
	"archivesyncd/internal/logging"
	"archivesyncd/internal/sink"
	"archivesyncd/internal/source"
	"archivesyncd/internal/state"
	"archivesyncd/internal/syncengine"
)

// deps bundles every collaborator wired from a loaded Config, shared by
// sync:run, sync:daemon, and health:check.
type deps struct {
	cfg    *config.Config
	logger zerolog.Logger
	source *source.Adapter
	sink   *sink.HTTPAdapter
	store  *state.Store
}

func buildDeps(ctx context.Context) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(os.Stderr, "info")

	src, err := source.NewAdapter(cfg.SourceCookiesJSON, cfg.SourceWebBearer, logger)
	if err != nil {
		return nil, fmt.Errorf("construct source adapter: %w", err)
	}

	snk := sink.NewHTTPAdapter(cfg.SinkArchiveBotURL, cfg.SinkAPIID, cfg.SinkAPIHash, cfg.SinkStringSession, logger)

	store, err := state.Open(ctx, cfg.StateDBPath)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	return &deps{cfg: cfg, logger: logger, source: src, sink: snk, store: store}, nil
}

func (d *deps) close() {
	if err := d.store.Close(); err != nil {
		d.logger.Warn().Err(err).Msg("failed to close state store")
	}
	if err := d.sink.Disconnect(); err != nil {
		d.logger.Warn().Err(err).Msg("failed to disconnect sink")
	}
}

func (d *deps) newEngine() *syncengine.Engine {
	downloader := download.New(nil)
	engineCfg := syncengine.Config{
		Accounts:            d.cfg.SourceUsers,
		ScratchDir:          d.cfg.DownloadTmpDir,
		MaxMediaPerRun:      d.cfg.MaxMediaPerRun,
		BackfillPagesPerRun: d.cfg.BackfillPagesPerRun,
		MaxUploadVideoBytes: d.cfg.MaxUploadVideoBytes,
		JobLockTTL:          time.Duration(d.cfg.JobLockTTLSeconds) * time.Second,
		RateLimitCooldown:   d.cfg.RateLimitCooldown,
	}
	return syncengine.NewEngine(d.source, d.sink, d.store, downloader, engineCfg, d.logger)
}
