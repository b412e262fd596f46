package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"startuplens/internal/adapter/source/crunchbase"
	"startuplens/internal/adapter/source/local"
	"startuplens/internal/app/ingest"
	"startuplens/internal/db/vecstore"
	"startuplens/internal/domain/catalog"
	"startuplens/internal/domain/rag"
	"startuplens/internal/platform/config"
	applog "startuplens/internal/platform/log"
)

func main() {
	full := flag.Bool("full", false, "ignore last sync time and re-fetch everything")
	limit := flag.Int("limit", 0, "override fetch record cap (default from config)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Config load failed: %v\n", err)
		os.Exit(1)
	}

	applog.Init(applog.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	defer applog.Sync()

	fetchLimit := cfg.Ingest.FetchLimit
	if *limit > 0 {
		fetchLimit = *limit
	}

	embedder := rag.NewOpenAIEmbedder(rag.OpenAIEmbedderConfig{
		BaseURL:     cfg.OpenAI.BaseURL,
		APIKey:      cfg.OpenAI.APIKey,
		Model:       cfg.RAG.EmbeddingModel,
		Dims:        cfg.RAG.EmbeddingDims,
		MaxAttempts: cfg.RAG.EmbedMaxAttempts,
		Backoff:     time.Duration(cfg.RAG.EmbedBackoffSeconds) * time.Second,
	})

	var sources []catalog.Source
	if cfg.Source.APIKey != "" {
		sources = append(sources, crunchbase.NewClient(crunchbase.Config{
			APIKey:         cfg.Source.APIKey,
			BaseURL:        cfg.Source.BaseURL,
			PageSize:       cfg.Source.PageSize,
			Cooldown:       time.Duration(cfg.Source.CooldownSeconds) * time.Second,
			MinFoundedYear: cfg.Source.MinFoundedYear,
		}))
	}
	sources = append(sources, local.NewCSVSource(cfg.Ingest.DataDir), local.NewSeedSource())

	runner := ingest.NewRunner(
		catalog.NewChain(sources...), embedder,
		vecstore.NewStore(cfg.Ingest.IndexDir),
		ingest.NewStateStore(cfg.Ingest.IndexDir),
		nil, fetchLimit,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := runner.Run(ctx, *full)
	if err != nil {
		applog.Errorf("❌ Ingestion failed: %v", err)
		os.Exit(1)
	}

	applog.Infof("✅ Successfully ingested %d startups (deduped %d, degraded %d) in %s",
		res.Records, res.Deduped, res.Substituted, res.Elapsed.Round(time.Millisecond))
	applog.Infof("📁 Index saved under: %s", cfg.Ingest.IndexDir)
}
