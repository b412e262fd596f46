package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"startuplens/internal/adapter/source/crunchbase"
	"startuplens/internal/adapter/source/local"
	"startuplens/internal/api"
	"startuplens/internal/app/bootstrap"
	"startuplens/internal/app/ingest"
	redisdb "startuplens/internal/db/redis"
	"startuplens/internal/db/vecstore"
	"startuplens/internal/domain/catalog"
	"startuplens/internal/domain/rag"
	"startuplens/internal/platform/config"
	applog "startuplens/internal/platform/log"
)

func main() {
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

	bootstrap.RegisterLLMProviders(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)

	store := vecstore.NewStore(cfg.Ingest.IndexDir)
	embedder := rag.NewOpenAIEmbedder(rag.OpenAIEmbedderConfig{
		BaseURL:     cfg.OpenAI.BaseURL,
		APIKey:      cfg.OpenAI.APIKey,
		Model:       cfg.RAG.EmbeddingModel,
		Dims:        cfg.RAG.EmbeddingDims,
		MaxAttempts: cfg.RAG.EmbedMaxAttempts,
		Backoff:     time.Duration(cfg.RAG.EmbedBackoffSeconds) * time.Second,
	})
	applog.Infof("✅ Embedder initialized (model: %s, dims: %d)", cfg.RAG.EmbeddingModel, embedder.Dims())

	cache := initSearchCache(cfg)

	retriever := rag.NewRetriever(store, embedder, cache, &cfg.RAG)
	answerer := rag.NewAnswerer(retriever, &cfg.RAG)

	runner := ingest.NewRunner(
		buildSourceChain(cfg), embedder, store,
		ingest.NewStateStore(cfg.Ingest.IndexDir), cache, cfg.Ingest.FetchLimit,
	)

	var scheduler *ingest.Scheduler
	if cfg.Ingest.ScheduleEnabled {
		scheduler = ingest.NewScheduler(
			func(ctx context.Context) error {
				_, err := runner.Run(ctx, false)
				return err
			},
			time.Duration(cfg.Ingest.IntervalHours)*time.Hour,
			time.Duration(cfg.Ingest.MisfireGraceSeconds)*time.Second,
		)
		scheduler.Start()
	} else {
		applog.Info("ℹ️  Ingest scheduler disabled by config")
	}

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.Server.Host
	serverConfig.Port = cfg.Server.Port
	serverConfig.ReadTimeout = time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second
	serverConfig.WriteTimeout = time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second
	server := api.NewServer(serverConfig, retriever, answerer, store)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		applog.Info("🔄 Shutting down...")
		if scheduler != nil {
			scheduler.Stop()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Stop(ctx); err != nil {
			applog.Errorf("❌ Server shutdown error: %v", err)
		}
	}()

	if err := server.Start(); err != nil && err.Error() != "http: Server closed" {
		applog.Fatalf("❌ Server error: %v", err)
	}

	applog.Info("👋 Server stopped")
}

// buildSourceChain 组装数据源回退链:Crunchbase(有凭证时)-> 本地 CSV -> 种子。
func buildSourceChain(cfg *config.AppConfig) *catalog.Chain {
	var sources []catalog.Source
	if cfg.Source.APIKey != "" {
		sources = append(sources, crunchbase.NewClient(crunchbase.Config{
			APIKey:         cfg.Source.APIKey,
			BaseURL:        cfg.Source.BaseURL,
			PageSize:       cfg.Source.PageSize,
			Cooldown:       time.Duration(cfg.Source.CooldownSeconds) * time.Second,
			MinFoundedYear: cfg.Source.MinFoundedYear,
		}))
		applog.Info("✅ Crunchbase source enabled")
	} else {
		applog.Info("ℹ️  No CRUNCHBASE_API_KEY set, using local fallback sources")
	}
	sources = append(sources, local.NewCSVSource(cfg.Ingest.DataDir), local.NewSeedSource())
	return catalog.NewChain(sources...)
}

// initSearchCache 按配置接入 Redis 检索缓存,连不上或未配置时直接禁用。
func initSearchCache(cfg *config.AppConfig) rag.SearchCacheStore {
	if !cfg.RAG.HasCache() || cfg.Redis.URL == "" {
		applog.Info("ℹ️  Search cache disabled")
		return nil
	}

	opt, err := goredis.ParseURL(cfg.Redis.URL)
	if err != nil {
		applog.Warnf("⚠️  Redis URL invalid, search cache disabled: %v", err)
		return nil
	}

	client := goredis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		applog.Warnf("⚠️  Redis connection failed, search cache disabled: %v", err)
		return nil
	}

	applog.Infof("✅ Search cache initialized (TTL: %ds)", cfg.RAG.CacheTTLSeconds)
	return redisdb.NewSearchCache(client, cfg.RAG.CacheTTLSeconds)
}
