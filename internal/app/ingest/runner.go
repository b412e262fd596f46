package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"startuplens/internal/db/vecstore"
	"startuplens/internal/domain/catalog"
	"startuplens/internal/domain/rag"
	applog "startuplens/internal/platform/log"
)

// 运行阶段标识,依序推进,入日志字段。SWAP 之前任何一步失败都会
// 中止本次运行并保留既有索引。
const (
	stageLoadState    = "LOAD_STATE"
	stageFetch        = "FETCH"
	stageEmbed        = "EMBED"
	stageBuildIndex   = "BUILD_INDEX"
	stageStage        = "STAGE"
	stageSwap         = "SWAP"
	stagePersistState = "PERSIST_STATE"
)

// Fetcher 记录来源。生产环境由 catalog.Chain 实现,永不返回空集。
type Fetcher interface {
	Fetch(ctx context.Context, limit int, updatedSince time.Time) []catalog.StartupRecord
}

// Runner 摄取执行器:一次 Run 走完 拉取 -> 去重 -> 向量化 -> 建索引 ->
// 暂存 -> 换代 -> 落状态 的全流程。
type Runner struct {
	source   Fetcher
	embedder rag.Embedder
	store    *vecstore.Store
	state    *StateStore
	cache    rag.SearchCacheStore // 可为 nil
	limit    int
}

// NewRunner 创建 Runner。cache 为 nil 时跳过缓存失效。
func NewRunner(source Fetcher, embedder rag.Embedder, store *vecstore.Store, state *StateStore, cache rag.SearchCacheStore, fetchLimit int) *Runner {
	if fetchLimit <= 0 {
		fetchLimit = 200
	}
	return &Runner{
		source:   source,
		embedder: embedder,
		store:    store,
		state:    state,
		cache:    cache,
		limit:    fetchLimit,
	}
}

// Result 一次运行的结果摘要。
type Result struct {
	RunID       string
	Records     int
	Deduped     int
	Substituted int
	Elapsed     time.Duration
}

// Run 执行一次完整摄取。force 为真时忽略上次同步时间,做全量拉取。
func (r *Runner) Run(ctx context.Context, force bool) (*Result, error) {
	runID := uuid.NewString()
	logger := applog.With("run_id", runID)
	start := time.Now()

	st := r.state.Load()
	since := time.Time{}
	if !force {
		since = st.LastSync()
	}
	logger.Info("[Ingest] run started",
		"stage", stageLoadState, "force", force,
		"last_sync", st.LastSyncISO, "prev_docs", st.TotalDocs)

	records := r.source.Fetch(ctx, r.limit, since)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("source chain produced no records")
	}
	fetched := len(records)
	records = dedupByHash(records)
	logger.Info("[Ingest] records fetched",
		"stage", stageFetch, "fetched", fetched, "after_dedup", len(records))

	texts := make([]string, len(records))
	for i := range records {
		texts[i] = records[i].SearchText()
	}
	vectors, substituted := r.embedder.EmbedWithFallback(ctx, texts)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if substituted > 0 {
		logger.Warn("[Ingest] some records carry zero vectors",
			"stage", stageEmbed, "substituted", substituted, "total", len(records))
	}

	ix, err := vecstore.NewIndex(r.embedder.Dims())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", stageBuildIndex, err)
	}
	if err := ix.Add(vectors); err != nil {
		return nil, fmt.Errorf("%s: %w", stageBuildIndex, err)
	}
	entries := make([]vecstore.IndexEntry, len(records))
	for i := range records {
		entries[i] = vecstore.IndexEntry{StartupRecord: records[i]}
	}

	staged, err := r.store.Stage(ix, entries)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", stageStage, err)
	}
	if err := staged.Commit(); err != nil {
		staged.Discard()
		return nil, fmt.Errorf("%s: %w", stageSwap, err)
	}
	logger.Info("[Ingest] index swapped in", "stage", stageSwap, "records", len(records))

	if r.cache != nil {
		r.cache.InvalidateAll(ctx)
	}

	// 换代已完成:状态写失败只影响下次增量范围,下次运行会重新同步。
	now := time.Now().UTC()
	newState := SyncState{
		LastSyncISO: now.Format(time.RFC3339),
		TotalDocs:   len(records),
		LastUpdate:  now.Format(time.RFC3339),
	}
	if err := r.state.Save(newState); err != nil {
		logger.Warn("[Ingest] sync state write failed, next run will re-sync",
			"stage", stagePersistState, "error", err)
	}

	elapsed := time.Since(start)
	logger.Info("✅ [Ingest] run completed",
		"records", len(records), "deduped", fetched-len(records),
		"substituted", substituted, "elapsed_ms", elapsed.Milliseconds())

	return &Result{
		RunID:       runID,
		Records:     len(records),
		Deduped:     fetched - len(records),
		Substituted: substituted,
		Elapsed:     elapsed,
	}, nil
}

// dedupByHash 批内按内容指纹去重,保留先出现的记录。
// 指纹相同即内容相同,与 source_id 无关。
func dedupByHash(records []catalog.StartupRecord) []catalog.StartupRecord {
	seen := make(map[string]bool, len(records))
	out := make([]catalog.StartupRecord, 0, len(records))
	for _, rec := range records {
		if seen[rec.ContentHash] {
			continue
		}
		seen[rec.ContentHash] = true
		out = append(out, rec)
	}
	return out
}
