package rag

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"startuplens/internal/db/vecstore"
	"startuplens/internal/domain/catalog"
	applog "startuplens/internal/platform/log"
)

// ErrIndexNotReady 索引尚未构建(从未完成过摄取)。
// 与"检索到零条结果"是两种不同的状态,调用方需要区分。
var ErrIndexNotReady = vecstore.ErrNotReady

// Retriever 检索与排序入口:向量化查询、近邻检索、分数校准、
// 命中解释。cache 为 nil 时不启用缓存。
type Retriever struct {
	snapshots SnapshotSource
	embedder  Embedder
	cache     SearchCacheStore
	cfg       *Config

	// 校准参数按索引快照缓存:快照指针不变则索引未换代,无需重算。
	mu        sync.Mutex
	calSnap   *vecstore.Snapshot
	calParams *CalibrationParams
	rng       *rand.Rand
}

// NewRetriever 创建 Retriever。cache 可为 nil。
func NewRetriever(snapshots SnapshotSource, embedder Embedder, cache SearchCacheStore, cfg *Config) *Retriever {
	return &Retriever{
		snapshots: snapshots,
		embedder:  embedder,
		cache:     cache,
		cfg:       cfg,
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Search 语义检索。topK 非正时取配置默认值。
// 索引文件尚不存在时返回 ErrIndexNotReady;
// 索引存在但为空时返回空结果,不视为错误。
func (r *Retriever) Search(ctx context.Context, query string, topK int) ([]SearchResultItem, error) {
	start := time.Now()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	if topK <= 0 {
		topK = r.cfg.DefaultTopK
	}

	snap, err := r.snapshots.LoadSnapshot()
	if err != nil {
		return nil, err
	}
	if len(snap.Entries) == 0 {
		return []SearchResultItem{}, nil
	}

	indexVersion := snap.Version()
	if r.cache != nil {
		if items, ok := r.cache.Get(ctx, query, topK, indexVersion); ok {
			applog.Debug("[RAG] search cache hit", "query", query, "top_k", topK)
			return items, nil
		}
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	params, err := r.calibrationFor(snap)
	if err != nil {
		return nil, fmt.Errorf("calibrate index: %w", err)
	}

	scores, ordinals, err := snap.Index.Search(vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	items := make([]SearchResultItem, 0, len(ordinals))
	for i, ord := range ordinals {
		entry := snap.Entries[ord]
		raw := float64(scores[i])
		calibrated := params.Calibrate(raw)
		label, tier := MatchLabel(calibrated)

		items = append(items, SearchResultItem{
			ID:              entry.ID,
			Name:            entry.Name,
			Description:     entry.Description,
			Industry:        entry.Industry,
			Funding:         entry.Funding,
			Location:        entry.Location,
			Founded:         entry.Founded,
			TeamSize:        entry.TeamSize,
			HomepageURL:     entry.HomepageURL,
			LinkedinURL:     entry.LinkedinURL,
			SimilarityScore: raw,
			Rank:            i + 1,
			MatchScore:      roundTo(calibrated, 1),
			MatchLabel:      label,
			MatchIndicator:  tier,
			MatchReason:     matchReason(entry.StartupRecord, query),
			Calibration: CalibrationInfo{
				ZScore:         roundTo(params.ZScore(raw), 2),
				BackgroundMean: roundTo(params.Mu, 4),
				BackgroundStd:  roundTo(params.Sigma, 4),
			},
		})
	}

	applog.Info("[RAG] search completed",
		"query", query,
		"top_k", topK,
		"results", len(items),
		"index_version", indexVersion,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if r.cache != nil {
		r.cacheSet(query, topK, indexVersion, items)
	}
	return items, nil
}

// calibrationFor 返回快照对应的校准参数,索引未换代时复用上次结果。
func (r *Retriever) calibrationFor(snap *vecstore.Snapshot) (*CalibrationParams, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.calSnap == snap && r.calParams != nil {
		return r.calParams, nil
	}

	start := time.Now()
	params, err := calibrateIndex(snap.Index, r.rng)
	if err != nil {
		return nil, err
	}
	r.calSnap = snap
	r.calParams = params

	applog.Info("[RAG] calibration refreshed",
		"samples", params.Samples,
		"mu0", roundTo(params.Mu, 4),
		"sigma0", roundTo(params.Sigma, 4),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return params, nil
}

// cacheSet 异步回填缓存,不阻塞检索请求。
func (r *Retriever) cacheSet(query string, topK int, indexVersion string, items []SearchResultItem) {
	go func() {
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		r.cache.Set(cctx, query, topK, indexVersion, items)
	}()
}

// matchReason 列出查询中字面命中的词;没有任何字面重叠时,
// 高分只能来自向量相似,归因为语义匹配。
func matchReason(rec catalog.StartupRecord, query string) string {
	recordText := strings.ToLower(rec.SearchText())

	var matched []string
	seen := make(map[string]bool)
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if seen[term] {
			continue
		}
		seen[term] = true
		if strings.Contains(recordText, term) {
			matched = append(matched, term)
		}
	}
	if len(matched) == 0 {
		return "Semantic similarity match"
	}
	return "Matched on: " + strings.Join(matched, ", ")
}
