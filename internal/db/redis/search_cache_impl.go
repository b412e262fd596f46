package redisdb

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"startuplens/internal/domain/rag"
	applog "startuplens/internal/platform/log"
)

// SearchCache 检索结果 Redis 缓存,实现 rag.SearchCacheStore。
// 缓存键包含索引版本:索引换代后旧键不再被命中,等 TTL 自然过期;
// 换代时调用 InvalidateAll 立即回收。
type SearchCache struct {
	redis  *redis.Client
	ttl    time.Duration
	prefix string
}

// NewSearchCache 创建检索缓存。
func NewSearchCache(rdb *redis.Client, ttlSeconds int) *SearchCache {
	ttl := 5 * time.Minute
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	return &SearchCache{
		redis:  rdb,
		ttl:    ttl,
		prefix: "search:cache:",
	}
}

// Get 从缓存获取检索结果。
func (c *SearchCache) Get(ctx context.Context, query string, topK int, indexVersion string) ([]rag.SearchResultItem, bool) {
	key := c.cacheKey(query, topK, indexVersion)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}

	var items []rag.SearchResultItem
	if err := json.Unmarshal(data, &items); err != nil {
		applog.Warn("[RAG/Cache] failed to unmarshal cached result", "key", key, "error", err)
		return nil, false
	}

	applog.Debug("[RAG/Cache] hit", "key", key)
	return items, true
}

// Set 写入检索结果。写失败只记日志,不影响请求。
func (c *SearchCache) Set(ctx context.Context, query string, topK int, indexVersion string, items []rag.SearchResultItem) {
	data, err := json.Marshal(items)
	if err != nil {
		return
	}

	key := c.cacheKey(query, topK, indexVersion)
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		applog.Warn("[RAG/Cache] failed to set cache", "key", key, "error", err)
	}
}

// InvalidateAll 清除全部检索缓存,索引换代后调用。
func (c *SearchCache) InvalidateAll(ctx context.Context) {
	iter := c.redis.Scan(ctx, 0, c.prefix+"*", 500).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		applog.Warn("[RAG/Cache] scan failed during invalidation", "error", err)
	}
	if len(keys) > 0 {
		c.redis.Del(ctx, keys...)
		applog.Info("[RAG/Cache] all cache invalidated", "keys_deleted", len(keys))
	}
}

// cacheKey = prefix + hash(query|topK|indexVersion)
func (c *SearchCache) cacheKey(query string, topK int, indexVersion string) string {
	raw := fmt.Sprintf("%s|%d|%s", query, topK, indexVersion)
	hash := sha256.Sum256([]byte(raw))
	return c.prefix + fmt.Sprintf("%x", hash[:12])
}
