package catalog

import (
	"context"
	"time"

	applog "startuplens/internal/platform/log"
)

// Chain 有序数据源回退链:依次尝试各源,取第一个非空结果。
// 单个源失败或返回空只会降级到下一个源,链本身永不报错;
// 链尾放置内置种子源即可保证始终有数据可用。
type Chain struct {
	sources []Source
}

// NewChain 构建回退链,sources 按优先级从高到低排列。
func NewChain(sources ...Source) *Chain {
	return &Chain{sources: sources}
}

// Fetch 返回第一个非空结果;全部落空或 ctx 已取消时返回空切片。
func (c *Chain) Fetch(ctx context.Context, limit int, updatedSince time.Time) []StartupRecord {
	for _, s := range c.sources {
		if ctx.Err() != nil {
			return nil
		}
		records, err := s.Fetch(ctx, limit, updatedSince)
		if err != nil {
			applog.Warn("[Source] fetch failed, trying next source", "source", s.Name(), "error", err)
			continue
		}
		if len(records) == 0 {
			applog.Info("[Source] no records returned, trying next source", "source", s.Name())
			continue
		}
		applog.Info("[Source] records fetched", "source", s.Name(), "count", len(records))
		return records
	}
	applog.Warn("[Source] all sources exhausted, nothing fetched")
	return nil
}
