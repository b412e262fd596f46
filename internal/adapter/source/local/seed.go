package local

import (
	"context"
	"time"

	"startuplens/internal/domain/catalog"
)

// SeedSource 回退链兜底:返回硬编码种子集,永不失败、永不为空。
type SeedSource struct{}

// NewSeedSource 创建种子源。
func NewSeedSource() *SeedSource { return &SeedSource{} }

// Name 返回来源标识。
func (*SeedSource) Name() string { return catalog.SourceSeed }

// Fetch 返回种子记录,limit 为正且小于种子数时截断。
func (*SeedSource) Fetch(_ context.Context, limit int, _ time.Time) ([]catalog.StartupRecord, error) {
	records := catalog.SeedRecords(time.Now())
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records, nil
}
