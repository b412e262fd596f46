package catalog

import (
	"fmt"
	"strings"
	"time"
)

// 记录来源标识
const (
	SourceCrunchbase = "crunchbase"
	SourceCSV        = "csv"
	SourceSeed       = "seed"
)

// 缺失字段的哨兵值,与既有索引数据保持一致
const (
	IndustryUnknown = "Unknown"
	FundingUnknown  = "No funding data"
	LocationUnknown = "Unknown"
)

// StartupRecord 一条创业公司记录。摄取完成后视为不可变,
// 内容变化以新指纹的形式体现,不做原地更新。
type StartupRecord struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Industry    string    `json:"industry"`
	Funding     string    `json:"funding"`
	Location    string    `json:"location"`
	Founded     int       `json:"founded"`
	TeamSize    int       `json:"team_size"`
	Source      string    `json:"source"`
	SourceID    string    `json:"source_id,omitempty"`
	ContentHash string    `json:"content_hash"`
	UpdatedAt   time.Time `json:"updated_at"`
	HomepageURL string    `json:"homepage_url,omitempty"`
	LinkedinURL string    `json:"linkedin_url,omitempty"`
}

// SearchText 返回参与向量化的文本:名称、简介、行业、地点,空格连接。
func (r *StartupRecord) SearchText() string {
	return fmt.Sprintf("%s %s %s %s", r.Name, r.Description, r.Industry, r.Location)
}

// Normalize 补齐缺失字段的哨兵值、刷新内容指纹,并在缺失时填充更新时间。
func (r *StartupRecord) Normalize(now time.Time) {
	if strings.TrimSpace(r.Industry) == "" {
		r.Industry = IndustryUnknown
	}
	if strings.TrimSpace(r.Funding) == "" {
		r.Funding = FundingUnknown
	}
	if strings.TrimSpace(r.Location) == "" {
		r.Location = LocationUnknown
	}
	r.ContentHash = Fingerprint(r.Name, r.Description, r.Industry, r.Location)
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = now
	}
}
