package crunchbase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"startuplens/internal/domain/catalog"
	applog "startuplens/internal/platform/log"
)

// Config Crunchbase v4 搜索接口配置
type Config struct {
	APIKey         string
	BaseURL        string        // e.g. https://api.crunchbase.com/api/v4
	PageSize       int           // 单页条数上限,API 上限 50
	Cooldown       time.Duration // 429 后的固定冷却时长,默认 60s
	MinFoundedYear int           // 只拉取该年份及之后成立的公司
}

// Client 组织数据主数据源:分页调用 searches/organizations。
// 限流(429)按固定冷却重试同一页,不计次数;其它失败中止本次拉取,
// 把已收集的部分结果原样返回,由回退链决定是否换源。
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient 创建 Crunchbase 客户端。
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.crunchbase.com/api/v4"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PageSize <= 0 || cfg.PageSize > 50 {
		cfg.PageSize = 50
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 60 * time.Second
	}
	if cfg.MinFoundedYear <= 0 {
		cfg.MinFoundedYear = 2015
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Name 返回来源标识。
func (c *Client) Name() string { return catalog.SourceCrunchbase }

// Fetch 分页拉取组织记录,直到凑满 limit 或上游返回空页。
// updatedSince 非零时只取其后更新过的记录。
func (c *Client) Fetch(ctx context.Context, limit int, updatedSince time.Time) ([]catalog.StartupRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	now := time.Now()
	records := make([]catalog.StartupRecord, 0, limit)
	afterID := ""
	skipped := 0

	for len(records) < limit {
		size := c.cfg.PageSize
		if remaining := limit - len(records); remaining < size {
			size = remaining
		}

		page, err := c.fetchPage(ctx, size, afterID, updatedSince)
		if err != nil {
			if ctx.Err() != nil {
				return records, ctx.Err()
			}
			// 部分结果不是错误:换源与否交给回退链
			applog.Warn("[Crunchbase] fetch aborted, returning partial result",
				"collected", len(records), "error", err)
			return records, nil
		}
		if len(page.Entities) == 0 {
			break
		}

		for _, ent := range page.Entities {
			rec, err := normalizeEntity(ent)
			if err != nil {
				skipped++
				applog.Warn("[Crunchbase] skipping unparseable entry", "uuid", ent.UUID, "error", err)
				continue
			}
			rec.Normalize(now)
			records = append(records, rec)
			if len(records) == limit {
				break
			}
		}

		afterID = page.Entities[len(page.Entities)-1].UUID
		if afterID == "" {
			applog.Warn("[Crunchbase] page cursor missing, stopping pagination")
			break
		}
	}

	applog.Info("[Crunchbase] fetch finished",
		"records", len(records), "skipped", skipped, "updated_since", updatedSince.Format(time.RFC3339))
	return records, nil
}

// fetchPage 拉取单页。429 冷却后无限重试同一页,其余错误直接返回。
func (c *Client) fetchPage(ctx context.Context, size int, afterID string, updatedSince time.Time) (*searchResponse, error) {
	for {
		page, rateLimited, err := c.post(ctx, size, afterID, updatedSince)
		if err == nil {
			return page, nil
		}
		if !rateLimited {
			return nil, err
		}

		applog.Warn("[Crunchbase] rate limited, cooling down", "wait", c.cfg.Cooldown.String())
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.cfg.Cooldown):
		}
	}
}

func (c *Client) post(ctx context.Context, size int, afterID string, updatedSince time.Time) (*searchResponse, bool, error) {
	query := []predicate{
		{Type: "predicate", FieldID: "facet_ids", OperatorID: "includes", Values: []string{"company"}},
		{Type: "predicate", FieldID: "founded_on", OperatorID: "gte",
			Values: []string{fmt.Sprintf("%d-01-01", c.cfg.MinFoundedYear)}},
	}
	if !updatedSince.IsZero() {
		query = append(query, predicate{
			Type: "predicate", FieldID: "updated_at", OperatorID: "gte",
			Values: []string{updatedSince.UTC().Format("2006-01-02")},
		})
	}

	body, err := json.Marshal(searchRequest{
		FieldIDs: []string{
			"identifier", "short_description", "categories", "location_identifiers",
			"funding_total", "founded_on", "num_employees_enum", "website_url", "linkedin",
		},
		Query:   query,
		Order:   []orderSpec{{FieldID: "rank_org", Sort: "asc"}},
		Limit:   size,
		AfterID: afterID,
	})
	if err != nil {
		return nil, false, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/searches/organizations", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-cb-user-key", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, fmt.Errorf("rate limited (429)")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("search API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var page searchResponse
	if err := json.Unmarshal(respBody, &page); err != nil {
		return nil, false, fmt.Errorf("parse response: %w", err)
	}
	return &page, false, nil
}

// ── 请求/响应结构 ──────────────────────────────────────────────

type searchRequest struct {
	FieldIDs []string    `json:"field_ids"`
	Query    []predicate `json:"query"`
	Order    []orderSpec `json:"order"`
	Limit    int         `json:"limit"`
	AfterID  string      `json:"after_id,omitempty"`
}

type predicate struct {
	Type       string   `json:"type"`
	FieldID    string   `json:"field_id"`
	OperatorID string   `json:"operator_id"`
	Values     []string `json:"values"`
}

type orderSpec struct {
	FieldID string `json:"field_id"`
	Sort    string `json:"sort"`
}

type searchResponse struct {
	Count    int      `json:"count"`
	Entities []entity `json:"entities"`
}

type entity struct {
	UUID       string     `json:"uuid"`
	Properties properties `json:"properties"`
}

type properties struct {
	Identifier          identifier  `json:"identifier"`
	ShortDescription    string      `json:"short_description"`
	Categories          []category  `json:"categories"`
	LocationIdentifiers []location  `json:"location_identifiers"`
	FundingTotal        *money      `json:"funding_total"`
	FoundedOn           *dateValue  `json:"founded_on"`
	NumEmployeesEnum    string      `json:"num_employees_enum"`
	WebsiteURL          string      `json:"website_url"`
	Linkedin            *linkValue  `json:"linkedin"`
}

type identifier struct {
	UUID      string `json:"uuid"`
	Value     string `json:"value"`
	Permalink string `json:"permalink"`
}

type category struct {
	Value string `json:"value"`
}

type location struct {
	Value        string `json:"value"`
	LocationType string `json:"location_type"`
}

type money struct {
	ValueUSD float64 `json:"value_usd"`
}

type dateValue struct {
	Value string `json:"value"`
}

type linkValue struct {
	Value string `json:"value"`
}

// ── 字段归一化 ─────────────────────────────────────────────────

// employeeBands 雇员数区间到代表值的固定映射,兼容枚举码与区间字符串。
var employeeBands = map[string]int{
	"c_00001_00010": 5, "1-10": 5,
	"c_00011_00050": 30, "11-50": 30,
	"c_00051_00100": 75, "51-100": 75,
	"c_00101_00250": 175, "101-250": 175,
	"c_00251_00500": 375, "251-500": 375,
	"c_00501_01000": 750, "501-1000": 750,
	"c_01001_05000": 3000, "1001-5000": 3000,
	"c_05001_10000": 7500, "5001-10000": 7500,
	"c_10001_max": 10001, "10001+": 10001,
}

// normalizeEntity 把上游组织对象映射为规范记录。哨兵值回填交给
// Normalize,这里只做字段提取;没有名称的条目视为不可解析。
func normalizeEntity(ent entity) (catalog.StartupRecord, error) {
	p := ent.Properties
	name := strings.TrimSpace(p.Identifier.Value)
	if name == "" {
		return catalog.StartupRecord{}, fmt.Errorf("organization entry has no name")
	}

	rec := catalog.StartupRecord{
		Name:        name,
		Description: strings.TrimSpace(p.ShortDescription),
		Location:    formatLocation(p.LocationIdentifiers),
		Founded:     foundedYear(p.FoundedOn),
		TeamSize:    employeeBands[p.NumEmployeesEnum],
		Source:      catalog.SourceCrunchbase,
		SourceID:    ent.UUID,
		HomepageURL: strings.TrimSpace(p.WebsiteURL),
	}
	if len(p.Categories) > 0 {
		rec.Industry = strings.TrimSpace(p.Categories[0].Value)
	}
	if p.FundingTotal != nil {
		rec.Funding = formatFunding(p.FundingTotal.ValueUSD)
	}
	if p.Linkedin != nil {
		rec.LinkedinURL = strings.TrimSpace(p.Linkedin.Value)
	}
	return rec, nil
}

// formatLocation 地点按 城市+地区 -> 城市 -> 国家 降级,全缺时留空
// 由 Normalize 填充哨兵。
func formatLocation(ids []location) string {
	var city, region, country string
	for _, l := range ids {
		switch l.LocationType {
		case "city":
			city = l.Value
		case "region":
			region = l.Value
		case "country":
			country = l.Value
		}
	}
	switch {
	case city != "" && region != "":
		return city + ", " + region
	case city != "":
		return city
	case country != "":
		return country
	}
	return ""
}

// foundedYear 解析 founded_on 的年份,缺失或无法解析时返回 0。
func foundedYear(d *dateValue) int {
	if d == nil || len(d.Value) < 4 {
		return 0
	}
	year, err := strconv.Atoi(d.Value[:4])
	if err != nil {
		return 0
	}
	return year
}

// formatFunding 把美元总额压成 $15M 形式的短文本,零值留空。
func formatFunding(usd float64) string {
	format := func(v float64, suffix string) string {
		s := strconv.FormatFloat(v, 'f', 1, 64)
		return "$" + strings.TrimSuffix(s, ".0") + suffix
	}
	switch {
	case usd >= 1e9:
		return format(usd/1e9, "B")
	case usd >= 1e6:
		return format(usd/1e6, "M")
	case usd >= 1e3:
		return format(usd/1e3, "K")
	case usd > 0:
		return fmt.Sprintf("$%.0f", usd)
	}
	return ""
}
