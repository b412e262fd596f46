package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"startuplens/internal/domain/rag"
)

// AppConfig 全局配置。启动时统一加载，再按模块提取使用。
type AppConfig struct {
	LogLevel  string           `json:"log_level"`
	LogFormat string           `json:"log_format"`
	Server    ServerConfig     `json:"server"`
	Redis     RedisConfig      `json:"redis"`
	OpenAI    OpenAIConfig     `json:"openai"`
	Source    CrunchbaseConfig `json:"source"`
	Ingest    IngestConfig     `json:"ingest"`
	RAG       rag.Config       `json:"rag"`
}

type ServerConfig struct {
	Host                string `json:"host"`
	Port                int    `json:"port"`
	ReadTimeoutSeconds  int    `json:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `json:"write_timeout_seconds"`
}

// RedisConfig 可选的检索结果缓存。URL 为空时不启用。
type RedisConfig struct {
	URL string `json:"url"`
}

type OpenAIConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

// CrunchbaseConfig 组织数据源(主数据源)配置。APIKey 为空时跳过该源,
// 直接走本地回退链。
type CrunchbaseConfig struct {
	APIKey          string `json:"api_key"`
	BaseURL         string `json:"base_url"`
	PageSize        int    `json:"page_size"`
	CooldownSeconds int    `json:"cooldown_seconds"`
	MinFoundedYear  int    `json:"min_founded_year"`
}

// IngestConfig 索引构建与调度配置。
type IngestConfig struct {
	IndexDir            string `json:"index_dir"`
	DataDir             string `json:"data_dir"`
	FetchLimit          int    `json:"fetch_limit"`
	IntervalHours       int    `json:"interval_hours"`
	MisfireGraceSeconds int    `json:"misfire_grace_seconds"`
	ScheduleEnabled     bool   `json:"schedule_enabled"`
}

// Default 返回默认配置。
func Default() *AppConfig {
	ragCfg := rag.DefaultConfig()
	return &AppConfig{
		LogLevel:  "info",
		LogFormat: "text",
		Server: ServerConfig{
			Host:                "0.0.0.0",
			Port:                8000,
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 120,
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
		},
		Source: CrunchbaseConfig{
			BaseURL:         "https://api.crunchbase.com/api/v4",
			PageSize:        50,
			CooldownSeconds: 60,
			MinFoundedYear:  2015,
		},
		Ingest: IngestConfig{
			IndexDir:            "index",
			DataDir:             "data",
			FetchLimit:          200,
			IntervalHours:       12,
			MisfireGraceSeconds: 3600,
			ScheduleEnabled:     true,
		},
		RAG: *ragCfg,
	}
}

// Load 加载全局配置：默认值 -> 配置文件 -> 环境变量。
// 配置文件路径通过 APP_CONFIG_FILE 指定（JSON）。
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		// .env 非必需，忽略错误
	}

	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("APP_CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read APP_CONFIG_FILE %q failed: %w", path, err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse APP_CONFIG_FILE %q failed: %w", path, err)
	}
	return nil
}

func (c *AppConfig) applyEnv() {
	applyString("LOG_LEVEL", &c.LogLevel)
	applyString("LOG_FORMAT", &c.LogFormat)

	applyString("HOST", &c.Server.Host)
	applyInt("PORT", &c.Server.Port)
	applyInt("SERVER_READ_TIMEOUT", &c.Server.ReadTimeoutSeconds)
	applyInt("SERVER_WRITE_TIMEOUT", &c.Server.WriteTimeoutSeconds)

	applyString("REDIS_URL", &c.Redis.URL)

	applyString("OPENAI_API_KEY", &c.OpenAI.APIKey)
	applyString("OPENAI_BASE_URL", &c.OpenAI.BaseURL)

	applyString("CRUNCHBASE_API_KEY", &c.Source.APIKey)
	applyString("CRUNCHBASE_BASE_URL", &c.Source.BaseURL)
	applyInt("CRUNCHBASE_PAGE_SIZE", &c.Source.PageSize)
	applyInt("CRUNCHBASE_COOLDOWN_SECONDS", &c.Source.CooldownSeconds)
	applyInt("CRUNCHBASE_MIN_FOUNDED_YEAR", &c.Source.MinFoundedYear)

	applyString("INDEX_DIR", &c.Ingest.IndexDir)
	applyString("DATA_DIR", &c.Ingest.DataDir)
	applyInt("INGEST_FETCH_LIMIT", &c.Ingest.FetchLimit)
	applyInt("INGEST_INTERVAL_HOURS", &c.Ingest.IntervalHours)
	applyInt("INGEST_MISFIRE_GRACE_SECONDS", &c.Ingest.MisfireGraceSeconds)
	if v := os.Getenv("INGEST_SCHEDULE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Ingest.ScheduleEnabled = b
		}
	}

	// RAG 环境变量
	applyString("RAG_EMBEDDING_MODEL", &c.RAG.EmbeddingModel)
	applyInt("RAG_EMBEDDING_DIMS", &c.RAG.EmbeddingDims)
	applyInt("RAG_EMBED_MAX_ATTEMPTS", &c.RAG.EmbedMaxAttempts)
	applyInt("RAG_EMBED_BACKOFF_SECONDS", &c.RAG.EmbedBackoffSeconds)
	applyString("RAG_CHAT_PROVIDER", &c.RAG.ChatProvider)
	applyString("RAG_CHAT_MODEL", &c.RAG.ChatModel)
	applyInt("RAG_CHAT_MAX_TOKENS", &c.RAG.ChatMaxTokens)
	applyFloat64("RAG_CHAT_TEMPERATURE", &c.RAG.ChatTemperature)
	applyInt("RAG_DEFAULT_TOP_K", &c.RAG.DefaultTopK)
	applyInt("RAG_ASK_TOP_K", &c.RAG.AskTopK)
	applyInt("RAG_CACHE_TTL", &c.RAG.CacheTTLSeconds)
}

func (c *AppConfig) normalize() {
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.Source.BaseURL == "" {
		c.Source.BaseURL = "https://api.crunchbase.com/api/v4"
	}
	// 上游单页上限 50 条。
	if c.Source.PageSize < 1 || c.Source.PageSize > 50 {
		c.Source.PageSize = 50
	}
	if c.Ingest.IndexDir == "" {
		c.Ingest.IndexDir = "index"
	}
	if c.Ingest.DataDir == "" {
		c.Ingest.DataDir = "data"
	}
}

func (c *AppConfig) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT %d out of range", c.Server.Port)
	}
	if c.Ingest.FetchLimit <= 0 {
		return fmt.Errorf("INGEST_FETCH_LIMIT must be positive")
	}
	if c.Ingest.IntervalHours <= 0 {
		return fmt.Errorf("INGEST_INTERVAL_HOURS must be positive")
	}
	if c.RAG.EmbeddingDims <= 0 {
		return fmt.Errorf("RAG_EMBEDDING_DIMS must be positive")
	}
	return nil
}

func applyString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func applyInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func applyFloat64(key string, target *float64) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			*target = n
		}
	}
}
