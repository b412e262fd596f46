package rag

// Config 检索与问答模块配置
type Config struct {
	// Embedding
	EmbeddingModel      string `json:"embedding_model"`
	EmbeddingDims       int    `json:"embedding_dims"`
	EmbedMaxAttempts    int    `json:"embed_max_attempts"`
	EmbedBackoffSeconds int    `json:"embed_backoff_seconds"`

	// 问答
	ChatProvider    string  `json:"chat_provider"`
	ChatModel       string  `json:"chat_model"`
	ChatMaxTokens   int     `json:"chat_max_tokens"`
	ChatTemperature float64 `json:"chat_temperature"`

	// 检索
	DefaultTopK int `json:"default_top_k"`
	AskTopK     int `json:"ask_top_k"`

	// 缓存 TTL（秒），0=禁用
	CacheTTLSeconds int `json:"cache_ttl_seconds"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		EmbeddingModel:      "text-embedding-ada-002",
		EmbeddingDims:       1536,
		EmbedMaxAttempts:    3,
		EmbedBackoffSeconds: 5,
		ChatProvider:        "openai",
		ChatModel:           "gpt-3.5-turbo",
		ChatMaxTokens:       500,
		ChatTemperature:     0.7,
		DefaultTopK:         5,
		AskTopK:             3,
		CacheTTLSeconds:     300, // 5分钟
	}
}

// HasCache 是否启用检索缓存
func (c *Config) HasCache() bool {
	return c.CacheTTLSeconds > 0
}
