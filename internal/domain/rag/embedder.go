package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	applog "startuplens/internal/platform/log"
)

// ── Embedder 接口 ──────────────────────────────────────────────

// Embedder 向量生成接口
type Embedder interface {
	// Embed 将文本列表转为向量,顺序保持;任一文本重试耗尽则整体失败
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedWithFallback 逐条生成向量,重试耗尽的条目以零向量顶替,
	// 返回向量列表与顶替条数;永不报错
	EmbedWithFallback(ctx context.Context, texts []string) ([][]float32, int)
	// Dims 返回向量维度
	Dims() int
}

// ── OpenAI 兼容 Embedder 实现 ─────────────────────────────────

// OpenAIEmbedder 调用 OpenAI 兼容 /v1/embeddings API,逐条提交
type OpenAIEmbedder struct {
	baseURL     string
	apiKey      string
	model       string
	dims        int
	maxAttempts int
	backoff     time.Duration
	client      *http.Client
}

// OpenAIEmbedderConfig 配置
type OpenAIEmbedderConfig struct {
	BaseURL     string // e.g. https://api.openai.com/v1
	APIKey      string
	Model       string        // e.g. text-embedding-ada-002
	Dims        int           // 向量维度
	MaxAttempts int           // 单条文本的最大尝试次数,默认 3
	Backoff     time.Duration // 首次重试等待,其后逐次翻倍;默认 5s
}

// NewOpenAIEmbedder 创建 OpenAI 兼容 Embedder
func NewOpenAIEmbedder(cfg OpenAIEmbedderConfig) *OpenAIEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "text-embedding-ada-002"
	}
	if cfg.Dims <= 0 {
		cfg.Dims = 1536
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 5 * time.Second
	}

	return &OpenAIEmbedder{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		dims:        cfg.Dims,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		client:      &http.Client{Timeout: 60 * time.Second},
	}
}

// Dims 返回向量维度
func (e *OpenAIEmbedder) Dims() int {
	return e.dims
}

// Embed 严格模式:任何一条文本重试耗尽即整体失败,用于查询向量化。
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for i, text := range texts {
		v, err := e.embedOne(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		vectors = append(vectors, v)
	}
	return vectors, nil
}

// EmbedWithFallback 摄取模式:单条失败不拖垮整批,以零向量顶替。
// 零向量与任何查询的内积都不构成有效相似度,该记录自然排不上前列,
// 但仍保留在索引中。
func (e *OpenAIEmbedder) EmbedWithFallback(ctx context.Context, texts []string) ([][]float32, int) {
	vectors := make([][]float32, len(texts))
	substituted := 0
	for i, text := range texts {
		v, err := e.embedOne(ctx, text)
		if err != nil {
			applog.Warn("[RAG/Embedder] embedding failed, substituting zero vector",
				"index", i, "error", err)
			v = make([]float32, e.dims)
			substituted++
		}
		vectors[i] = v
	}
	if substituted > 0 {
		applog.Warn("[RAG/Embedder] batch finished with degraded entries",
			"total", len(texts), "substituted", substituted)
	}
	return vectors, substituted
}

// embedOne 单条文本,最多 maxAttempts 次尝试,重试间隔按 5s/10s/20s 翻倍。
func (e *OpenAIEmbedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	delay := e.backoff
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if attempt > 1 {
			applog.Warn("[RAG/Embedder] retrying embedding call",
				"attempt", attempt, "wait", delay.String(), "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		vec, err := e.request(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// ── 内部请求/响应结构 ──────────────────────────────────────────

type embeddingRequest struct {
	Input          string `json:"input"`
	Model          string `json:"model"`
	EncodingFormat string `json:"encoding_format,omitempty"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Model string          `json:"model"`
	Usage embeddingUsage  `json:"usage"`
}

type embeddingData struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type embeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// request 调用一次 /embeddings
func (e *OpenAIEmbedder) request(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()

	body, err := json.Marshal(embeddingRequest{
		Input:          text,
		Model:          e.model,
		EncodingFormat: "float",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(embResp.Data) == 0 || len(embResp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embedding response carries no vector")
	}

	applog.Debug("[RAG/Embedder] text embedded",
		"dims", len(embResp.Data[0].Embedding),
		"tokens", embResp.Usage.TotalTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return embResp.Data[0].Embedding, nil
}
