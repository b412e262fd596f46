package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	applog "startuplens/internal/platform/log"
	"startuplens/internal/provider"
)

// NoAnswerMessage 检索不到任何相关记录时的固定回复,不经过模型。
const NoAnswerMessage = "I couldn't find any relevant startup information to answer your question."

const qaSystemPrompt = "You are a helpful assistant that answers questions about startups based on the provided information. Be concise and accurate."

// Answerer 基于检索结果的问答:先取 top-k 记录拼上下文,再交给 LLM。
type Answerer struct {
	retriever *Retriever
	cfg       *Config
}

// NewAnswerer 创建 Answerer。
func NewAnswerer(retriever *Retriever, cfg *Config) *Answerer {
	return &Answerer{retriever: retriever, cfg: cfg}
}

// Ask 回答关于创业公司的自由提问。
// 索引未就绪时返回 ErrIndexNotReady;检索为空时返回固定话术。
func (a *Answerer) Ask(ctx context.Context, question string) (string, error) {
	start := time.Now()

	items, err := a.retriever.Search(ctx, question, a.cfg.AskTopK)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return NoAnswerMessage, nil
	}

	p, err := provider.GetProvider(a.cfg.ChatProvider)
	if err != nil {
		return "", fmt.Errorf("resolve chat provider: %w", err)
	}

	resp, err := p.Complete(ctx, &provider.CompletionRequest{
		Model: a.cfg.ChatModel,
		Messages: []provider.Message{
			{Role: "system", Content: qaSystemPrompt},
			{Role: "user", Content: qaPrompt(question, buildContext(items))},
		},
		MaxTokens:   a.cfg.ChatMaxTokens,
		Temperature: a.cfg.ChatTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	applog.Info("[RAG/QA] question answered",
		"context_records", len(items),
		"model", a.cfg.ChatModel,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return strings.TrimSpace(resp.Content), nil
}

// buildContext 每条记录一段,字段逐行列出。
func buildContext(items []SearchResultItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf(
			"Startup: %s\nDescription: %s\nIndustry: %s\nLocation: %s\nFunding: %s\nFounded: %d\nTeam Size: %d\n",
			it.Name, it.Description, it.Industry, it.Location, it.Funding, it.Founded, it.TeamSize))
	}
	return strings.Join(parts, "\n")
}

func qaPrompt(question, context string) string {
	return fmt.Sprintf(`Based on the following startup information, please answer the question.

Startup Information:
%s

Question: %s

Please provide a clear and helpful answer based on the startup information above. If the information doesn't contain enough details to answer the question, please say so.`, context, question)
}
