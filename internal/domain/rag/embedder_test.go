package rag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// newEmbeddingServer 模拟 OpenAI /embeddings:前 failures 次请求返回 500,
// 之后返回长度挂钩输入的向量,便于断言顺序。
func newEmbeddingServer(t *testing.T, failures int64) (*httptest.Server, *int64) {
	t.Helper()
	var requests int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&requests, 1)
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if n <= failures {
			http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
			return
		}

		resp := embeddingResponse{
			Data:  []embeddingData{{Index: 0, Embedding: []float32{float32(len(req.Input)), 1, 2}}},
			Model: req.Model,
			Usage: embeddingUsage{PromptTokens: 3, TotalTokens: 3},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func newTestEmbedder(url string) *OpenAIEmbedder {
	return NewOpenAIEmbedder(OpenAIEmbedderConfig{
		BaseURL:     url,
		APIKey:      "test-key",
		Model:       "text-embedding-ada-002",
		Dims:        3,
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
	})
}

func TestEmbedKeepsOrder(t *testing.T) {
	srv, _ := newEmbeddingServer(t, 0)
	e := newTestEmbedder(srv.URL)

	vectors, err := e.Embed(context.Background(), []string{"a", "bbb"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vectors) != 2 {
		t.Fatalf("got %d vectors", len(vectors))
	}
	if vectors[0][0] != 1 || vectors[1][0] != 3 {
		t.Errorf("order not preserved: %v", vectors)
	}
}

func TestEmbedRetriesThenSucceeds(t *testing.T) {
	srv, requests := newEmbeddingServer(t, 2)
	e := newTestEmbedder(srv.URL)

	vectors, err := e.Embed(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("should succeed on third attempt: %v", err)
	}
	if len(vectors) != 1 || len(vectors[0]) != 3 {
		t.Fatalf("unexpected vectors: %v", vectors)
	}
	if got := atomic.LoadInt64(requests); got != 3 {
		t.Errorf("server saw %d requests, want 3", got)
	}
}

func TestEmbedExhaustsRetries(t *testing.T) {
	srv, requests := newEmbeddingServer(t, 1<<30)
	e := newTestEmbedder(srv.URL)

	if _, err := e.Embed(context.Background(), []string{"hello"}); err == nil {
		t.Fatal("want error after retries exhausted")
	}
	if got := atomic.LoadInt64(requests); got != 3 {
		t.Errorf("server saw %d requests, want exactly maxAttempts", got)
	}
}

func TestEmbedWithFallbackSubstitutesZeroVectors(t *testing.T) {
	srv, _ := newEmbeddingServer(t, 1<<30)
	e := newTestEmbedder(srv.URL)

	vectors, substituted := e.EmbedWithFallback(context.Background(), []string{"a", "b"})
	if substituted != 2 {
		t.Fatalf("substituted = %d, want 2", substituted)
	}
	for i, v := range vectors {
		if len(v) != 3 {
			t.Fatalf("vectors[%d] has dim %d, want 3", i, len(v))
		}
		for _, x := range v {
			if x != 0 {
				t.Errorf("vectors[%d] = %v, want zero vector", i, v)
			}
		}
	}
}

func TestEmbedRejectsEmptyPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[],"model":"m","usage":{}}`))
	}))
	t.Cleanup(srv.Close)

	e := newTestEmbedder(srv.URL)
	if _, err := e.Embed(context.Background(), []string{"x"}); err == nil {
		t.Fatal("empty data array must be an error")
	}
}
