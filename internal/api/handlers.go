package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"startuplens/internal/domain/rag"
	applog "startuplens/internal/platform/log"
)

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Startup Discovery API - Use /search or /ask endpoints",
	})
}

// handleSearch GET /search?q=...&top_k=...
// 返回按校准分排序的结果列表,索引未就绪时返回 503。
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	topK := 0
	if raw := r.URL.Query().Get("top_k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "top_k must be a positive integer")
			return
		}
		topK = n
	}

	items, err := s.retriever.Search(r.Context(), query, topK)
	if err != nil {
		if errors.Is(err, rag.ErrIndexNotReady) {
			writeError(w, http.StatusServiceUnavailable, "index not ready: no ingestion has completed yet")
			return
		}
		applog.Error("[API] search failed", "query", query, "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Search failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// handleAsk GET /ask?q=...
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	question := strings.TrimSpace(r.URL.Query().Get("q"))
	if question == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	answer, err := s.answerer.Ask(r.Context(), question)
	if err != nil {
		if errors.Is(err, rag.ErrIndexNotReady) {
			writeError(w, http.StatusServiceUnavailable, "index not ready: no ingestion has completed yet")
			return
		}
		applog.Error("[API] ask failed", "question", question, "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Q&A failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, AskResponse{Question: question, Answer: answer})
}

// handleHealth GET /health
// 索引未加载不算不健康:服务可以先行启动,等首次摄取完成。
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{Status: "healthy"}

	snap, err := s.snapshots.LoadSnapshot()
	switch {
	case err == nil:
		resp.IndexLoaded = true
		count := len(snap.Entries)
		resp.StartupCount = &count
	case errors.Is(err, rag.ErrIndexNotReady):
		// 首次摄取尚未完成
	default:
		resp.Status = "degraded"
		applog.Warn("[API] health check could not load index", "error", err)
	}

	writeJSON(w, http.StatusOK, resp)
}
