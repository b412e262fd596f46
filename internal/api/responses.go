package api

import (
	"encoding/json"
	"net/http"
)

// AskResponse /ask 响应体
type AskResponse struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// HealthResponse /health 响应体。startup_count 仅在索引已加载时出现。
type HealthResponse struct {
	Status       string `json:"status"`
	IndexLoaded  bool   `json:"index_loaded"`
	StartupCount *int   `json:"startup_count,omitempty"`
}

// errorResponse 错误响应,{"detail": "..."}。
type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
