package ingest

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	applog "startuplens/internal/platform/log"
)

// SyncState 摄取同步状态。只在一次完整成功的运行(换代完成)之后写入,
// 因此它描述的永远是当前生效索引的来历。
type SyncState struct {
	LastSyncISO string `json:"last_sync_iso"`
	TotalDocs   int    `json:"total_docs"`
	LastUpdate  string `json:"last_update"`
}

// LastSync 解析上次同步时间。从未同步或无法解析时返回零值,
// 调用方据此做全量拉取。
func (s SyncState) LastSync() time.Time {
	if s.LastSyncISO == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s.LastSyncISO)
	if err != nil {
		return time.Time{}
	}
	return t
}

// StateStore 同步状态文件(sync_state.json)读写。
type StateStore struct {
	path string
}

// NewStateStore 在 indexDir 下管理 sync_state.json。
func NewStateStore(indexDir string) *StateStore {
	return &StateStore{path: filepath.Join(indexDir, "sync_state.json")}
}

// Load 读取状态。文件缺失或损坏一律视为从未同步,不报错。
func (s *StateStore) Load() SyncState {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			applog.Warn("[Ingest] sync state unreadable, assuming never synced", "path", s.path, "error", err)
		}
		return SyncState{}
	}

	var st SyncState
	if err := json.Unmarshal(data, &st); err != nil {
		applog.Warn("[Ingest] sync state corrupted, assuming never synced", "path", s.path, "error", err)
		return SyncState{}
	}
	return st
}

// Save 写入状态文件。
func (s *StateStore) Save(st SyncState) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}
