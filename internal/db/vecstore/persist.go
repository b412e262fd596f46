package vecstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// 索引文件格式版本。结构变化时递增,旧版本文件直接判定为不可读,
// 由下一次摄取重建。
const indexFormatVersion = 1

// indexSnapshot 索引文件的序列化结构(msgpack)。
type indexSnapshot struct {
	Version int       `msgpack:"v"`
	Dim     int       `msgpack:"dim"`
	Count   int       `msgpack:"count"`
	Data    []float32 `msgpack:"data"`
}

// Save 将索引写入 path。
func (ix *Index) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer file.Close()

	snap := indexSnapshot{
		Version: indexFormatVersion,
		Dim:     ix.dim,
		Count:   ix.Ntotal(),
		Data:    ix.data,
	}
	if err := msgpack.NewEncoder(file).Encode(&snap); err != nil {
		return fmt.Errorf("encode index snapshot: %w", err)
	}
	return nil
}

// LoadIndex 从 path 读取索引。文件不存在时返回 os.ErrNotExist,
// 格式版本不符或数据长度与声明不一致时报错。
func LoadIndex(path string) (*Index, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var snap indexSnapshot
	if err := msgpack.NewDecoder(file).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode index snapshot %s: %w", path, err)
	}
	if snap.Version != indexFormatVersion {
		return nil, fmt.Errorf("index snapshot %s has unsupported format version %d", path, snap.Version)
	}
	if snap.Dim <= 0 || len(snap.Data) != snap.Dim*snap.Count {
		return nil, fmt.Errorf("index snapshot %s is malformed: dim=%d count=%d data=%d", path, snap.Dim, snap.Count, len(snap.Data))
	}
	return &Index{dim: snap.Dim, data: snap.Data}, nil
}
