package vecstore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"startuplens/internal/domain/catalog"
)

// IndexEntry 元数据文件中的一行:记录内容加上其在索引中的序号。
// 序号 = 元数据行号 = 向量行号,三者恒等。
type IndexEntry struct {
	ID int `json:"id"`
	catalog.StartupRecord
}

func writeMeta(path string, entries []IndexEntry) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metadata file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	for i := range entries {
		if err := enc.Encode(&entries[i]); err != nil {
			return fmt.Errorf("encode metadata entry %d: %w", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush metadata file: %w", err)
	}
	return nil
}

func readMeta(path string) ([]IndexEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var entries []IndexEntry
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var e IndexEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("parse metadata line %d: %w", len(entries), err)
		}
		if e.ID != len(entries) {
			return nil, fmt.Errorf("%w: metadata line %d carries ordinal %d", ErrCorrupted, len(entries), e.ID)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read metadata file: %w", err)
	}
	return entries, nil
}
